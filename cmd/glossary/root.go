package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/qafglossary/backend/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "config.yaml"
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "glossary",
		Short:         "Legacy glossary migration and static export",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_PATH or config.yaml)")
	bindKlogFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	return rootCmd
}

// bindKlogFlags 把 klog 的 -v 等参数挂到 cobra 上
func bindKlogFlags(flags *pflag.FlagSet) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	flags.AddGoFlagSet(fs)
}

// signalContext 收到中断信号后取消，迁移在记录之间退出
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func requireConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
