package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Render every stored document to a static page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			exporter, err := a.exportService()
			if err != nil {
				return err
			}
			report, err := exporter.Run(runCtx)
			if report != nil {
				fmt.Fprintln(cmd.OutOrStdout(), exportSummary(report, isTerminal(cmd.OutOrStdout())))
			}
			return err
		},
	}
}
