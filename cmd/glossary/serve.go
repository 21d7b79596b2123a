package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/qafglossary/backend/internal/handler"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/router"
	"github.com/qafglossary/backend/internal/service"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only preview API and generated pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
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
			docService := service.NewDocumentService(
				repository.NewSectionRepository(a.db),
				repository.NewTermRepository(a.db),
				repository.NewDocumentRepository(a.db),
				repository.NewMigrationRunRepository(a.db),
			)
			r := router.Setup(cfg, handler.NewDocumentHandler(docService), handler.NewExportHandler(exporter), a.metrics.Handler())

			srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r}
			errCh := make(chan error, 1)
			go func() {
				klog.V(6).Infof("服务启动: port=%s", cfg.Server.Port)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-runCtx.Done():
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			klog.V(6).Infof("服务关闭中...")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides server.port)")
	return cmd
}
