package main

import (
	"fmt"
	"strconv"

	"github.com/qafglossary/backend/internal/pkg/database"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/service/migration"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var withExport bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import the legacy export into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// 必须在任何写入之前校验
			if err := requireConfig(cfg); err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			legacyDB, err := database.OpenLegacy(cfg.Migration.LegacyDB)
			if err != nil {
				return err
			}
			if sqlDB, err := legacyDB.DB(); err == nil {
				defer sqlDB.Close()
			}

			svc, err := migration.NewService(cfg, migration.Repositories{
				Legacy:    repository.NewLegacyRepository(legacyDB),
				Sections:  repository.NewSectionRepository(a.db),
				Terms:     repository.NewTermRepository(a.db),
				Documents: repository.NewDocumentRepository(a.db),
				Assets:    repository.NewAssetRepository(a.db),
				Runs:      repository.NewMigrationRunRepository(a.db),
			}, a.bus)
			if err != nil {
				return err
			}

			report, runErr := svc.Run(runCtx)
			if report != nil {
				fmt.Fprintln(cmd.OutOrStdout(), migrationSummary(report, isTerminal(cmd.OutOrStdout())))
			}
			if runErr != nil {
				return runErr
			}
			if !withExport {
				return nil
			}

			exporter, err := a.exportService()
			if err != nil {
				return err
			}
			exportReport, err := exporter.Run(runCtx)
			if exportReport != nil {
				fmt.Fprintln(cmd.OutOrStdout(), exportSummary(exportReport, isTerminal(cmd.OutOrStdout())))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&withExport, "export", false, "Render static pages after a successful migration")
	return cmd
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
