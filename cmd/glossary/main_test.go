package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/service/migration"
	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func TestMigrateWithExport(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.SeedReportScenario(t)
	path := writeConfig(t, p.Config)

	out, err := execute(t, "migrate", "--export", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "assets written")
	assert.Contains(t, out, "pages")
	assert.FileExists(t, filepath.Join(p.Config.Migration.ExportDir(), "report.html"))

	out, err = execute(t, "export", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "inline filled")
}

func TestMigrateRejectsMissingConfigBeforeWriting(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.Config.Migration.LegacyDB = ""
	path := writeConfig(t, p.Config)

	_, err := execute(t, "migrate", "-c", path)
	require.ErrorIs(t, err, config.ErrMissingConfig)
	assert.Contains(t, err.Error(), "migration.legacy_db")
	assert.NoFileExists(t, p.Config.Database.DSN)
}

func TestRenderSummary(t *testing.T) {
	plain := migrationSummary(&migration.Report{RunID: "r1", Documents: 7}, false)
	assert.Contains(t, plain, "migrate r1")
	assert.Contains(t, plain, "documents")
	assert.Contains(t, plain, "7")
	assert.NotContains(t, plain, "╭")

	styled := migrationSummary(&migration.Report{RunID: "r1"}, true)
	assert.Contains(t, styled, "╭")
}
