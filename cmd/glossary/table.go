package main

import (
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/qafglossary/backend/internal/service/export"
	"github.com/qafglossary/backend/internal/service/migration"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderSummary 两列统计表；终端下使用圆角样式
func renderSummary(title string, rows [][2]string, styled bool) string {
	tw := table.NewWriter()
	if styled {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Item", "Count"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}

func migrationSummary(r *migration.Report, styled bool) string {
	return renderSummary("migrate "+r.RunID, [][2]string{
		{"sections", itoa(r.Sections)},
		{"terms", itoa(r.Terms)},
		{"terms skipped", itoa(r.TermsSkipped)},
		{"documents", itoa(r.Documents)},
		{"documents dropped", itoa(r.DocumentsDropped)},
		{"variants", itoa(r.Variants)},
		{"variants skipped", itoa(r.VariantsSkipped)},
		{"docx converted", itoa(r.Converted)},
		{"docx failed", itoa(r.ConversionFailed)},
		{"images", itoa(r.Images)},
		{"images skipped", itoa(r.ImagesSkipped)},
		{"assets written", itoa(r.AssetsWritten)},
		{"assets reused", itoa(r.AssetsReused)},
		{"links", itoa(r.Links)},
		{"duplicate links", itoa(r.DuplicateLinks)},
		{"duration", r.Duration.Round(time.Millisecond).String()},
	}, styled)
}

func exportSummary(r *export.ExportReport, styled bool) string {
	return renderSummary("export", [][2]string{
		{"pages", itoa(r.Pages)},
		{"reconverted", itoa(r.Reconverted)},
		{"reconvert failed", itoa(r.ReconvertFail)},
		{"inline filled", itoa(r.InlineFilled)},
		{"gallery images", itoa(r.GalleryImages)},
		{"collisions", itoa(r.Collisions)},
		{"failed", itoa(r.Failed)},
		{"duration", r.Duration.Round(time.Millisecond).String()},
	}, styled)
}
