package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// RenderReport prints the canonical row count and the sample table.
func RenderReport(w io.Writer, report *pgload.Report) {
	if report == nil {
		return
	}

	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("%d institutions in %s", report.Count, report.Table)))
	if len(report.Sample) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "CITY", "STATE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range report.Sample {
		t.Row(s.ID, s.Name, s.City, s.State)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Sample institutions:"))
	fmt.Fprintln(w, t.String())
}

// RenderSummary prints the outcome banner and counters of a load.
func RenderSummary(w io.Writer, s *pgload.LoadSummary) {
	if s == nil {
		return
	}

	banner := successStyle.Render(fmt.Sprintf("Loaded %d rows", s.Loaded))
	if s.FailedBatches > 0 {
		banner = failureStyle.Render(fmt.Sprintf("Loaded %d rows, %d failed", s.Loaded, s.Errored))
	}
	fmt.Fprintln(w, banner)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Row("Run", s.RunID.String()).
		Row("Transport", string(s.Transport)).
		Row("Read", fmt.Sprint(s.Read)).
		Row("Loaded", fmt.Sprint(s.Loaded)).
		Row("Skipped", fmt.Sprint(s.Skipped)).
		Row("Errored", fmt.Sprint(s.Errored)).
		Row("Batches", fmt.Sprintf("%d (%d failed)", s.Batches, s.FailedBatches))
	if s.Transport == pgload.TransportStaging {
		t.Row("Upserted", fmt.Sprint(s.Reconciled))
	}
	t.Row("Duration", s.Duration.Round(time.Millisecond).String())

	fmt.Fprintln(w, t.String())
}
