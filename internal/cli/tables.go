package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/dossier/internal/model"
)

const timeFormat = "2006-01-02 15:04"

// WriteSessionTable renders one row per session summary.
func WriteSessionTable(w io.Writer, summaries []model.SessionSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"SESSION", "OWNER", "FILES", "PROCESSED", "ERRORS", "CLIENTS", "STATUS", "UPDATED"}
	if err := writeRow(tw, styleHeader(header)); err != nil {
		return err
	}

	for _, s := range summaries {
		status := SuccessStyle.Render("active")
		if !s.IsActive {
			status = SubtleStyle.Render("closed")
		}
		if s.Recovered {
			status += " " + InfoStyle.Render("(recovered)")
		}
		errs := fmt.Sprint(s.Errors)
		if s.Errors > 0 {
			errs = ErrorStyle.Render(errs)
		}
		row := []string{
			s.SessionID,
			s.OwnerIdentity,
			fmt.Sprint(s.TotalFiles),
			fmt.Sprint(s.ProcessedFiles),
			errs,
			fmt.Sprint(s.ClientsCount),
			status,
			s.UpdatedAt.Local().Format(timeFormat),
		}
		if err := writeRow(tw, row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteClientTable renders one row per client with per-type document counts.
func WriteClientTable(w io.Writer, clients []model.ClientSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"CLIENT", "NAME", "DOCS", "SALARIES", "CREDITS", "CO-BUYERS", "TYPES", "LAST UPDATE"}
	if err := writeRow(tw, styleHeader(header)); err != nil {
		return err
	}

	for _, c := range clients {
		row := []string{
			c.ClientKey,
			c.DisplayName,
			fmt.Sprint(c.DocumentsProcessed),
			fmt.Sprint(c.SalaryRecords),
			fmt.Sprint(c.CreditRecords),
			fmt.Sprint(c.CoBuyers),
			formatTypeCounts(c.DocumentsByType),
			formatTime(c.LastUpdate),
		}
		if err := writeRow(tw, row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func styleHeader(cols []string) []string {
	styled := make([]string, len(cols))
	for i, col := range cols {
		styled[i] = BoldStyle.Render(col)
	}
	return styled
}

func writeRow(w io.Writer, cols []string) error {
	_, err := fmt.Fprintln(w, strings.Join(cols, "\t"))
	return err
}

func formatTypeCounts(counts map[model.DocumentType]int) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, t := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", t, counts[t]))
	}
	return strings.Join(parts, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}
