package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/persistorai/forumport/internal/models"
)

// maxReasons caps how many rejection reasons are listed per entity kind.
const maxReasons = 5

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func writeReport(w io.Writer, snap models.ReportSnapshot, format string) error {
	switch format {
	case "json":
		return formatJSON(w, snap)
	case "table", "":
		_, err := io.WriteString(w, formatTable(snap))
		return err
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
}

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func formatTable(snap models.ReportSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("Run"), snap.RunID)
	fmt.Fprintf(&b, "%s\n\n", dimStyle.Render("started "+humanize.Time(snap.StartedAt)))

	fmt.Fprintln(&b, headingStyle.Render("Entities"))
	fmt.Fprintln(&b, entityTable(snap))

	if reasons := reasonLines(snap); len(reasons) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("Reasons"))

		for _, line := range reasons {
			fmt.Fprintln(&b, line)
		}
	}

	if len(snap.Phases) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("Phases"))
		fmt.Fprintln(&b, phaseTable(snap.Phases))
	}

	return b.String()
}

func entityTable(snap models.ReportSnapshot) string {
	names := snap.EntityNames()
	rows := make([][]string, 0, len(names))

	for _, name := range names {
		t := snap.Entities[name]
		rows = append(rows, []string{
			name,
			humanize.Comma(int64(t.Accepted)),
			humanize.Comma(int64(t.Rejected)),
			humanize.Comma(int64(t.Conflict)),
		})
	}

	return newTable([]string{"Entity", "Accepted", "Rejected", "Conflict"}, rows).Render()
}

func phaseTable(phases []models.PhaseTiming) string {
	rows := make([][]string, 0, len(phases))
	failed := make([]bool, 0, len(phases))

	for _, p := range phases {
		status := "ok"
		if p.Err != "" {
			status = p.Err
		}

		rows = append(rows, []string{p.Name, formatDuration(p.Duration), status})
		failed = append(failed, p.Err != "")
	}

	return newTable([]string{"Phase", "Duration", "Status"}, rows).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle(row)
			if row >= 0 && row < len(failed) && failed[row] && col == 2 {
				return s.Inherit(failStyle)
			}

			return s
		}).
		Render()
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style { return cellStyle(row) })
}

func cellStyle(row int) lipgloss.Style {
	s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	if row == table.HeaderRow {
		return s.Bold(true)
	}

	return s
}

// reasonLines lists the most frequent rejection and conflict reasons per
// entity kind.
func reasonLines(snap models.ReportSnapshot) []string {
	var lines []string

	for _, name := range snap.EntityNames() {
		reasons := snap.Entities[name].Reasons
		if len(reasons) == 0 {
			continue
		}

		keys := make([]string, 0, len(reasons))
		for k := range reasons {
			keys = append(keys, k)
		}

		sort.Slice(keys, func(i, j int) bool {
			if reasons[keys[i]] != reasons[keys[j]] {
				return reasons[keys[i]] > reasons[keys[j]]
			}

			return keys[i] < keys[j]
		})

		for i, k := range keys {
			if i == maxReasons {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("  %s: %d more", name, len(keys)-maxReasons)))
				break
			}

			lines = append(lines, fmt.Sprintf("  %s: %s (%s)", name, k, humanize.Comma(int64(reasons[k]))))
		}
	}

	return lines
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	return d.Round(100 * time.Millisecond).String()
}
