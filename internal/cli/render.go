package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/runoshun/issue-crew/internal/domain"
)

// colors is the terminal palette for issue output.
var colors = struct {
	Header   lipgloss.Color
	Border   lipgloss.Color
	Muted    lipgloss.Color
	Open     lipgloss.Color
	Progress lipgloss.Color
	Closed   lipgloss.Color
	Low      lipgloss.Color
	Medium   lipgloss.Color
	High     lipgloss.Color
}{
	Header:   lipgloss.Color("#A29BFE"), // Lavender
	Border:   lipgloss.Color("#636E72"), // Gray
	Muted:    lipgloss.Color("#636E72"), // Gray
	Open:     lipgloss.Color("#74B9FF"), // Light blue
	Progress: lipgloss.Color("#FDCB6E"), // Yellow
	Closed:   lipgloss.Color("#636E72"), // Gray
	Low:      lipgloss.Color("#00B894"), // Green
	Medium:   lipgloss.Color("#FDCB6E"), // Yellow
	High:     lipgloss.Color("#D63031"), // Red
}

func statusColor(s domain.Status) lipgloss.Color {
	switch s {
	case domain.StatusOpen:
		return colors.Open
	case domain.StatusInProgress:
		return colors.Progress
	default:
		return colors.Closed
	}
}

func priorityColor(p domain.Priority) lipgloss.Color {
	switch p {
	case domain.PriorityHigh:
		return colors.High
	case domain.PriorityMedium:
		return colors.Medium
	default:
		return colors.Low
	}
}

// Table columns.
const (
	colID = iota
	colPriority
	colStatus
	colTitle
)

// printIssueTable prints issues as a bordered table. Colors are only emitted
// when w is a terminal.
func printIssueTable(w io.Writer, issues domain.Collection) {
	r := lipgloss.NewRenderer(w)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(w, r.NewStyle().Foreground(colors.Muted).Render("No issues found."))
		return
	}

	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, []string{issue.ID, issue.Priority.Display(), issue.Status.Display(), issue.Title})
	}

	cell := r.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(colors.Border)).
		Headers("ID", "PRIORITY", "STATUS", "TITLE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Bold(true).Foreground(colors.Header)
			}
			issue := issues[row]
			switch col {
			case colPriority:
				return cell.Foreground(priorityColor(issue.Priority))
			case colStatus:
				return cell.Foreground(statusColor(issue.Status))
			case colID:
				return cell.Foreground(colors.Muted)
			default:
				return cell
			}
		})

	_, _ = fmt.Fprintln(w, t.Render())
}

// printIssueDetails prints one issue in a labelled block.
func printIssueDetails(w io.Writer, issue *domain.Issue) {
	r := lipgloss.NewRenderer(w)
	label := r.NewStyle().Foreground(colors.Muted).Width(10)

	_, _ = fmt.Fprintln(w, r.NewStyle().Bold(true).Render(issue.Title))
	_, _ = fmt.Fprintln(w, label.Render("ID:")+issue.ID)
	_, _ = fmt.Fprintln(w, label.Render("Priority:")+r.NewStyle().Foreground(priorityColor(issue.Priority)).Render(issue.Priority.Display()))
	_, _ = fmt.Fprintln(w, label.Render("Status:")+r.NewStyle().Foreground(statusColor(issue.Status)).Render(issue.Status.Display()))
	if issue.Description != "" {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, issue.Description)
	}
}
