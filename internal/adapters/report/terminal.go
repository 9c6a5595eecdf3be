// Package report renders evaluation reports for terminals.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// Terminal writes an EvalReport as ranked lines.
// Styling follows the writer: plain text when it is not a terminal.
type Terminal struct {
	w      io.Writer
	title  lipgloss.Style
	score  lipgloss.Style
	sender lipgloss.Style
	hit    lipgloss.Style
	muted  lipgloss.Style
}

func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:      w,
		title:  r.NewStyle().Bold(true),
		score:  r.NewStyle().Foreground(lipgloss.Color("10")),
		sender: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		hit:    r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Render prints one line per ranked hit:
//
//	1. Score: 0.8123 | Sender: Alice | Alice: the API docs are up...
func (t *Terminal) Render(report *entities.EvalReport) error {
	if _, err := fmt.Fprintf(t.w, "\n%s\n", t.title.Render(fmt.Sprintf("Evaluation for query: '%s'", report.Query))); err != nil {
		return err
	}

	if len(report.Rows) == 0 {
		_, err := fmt.Fprintln(t.w, t.muted.Render("No results."))
		return err
	}

	for _, row := range report.Rows {
		line := fmt.Sprintf("%d. %s | %s | %s",
			row.Rank,
			t.score.Render(fmt.Sprintf("Score: %.4f", row.Score)),
			t.sender.Render("Sender: "+row.Sender),
			row.Preview,
		)
		if report.ExpectedRank == row.Rank {
			line += " " + t.hit.Render("<- expected")
		}
		if _, err := fmt.Fprintln(t.w, line); err != nil {
			return err
		}
	}

	if report.Expected == "" {
		return nil
	}
	var summary string
	if report.ExpectedRank > 0 {
		summary = fmt.Sprintf("Expected content found at rank %d", report.ExpectedRank)
	} else {
		summary = fmt.Sprintf("Expected content %q not retrieved", report.Expected)
	}
	_, err := fmt.Fprintln(t.w, t.muted.Render(summary))
	return err
}
