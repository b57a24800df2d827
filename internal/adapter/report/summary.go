package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stagehand/internal/adapter/coordinator"
)

// Summary renders a coordinator report as a short table. Colors are only
// emitted when the writer is a terminal that supports them.
type Summary struct {
	title   lipgloss.Style
	status  map[coordinator.Status]lipgloss.Style
	name    lipgloss.Style
	elapsed lipgloss.Style
	detail  lipgloss.Style
	footer  lipgloss.Style
}

// NewSummary creates a renderer whose color profile matches w.
func NewSummary(w io.Writer) *Summary {
	r := lipgloss.NewRenderer(w)
	return &Summary{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		status: map[coordinator.Status]lipgloss.Style{
			coordinator.StatusSucceeded: r.NewStyle().Width(8).Foreground(lipgloss.Color("#5FD700")),
			coordinator.StatusFailed:    r.NewStyle().Width(8).Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
			coordinator.StatusSkipped:   r.NewStyle().Width(8).Foreground(lipgloss.Color("#888888")),
		},
		name:    r.NewStyle(),
		elapsed: r.NewStyle().Width(9).Align(lipgloss.Right).Foreground(lipgloss.Color("#AAAAAA")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		footer:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// Render returns the summary text for rep.
func (s *Summary) Render(title string, rep *coordinator.Report) string {
	outcomes := rep.Outcomes()

	width := 0
	for _, o := range outcomes {
		width = max(width, lipgloss.Width(o.Name))
	}

	var b strings.Builder
	b.WriteString(s.title.Render(fmt.Sprintf("%s (%s)", title, rep.Mode)))
	b.WriteByte('\n')

	ran, failed := 0, 0
	for _, o := range outcomes {
		line := s.status[o.Status].Render(o.Status.String()) +
			s.name.Width(width+2).Render(o.Name)
		if o.Status != coordinator.StatusSkipped {
			ran++
			line += s.elapsed.Render(round(o.Duration).String())
		}
		if o.Status == coordinator.StatusFailed {
			failed++
			line += "  " + s.detail.Render(firstLine(cause(o.Err)))
		}
		b.WriteString("  " + strings.TrimRight(line, " ") + "\n")
	}

	b.WriteString(s.footer.Render(fmt.Sprintf("%d of %d tasks ran, %d failed", ran, len(outcomes), failed)))
	b.WriteByte('\n')
	return b.String()
}

// Write renders rep to w.
func (s *Summary) Write(w io.Writer, title string, rep *coordinator.Report) error {
	_, err := io.WriteString(w, s.Render(title, rep))
	return err
}

// cause drops the coordinator's task prefix; the name is already shown.
func cause(err error) error {
	var te *coordinator.TaskError
	if errors.As(err, &te) && te.Err != nil {
		return te.Err
	}
	return err
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(100 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Millisecond)
	default:
		return d.Round(time.Microsecond)
	}
}
