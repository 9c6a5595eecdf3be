// Package tui is an interactive terminal browser over the query engine.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// QueryPort is the TUI-facing subset of the query usecase.
type QueryPort interface {
	Query(ctx context.Context, text string, k int, filters *entities.FilterSpec) (*entities.QueryResult, error)
}

type resultMsg struct {
	result *entities.QueryResult
}

type errMsg struct {
	err error
}

// Model is the Bubble Tea model for the browser.
type Model struct {
	ctx        context.Context
	service    QueryPort
	k          int
	input      textinput.Model
	viewport   viewport.Model
	result     *entities.QueryResult
	status     string
	cursor     int
	systemOnly bool
	loading    bool
	ready      bool
}

// New creates a browser that retrieves k messages per query.
func New(ctx context.Context, service QueryPort, k int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the chat and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		service:  service,
		k:        k,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Type to search. Up/Down pages results, Tab switches to system messages.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and query events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, query box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case resultMsg:
		m.loading = false
		m.result = msg.result
		m.cursor = 0
		m.status = fmt.Sprintf("%d results for %q", len(msg.result.Matches), msg.result.Query)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case errMsg:
		m.loading = false
		m.status = "Error: " + msg.err.Error()
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.loading {
				return m, nil
			}
			m.loading = true
			m.status = "Searching..."
			return m, m.runQuery(q)
		case tea.KeyTab:
			m.systemOnly = !m.systemOnly
			if m.systemOnly {
				m.status = "Searching system messages"
			} else {
				m.status = "Searching chat messages"
			}
			return m, nil
		case tea.KeyDown:
			if n := m.matchCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
			}
			return m, nil
		case tea.KeyUp:
			if n := m.matchCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runQuery queries off the update loop.
func (m Model) runQuery(q string) tea.Cmd {
	var filters *entities.FilterSpec
	if m.systemOnly {
		f := entities.BySystem(true)
		filters = &f
	}
	return func() tea.Msg {
		result, err := m.service.Query(m.ctx, q, m.k, filters)
		if err != nil {
			return errMsg{err: err}
		}
		return resultMsg{result: result}
	}
}

// View renders the layout and the current match.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("ChatRAG")
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) matchCount() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Matches)
}

func (m Model) renderCurrent() string {
	if m.matchCount() == 0 {
		return "No results yet."
	}
	match := m.result.Matches[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f", m.cursor+1, len(m.result.Matches), match.Score())

	var meta []string
	meta = append(meta, "sender: "+match.Metadata.Sender)
	if match.Metadata.Timestamp != "" {
		meta = append(meta, "at: "+match.Metadata.Timestamp)
	}
	if match.Metadata.IsSystem {
		meta = append(meta, "system")
	}

	return title + "\n" +
		metaStyle.Render(strings.Join(meta, "  ")) + "\n\n" +
		match.Document + "\n\n" +
		answerStyle.Render(m.result.Response)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
