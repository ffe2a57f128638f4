package tui

import (
	"context"
	"fmt"
	"strings"

	"meetindex/internal/search"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type searchState int

const (
	searchIdle searchState = iota
	searchRunning
)

type searchModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	svc         *search.Service
	k           int
	state       searchState
	lastQuery   string
	width       int
	height      int
	initialized bool
}

// resultsMsg is sent when a search completes.
type resultsMsg struct {
	resp *search.Response
	err  error
}

func newSearchModel(svc *search.Service, k int) searchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Search your meetings..."
	ti.CharLimit = 2000
	ti.Focus()

	return searchModel{
		spinner: sp,
		input:   ti,
		svc:     svc,
		k:       k,
		state:   searchIdle,
	}
}

func (m searchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *searchModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap.
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Type a query and press Enter.\n\nDates in the query (\"last week\", \"March 1 to March 5\") narrow results to those days.\nEsc or ctrl+c quits."))

	m.input.Width = width - 4
	m.initialized = true
}

func runSearch(svc *search.Service, query string, k int) tea.Cmd {
	return func() tea.Msg {
		resp, err := svc.Search(context.Background(), query, k)
		return resultsMsg{resp: resp, err: err}
	}
}

func (m searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		return m, nil

	case resultsMsg:
		m.state = searchIdle
		if msg.err != nil {
			m.viewport.SetContent(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.viewport.SetContent(m.renderResults(msg.resp))
		}
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if m.state == searchRunning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.state == searchRunning {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.lastQuery = query
			m.state = searchRunning
			return m, tea.Batch(m.spinner.Tick, runSearch(m.svc, query, m.k))
		}
	}

	if m.state == searchIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m searchModel) renderResults(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return dimStyle.Render(fmt.Sprintf("No results for %q.", resp.Query.Raw))
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%d results for %q", len(resp.Results), resp.Query.Raw)) + "\n")
	if resp.DateFiltered {
		for _, r := range resp.Query.DateRanges {
			sb.WriteString(subtitleStyle.Render(fmt.Sprintf("filtered to %s .. %s",
				r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))) + "\n")
		}
	}
	sb.WriteString("\n")

	for i, r := range resp.Results {
		header := fmt.Sprintf("%d. %s", i+1, r.SourcePath)
		meta := fmt.Sprintf("%s · chunk %d · %s · score %.3f",
			r.Kind, r.ChunkIndex, r.Timestamp.Format("2006-01-02"), r.Score)
		sb.WriteString(selectedStyle.Render(header) + "\n")
		sb.WriteString(dimStyle.Render(meta) + "\n")
		sb.WriteString(listItemStyle.Render(wrap(collapse(r.Text), m.width-2)) + "\n\n")
	}
	return sb.String()
}

func (m searchModel) View() string {
	if !m.initialized {
		return ""
	}

	statusText := fmt.Sprintf("%d chunks indexed", m.svc.Snapshot().Index.Count())
	if m.state == searchRunning {
		statusText = m.spinner.View() + " searching..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(" meetindex · " + statusText)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func wrap(text string, width int) string {
	if width < 20 {
		return text
	}
	var sb strings.Builder
	line := 0
	for _, word := range strings.Fields(text) {
		if line > 0 && line+1+len(word) > width {
			sb.WriteString("\n")
			line = 0
		} else if line > 0 {
			sb.WriteString(" ")
			line++
		}
		sb.WriteString(word)
		line += len(word)
	}
	return sb.String()
}
