// Package tui is the interactive search screen: a query input on top of a
// scrollable result list.
package tui

import (
	"meetindex/internal/search"

	tea "github.com/charmbracelet/bubbletea"
)

// Config holds what the CLI layer hands to the TUI.
type Config struct {
	Service *search.Service
	K       int
}

// Model is the top-level Bubble Tea model.
type Model struct {
	search searchModel
	width  int
	height int
}

// New creates the TUI model.
func New(cfg Config) Model {
	k := cfg.K
	if k <= 0 {
		k = search.DefaultK
	}
	return Model{search: newSearchModel(cfg.Service, k)}
}

func (m Model) Init() tea.Cmd {
	return m.search.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.search.View()
}

// Run starts the TUI and blocks until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
