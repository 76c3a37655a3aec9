package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadState is the aggregated state rendered by the TUI.
type DownloadState struct {
	Provider    string
	CurrentUID  string
	CurrentRow  int
	TotalRows   int
	Transferred int64
	Total       int64 // -1 when the content length is unknown
	Messages    []string
	Done        bool
}

// StateMsg is sent whenever the download state changes.
type StateMsg struct {
	State *DownloadState
}

// Model implements the tea.Model interface for download progress.
type Model struct {
	state    *DownloadState
	spinner  spinner.Model
	progress progress.Model

	width int

	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// NewModel creates a download progress model.
func NewModel(initial *DownloadState) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())

	return Model{
		state:        initial,
		spinner:      s,
		progress:     prog,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 14

	case StateMsg:
		m.state = msg.State
		if m.state.Done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder

	header := fmt.Sprintf("%s vofetch %s", m.spinner.View(),
		m.titleStyle.Render(fmt.Sprintf("downloading from %s", m.state.Provider)))
	sb.WriteString(header + "\n")

	info := fmt.Sprintf("Row %d/%d | %s", m.state.CurrentRow+1, m.state.TotalRows, m.state.CurrentUID)
	sb.WriteString(m.infoStyle.Render(info) + "\n")

	var percent float64
	if m.state.Total > 0 {
		percent = float64(m.state.Transferred) / float64(m.state.Total)
	}
	sb.WriteString(m.progress.ViewAs(percent) + " " + formatBytes(m.state.Transferred) + "\n")

	for _, msg := range m.state.Messages {
		sb.WriteString(m.errorStyle.Render(msg) + "\n")
	}

	if m.state.Done {
		sb.WriteString(m.successStyle.Render("Done.") + " Press 'q' to exit.\n")
	}

	return sb.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}
