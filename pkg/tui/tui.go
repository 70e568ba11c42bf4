// Package tui provides a terminal user interface for midi2notes
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/midi2notes/pkg/converter"
	"github.com/james-see/midi2notes/pkg/logger"
	"github.com/james-see/midi2notes/pkg/notes"
	"github.com/james-see/midi2notes/pkg/render"
)

var (
	accent    = lipgloss.Color("#4FD1C5")
	highlight = lipgloss.Color("#F6E05E")
	silver    = lipgloss.Color("#C0C0C0")
	darkGray  = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silver).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(highlight).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateExtracting
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Mode        notes.Mode
}

var menuItems = []MenuItem{
	{Title: "Notes in seconds", Description: "Extract notes timed with the file's tempo map", Mode: notes.ModeSeconds},
	{Title: "Notes in ticks", Description: "Extract notes in raw MIDI ticks", Mode: notes.ModeTicks},
	{Title: "Exit", Description: "Exit the application"},
}

// visibleRows is the number of notes listed at once in the result view
const visibleRows = 12

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	mode         notes.Mode
	notes        []notes.Note
	summary      notes.Summary
	offset       int
	err          error
	width        int
	height       int
}

// extractDoneMsg signals extraction completion
type extractDoneMsg struct {
	notes []notes.Note
	err   error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New() Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		mode:       notes.ModeSeconds,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateExtracting
			return m, tea.Batch(m.spinner.Tick, m.performExtraction())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case extractDoneMsg:
		m.state = StateResult
		m.err = msg.err
		m.notes = msg.notes
		notes.SortByStart(m.notes)
		m.summary = notes.Summarize(m.notes)
		m.offset = 0
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.mode = menuItems[m.menuIndex].Mode
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.offset > 0 {
			m.offset--
		}
	case "down", "j":
		if m.offset < len(m.notes)-visibleRows {
			m.offset++
		}
	case "m":
		// Toggle the timing mode and extract again
		if m.mode == notes.ModeSeconds {
			m.mode = notes.ModeTicks
		} else {
			m.mode = notes.ModeSeconds
		}
		m.state = StateExtracting
		return m, tea.Batch(m.spinner.Tick, m.performExtraction())
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.notes = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performExtraction() tea.Cmd {
	path, mode := m.selectedFile, m.mode
	return func() tea.Msg {
		conv := converter.New(notes.Options{Mode: mode, Logger: logger.GetLogger()})
		ns, err := conv.ExtractFile(path)
		return extractDoneMsg{notes: ns, err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" MIDI2NOTES "))
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateExtracting:
		s.WriteString(m.viewExtracting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT MODE "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(highlight).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT MIDI FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewExtracting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" EXTRACTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Reading %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  mode: %s", m.mode)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Extraction failed: %s", m.err.Error())))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("m: toggle mode • enter: back"))
		return boxStyle.Render(s.String())
	}

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(filepath.Base(m.selectedFile)))))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Mode:   %s\n", m.mode))
	s.WriteString(fmt.Sprintf("Notes:  %d across %d tracks\n", m.summary.Notes, len(m.summary.Tracks)))
	if m.summary.Notes > 0 {
		s.WriteString(fmt.Sprintf("Pitch:  %d..%d\n", m.summary.LowPitch, m.summary.HighPitch))
	}
	s.WriteString(fmt.Sprintf("End:    %s\n\n", formatPosition(m.summary.End, m.mode)))

	s.WriteString(menuStyle.Render(fmt.Sprintf("%-6s %-12s %-12s %s", "PITCH", "START", "DURATION", "TRACK")))
	s.WriteString("\n")
	end := min(m.offset+visibleRows, len(m.notes))
	for _, n := range m.notes[m.offset:end] {
		c := render.TrackColor(n.Track)
		color := lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", int(c.R*255), int(c.G*255), int(c.B*255)))
		row := fmt.Sprintf("%-6d %-12s %-12s %d", n.Pitch, formatPosition(n.Start, m.mode), formatPosition(n.Duration, m.mode), n.Track)
		s.WriteString(lipgloss.NewStyle().Foreground(color).PaddingLeft(2).Render(row))
		s.WriteString("\n")
	}
	if len(m.notes) > visibleRows {
		s.WriteString(statusStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.notes))))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("↑/↓: scroll • m: toggle mode • enter: back"))

	return boxStyle.Render(s.String())
}

func formatPosition(v float64, mode notes.Mode) string {
	if mode == notes.ModeTicks {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3fs", v)
}

// Run starts the TUI application
func Run() error {
	p := tea.NewProgram(New(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
