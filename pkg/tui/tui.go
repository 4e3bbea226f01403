// Package tui provides a terminal user interface for picking and rendering
// a single catalog piece.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/neonhorizon/pkg/catalog"
	"github.com/james-see/neonhorizon/pkg/encoder"
	"github.com/james-see/neonhorizon/pkg/generator"
)

// Neon synthwave color scheme
var (
	neonPink   = lipgloss.Color("#FF2A6D")
	neonCyan   = lipgloss.Color("#05D9E8")
	chromeGray = lipgloss.Color("#D1D7E0")
	nightBlue  = lipgloss.Color("#1A1A2E")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(neonPink).
			Background(nightBlue).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(chromeGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(neonPink).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonPink).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StatePicker State = iota
	StateRendering
	StateResult
)

// Row identifies one parameter dimension in the picker
type Row int

const (
	RowKey Row = iota
	RowTempo
	RowBass
	RowMelody
	rowCount
)

var rowTitles = [rowCount]string{"Key", "Tempo", "Bass", "Melody"}

// Model represents the TUI model
type Model struct {
	state     State
	row       Row
	choice    [rowCount]int
	catalog   *catalog.Catalog
	tempi     []int
	generator *generator.Generator
	writer    *encoder.MIDIWriter
	outputDir string
	spinner   spinner.Model

	outputFile string
	counts     [4]int
	clamps     int
	err        error
}

// renderDoneMsg signals render completion
type renderDoneMsg struct {
	outputFile string
	counts     [4]int
	clamps     int
	err        error
}

// New creates a new TUI model writing into outputDir
func New(c *catalog.Catalog, g *generator.Generator, outputDir string) Model {
	if c == nil {
		c = catalog.Default()
	}
	if g == nil {
		g = generator.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		state:     StatePicker,
		catalog:   c,
		tempi:     c.Tempi.Values(),
		generator: g,
		writer:    encoder.NewMIDIWriter(g.Theory(), nil),
		outputDir: outputDir,
		spinner:   s,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) size(r Row) int {
	switch r {
	case RowKey:
		return len(m.catalog.Keys)
	case RowTempo:
		return len(m.tempi)
	case RowBass:
		return len(m.catalog.Bass)
	case RowMelody:
		return len(m.catalog.Melody)
	}
	return 0
}

func (m Model) value(r Row) string {
	i := m.choice[r]
	switch r {
	case RowKey:
		k := m.catalog.Keys[i]
		return fmt.Sprintf("%s (root %d)", k.Name, k.Root)
	case RowTempo:
		return fmt.Sprintf("%d BPM", m.tempi[i])
	case RowBass:
		return m.catalog.Bass[i].String()
	case RowMelody:
		return m.catalog.Melody[i].String()
	}
	return ""
}

// Params returns the currently selected parameter set
func (m Model) Params() generator.ParameterSet {
	k := m.catalog.Keys[m.choice[RowKey]]
	return generator.ParameterSet{
		KeyName: k.Name,
		Root:    k.Root,
		Tempo:   m.tempi[m.choice[RowTempo]],
		Bass:    m.catalog.Bass[m.choice[RowBass]],
		Melody:  m.catalog.Melody[m.choice[RowMelody]],
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state {
		case StatePicker:
			return m.updatePicker(msg)
		case StateResult:
			return m.updateResult(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case renderDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.counts = msg.counts
		m.clamps = msg.clamps
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < rowCount-1 {
			m.row++
		}
	case "left", "h":
		n := m.size(m.row)
		m.choice[m.row] = (m.choice[m.row] + n - 1) % n
	case "right", "l":
		n := m.size(m.row)
		m.choice[m.row] = (m.choice[m.row] + 1) % n
	case "enter":
		m.state = StateRendering
		return m, tea.Batch(m.spinner.Tick, m.performRender())
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StatePicker
		m.err = nil
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performRender() tea.Cmd {
	params := m.Params()
	return func() tea.Msg {
		piece, err := m.generator.Generate(params)
		if err != nil {
			return renderDoneMsg{err: err}
		}

		if err := os.MkdirAll(m.outputDir, 0755); err != nil {
			return renderDoneMsg{err: err}
		}
		outputFile := filepath.Join(m.outputDir, catalog.Filename(params))
		report, err := m.writer.WriteFile(piece, outputFile)
		if err != nil {
			return renderDoneMsg{err: err}
		}

		var counts [4]int
		for _, v := range generator.Voices {
			counts[v] = len(piece.Stream(v))
		}
		return renderDoneMsg{outputFile: outputFile, counts: counts, clamps: report.Total()}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StatePicker:
		s.WriteString(m.viewPicker())
	case StateRendering:
		s.WriteString(m.viewRendering())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: parameter • ←/→: value • enter: render • q: quit"))

	return s.String()
}

func (m Model) viewPicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" PICK PARAMETERS "))
	s.WriteString("\n\n")

	for r := Row(0); r < rowCount; r++ {
		line := fmt.Sprintf("%-7s ‹ %s ›", rowTitles[r], m.value(r))
		if r == m.row {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(menuStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	s.WriteString(statusStyle.Render(catalog.Filename(m.Params())))

	return boxStyle.Render(s.String())
}

func (m Model) viewRendering() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" RENDERING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Rendering %s...", m.spinner.View(), catalog.Filename(m.Params())))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Render failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Piece written!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Output: %s\n", filepath.Base(m.outputFile)))
		for _, v := range generator.Voices {
			s.WriteString(fmt.Sprintf("%-6s %d notes\n", v, m.counts[v]))
		}
		if m.clamps > 0 {
			s.WriteString(statusStyle.Render(fmt.Sprintf("%d onsets clamped to the previous release", m.clamps)))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
  _   _ _____ ___  _   _   _   _  ___  ____  ___ __________  _   _
 | \ | | ____/ _ \| \ | | | | | |/ _ \|  _ \|_ _|__  / _ \| \ | |
 |  \| |  _|| | | |  \| | | |_| | | | | |_) || |  / / | | |  \| |
 | |\  | |__| |_| | |\  | |  _  | |_| |  _ < | | / /| |_| | |\  |
 |_| \_|_____\___/|_| \_| |_| |_|\___/|_| \_\___/____\___/|_| \_|
`
	return lipgloss.NewStyle().Foreground(neonPink).Render(logo)
}

// Run starts the TUI application
func Run(c *catalog.Catalog, g *generator.Generator, outputDir string) error {
	p := tea.NewProgram(New(c, g, outputDir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
