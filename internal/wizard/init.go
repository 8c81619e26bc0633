// Package wizard holds the interactive terminal form behind loam init.
package wizard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	_ "modernc.org/sqlite"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/internal/config"
	"github.com/loamdb/loam/schema"
)

// InitResult is returned when the init form completes.
type InitResult struct {
	Config *config.Config
	// Snapshot holds the schema of an already-existing database, so
	// init can seed the declared schema file from it. Empty for a
	// fresh project.
	Snapshot schema.Snapshot
}

// init form field indexes
const (
	initFieldDatabase = iota
	initFieldSchema
	initFieldMigrations
	initFieldCount
)

// initSeedDoneMsg is sent when inspection of an existing database
// completes.
type initSeedDoneMsg struct {
	snapshot schema.Snapshot
	err      error
}

// InitModel is the bubbletea model for the project setup form.
type InitModel struct {
	inputs    []textinput.Model
	focused   int
	err       error
	seeding   bool
	spinner   spinner.Model
	result    *InitResult
	done      bool
	statusMsg string
	width     int
}

// NewInitModel creates a new project setup model.
func NewInitModel() InitModel {
	inputs := make([]textinput.Model, initFieldCount)

	inputs[initFieldDatabase] = textinput.New()
	inputs[initFieldDatabase].Placeholder = "loam.db"
	inputs[initFieldDatabase].CharLimit = 256
	inputs[initFieldDatabase].Focus()

	inputs[initFieldSchema] = textinput.New()
	inputs[initFieldSchema].Placeholder = "schema.yaml"
	inputs[initFieldSchema].CharLimit = 256

	inputs[initFieldMigrations] = textinput.New()
	inputs[initFieldMigrations].Placeholder = "migrations (empty for auto-apply)"
	inputs[initFieldMigrations].CharLimit = 256

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return InitModel{
		inputs:  inputs,
		focused: initFieldDatabase,
		spinner: s,
		width:   80,
	}
}

func (m InitModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m InitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.seeding {
			return m, nil // ignore input while inspecting the database
		}

		switch msg.String() {
		case "ctrl+c", "esc":
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit

		case "tab", "down":
			m.focused = (m.focused + 1) % initFieldCount
			return m, m.updateFocus()

		case "shift+tab", "up":
			m.focused--
			if m.focused < 0 {
				m.focused = initFieldCount - 1
			}
			return m, m.updateFocus()

		case "enter":
			if m.focused == initFieldMigrations {
				return m.startSeed()
			}
			m.focused = (m.focused + 1) % initFieldCount
			return m, m.updateFocus()
		}

	case initSeedDoneMsg:
		m.seeding = false
		if msg.err != nil {
			m.err = msg.err
			m.statusMsg = fmt.Sprintf("Inspection failed: %v", msg.err)
			return m, nil
		}
		m.result = &InitResult{Config: m.buildConfig(), Snapshot: msg.snapshot}
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.seeding {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	// Update the focused text input
	if !m.seeding && m.focused >= 0 && m.focused < initFieldCount {
		var cmd tea.Cmd
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m InitModel) View() string {
	var b strings.Builder

	title := titleStyle.Render("loam project setup")
	b.WriteString(title + "\n\n")

	labels := []string{"Database", "Schema file", "Migrations dir"}
	for i := 0; i < initFieldCount; i++ {
		label := fmt.Sprintf("  %-16s ", labels[i])
		cursor := "  "
		if i == m.focused {
			cursor = highlightStyle.Render("> ")
		}
		b.WriteString(cursor + dimStyle.Render(label) + m.inputs[i].View() + "\n")
	}

	b.WriteString("\n")

	if m.seeding {
		b.WriteString(fmt.Sprintf("  %s Inspecting existing database...\n", m.spinner.View()))
	} else if m.err != nil {
		b.WriteString(errStyle.Render("  "+m.statusMsg) + "\n")
		b.WriteString(dimStyle.Render("  Fix the issue and press Enter to retry\n"))
	} else {
		b.WriteString(dimStyle.Render("  Press Enter on Migrations dir to finish • tab/shift-tab to navigate • esc to cancel\n"))
	}

	return b.String()
}

// Result returns the setup result, or nil if not completed.
func (m InitModel) Result() *InitResult {
	return m.result
}

// Done returns true if the model has finished (success or cancelled).
func (m InitModel) Done() bool {
	return m.done
}

// Cancelled returns true if the user cancelled.
func (m InitModel) Cancelled() bool {
	return m.done && m.result == nil
}

func (m *InitModel) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, initFieldCount)
	for i := 0; i < initFieldCount; i++ {
		if i == m.focused {
			cmds[i] = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return tea.Batch(cmds...)
}

func (m InitModel) startSeed() (tea.Model, tea.Cmd) {
	cfg := m.buildConfig()

	if _, err := os.Stat(cfg.Database); err != nil {
		// Fresh project, nothing to inspect.
		m.result = &InitResult{Config: cfg, Snapshot: schema.Snapshot{}}
		m.done = true
		return m, tea.Quit
	}

	m.seeding = true
	m.err = nil
	m.statusMsg = ""

	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			db, err := sql.Open("sqlite", cfg.Database)
			if err != nil {
				return initSeedDoneMsg{err: err}
			}
			defer db.Close()

			snapshot, err := catalog.Read(ctx, db)
			if err != nil {
				return initSeedDoneMsg{err: err}
			}
			return initSeedDoneMsg{snapshot: snapshot}
		},
	)
}

func (m *InitModel) buildConfig() *config.Config {
	database := m.inputs[initFieldDatabase].Value()
	if database == "" {
		database = "loam.db"
	}

	schemaPath := m.inputs[initFieldSchema].Value()
	if schemaPath == "" {
		schemaPath = "schema.yaml"
	}

	return &config.Config{
		Version:    config.CurrentVersion,
		Database:   database,
		Schema:     schemaPath,
		Migrations: m.inputs[initFieldMigrations].Value(),
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)
