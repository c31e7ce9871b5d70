package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"watchvault/internal/models"
	"watchvault/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgProgress MsgKind = iota
	MsgSweepDone
)

func progressMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgress, data: update}
}

func sweepDoneMsg(results []tasks.PlatformResult) Msg {
	return Msg{kind: MsgSweepDone, data: results}
}

// SyncModel renders a live view of a platform sweep: one status line per
// platform driven by the engine's progress channel, then a summary.
type SyncModel struct {
	ctx      context.Context
	engine   *tasks.SyncEngine
	progress chan tasks.ProgressUpdate

	spin    spinner.Model
	lines   map[string]string
	order   []string
	results []tasks.PlatformResult
	done    bool
}

// NewSyncModel creates the sweep view for the given engine.
func NewSyncModel(ctx context.Context, engine *tasks.SyncEngine) SyncModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return SyncModel{
		ctx:      ctx,
		engine:   engine,
		progress: make(chan tasks.ProgressUpdate, 64),
		spin:     spin,
		lines:    make(map[string]string),
		order:    engine.Platforms(),
	}
}

func (m SyncModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.startSweep(), m.waitProgress())
}

// startSweep runs the sweep in the background and reports its results.
func (m SyncModel) startSweep() tea.Cmd {
	return func() tea.Msg {
		results := m.engine.SyncAll(m.ctx, m.progress)
		close(m.progress)
		return sweepDoneMsg(results)
	}
}

// waitProgress pumps one progress update from the engine channel.
func (m SyncModel) waitProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressMsg(update)
	}
}

func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgress:
			update := msg.data.(tasks.ProgressUpdate)
			m.lines[update.Platform] = update.Message
			return m, m.waitProgress()
		case MsgSweepDone:
			m.results = msg.data.([]tasks.PlatformResult)
			m.done = true
			return m, nil
		}
	}

	return m, nil
}

func (m SyncModel) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("watchvault sync"))
	b.WriteString("\n")

	if !m.done {
		for _, platform := range m.order {
			line := m.lines[platform]
			if line == "" {
				line = "waiting..."
			}
			b.WriteString(fmt.Sprintf("%s %s: %s\n", m.spin.View(), platform, line))
		}
		b.WriteString(styles.help.Render("\npress q to abort"))
		return b.String()
	}

	for _, result := range m.results {
		switch {
		case result.Skipped:
			b.WriteString(styles.warn.Render(fmt.Sprintf("- %s: skipped (no credential)", result.Platform)))
		case result.Err != nil:
			b.WriteString(styles.err.Render(fmt.Sprintf("✗ %s: %v", result.Platform, result.Err)))
		case result.Job.Status() == models.JobStatusPartial:
			b.WriteString(styles.warn.Render(fmt.Sprintf("~ %s: %s", result.Platform, result.Job.Message())))
		default:
			b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %s: %s", result.Platform, result.Job.Message())))
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.help.Render("\npress q to exit"))

	return b.String()
}
