// Package tui is the interactive job explorer: a job-space tree next to the
// views of the selected space.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/fetchscope"
	"github.com/starexec/jobview/internal/http"
	"github.com/starexec/jobview/internal/jobview"
	"github.com/starexec/jobview/internal/models"
)

// SpaceLister lists the job spaces below a parent; parent 0 lists the roots.
type SpaceLister interface {
	ListJobSpaces(ctx context.Context, jobID, parentID int) ([]models.JobSpace, error)
}

type spacesLoadedMsg struct {
	parent int
	spaces []models.JobSpace
	err    error
}

// viewLoadedMsg reports the end of a Load. generation is the selection
// generation the Load was started for, so a Load of a space the user left and
// came back to cannot end the loading of the newer one.
type viewLoadedMsg struct {
	space      int
	generation uint64
	err        error
}

type actionDoneMsg struct {
	what string
	err  error
}

type pollMsg time.Time

// Model is the bubbletea model of the explorer.
type Model struct {
	ctx      context.Context
	ctrl     *jobview.Controller
	spaces   SpaceLister
	jobID    int
	interval time.Duration

	tree    tree
	cursor  int
	loader  spinner.Model
	loading bool   // a Load for the selected space is running
	loadGen uint64 // selection generation of that Load

	width  int
	height int
	status string
	err    error // failure to list the root spaces
}

// NewModel builds the explorer for the job the controller shows.
func NewModel(ctx context.Context, ctrl *jobview.Controller, spaces SpaceLister, jobID int, interval time.Duration) Model {
	if interval < constants.MinPollInterval {
		interval = constants.MinPollInterval
	}
	loader := spinner.New()
	loader.Spinner = spinner.Line
	loader.Style = statusStyle
	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		spaces:   spaces,
		jobID:    jobID,
		interval: interval,
		loader:   loader,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listSpacesCmd(0), m.loader.Tick, pollCmd(m.interval))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case spacesLoadedMsg:
		return m, m.applySpaces(msg)
	case viewLoadedMsg:
		if msg.generation != m.loadGen || !m.ctrl.Scope().IsCurrent(msg.space) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = http.UserMessage(msg.err)
		}
		return m, nil
	case actionDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = msg.what + ": " + http.UserMessage(msg.err)
		}
		return m, nil
	case pollMsg:
		var refresh tea.Cmd
		if m.ctrl.Snapshot().Selected {
			refresh = m.actionCmd("refresh", m.ctrl.Refresh)
		}
		return m, tea.Batch(refresh, pollCmd(m.interval))
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		return m.moveCursor(-1)
	case "down", "j":
		return m.moveCursor(1)
	case "enter", "right", "l":
		return m.open()
	case "left", "h":
		return m.back()
	case "x":
		m.ctrl.ClearNotice()
		return nil
	}

	snap := m.ctrl.Snapshot()
	if !snap.Selected {
		return nil
	}
	switch msg.String() {
	case "r":
		return m.actionCmd("refresh", m.ctrl.Refresh)
	case "w":
		wallclock := !snap.Options.Wallclock
		return m.actionCmd("time", func(ctx context.Context) error { return m.ctrl.SetWallclock(ctx, wallclock) })
	case "s":
		sync := !snap.Options.SyncResults
		return m.actionCmd("sync", func(ctx context.Context) error { return m.ctrl.SetSyncResults(ctx, sync) })
	case "n":
		return m.actionCmd("pairs", m.ctrl.NextPairsPage)
	case "p":
		return m.actionCmd("pairs", m.ctrl.PrevPairsPage)
	}
	return nil
}

func (m *Model) moveCursor(delta int) tea.Cmd {
	next := m.cursor + delta
	if next < 0 || next >= len(m.tree.rows) || next == m.cursor {
		return nil
	}
	m.cursor = next
	return m.selectCursor()
}

// selectCursor makes the space under the cursor current and loads it.
func (m *Model) selectCursor() tea.Cmd {
	if m.cursor >= len(m.tree.rows) {
		return nil
	}
	id := m.tree.rows[m.cursor].space.ID
	if !m.ctrl.Select(id) {
		return nil
	}
	m.loading = true
	m.loadGen = m.ctrl.Scope().Generation()
	ctx, ctrl, gen := m.ctx, m.ctrl, m.loadGen
	return func() tea.Msg {
		return viewLoadedMsg{space: id, generation: gen, err: ctrl.Load(ctx, id)}
	}
}

func (m *Model) open() tea.Cmd {
	if m.cursor >= len(m.tree.rows) {
		return nil
	}
	n := m.tree.rows[m.cursor]
	switch {
	case n.loaded:
		n.expanded = !n.expanded
		m.tree.flatten()
		return nil
	case n.space.HasChildren && !n.loading:
		n.loading = true
		n.expanded = true
		return m.listSpacesCmd(n.space.ID)
	}
	return nil
}

func (m *Model) back() tea.Cmd {
	if m.cursor >= len(m.tree.rows) {
		return nil
	}
	n := m.tree.rows[m.cursor]
	if n.expanded {
		n.expanded = false
		m.tree.flatten()
		return nil
	}
	if n.parent == nil {
		return nil
	}
	m.cursor = m.tree.index(n.parent)
	return m.selectCursor()
}

func (m *Model) applySpaces(msg spacesLoadedMsg) tea.Cmd {
	if msg.parent == 0 {
		if msg.err != nil {
			m.err = msg.err
			return nil
		}
		m.err = nil
		m.tree.roots = newNodes(msg.spaces, nil)
		m.tree.flatten()
		m.cursor = 0
		return m.selectCursor()
	}

	n := m.tree.find(msg.parent)
	if n == nil {
		return nil
	}
	n.loading = false
	if msg.err != nil {
		n.expanded = false
		m.status = n.space.Name + ": " + http.UserMessage(msg.err)
		m.tree.flatten()
		return nil
	}
	n.loaded = true
	n.children = newNodes(msg.spaces, n)

	// Keep the cursor on the same node when rows above it change.
	var cur *node
	if m.cursor < len(m.tree.rows) {
		cur = m.tree.rows[m.cursor]
	}
	m.tree.flatten()
	if i := m.tree.index(cur); i >= 0 {
		m.cursor = i
	}
	return nil
}

func (m *Model) listSpacesCmd(parent int) tea.Cmd {
	ctx, spaces, jobID := m.ctx, m.spaces, m.jobID
	return func() tea.Msg {
		list, err := spaces.ListJobSpaces(ctx, jobID, parent)
		return spacesLoadedMsg{parent: parent, spaces: list, err: err}
	}
}

func (m *Model) actionCmd(what string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := fn(ctx)
		if errors.Is(err, fetchscope.ErrNoSelection) {
			err = nil
		}
		return actionDoneMsg{what: what, err: err}
	}
}

func pollCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}
