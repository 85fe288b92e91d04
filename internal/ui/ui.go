package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sideo/internal/config"
	"sideo/internal/live"
	"sideo/internal/pending"
	"sideo/internal/repository"
	"sideo/internal/retention"
	"sideo/internal/storage"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeRename
)

type tab int

const (
	tabHome tab = iota
	tabArchive
	tabTrash
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabHome:
		return "Home"
	case tabArchive:
		return "Archive"
	case tabTrash:
		return "Trash"
	default:
		return ""
	}
}

// action is what a horizontal "swipe" does to the selected task.
type action int

const (
	actionComplete action = iota
	actionDelete
)

type (
	activeMsg   []storage.Task
	sectionsMsg []retention.Section
	trashMsg    []storage.Task
	opMsg       struct {
		status string
		err    error
	}
	undoExpiredMsg struct{ id int64 }
	addedMsg       struct {
		id  int64
		err error
	}
)

type Model struct {
	ctx     context.Context
	repo    *repository.Repository
	pending *pending.Debouncer
	cfg     config.Config
	styles  styles

	activeCh   <-chan []storage.Task
	sectionsCh <-chan []retention.Section
	trashCh    <-chan []storage.Task

	active   []storage.Task
	sections []retention.Section
	archived []storage.Task
	trash    []storage.Task

	tab      tab
	cursors  [tabCount]int
	mode     mode
	input    textinput.Model
	renameID int64
	undoID   int64
	// selectID is a newly added task the Home cursor should land on once
	// the active stream includes it.
	selectID int64
	status   string
	now      func() time.Time
}

func newModel(ctx context.Context, repo *repository.Repository, feed *live.Feed, deleter *pending.Debouncer, cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Task title"
	ti.CharLimit = 256
	ti.Width = 40

	return Model{
		ctx:        ctx,
		repo:       repo,
		pending:    deleter,
		cfg:        cfg,
		styles:     newStyles(cfg.Theme),
		activeCh:   feed.Active(ctx),
		sectionsCh: feed.Sections(ctx),
		trashCh:    feed.Trash(ctx),
		input:      ti,
		mode:       modeList,
		status:     fmt.Sprintf("Press '%s' to add, %s/%s to switch tabs.", cfg.Keys.Add, cfg.Keys.NextTab, cfg.Keys.PrevTab),
		now:        repo.Now,
	}
}

func Run(repo *repository.Repository, feed *live.Feed, deleter *pending.Debouncer, cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, repo, feed, deleter, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func listen[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func (m Model) listenActive() tea.Cmd {
	return listen(m.activeCh, func(v []storage.Task) tea.Msg { return activeMsg(v) })
}

func (m Model) listenSections() tea.Cmd {
	return listen(m.sectionsCh, func(v []retention.Section) tea.Msg { return sectionsMsg(v) })
}

func (m Model) listenTrash() tea.Cmd {
	return listen(m.trashCh, func(v []storage.Task) tea.Msg { return trashMsg(v) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenActive(), m.listenSections(), m.listenTrash())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activeMsg:
		m.active = msg
		m.cursors[tabHome] = clampCursor(m.cursors[tabHome], len(m.active))
		m.selectPending()
		return m, m.listenActive()
	case sectionsMsg:
		m.sections = msg
		m.archived = flatten(msg)
		m.cursors[tabArchive] = clampCursor(m.cursors[tabArchive], len(m.archived))
		return m, m.listenSections()
	case trashMsg:
		m.trash = msg
		m.cursors[tabTrash] = clampCursor(m.cursors[tabTrash], len(m.visibleTrash()))
		return m, m.listenTrash()
	case opMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("failed: %v", msg.err)
		} else if msg.status != "" {
			m.status = msg.status
		}
		return m, nil
	case addedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("failed: %v", msg.err)
			return m, nil
		}
		m.status = "Added task"
		m.selectID = msg.id
		m.selectPending()
		return m, nil
	case undoExpiredMsg:
		if m.undoID == msg.id {
			m.undoID = 0
			m.status = "Deleted permanently"
		}
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeList {
			return m.updateInputMode(msg)
		}
		return m.updateListMode(msg.String())
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

// do runs a repository call off the UI loop and reports the outcome.
func (m Model) do(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opMsg{status: status, err: fn(ctx)}
	}
}

func (m Model) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		title := m.input.Value()
		md, id := m.mode, m.renameID
		m.mode = modeList
		m.renameID = 0
		m.input.SetValue("")
		m.input.Blur()
		if md == modeRename {
			return m, m.do("Renamed task", func(ctx context.Context) error {
				return m.repo.Rename(ctx, id, title)
			})
		}
		title, important := parseTitle(title)
		if title == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		repo, ctx := m.repo, m.ctx
		return m, func() tea.Msg {
			t, err := repo.AddTask(ctx, title, important)
			return addedMsg{id: t.ID, err: err}
		}
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case "ctrl+c", k.Quit:
		return m, tea.Quit
	case k.NextTab, "right":
		m.tab = (m.tab + 1) % tabCount
		return m, nil
	case k.PrevTab, "left":
		m.tab = (m.tab + tabCount - 1) % tabCount
		return m, nil
	case k.Down, "down":
		m.cursors[m.tab] = clampCursor(m.cursors[m.tab]+1, m.rowCount())
		return m, nil
	case k.Up, "up":
		m.cursors[m.tab] = clampCursor(m.cursors[m.tab]-1, m.rowCount())
		return m, nil
	}

	switch m.tab {
	case tabHome:
		return m.updateHome(key)
	case tabArchive:
		return m.updateArchive(key)
	case tabTrash:
		return m.updateTrash(key)
	}
	return m, nil
}

// swipe maps a left/right key to an action, honouring swipe_reversed.
func (m Model) swipe(key string) (action, bool) {
	left, right := actionDelete, actionComplete
	if m.cfg.SwipeReversed {
		left, right = right, left
	}
	switch key {
	case m.cfg.Keys.SwipeLeft:
		return left, true
	case m.cfg.Keys.SwipeRight:
		return right, true
	}
	return 0, false
}

func (m Model) updateHome(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	if key == k.Add {
		m.mode = modeAdd
		m.input.Placeholder = "Task title"
		m.status = "Add mode: type a title and press Enter (start with ! to mark it important)"
		cmd := m.input.Focus()
		return m, cmd
	}
	if len(m.active) == 0 {
		return m, nil
	}
	cur := clampCursor(m.cursors[tabHome], len(m.active))
	m.cursors[tabHome] = cur
	t := m.active[cur]

	if act, ok := m.swipe(key); ok {
		if act == actionComplete {
			return m, m.do("Completed task", func(ctx context.Context) error {
				return m.repo.SetCompleted(ctx, t.ID, true)
			})
		}
		return m, m.do("Moved task to trash", func(ctx context.Context) error {
			return m.repo.SoftDelete(ctx, t.ID)
		})
	}

	switch key {
	case k.Important:
		if t.Important {
			return m, m.do("Unmarked important", func(ctx context.Context) error {
				return m.repo.SetImportant(ctx, t.ID, false)
			})
		}
		m.cursors[tabHome] = 0
		return m, m.do("Marked important", func(ctx context.Context) error {
			return m.repo.PromoteImportant(ctx, t.ID)
		})
	case k.MoveUp:
		if cur == 0 {
			return m, nil
		}
		m.cursors[tabHome] = cur - 1
		return m, m.do("", func(ctx context.Context) error {
			return m.repo.Move(ctx, cur, cur-1)
		})
	case k.MoveDown:
		if cur >= len(m.active)-1 {
			return m, nil
		}
		m.cursors[tabHome] = cur + 1
		return m, m.do("", func(ctx context.Context) error {
			return m.repo.Move(ctx, cur, cur+1)
		})
	case k.Rename:
		m.mode = modeRename
		m.renameID = t.ID
		m.input.SetValue(t.Title)
		m.input.Placeholder = "New title"
		m.status = "Rename: edit the title and press Enter"
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateArchive(key string) (tea.Model, tea.Cmd) {
	if len(m.archived) == 0 {
		return m, nil
	}
	m.cursors[tabArchive] = clampCursor(m.cursors[tabArchive], len(m.archived))
	t := m.archived[m.cursors[tabArchive]]
	act, ok := m.swipe(key)
	if !ok {
		return m, nil
	}
	if act == actionComplete {
		return m, m.do("Moved back to active", func(ctx context.Context) error {
			return m.repo.SetCompleted(ctx, t.ID, false)
		})
	}
	return m, m.do("Moved task to trash", func(ctx context.Context) error {
		return m.repo.SoftDelete(ctx, t.ID)
	})
}

func (m Model) updateTrash(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	if key == k.Undo {
		if m.undoID == 0 {
			return m, nil
		}
		if m.pending.Cancel(m.undoID) {
			m.status = "Delete undone"
		} else {
			m.status = "Too late to undo"
		}
		m.undoID = 0
		m.cursors[tabTrash] = clampCursor(m.cursors[tabTrash], len(m.visibleTrash()))
		return m, nil
	}

	visible := m.visibleTrash()
	if len(visible) == 0 {
		return m, nil
	}
	m.cursors[tabTrash] = clampCursor(m.cursors[tabTrash], len(visible))
	t := visible[m.cursors[tabTrash]]
	switch key {
	case k.Restore:
		return m, m.do("Restored task", func(ctx context.Context) error {
			return m.repo.Restore(ctx, t.ID)
		})
	case k.Purge:
		m.pending.Schedule(t.ID)
		m.undoID = t.ID
		m.status = fmt.Sprintf("Deleting %q permanently. Press '%s' to undo.", t.Title, k.Undo)
		m.cursors[tabTrash] = clampCursor(m.cursors[tabTrash], len(visible)-1)
		id := t.ID
		return m, tea.Tick(m.pending.Delay(), func(time.Time) tea.Msg { return undoExpiredMsg{id: id} })
	}
	return m, nil
}

// visibleTrash hides tasks waiting on a permanent delete, so the user sees
// them gone straight away while undo is still possible.
func (m Model) visibleTrash() []storage.Task {
	out := make([]storage.Task, 0, len(m.trash))
	for _, t := range m.trash {
		if !m.pending.Pending(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

func (m Model) rowCount() int {
	switch m.tab {
	case tabHome:
		return len(m.active)
	case tabArchive:
		return len(m.archived)
	case tabTrash:
		return len(m.visibleTrash())
	}
	return 0
}

// selectPending moves the Home cursor onto selectID once it is listed.
func (m *Model) selectPending() {
	if m.selectID == 0 {
		return
	}
	for i, t := range m.active {
		if t.ID == m.selectID {
			m.cursors[tabHome] = i
			m.selectID = 0
			return
		}
	}
}

// parseTitle trims the input; a leading "!" marks the task important.
func parseTitle(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		return strings.TrimSpace(rest), true
	}
	return s, false
}

func flatten(sections []retention.Section) []storage.Task {
	var out []storage.Task
	for _, s := range sections {
		out = append(out, s.Tasks...)
	}
	return out
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
