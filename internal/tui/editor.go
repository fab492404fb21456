package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"emctl/internal/allocation"
	"emctl/internal/catalog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// Options configures the interactive editor.
type Options struct {
	CompanyID   string
	CompanyName string
	Catalogs    catalog.Set
	Backend     allocation.Backend
	Cache       allocation.SnapshotCache
	// Reload refetches all catalogs. Nil disables ctrl+r.
	Reload  func(ctx context.Context) (catalog.Set, error)
	Logger  *log.Logger
	Timeout time.Duration

	// Initial view; empty values select the first relation and its A side.
	Relation string
	Mode     string
	Pivot    string
}

type focusArea int

const (
	focusPivot focusArea = iota
	focusCandidates
	focusMembers
)

type showDoneMsg struct {
	rel    int
	ticket allocation.ShowTicket
	ids    []string
	err    error
}

type commitDoneMsg struct {
	rel    int
	ticket allocation.CommitTicket
	err    error
}

type catalogsMsg struct {
	set catalog.Set
	err error
}

// noticeBoard keeps the latest notice for the status line. It is shared by
// every controller and only touched from the update loop.
type noticeBoard struct {
	last  allocation.Notice
	shown bool
}

func (b *noticeBoard) Notify(n allocation.Notice) {
	b.last = n
	b.shown = true
}

func (b *noticeBoard) info(title, msg string) {
	b.Notify(allocation.Notice{Level: allocation.LevelInfo, Title: title, Message: msg, At: time.Now()})
}

// Model is the bubbletea model of the allocation editor. Each relation has its
// own controller, so switching relations keeps the other one's state.
type Model struct {
	opts    Options
	logger  *log.Logger
	ctrls   []*allocation.Controller
	active  int
	notices *noticeBoard

	keys     keyMap
	help     help.Model
	showHelp bool

	pivotInput  textinput.Model
	filterInput textinput.Model
	picker      list.Model
	pickerFocus *bool

	memberCursor int
	focus        focusArea
	reloading    bool

	width  int
	height int
}

func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	notices := &noticeBoard{}

	m := Model{
		opts:        opts,
		logger:      logger,
		notices:     notices,
		keys:        defaultKeyMap(),
		help:        help.New(),
		pickerFocus: new(bool),
		width:       100,
		height:      30,
	}
	for i, r := range allocation.Relations() {
		m.ctrls = append(m.ctrls, allocation.NewController(allocation.Options{
			Relation:  r,
			CompanyID: opts.CompanyID,
			Catalogs:  opts.Catalogs,
			Backend:   opts.Backend,
			Cache:     opts.Cache,
			Notifier:  notices,
			Logger:    logger,
			Timeout:   opts.Timeout,
		}))
		if opts.Relation != "" {
			if want, ok := allocation.RelationByName(opts.Relation); ok && want.Name == r.Name {
				m.active = i
			}
		}
	}
	if opts.Mode != "" {
		if mode, err := m.ctrl().Relation().ParseMode(opts.Mode); err == nil {
			m.ctrl().SelectMode(mode)
		}
	}

	m.pivotInput = textinput.New()
	m.pivotInput.Prompt = ""
	m.pivotInput.CharLimit = 200
	m.pivotInput.Placeholder = "type to filter"
	m.pivotInput.Focus()

	m.filterInput = textinput.New()
	m.filterInput.Prompt = ""
	m.filterInput.CharLimit = 200
	m.filterInput.Placeholder = "filter candidates"

	m.picker = list.New(nil, newCompactItemDelegate(m.pickerFocus), 40, 12)
	m.picker.SetShowHelp(false)
	m.picker.SetShowStatusBar(false)
	m.picker.SetShowTitle(false)
	m.picker.SetFilteringEnabled(false)
	m.picker.DisableQuitKeybindings()

	if opts.Pivot != "" {
		m.presetPivot(opts.Pivot)
	}
	m.setFocus(focusPivot)
	m.refreshPicker()
	m.resize()
	return m
}

func (m Model) ctrl() *allocation.Controller { return m.ctrls[m.active] }

// presetPivot fills the pivot input from an id or a name. The input always
// shows the display name; the controller gets the id when the name is shared.
func (m *Model) presetPivot(s string) {
	ctrl := m.ctrl()
	cat := ctrl.Selector().PivotCatalog()
	ent, ok := cat.ByID(s)
	if !ok {
		m.pivotInput.SetValue(s)
		ctrl.SetPivotName(s)
		return
	}
	text := ent.Name
	if cat.Ambiguous(text) {
		text = ent.ID
	}
	m.pivotInput.SetValue(ent.Name)
	ctrl.SetPivotName(text)
}

// LastView is the editor position worth restoring on the next launch.
type LastView struct {
	Relation string
	Mode     string
	PivotID  string
}

func (m Model) LastView() LastView {
	ctrl := m.ctrl()
	v := LastView{
		Relation: ctrl.Relation().Name,
		Mode:     string(ctrl.PivotKind()),
	}
	if snap, ok := ctrl.Snapshot(); ok {
		v.PivotID = snap.Pivot.ID
	}
	return v
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.opts.Pivot != "" {
		cmds = append(cmds, m.startShow())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case showDoneMsg:
		if msg.rel < 0 || msg.rel >= len(m.ctrls) {
			return m, nil
		}
		if m.ctrls[msg.rel].CompleteShow(msg.ticket, msg.ids, msg.err) && msg.rel == m.active {
			m.memberCursor = 0
			m.refreshPicker()
		}
		return m, nil

	case commitDoneMsg:
		if msg.rel < 0 || msg.rel >= len(m.ctrls) {
			return m, nil
		}
		m.ctrls[msg.rel].CompleteConfirm(msg.ticket, msg.err)
		if msg.rel == m.active {
			if m.ctrl().State() == allocation.Editing {
				m.setFocus(focusCandidates)
			} else if m.focus != focusPivot {
				m.setFocus(focusMembers)
			}
			m.refreshPicker()
		}
		return m, nil

	case catalogsMsg:
		m.reloading = false
		if msg.err != nil {
			m.logger.Warn("catalog reload failed", "err", msg.err)
			m.notices.Notify(allocation.Notice{Level: allocation.LevelError, Title: "Reload failed", Message: msg.err.Error(), At: time.Now()})
			return m, nil
		}
		for _, c := range m.ctrls {
			c.Reload(msg.set)
		}
		m.notices.info("Catalogs reloaded", "users, projects and activities are up to date")
		m.refreshPicker()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blink and other input plumbing.
	var cmd tea.Cmd
	switch m.focus {
	case focusPivot:
		m.pivotInput, cmd = m.pivotInput.Update(msg)
	case focusCandidates:
		m.filterInput, cmd = m.filterInput.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.NextRelation):
		m.active = (m.active + 1) % len(m.ctrls)
		m.syncToController()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMode):
		ctrl.SelectMode(ctrl.Mode().Other())
		m.pivotInput.Reset()
		m.filterInput.Reset()
		m.memberCursor = 0
		m.setFocus(focusPivot)
		m.refreshPicker()
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		if m.opts.Reload == nil || m.reloading {
			return m, nil
		}
		m.reloading = true
		reload := m.opts.Reload
		return m, func() tea.Msg {
			set, err := reload(context.Background())
			return catalogsMsg{set: set, err: err}
		}

	case key.Matches(msg, m.keys.Copy):
		ents := ctrl.Editor().Entities()
		if len(ents) == 0 {
			return m, nil
		}
		if err := clipboardWriter(membersClipboardText(ents)); err != nil {
			m.logger.Warn("clipboard copy failed", "err", err)
			m.notices.Notify(allocation.Notice{Level: allocation.LevelError, Title: "Copy failed", Message: err.Error(), At: time.Now()})
			return m, nil
		}
		m.notices.info("Copied", fmt.Sprintf("%d %s(s) copied to the clipboard", len(ents), ctrl.MemberKind()))
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		if err := ctrl.Edit(); err != nil {
			m.rejected(err)
			return m, nil
		}
		m.filterInput.Reset()
		m.setFocus(focusCandidates)
		m.refreshPicker()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Confirm):
		return m, m.startCommit()

	case key.Matches(msg, m.keys.Cancel):
		switch ctrl.State() {
		case allocation.Editing:
			_ = ctrl.Cancel()
			m.filterInput.Reset()
			m.setFocus(focusMembers)
			m.refreshPicker()
		default:
			if m.focus == focusPivot && m.pivotInput.Value() != "" {
				m.pivotInput.Reset()
				ctrl.SetPivotName("")
				m.refreshPicker()
			} else {
				m.setFocus(focusPivot)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.cycleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.focus == focusMembers {
			if m.memberCursor > 0 {
				m.memberCursor--
			}
		} else {
			m.picker.CursorUp()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.focus == focusMembers {
			if m.memberCursor < len(ctrl.Editor().Entities())-1 {
				m.memberCursor++
			}
		} else {
			m.picker.CursorDown()
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		switch m.focus {
		case focusPivot:
			m.choosePivot()
			return m, m.startShow()
		case focusCandidates:
			if it, ok := m.picker.SelectedItem().(entityItem); ok && ctrl.State() == allocation.Editing {
				ctrl.Editor().AddID(it.ent.ID)
				m.refreshPicker()
			}
		case focusMembers:
			m.removeHighlighted()
		}
		return m, nil

	case key.Matches(msg, m.keys.Remove):
		if m.focus == focusMembers {
			m.removeHighlighted()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusPivot:
		before := m.pivotInput.Value()
		m.pivotInput, cmd = m.pivotInput.Update(msg)
		if v := m.pivotInput.Value(); v != before {
			ctrl.SetPivotName(v)
			m.refreshPicker()
		}
	case focusCandidates:
		before := m.filterInput.Value()
		m.filterInput, cmd = m.filterInput.Update(msg)
		if m.filterInput.Value() != before {
			m.refreshPicker()
		}
	}
	return m, cmd
}

// choosePivot settles the pivot text before a show. A moved cursor wins over
// the typed text; otherwise the typed text is used when it resolves on its own.
func (m *Model) choosePivot() {
	ctrl := m.ctrl()
	it, ok := m.picker.SelectedItem().(entityItem)
	if !ok {
		return
	}
	if _, resolved := ctrl.Selector().Resolve(); resolved && m.picker.Index() == 0 {
		return
	}
	text := it.ent.Name
	if ctrl.Selector().PivotCatalog().Ambiguous(text) {
		text = it.ent.ID
	}
	m.pivotInput.SetValue(it.ent.Name)
	ctrl.SetPivotName(text)
}

func (m *Model) startShow() tea.Cmd {
	ctrl := m.ctrl()
	if ctrl.State() == allocation.Committing {
		return nil
	}
	t, ok := ctrl.BeginShow()
	if !ok {
		if ctrl.Selector().PivotName() != "" {
			m.notices.info("No match", "no "+string(ctrl.PivotKind())+" matches "+ctrl.Selector().PivotName())
		}
		return nil
	}
	m.memberCursor = 0
	m.refreshPicker()
	rel := m.active
	return func() tea.Msg {
		ids, err := ctrl.Fetch(context.Background(), t)
		return showDoneMsg{rel: rel, ticket: t, ids: ids, err: err}
	}
}

func (m *Model) startCommit() tea.Cmd {
	ctrl := m.ctrl()
	t, err := ctrl.BeginConfirm()
	if err != nil {
		m.rejected(err)
		return nil
	}
	m.refreshPicker()
	rel := m.active
	return func() tea.Msg {
		err := ctrl.Commit(context.Background(), t)
		return commitDoneMsg{rel: rel, ticket: t, err: err}
	}
}

// rejected reports an action that does not apply right now. Invalid
// transitions are expected from stray keys and only go to the debug log.
func (m *Model) rejected(err error) {
	if errors.Is(err, allocation.ErrInvalidTransition) {
		m.logger.Debug("key ignored", "state", m.ctrl().State(), "err", err)
		return
	}
	m.notices.Notify(allocation.Notice{Level: allocation.LevelError, Title: "Error", Message: err.Error(), At: time.Now()})
}

func (m *Model) removeHighlighted() {
	ctrl := m.ctrl()
	if ctrl.State() != allocation.Editing {
		return
	}
	ents := ctrl.Editor().Entities()
	if m.memberCursor < 0 || m.memberCursor >= len(ents) {
		return
	}
	ctrl.Editor().RemoveID(ents[m.memberCursor].ID)
	m.refreshPicker()
}

func (m *Model) cycleFocus() {
	ctrl := m.ctrl()
	switch ctrl.State() {
	case allocation.Editing:
		if m.focus == focusCandidates {
			m.setFocus(focusMembers)
		} else {
			m.setFocus(focusCandidates)
		}
	case allocation.Shown, allocation.Committing:
		if m.focus == focusPivot {
			m.setFocus(focusMembers)
		} else {
			m.setFocus(focusPivot)
		}
	default:
		m.setFocus(focusPivot)
	}
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	m.pivotInput.Blur()
	m.filterInput.Blur()
	switch f {
	case focusPivot:
		m.pivotInput.Focus()
	case focusCandidates:
		m.filterInput.Focus()
	}
	*m.pickerFocus = f != focusMembers
}

// syncToController restores inputs and focus from the active controller after a relation switch.
func (m *Model) syncToController() {
	ctrl := m.ctrl()
	m.pivotInput.SetValue(ctrl.Selector().PivotName())
	m.filterInput.Reset()
	m.memberCursor = 0
	switch ctrl.State() {
	case allocation.Editing:
		m.setFocus(focusCandidates)
	default:
		m.setFocus(focusPivot)
	}
	m.refreshPicker()
}

// refreshPicker fills the list with pivot suggestions, or with add candidates while editing.
func (m *Model) refreshPicker() {
	ctrl := m.ctrl()
	if ctrl.State() == allocation.Editing {
		m.picker.SetItems(entityItems(ctrl.Editor().Candidates(m.filterInput.Value())))
	} else {
		m.picker.SetItems(entityItems(ctrl.Selector().Suggestions()))
	}
	if n := len(m.picker.Items()); m.picker.Index() >= n && n > 0 {
		m.picker.Select(n - 1)
	}
	if n := len(ctrl.Editor().Entities()); m.memberCursor >= n {
		m.memberCursor = max(0, n-1)
	}
}

func (m *Model) resize() {
	w := m.width/2 - 2
	if w < 20 {
		w = 20
	}
	h := m.height - 9
	if h < 3 {
		h = 3
	}
	m.picker.SetSize(w, h)
	m.help.Width = m.width
}
