package allocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"emctl/internal/api"
	"emctl/internal/catalog"
	"emctl/internal/model"

	"github.com/charmbracelet/log"
)

type State int

const (
	Idle State = iota
	Loading
	Shown
	Editing
	Committing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Shown:
		return "shown"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	}
	return "idle"
}

var (
	// ErrInvalidTransition is returned when an action does not apply to the current state.
	ErrInvalidTransition = errors.New("action not allowed in current state")
	// ErrNoPivot means the typed pivot text matched nothing; Show did nothing.
	ErrNoPivot = errors.New("no pivot selected")
)

// Backend is the slice of the API client the controller needs.
type Backend interface {
	Members(ctx context.Context, companyID, path, pivotID string) ([]string, error)
	ReplaceMembers(ctx context.Context, companyID, path, pivotID, field string, ids []string) error
}

// SnapshotCache stores loaded and committed member sets. Optional.
type SnapshotCache interface {
	GetMembers(ctx context.Context, companyID, path, pivotID string) ([]string, time.Time, bool, error)
	PutMembers(ctx context.Context, companyID, path, pivotID string, ids []string, fetchedAt time.Time) error
	InvalidateMembers(ctx context.Context, companyID, path string, pivotIDs ...string) error
}

type Options struct {
	Relation  Relation
	CompanyID string
	Catalogs  catalog.Set
	Backend   Backend
	Cache     SnapshotCache
	Notifier  Notifier
	Logger    *log.Logger
	// Timeout bounds each network call made by Show and Confirm.
	Timeout time.Duration
	Now     func() time.Time
}

// ShowTicket identifies one in-flight member fetch.
type ShowTicket struct {
	seq       uint64
	CompanyID string
	Mode      Mode
	Endpoint  Endpoint
	Pivot     model.Entity
}

// CommitTicket identifies one in-flight replace call.
type CommitTicket struct {
	seq       uint64
	CompanyID string
	Mode      Mode
	Endpoint  Endpoint
	Pivot     model.Entity
	// IDs is the full target membership that is sent.
	IDs []string
	// Dropped are working-set ids that no longer resolve in the member catalog.
	Dropped  []string
	previous []string
}

// Controller owns the load -> show -> edit -> commit/cancel state machine for one relation.
// It is driven from a single event loop; Begin*/Complete* let the network call
// run elsewhere while state changes stay on the loop.
type Controller struct {
	relation  Relation
	companyID string
	catalogs  catalog.Set
	backend   Backend
	cache     SnapshotCache
	notifier  Notifier
	logger    *log.Logger
	timeout   time.Duration
	now       func() time.Time

	state     State
	restoreTo State
	selector  *Selector
	editor    *Editor
	committed *Snapshot
	// seq increases on every show, mode switch and reload of visible state.
	// Completions carrying an older seq no longer own the visible state.
	seq uint64
}

func NewController(opts Options) *Controller {
	c := &Controller{
		relation:  opts.Relation,
		companyID: opts.CompanyID,
		catalogs:  opts.Catalogs,
		backend:   opts.Backend,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
	if c.notifier == nil {
		c.notifier = discardNotifier{}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.timeout <= 0 {
		c.timeout = api.DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.selector = NewSelector(c.relation, c.catalogs)
	c.editor = NewEditor(c.selector.MemberCatalog())
	return c
}

func (c *Controller) Relation() Relation     { return c.relation }
func (c *Controller) CompanyID() string      { return c.companyID }
func (c *Controller) State() State           { return c.state }
func (c *Controller) Mode() Mode             { return c.selector.Mode() }
func (c *Controller) Selector() *Selector    { return c.selector }
func (c *Controller) Editor() *Editor        { return c.editor }
func (c *Controller) Catalogs() catalog.Set  { return c.catalogs }
func (c *Controller) Endpoint() Endpoint     { return c.relation.Endpoint(c.Mode()) }
func (c *Controller) PivotKind() model.Kind  { return c.relation.PivotKind(c.Mode()) }
func (c *Controller) MemberKind() model.Kind { return c.relation.MemberKind(c.Mode()) }

// Snapshot returns the committed set of the shown pivot.
func (c *Controller) Snapshot() (Snapshot, bool) {
	if c.committed == nil {
		return Snapshot{}, false
	}
	s := *c.committed
	s.MemberIDs = append([]string(nil), c.committed.MemberIDs...)
	return s, true
}

func (c *Controller) notify(level Level, title, msg string) {
	c.notifier.Notify(Notice{Level: level, Title: title, Message: msg, At: c.now()})
}

func (c *Controller) clearShown() {
	c.committed = nil
	c.editor.Seed(nil)
	c.editor.SetEditing(false)
	c.state = Idle
	c.restoreTo = Idle
}

// SelectMode switches the pivot side. The shown pivot and its members are
// cleared; an in-flight commit still completes but no longer owns the view.
func (c *Controller) SelectMode(m Mode) {
	c.seq++
	c.selector.SelectMode(m)
	c.editor.setCatalog(c.selector.MemberCatalog())
	c.clearShown()
	c.logger.Debug("mode selected", "relation", c.relation.Name, "mode", c.relation.ModeLabel(m))
}

// SetPivotName updates the typed pivot text only.
func (c *Controller) SetPivotName(text string) {
	c.selector.SetPivotName(text)
}

// BeginShow resolves the typed pivot and moves to Loading. ok is false (and
// nothing changes) when the text does not resolve.
func (c *Controller) BeginShow() (ShowTicket, bool) {
	pivot, ok := c.selector.Resolve()
	if !ok {
		return ShowTicket{}, false
	}
	c.seq++
	switch c.state {
	case Loading:
		// Keep the restore point of the superseded load.
	case Idle:
		c.restoreTo = Idle
	default:
		c.restoreTo = Shown
		if c.committed == nil {
			c.restoreTo = Idle
		}
	}
	if c.state == Editing || c.state == Committing {
		// Unsaved or in-flight edits never survive into the restore point.
		c.editor.Cancel()
	}
	c.editor.SetEditing(false)
	c.state = Loading
	t := ShowTicket{
		seq:       c.seq,
		CompanyID: c.companyID,
		Mode:      c.Mode(),
		Endpoint:  c.Endpoint(),
		Pivot:     pivot,
	}
	c.logger.Debug("show", "relation", c.relation.Name, "path", t.Endpoint.Path, "pivot", pivot.ID)
	return t, true
}

// Fetch performs the network half of a show.
func (c *Controller) Fetch(ctx context.Context, t ShowTicket) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.backend.Members(ctx, t.CompanyID, t.Endpoint.Path, t.Pivot.ID)
}

// CompleteShow applies a fetch result. It returns false when the ticket is stale
// (a newer show or mode switch happened) and the result was discarded.
func (c *Controller) CompleteShow(t ShowTicket, ids []string, err error) bool {
	if t.seq != c.seq || c.state != Loading {
		c.logger.Debug("discarding stale show", "pivot", t.Pivot.ID)
		return false
	}
	if err != nil {
		c.state = c.restoreTo
		c.logger.Warn("show failed", "relation", c.relation.Name, "pivot", t.Pivot.ID, "err", err)
		c.notify(LevelError, "Load failed", fmt.Sprintf("%s: %s", t.Pivot.Name, api.Message(err)))
		return true
	}
	c.putCache(c.applyShow(t, ids, c.now()))
	return true
}

func (c *Controller) applyShow(t ShowTicket, ids []string, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		CompanyID: t.CompanyID,
		Relation:  c.relation.Name,
		Mode:      t.Mode,
		Path:      t.Endpoint.Path,
		Pivot:     t.Pivot,
		MemberIDs: dedupe(ids),
		FetchedAt: fetchedAt,
	}
	c.committed = snap
	c.editor.Seed(snap.MemberIDs)
	c.state = Shown
	c.restoreTo = Shown
	return snap
}

// Show runs BeginShow, Fetch and CompleteShow in one call.
func (c *Controller) Show(ctx context.Context) error {
	t, ok := c.BeginShow()
	if !ok {
		return ErrNoPivot
	}
	ids, err := c.Fetch(ctx, t)
	c.CompleteShow(t, ids, err)
	return err
}

// ShowCached shows the pivot from the member cache when it holds an entry no
// older than maxAge (zero accepts any age) and fetches otherwise. It reports
// whether the cached entry was used.
func (c *Controller) ShowCached(ctx context.Context, maxAge time.Duration) (bool, error) {
	t, ok := c.BeginShow()
	if !ok {
		return false, ErrNoPivot
	}
	if c.cache != nil {
		ids, at, hit, err := c.cache.GetMembers(ctx, t.CompanyID, t.Endpoint.Path, t.Pivot.ID)
		switch {
		case err != nil:
			c.logger.Warn("cache read failed", "path", t.Endpoint.Path, "pivot", t.Pivot.ID, "err", err)
		case hit && (maxAge <= 0 || c.now().Sub(at) < maxAge):
			c.logger.Debug("show from cache", "path", t.Endpoint.Path, "pivot", t.Pivot.ID, "fetched_at", at)
			c.applyShow(t, ids, at)
			return true, nil
		}
	}
	ids, err := c.Fetch(ctx, t)
	c.CompleteShow(t, ids, err)
	return false, err
}

// Edit enters edit mode from Shown.
func (c *Controller) Edit() error {
	if c.state != Shown {
		return fmt.Errorf("edit while %s: %w", c.state, ErrInvalidTransition)
	}
	c.editor.SetEditing(true)
	c.state = Editing
	return nil
}

// Cancel drops all edits and returns to Shown. In Shown it does nothing.
func (c *Controller) Cancel() error {
	switch c.state {
	case Shown:
		return nil
	case Editing:
		c.editor.Cancel()
		c.state = Shown
		return nil
	}
	return fmt.Errorf("cancel while %s: %w", c.state, ErrInvalidTransition)
}

// Add adds a member by display name. false means the name did not resolve.
func (c *Controller) Add(name string) (bool, error) {
	if c.state != Editing {
		return false, fmt.Errorf("add while %s: %w", c.state, ErrInvalidTransition)
	}
	return c.editor.Add(name), nil
}

// Remove removes a member by display name.
func (c *Controller) Remove(name string) (bool, error) {
	if c.state != Editing {
		return false, fmt.Errorf("remove while %s: %w", c.state, ErrInvalidTransition)
	}
	return c.editor.Remove(name), nil
}

// Unresolved lists working-set ids the member catalog does not know. A
// confirm would drop them.
func (c *Controller) Unresolved() []string {
	var out []string
	for _, id := range c.editor.IDs() {
		if _, ok := c.editor.Catalog().ByID(id); !ok {
			out = append(out, id)
		}
	}
	return out
}

// BeginConfirm resolves the working set against the member catalog and moves
// to Committing. Ids that no longer resolve are dropped from the payload.
func (c *Controller) BeginConfirm() (CommitTicket, error) {
	if c.state != Editing || c.committed == nil {
		return CommitTicket{}, fmt.Errorf("confirm while %s: %w", c.state, ErrInvalidTransition)
	}
	dropped := c.Unresolved()
	skip := make(map[string]bool, len(dropped))
	for _, id := range dropped {
		skip[id] = true
	}
	ids := make([]string, 0, len(c.editor.working))
	for _, id := range c.editor.IDs() {
		if !skip[id] {
			ids = append(ids, id)
		}
	}
	if len(dropped) > 0 {
		c.logger.Debug("dropping unresolved members", "pivot", c.committed.Pivot.ID, "ids", dropped)
	}
	c.editor.SetEditing(false)
	c.state = Committing
	return CommitTicket{
		seq:       c.seq,
		CompanyID: c.companyID,
		Mode:      c.committed.Mode,
		Endpoint:  c.relation.Endpoint(c.committed.Mode),
		Pivot:     c.committed.Pivot,
		IDs:       ids,
		Dropped:   dropped,
		previous:  append([]string(nil), c.committed.MemberIDs...),
	}, nil
}

// Commit performs the network half of a confirm: one full replacement write.
func (c *Controller) Commit(ctx context.Context, t CommitTicket) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.backend.ReplaceMembers(ctx, t.CompanyID, t.Endpoint.Path, t.Pivot.ID, t.Endpoint.Field, t.IDs)
}

// CompleteConfirm applies a commit result. The cache learns about successful
// writes even when the ticket is stale; controller state only moves when the
// ticket still owns the view.
func (c *Controller) CompleteConfirm(t CommitTicket, err error) {
	current := t.seq == c.seq && c.state == Committing
	if err != nil {
		c.logger.Warn("commit failed", "relation", c.relation.Name, "pivot", t.Pivot.ID, "err", err)
		if current {
			c.editor.SetEditing(true)
			c.state = Editing
		}
		c.notify(LevelError, "Update failed", fmt.Sprintf("%s: %s", t.Pivot.Name, api.Message(err)))
		return
	}

	c.invalidateAfterCommit(t)
	c.notify(LevelSuccess, "Update succeeded", fmt.Sprintf(t.Endpoint.Updated, t.Pivot.Name))
	if !current {
		return
	}
	c.committed.MemberIDs = append([]string(nil), t.IDs...)
	c.committed.FetchedAt = c.now()
	c.editor.Seed(t.IDs)
	c.state = Shown
	c.restoreTo = Shown
}

// Confirm runs BeginConfirm, Commit and CompleteConfirm in one call.
func (c *Controller) Confirm(ctx context.Context) (CommitTicket, error) {
	t, err := c.BeginConfirm()
	if err != nil {
		return CommitTicket{}, err
	}
	err = c.Commit(ctx, t)
	c.CompleteConfirm(t, err)
	return t, err
}

// Reload swaps in freshly fetched catalogs. The working set keeps its ids;
// entities that disappeared are dropped at the next confirm.
func (c *Controller) Reload(catalogs catalog.Set) {
	c.catalogs = catalogs
	c.selector.setCatalogs(catalogs)
	c.editor.setCatalog(c.selector.MemberCatalog())
	if c.committed != nil {
		if p, ok := c.selector.PivotCatalog().ByID(c.committed.Pivot.ID); ok {
			c.committed.Pivot = p
		}
	}
}

func (c *Controller) putCache(s *Snapshot) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.cache.PutMembers(ctx, s.CompanyID, s.Path, s.Pivot.ID, s.MemberIDs, s.FetchedAt); err != nil {
		c.logger.Warn("cache write failed", "path", s.Path, "pivot", s.Pivot.ID, "err", err)
	}
}

// invalidateAfterCommit drops the affected pivot's cached members and the inverse
// entries of every member whose assignment changed; catalogs stay untouched.
func (c *Controller) invalidateAfterCommit(t CommitTicket) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.cache.InvalidateMembers(ctx, t.CompanyID, t.Endpoint.Path, t.Pivot.ID); err != nil {
		c.logger.Warn("cache invalidate failed", "path", t.Endpoint.Path, "err", err)
	}
	if changed := memberDelta(t.previous, t.IDs); len(changed) > 0 {
		inverse := c.relation.Endpoint(t.Mode.Other())
		if err := c.cache.InvalidateMembers(ctx, t.CompanyID, inverse.Path, changed...); err != nil {
			c.logger.Warn("cache invalidate failed", "path", inverse.Path, "err", err)
		}
	}
	if err := c.cache.PutMembers(ctx, t.CompanyID, t.Endpoint.Path, t.Pivot.ID, t.IDs, c.now()); err != nil {
		c.logger.Warn("cache write failed", "path", t.Endpoint.Path, "err", err)
	}
}
