package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emctl/internal/catalog"
	"emctl/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replaceCall struct {
	path  string
	pivot string
	field string
	ids   []string
}

type fakeBackend struct {
	mu         sync.Mutex
	members    map[string][]string // path/pivot -> ids
	fetchErr   error
	replaceErr error
	fetches    int
	replaces   []replaceCall
	block      chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{members: map[string][]string{}}
}

func (f *fakeBackend) Members(ctx context.Context, companyID, path, pivotID string) ([]string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]string(nil), f.members[path+"/"+pivotID]...), nil
}

func (f *fakeBackend) ReplaceMembers(ctx context.Context, companyID, path, pivotID, field string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces = append(f.replaces, replaceCall{path: path, pivot: pivotID, field: field, ids: append([]string(nil), ids...)})
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.members[path+"/"+pivotID] = append([]string(nil), ids...)
	return nil
}

type fakeCache struct {
	puts        map[string][]string
	at          map[string]time.Time
	invalidated []string
}

func (f *fakeCache) GetMembers(ctx context.Context, companyID, path, pivotID string) ([]string, time.Time, bool, error) {
	ids, ok := f.puts[path+"/"+pivotID]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return append([]string(nil), ids...), f.at[path+"/"+pivotID], true, nil
}

func (f *fakeCache) PutMembers(ctx context.Context, companyID, path, pivotID string, ids []string, fetchedAt time.Time) error {
	if f.puts == nil {
		f.puts = map[string][]string{}
		f.at = map[string]time.Time{}
	}
	f.puts[path+"/"+pivotID] = append([]string(nil), ids...)
	f.at[path+"/"+pivotID] = fetchedAt
	return nil
}

func (f *fakeCache) InvalidateMembers(ctx context.Context, companyID, path string, pivotIDs ...string) error {
	for _, id := range pivotIDs {
		f.invalidated = append(f.invalidated, path+"/"+id)
		delete(f.puts, path+"/"+id)
	}
	return nil
}

func testCatalogs() catalog.Set {
	return catalog.Set{
		Users: catalog.New(model.KindUser, 1, []model.Entity{
			{ID: "u1", Name: "user1"},
			{ID: "u2", Name: "user2"},
			{ID: "u3", Name: "user3"},
		}),
		Projects: catalog.New(model.KindProject, 1, []model.Entity{
			{ID: "p1", Name: "proj1"},
			{ID: "p2", Name: "proj2"},
		}),
		Activities: catalog.New(model.KindActivity, 1, []model.Entity{
			{ID: "a1", Name: "design"},
			{ID: "a2", Name: "review"},
		}),
	}
}

type harness struct {
	ctrl    *Controller
	backend *fakeBackend
	cache   *fakeCache
	notices []Notice
}

func newHarness(t *testing.T, r Relation) *harness {
	t.Helper()
	h := &harness{backend: newFakeBackend(), cache: &fakeCache{}}
	h.backend.members["project-allocation/p1"] = []string{"u1"}
	h.backend.members["user-allocation/u2"] = []string{"p2"}
	h.ctrl = NewController(Options{
		Relation:  r,
		CompanyID: "c1",
		Catalogs:  testCatalogs(),
		Backend:   h.backend,
		Cache:     h.cache,
		Notifier:  NotifierFunc(func(n Notice) { h.notices = append(h.notices, n) }),
		Timeout:   time.Second,
	})
	return h
}

func (h *harness) show(t *testing.T, pivot string) {
	t.Helper()
	h.ctrl.SetPivotName(pivot)
	require.NoError(t, h.ctrl.Show(context.Background()))
	require.Equal(t, Shown, h.ctrl.State())
}

func (h *harness) lastNotice(t *testing.T) Notice {
	t.Helper()
	require.NotEmpty(t, h.notices)
	return h.notices[len(h.notices)-1]
}

func TestShow_SeedsWorkingSetExactly(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")

	snap, ok := h.ctrl.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, snap.MemberIDs)
	assert.Equal(t, []string{"user1"}, h.ctrl.Editor().Names())
	assert.Equal(t, snap.MemberIDs, h.ctrl.Editor().IDs())
	assert.Equal(t, []string{"u1"}, h.cache.puts["project-allocation/p1"])
}

func TestShow_UnknownPivotIsNoOp(t *testing.T) {
	h := newHarness(t, UserProject)
	h.ctrl.SetPivotName("nope")

	err := h.ctrl.Show(context.Background())
	assert.ErrorIs(t, err, ErrNoPivot)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 0, h.backend.fetches)
	assert.Empty(t, h.notices, "an unresolved pivot is not an error for the operator")
}

func TestShow_TypingDoesNotFetch(t *testing.T) {
	h := newHarness(t, UserProject)
	h.ctrl.SetPivotName("pro")
	h.ctrl.SetPivotName("proj1")
	assert.Equal(t, 0, h.backend.fetches)
	assert.Len(t, h.ctrl.Selector().Suggestions(), 1)
}

func TestShow_FailureFromIdleStaysIdle(t *testing.T) {
	h := newHarness(t, UserProject)
	h.backend.fetchErr = errors.New("connection refused")
	h.ctrl.SetPivotName("proj1")

	err := h.ctrl.Show(context.Background())
	require.Error(t, err)
	assert.Equal(t, Idle, h.ctrl.State())
	_, ok := h.ctrl.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, LevelError, h.lastNotice(t).Level)
}

func TestShow_FailureKeepsPreviousShownValue(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")

	h.backend.fetchErr = errors.New("boom")
	h.ctrl.SetPivotName("proj2")
	require.Error(t, h.ctrl.Show(context.Background()))

	assert.Equal(t, Shown, h.ctrl.State())
	snap, ok := h.ctrl.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "p1", snap.Pivot.ID)
	assert.Equal(t, []string{"user1"}, h.ctrl.Editor().Names())
}

func TestShow_FailureDuringCommitDiscardsUnsavedEdits(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user2")
	tk, err := h.ctrl.BeginConfirm()
	require.NoError(t, err)

	h.ctrl.SetPivotName("proj1")
	st, ok := h.ctrl.BeginShow()
	require.True(t, ok)
	require.True(t, h.ctrl.CompleteShow(st, nil, errors.New("connection reset")))
	h.ctrl.CompleteConfirm(tk, errors.New("502 bad gateway"))

	assert.Equal(t, Shown, h.ctrl.State())
	snap, _ := h.ctrl.Snapshot()
	assert.Equal(t, []string{"u1"}, snap.MemberIDs)
	assert.Equal(t, snap.MemberIDs, h.ctrl.Editor().IDs())
	assert.False(t, h.ctrl.Editor().Dirty())
	assert.False(t, h.ctrl.Editor().Editing())
}

func TestShowCached_UsesCacheThenFallsBackToFetch(t *testing.T) {
	h := newHarness(t, UserProject)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.ctrl.now = func() time.Time { return now }
	require.NoError(t, h.cache.PutMembers(context.Background(), "c1", "project-allocation", "p1", []string{"u3"}, now.Add(-time.Minute)))

	h.ctrl.SetPivotName("proj1")
	cached, err := h.ctrl.ShowCached(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 0, h.backend.fetches)
	snap, _ := h.ctrl.Snapshot()
	assert.Equal(t, []string{"u3"}, snap.MemberIDs)
	assert.Equal(t, now.Add(-time.Minute), snap.FetchedAt)

	// Too old for the caller: fetched live and the cache refreshed.
	cached, err = h.ctrl.ShowCached(context.Background(), 30*time.Second)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, h.backend.fetches)
	snap, _ = h.ctrl.Snapshot()
	assert.Equal(t, []string{"u1"}, snap.MemberIDs)
	assert.Equal(t, []string{"u1"}, h.cache.puts["project-allocation/p1"])
}

func TestShowCached_InverseEntryIsRefetchedAfterCommit(t *testing.T) {
	h := newHarness(t, UserProject)
	ctx := context.Background()
	require.NoError(t, h.cache.PutMembers(ctx, "c1", "user-allocation", "u3", []string{}, time.Now()))

	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user3")
	_, err := h.ctrl.Confirm(ctx)
	require.NoError(t, err)

	h.backend.members["user-allocation/u3"] = []string{"p1"}
	h.ctrl.SelectMode(ByB)
	h.ctrl.SetPivotName("user3")
	cached, err := h.ctrl.ShowCached(ctx, 0)
	require.NoError(t, err)
	assert.False(t, cached, "the commit dropped the stale inverse entry")
	assert.Equal(t, []string{"proj1"}, h.ctrl.Editor().Names())
}

func TestUnresolved_ListsIdsMissingFromCatalog(t *testing.T) {
	h := newHarness(t, UserProject)
	h.backend.members["project-allocation/p1"] = []string{"u1", "u9"}
	h.show(t, "proj1")
	assert.Equal(t, []string{"u9"}, h.ctrl.Unresolved())
}

func TestConfirm_SendsFullSetNotDelta(t *testing.T) {
	h := newHarness(t, UserProject)
	h.backend.members["project-allocation/p1"] = []string{"u1", "u2"}
	h.show(t, "proj1")

	require.NoError(t, h.ctrl.Edit())
	ok, err := h.ctrl.Add("user3")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.ctrl.Confirm(context.Background())
	require.NoError(t, err)

	require.Len(t, h.backend.replaces, 1)
	want := replaceCall{path: "project-allocation", pivot: "p1", field: "userIds", ids: []string{"u1", "u2", "u3"}}
	if diff := cmp.Diff(want, h.backend.replaces[0], cmp.AllowUnexported(replaceCall{})); diff != "" {
		t.Fatalf("replace call mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_ShowEditConfirmCancel(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	assert.Equal(t, []string{"user1"}, h.ctrl.Editor().Names())

	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user2")
	_, _ = h.ctrl.Add("user3")
	assert.Equal(t, []string{"user1", "user2", "user3"}, h.ctrl.Editor().Names())

	_, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Shown, h.ctrl.State())
	snap, _ := h.ctrl.Snapshot()
	assert.Equal(t, []string{"u1", "u2", "u3"}, snap.MemberIDs)
	n := h.lastNotice(t)
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "Project allocations proj1 updated", n.Message)

	// Nothing to revert before a new edit.
	require.NoError(t, h.ctrl.Cancel())
	assert.Equal(t, []string{"user1", "user2", "user3"}, h.ctrl.Editor().Names())

	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Remove("user1")
	assert.Equal(t, []string{"user2", "user3"}, h.ctrl.Editor().Names())
	require.NoError(t, h.ctrl.Cancel())
	assert.Equal(t, Shown, h.ctrl.State())
	assert.Equal(t, []string{"user1", "user2", "user3"}, h.ctrl.Editor().Names())
}

func TestCancel_RestoresAfterManyEdits(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	before := h.ctrl.Editor().IDs()

	require.NoError(t, h.ctrl.Edit())
	for i := 0; i < 5; i++ {
		_, _ = h.ctrl.Add("user2")
		_, _ = h.ctrl.Remove("user1")
		_, _ = h.ctrl.Add("user3")
		_, _ = h.ctrl.Remove("user2")
	}
	require.NoError(t, h.ctrl.Cancel())
	assert.Equal(t, before, h.ctrl.Editor().IDs())
	assert.False(t, h.ctrl.Editor().Dirty())
	assert.Equal(t, 0, len(h.backend.replaces), "cancel is local")
}

func TestAddThenRemove_LeavesWorkingSetUnchanged(t *testing.T) {
	for _, name := range []string{"user2", "user3", "unknown"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, UserProject)
			h.show(t, "proj1")
			require.NoError(t, h.ctrl.Edit())
			before := h.ctrl.Editor().IDs()

			_, _ = h.ctrl.Add(name)
			_, _ = h.ctrl.Remove(name)
			assert.Equal(t, before, h.ctrl.Editor().IDs())
		})
	}
}

func TestAddRemove_AreIdempotent(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())

	_, _ = h.ctrl.Add("user1")
	assert.Equal(t, []string{"u1"}, h.ctrl.Editor().IDs())
	_, _ = h.ctrl.Remove("user2")
	_, _ = h.ctrl.Remove("user2")
	assert.Equal(t, []string{"u1"}, h.ctrl.Editor().IDs())
}

func TestEditing_RequiresShown(t *testing.T) {
	h := newHarness(t, UserProject)
	assert.ErrorIs(t, h.ctrl.Edit(), ErrInvalidTransition)
	_, err := h.ctrl.Add("user1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	h.show(t, "proj1")
	_, err = h.ctrl.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition, "confirm needs Editing")
	assert.Empty(t, h.backend.replaces)
}

func TestConfirm_CannotDoubleSubmit(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())

	t1, err := h.ctrl.BeginConfirm()
	require.NoError(t, err)
	_, err = h.ctrl.BeginConfirm()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, Committing, h.ctrl.State())

	h.ctrl.CompleteConfirm(t1, h.ctrl.Commit(context.Background(), t1))
	assert.Len(t, h.backend.replaces, 1)
}

func TestConfirm_FailureReturnsToEditingWithWorkingSet(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user2")

	h.backend.replaceErr = errors.New("502 bad gateway")
	_, err := h.ctrl.Confirm(context.Background())
	require.Error(t, err)

	assert.Equal(t, Editing, h.ctrl.State())
	assert.True(t, h.ctrl.Editor().Editing())
	assert.Equal(t, []string{"user1", "user2"}, h.ctrl.Editor().Names())
	snap, _ := h.ctrl.Snapshot()
	assert.Equal(t, []string{"u1"}, snap.MemberIDs, "committed set untouched")
	assert.Equal(t, LevelError, h.lastNotice(t).Level)
	assert.Len(t, h.backend.replaces, 1, "no automatic retry")

	// Operator retries without retyping.
	h.backend.replaceErr = nil
	_, err = h.ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, h.backend.replaces[1].ids)
}

func TestConfirm_DropsMembersMissingFromReloadedCatalog(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user2")
	_, _ = h.ctrl.Add("user3")

	// user2 disappears and user3 is renamed between seed and confirm.
	cats := testCatalogs()
	cats.Users = catalog.New(model.KindUser, 2, []model.Entity{
		{ID: "u1", Name: "user1"},
		{ID: "u3", Name: "user3-renamed"},
	})
	h.ctrl.Reload(cats)

	tk, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, h.backend.replaces[0].ids)
	assert.Equal(t, []string{"u2"}, tk.Dropped)
	assert.Equal(t, Shown, h.ctrl.State())
	assert.Equal(t, []string{"user1", "user3-renamed"}, h.ctrl.Editor().Names())
}

func TestSelectMode_ClearsShownMembers(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")

	h.ctrl.SelectMode(ByB)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, "", h.ctrl.Selector().PivotName())
	_, ok := h.ctrl.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, h.ctrl.Editor().Names())
	assert.Equal(t, model.KindUser, h.ctrl.PivotKind())

	h.show(t, "user2")
	assert.Equal(t, []string{"proj2"}, h.ctrl.Editor().Names())
}

func TestStaleShowIsDiscarded(t *testing.T) {
	h := newHarness(t, UserProject)
	h.ctrl.SetPivotName("proj1")
	first, ok := h.ctrl.BeginShow()
	require.True(t, ok)

	h.ctrl.SetPivotName("proj2")
	second, ok := h.ctrl.BeginShow()
	require.True(t, ok)

	assert.True(t, h.ctrl.CompleteShow(second, []string{"u3"}, nil))
	assert.False(t, h.ctrl.CompleteShow(first, []string{"u1"}, nil))

	snap, _ := h.ctrl.Snapshot()
	assert.Equal(t, "p2", snap.Pivot.ID)
	assert.Equal(t, []string{"user3"}, h.ctrl.Editor().Names())
}

func TestInFlightCommitCompletesAfterModeSwitch(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user2")
	tk, err := h.ctrl.BeginConfirm()
	require.NoError(t, err)

	// The view moves on before the write lands.
	h.ctrl.SelectMode(ByB)
	h.ctrl.CompleteConfirm(tk, h.ctrl.Commit(context.Background(), tk))

	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, []string{"u1", "u2"}, h.backend.members["project-allocation/p1"])
	assert.Equal(t, LevelSuccess, h.lastNotice(t).Level)
	assert.Contains(t, h.cache.invalidated, "project-allocation/p1")
}

func TestCommit_InvalidatesOnlyAffectedEntries(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user3")
	_, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"project-allocation/p1", "user-allocation/u3"}, h.cache.invalidated)
	assert.Equal(t, []string{"u1", "u3"}, h.cache.puts["project-allocation/p1"])
}

func TestShowTimeoutIsFailure(t *testing.T) {
	h := newHarness(t, UserProject)
	h.backend.block = make(chan struct{})
	defer close(h.backend.block)
	h.ctrl.timeout = 20 * time.Millisecond

	h.ctrl.SetPivotName("proj1")
	err := h.ctrl.Show(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Idle, h.ctrl.State())
}

func TestActivityProjectUsesItsOwnEndpoints(t *testing.T) {
	h := newHarness(t, ActivityProject)
	h.backend.members["activity-assignment/a1"] = []string{"p1"}

	h.ctrl.SelectMode(ByB)
	h.show(t, "design")
	assert.Equal(t, []string{"proj1"}, h.ctrl.Editor().Names())

	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("proj2")
	_, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)

	call := h.backend.replaces[0]
	assert.Equal(t, "activity-assignment", call.path)
	assert.Equal(t, "projectIds", call.field)
	assert.Equal(t, []string{"p1", "p2"}, call.ids)
	assert.Equal(t, "Activity project assignment design updated", h.lastNotice(t).Message)
}

func TestShowWhileEditingDiscardsEdits(t *testing.T) {
	h := newHarness(t, UserProject)
	h.show(t, "proj1")
	require.NoError(t, h.ctrl.Edit())
	_, _ = h.ctrl.Add("user3")

	h.show(t, "proj2")
	assert.False(t, h.ctrl.Editor().Editing())
	assert.Empty(t, h.ctrl.Editor().Names())
}

func TestCandidates_ExcludeMembersByID(t *testing.T) {
	members := catalog.New(model.KindUser, 1, []model.Entity{
		{ID: "u1", Name: "sam"},
		{ID: "u2", Name: "sam"},
		{ID: "u3", Name: "kim"},
	})
	ed := NewEditor(members)
	ed.Seed([]string{"u1"})
	ed.SetEditing(true)

	got := make([]string, 0)
	for _, e := range ed.Candidates("sa") {
		got = append(got, e.ID)
	}
	assert.Equal(t, []string{"u2"}, got, "a namesake of a member is still offered")
}
