package jobview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/fetchscope"
	"github.com/starexec/jobview/internal/models"
)

// fakeSource serves canned pages. Requests whose key is held block until
// the key is released; arrivals are announced on arrived.
type fakeSource struct {
	mu       sync.Mutex
	configs  map[int]int // space -> number of configurations in the summary
	children map[int][]models.JobSpace
	pairsErr map[int]error
	held     map[string]chan struct{}
	arrived  chan string
	overview []string // keys of overview requests, in order
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		configs:  map[int]int{},
		children: map[int][]models.JobSpace{},
		pairsErr: map[int]error{},
		held:     map[string]chan struct{}{},
		arrived:  make(chan string, 1000),
	}
}

func (f *fakeSource) hold(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[key] = make(chan struct{})
}

func (f *fakeSource) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.held[key])
}

func (f *fakeSource) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	ch := f.held[key]
	f.mu.Unlock()
	select {
	case f.arrived <- key:
	default:
	}
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) ListJobSpaces(ctx context.Context, jobID, parentID int) ([]models.JobSpace, error) {
	if err := f.wait(ctx, fmt.Sprintf("spaces:%d", parentID)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[parentID], nil
}

func (f *fakeSource) GetSolverStats(ctx context.Context, jobID, spaceID int, q api.StatsQuery) (*models.StatsPage, error) {
	if err := f.wait(ctx, fmt.Sprintf("stats:%d", spaceID)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	n := f.configs[spaceID]
	f.mu.Unlock()

	page := &models.StatsPage{Echo: q.Echo, TotalRecords: n, TotalFiltered: n}
	for i := 1; i <= n; i++ {
		page.Rows = append(page.Rows, models.SolverStats{
			Solver: models.Link{ID: spaceID*100 + i, Name: fmt.Sprintf("solver%d", i)},
			Config: models.Link{ID: spaceID*1000 + i, Name: "default"},
			Solved: i,
		})
	}
	return page, nil
}

func (f *fakeSource) GetPairs(ctx context.Context, jobID, spaceID int, q api.PairQuery) (*models.PairPage, error) {
	if err := f.wait(ctx, fmt.Sprintf("pairs:%d:%d", spaceID, q.Start)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	err := f.pairsErr[spaceID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.PairPage{
		Echo:          q.Echo,
		TotalRecords:  45,
		TotalFiltered: 45,
		Rows: []models.JobPair{
			{ID: spaceID*10000 + q.Start, Space: fmt.Sprintf("space%d", spaceID)},
		},
	}, nil
}

func (f *fakeSource) GetSpaceOverviewGraph(ctx context.Context, jobID, spaceID, stage int, logY bool, configIDs []int) (string, error) {
	key := fmt.Sprintf("overview:%d:%v", spaceID, configIDs)
	f.mu.Lock()
	f.overview = append(f.overview, key)
	f.mu.Unlock()
	if err := f.wait(ctx, key); err != nil {
		return "", err
	}
	return fmt.Sprintf("/graphs/%d/%v.png", spaceID, configIDs), nil
}

func (f *fakeSource) GetSolverComparisonGraph(ctx context.Context, jobID, spaceID, config1, config2 int, big bool, stage int) (*models.Graph, error) {
	if err := f.wait(ctx, fmt.Sprintf("compare:%d:%t", spaceID, big)); err != nil {
		return nil, err
	}
	return &models.Graph{Src: fmt.Sprintf("/cmp/%d-%d-%t.png", config1, config2, big)}, nil
}

// awaitArrival blocks until key has been requested.
func awaitArrival(t *testing.T, f *fakeSource, key string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.arrived:
			if got == key {
				return
			}
		case <-timeout:
			t.Fatalf("request %q never arrived", key)
		}
	}
}

func newTestController(f *fakeSource) *Controller {
	return New(f, 7, Options{PageSize: 10, Wallclock: true}, nil, nil)
}

func TestSelectSpaceLoadsAllViews(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 7
	f.children[1] = []models.JobSpace{{ID: 2, Name: "child-a"}, {ID: 3, Name: "child-b"}}
	f.configs[2] = 1
	f.configs[3] = 2
	c := newTestController(f)

	changed, err := c.SelectSpace(context.Background(), 1)
	if err != nil || !changed {
		t.Fatalf("SelectSpace() = %v, %v", changed, err)
	}

	s := c.Snapshot()
	if s.SpaceID != 1 || !s.Selected {
		t.Errorf("selection = %d/%v", s.SpaceID, s.Selected)
	}
	if s.Summary == nil || len(s.Summary.Rows) != 7 {
		t.Fatalf("summary = %+v", s.Summary)
	}
	if s.Pairs == nil || s.Pairs.Rows[0].ID != 10000 {
		t.Errorf("pairs = %+v", s.Pairs)
	}
	if len(s.Panels) != 2 || s.Panels[0].Stats == nil || s.Panels[1].Stats == nil {
		t.Fatalf("panels = %+v", s.Panels)
	}
	if len(s.Panels[1].Stats.Rows) != 2 {
		t.Errorf("panel for space 3 has %d rows", len(s.Panels[1].Stats.Rows))
	}
	wantIDs := []int{1001, 1002, 1003, 1004, 1005}
	if fmt.Sprint(s.Overview.ConfigIDs) != fmt.Sprint(wantIDs) {
		t.Errorf("overview selection = %v, want first five %v", s.Overview.ConfigIDs, wantIDs)
	}
	if s.Overview.Src == "" || s.Overview.LargeSrc != s.Overview.Src+"600" {
		t.Errorf("overview = %+v", s.Overview)
	}
	if !s.Comparison.Visible || s.Comparison.Config1 != 1001 || s.Comparison.Config2 != 1002 {
		t.Errorf("comparison = %+v", s.Comparison)
	}
	if s.Comparison.Graph == nil || s.Comparison.Large == nil {
		t.Errorf("comparison graphs not loaded: %+v", s.Comparison)
	}
	if s.Loading != (Loading{}) {
		t.Errorf("loading flags still set: %+v", s.Loading)
	}
}

func TestComparisonHiddenWithOneConfiguration(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 1
	c := newTestController(f)

	if _, err := c.SelectSpace(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.Comparison.Visible {
		t.Error("comparison should be hidden with a single configuration")
	}
	if err := c.SetComparison(context.Background(), 1, 2); err == nil {
		t.Error("SetComparison() should fail while hidden")
	}
}

func TestSlowResponseForOldSpaceIsDropped(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 3
	f.configs[2] = 2
	f.hold("stats:1")
	f.hold("pairs:1:0")
	c := newTestController(f)

	done := make(chan error, 1)
	go func() {
		_, err := c.SelectSpace(context.Background(), 1)
		done <- err
	}()
	awaitArrival(t, f, "stats:1")

	if _, err := c.SelectSpace(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	f.release("stats:1")
	f.release("pairs:1:0")
	if err := <-done; err != nil {
		t.Fatalf("SelectSpace(1) error = %v", err)
	}

	s := c.Snapshot()
	if s.SpaceID != 2 {
		t.Fatalf("SpaceID = %d", s.SpaceID)
	}
	if len(s.Summary.Rows) != 2 || s.Summary.Rows[0].Config.ID != 2001 {
		t.Errorf("summary shows data of another space: %+v", s.Summary.Rows)
	}
	if s.Pairs.Rows[0].Space != "space2" {
		t.Errorf("pairs show %q", s.Pairs.Rows[0].Space)
	}
	if c.Scope().Stats().Superseded == 0 {
		t.Error("expected superseded results to be counted")
	}
}

func TestSelectingSameSpaceAgainIsNoop(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 2
	c := newTestController(f)

	if _, err := c.SelectSpace(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot()
	changed, err := c.SelectSpace(context.Background(), 1)
	if err != nil || changed {
		t.Fatalf("SelectSpace() again = %v, %v", changed, err)
	}
	if c.Snapshot().Summary != before.Summary {
		t.Error("reselecting should keep the loaded summary")
	}
}

func TestPairsFailureSetsErrorAndNotice(t *testing.T) {
	f := newFakeSource()
	f.pairsErr[1] = errors.New("dial tcp: connection refused")
	c := newTestController(f)

	if _, err := c.SelectSpace(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.PairsErr == nil || s.Pairs != nil {
		t.Errorf("pairs = %+v, err = %v", s.Pairs, s.PairsErr)
	}
	if s.Notice == "" {
		t.Error("a failure of the current space should leave a notice")
	}

	c.ClearNotice()
	if c.Snapshot().Notice != "" {
		t.Error("ClearNotice() did not clear")
	}
}

func TestTooManyPairs(t *testing.T) {
	f := newFakeSource()
	f.pairsErr[1] = fmt.Errorf("%w: refused", api.ErrTooManyPairs)
	c := newTestController(f)

	if _, err := c.SelectSpace(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if !s.TooManyPairs || s.PairsErr != nil {
		t.Errorf("TooManyPairs = %v, PairsErr = %v", s.TooManyPairs, s.PairsErr)
	}
	if s.Notice != "" {
		t.Errorf("too many pairs is not a failure, notice = %q", s.Notice)
	}
}

func TestLatestPairsDrawWins(t *testing.T) {
	f := newFakeSource()
	c := newTestController(f)
	if _, err := c.SelectSpace(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	f.hold("pairs:1:10")
	done := make(chan error, 1)
	go func() { done <- c.SetPairsPage(context.Background(), 1) }()
	awaitArrival(t, f, "pairs:1:10")

	if err := c.SetPairsPage(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	f.release("pairs:1:10")
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	s := c.Snapshot()
	if got := s.Pairs.Rows[0].ID; got != 10020 {
		t.Errorf("pairs row id = %d, want the page 2 row 10020", got)
	}
	if s.PageIndex() != 2 || s.PageCount() != 5 {
		t.Errorf("page %d of %d", s.PageIndex(), s.PageCount())
	}
}

func TestPairsPagingHelpers(t *testing.T) {
	f := newFakeSource()
	c := newTestController(f)
	ctx := context.Background()
	if _, err := c.SelectSpace(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := c.PrevPairsPage(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().PageIndex() != 0 {
		t.Error("PrevPairsPage() on the first page should stay")
	}
	for i := 0; i < 10; i++ {
		if err := c.NextPairsPage(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Snapshot().PageIndex(); got != 4 {
		t.Errorf("PageIndex() = %d, want last page 4", got)
	}

	if err := c.SetPairsFilter(ctx, "z3"); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.PairsView.Search != "z3" || s.PageIndex() != 0 {
		t.Errorf("filter should reset to the first page: %+v", s.PairsView)
	}
	if err := c.SetSort(ctx, 9, false); err == nil {
		t.Error("SetSort() should reject unknown columns")
	}
	if err := c.SetPageSize(ctx, 5); err == nil {
		t.Error("SetPageSize() should reject pages below the minimum")
	}
}

func TestOverviewSelectionCap(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 7
	c := newTestController(f)
	ctx := context.Background()
	if _, err := c.SelectSpace(ctx, 1); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot().Overview.ConfigIDs

	err := c.SelectOverviewConfigs(ctx, []int{1001, 1002, 1003, 1004, 1005, 1006})
	if !errors.Is(err, ErrTooManySelections) {
		t.Fatalf("error = %v, want ErrTooManySelections", err)
	}
	if fmt.Sprint(c.Snapshot().Overview.ConfigIDs) != fmt.Sprint(before) {
		t.Error("a rejected selection must keep the previous one")
	}

	if err := c.SelectOverviewConfigs(ctx, []int{1006, 1007}); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.Overview.Src != "/graphs/1/[1006 1007].png" {
		t.Errorf("overview src = %q", s.Overview.Src)
	}
}

func TestOverviewForOldConfigSelectionIsDropped(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 3
	c := newTestController(f)
	ctx := context.Background()
	if _, err := c.SelectSpace(ctx, 1); err != nil {
		t.Fatal(err)
	}

	oldKey := "overview:1:[1001]"
	f.hold(oldKey)
	done := make(chan error, 1)
	go func() { done <- c.SelectOverviewConfigs(ctx, []int{1001}) }()
	awaitArrival(t, f, oldKey)

	if err := c.SelectOverviewConfigs(ctx, []int{1002, 1003}); err != nil {
		t.Fatal(err)
	}
	f.release(oldKey)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := c.Snapshot().Overview.Src; got != "/graphs/1/[1002 1003].png" {
		t.Errorf("overview src = %q, the older selection must not win", got)
	}
}

func TestRefreshBeforeSelectFails(t *testing.T) {
	c := newTestController(newFakeSource())
	if err := c.Refresh(context.Background()); !errors.Is(err, fetchscope.ErrNoSelection) {
		t.Errorf("Refresh() error = %v, want ErrNoSelection", err)
	}
	if err := c.SetPairsPage(context.Background(), 1); !errors.Is(err, fetchscope.ErrNoSelection) {
		t.Errorf("SetPairsPage() error = %v, want ErrNoSelection", err)
	}
}

func TestTogglesRedraw(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 2
	c := newTestController(f)
	ctx := context.Background()
	if _, err := c.SelectSpace(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := c.SetWallclock(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSyncResults(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStage(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStage(ctx, -1); err == nil {
		t.Error("SetStage() should reject negative stages")
	}
	s := c.Snapshot()
	if s.Options.Wallclock || !s.Options.SyncResults || s.Options.Stage != 2 {
		t.Errorf("options = %+v", s.Options)
	}
	if s.Summary == nil || s.Pairs == nil {
		t.Error("views should be loaded after toggles")
	}
}

func TestWatchRendersEachRefresh(t *testing.T) {
	f := newFakeSource()
	c := newTestController(f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := c.SelectSpace(ctx, 1); err != nil {
		t.Fatal(err)
	}

	renders := make(chan State, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.watch(ctx, 5*time.Millisecond, func(s State) {
			select {
			case renders <- s:
			default:
			}
		})
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-renders:
		case <-time.After(2 * time.Second):
			t.Fatalf("render %d never happened", i)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch() error = %v, want nil on cancel", err)
	}
}

func TestWatchWithoutSelection(t *testing.T) {
	c := newTestController(newFakeSource())
	err := c.watch(context.Background(), time.Millisecond, nil)
	if !errors.Is(err, fetchscope.ErrNoSelection) {
		t.Errorf("watch() error = %v, want ErrNoSelection", err)
	}
}

// awaitArrivals blocks until every key has been requested, in any order.
func awaitArrivals(t *testing.T, f *fakeSource, keys ...string) {
	t.Helper()
	pending := map[string]bool{}
	for _, k := range keys {
		pending[k] = true
	}
	timeout := time.After(2 * time.Second)
	for len(pending) > 0 {
		select {
		case got := <-f.arrived:
			delete(pending, got)
		case <-timeout:
			t.Fatalf("requests %v never arrived", pending)
		}
	}
}

// drainArrivals returns the requests made since the last wait.
func drainArrivals(f *fakeSource) []string {
	var keys []string
	for {
		select {
		case k := <-f.arrived:
			keys = append(keys, k)
		default:
			return keys
		}
	}
}

// A load started on behalf of a space the user already left must neither send
// requests nor touch the draw counter or loading flags of the current space.
func TestLoadForLeftSpaceLeavesCurrentSpaceAlone(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 3
	f.configs[2] = 2
	f.configs[21] = 1
	f.children[2] = []models.JobSpace{{ID: 21, Name: "child"}}
	held := []string{"stats:2", "pairs:2:0", "spaces:2"}
	for _, k := range held {
		f.hold(k)
	}
	c := newTestController(f)
	ctx := context.Background()

	c.Select(1)
	c.Select(2)
	done := make(chan error, 1)
	go func() { done <- c.Load(ctx, 2) }()
	awaitArrivals(t, f, held...)

	loads := []struct {
		view string
		load func(context.Context, int) error
	}{
		{"summary", c.loadSummary},
		{"pairs", c.loadPairs},
		{"panels", c.loadPanels},
	}
	for _, l := range loads {
		if err := l.load(ctx, 1); err != nil {
			t.Errorf("%s load for left space error = %v", l.view, err)
		}
	}
	for _, k := range drainArrivals(f) {
		t.Errorf("request %q sent for a space that is no longer selected", k)
	}

	for _, k := range held {
		f.release(k)
	}
	if err := <-done; err != nil {
		t.Fatalf("Load(2) error = %v", err)
	}

	s := c.Snapshot()
	if s.SpaceID != 2 {
		t.Fatalf("SpaceID = %d, want 2", s.SpaceID)
	}
	if s.Pairs == nil || s.Pairs.Rows[0].Space != "space2" {
		t.Errorf("pairs of space 2 were not applied: %+v", s.Pairs)
	}
	if s.Summary == nil || len(s.Summary.Rows) != 2 {
		t.Errorf("summary of space 2 was not applied: %+v", s.Summary)
	}
	if len(s.Panels) != 1 || s.Panels[0].Stats == nil || s.Panels[0].Loading {
		t.Errorf("panels = %+v, want one loaded panel", s.Panels)
	}
	if s.Loading != (Loading{}) {
		t.Errorf("Loading = %+v, want nothing loading", s.Loading)
	}
}

// Setters that captured a space before the user moved on change nothing.
func TestSettersForLeftSpaceAreIgnored(t *testing.T) {
	f := newFakeSource()
	f.configs[1] = 3
	f.configs[2] = 2
	c := newTestController(f)
	ctx := context.Background()

	if _, err := c.SelectSpace(ctx, 2); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot()

	ok, err := c.whileSelected(1, func(s *State) { s.PairsView.Start = 30 })
	if err != nil || ok {
		t.Fatalf("whileSelected(left space) = %v, %v; want false, nil", ok, err)
	}
	after := c.Snapshot()
	if after.PairsView.Start != before.PairsView.Start {
		t.Errorf("PairsView.Start = %d, want %d", after.PairsView.Start, before.PairsView.Start)
	}
}

func TestConcurrentSelectKeepsStateOnCurrentSpace(t *testing.T) {
	c := newTestController(newFakeSource())

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(space int) {
			defer wg.Done()
			c.Select(space)
		}(i)
	}
	wg.Wait()

	cur, _ := c.Scope().Current()
	if s := c.Snapshot(); s.SpaceID != cur {
		t.Errorf("state shows space %d, current selection is %d", s.SpaceID, cur)
	}
}
