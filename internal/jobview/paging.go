package jobview

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starexec/jobview/internal/constants"
)

// SetPairsPage moves the pairs table to the zero-based page and re-draws it.
func (c *Controller) SetPairsPage(ctx context.Context, page int) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	if page < 0 {
		return fmt.Errorf("page must not be negative, got %d", page)
	}
	ok, err := c.whileSelected(space, func(s *State) {
		s.PairsView.Start = page * s.Options.PageSize
	})
	if err != nil || !ok {
		return err
	}
	return c.loadPairs(ctx, space)
}

// NextPairsPage moves one page forward if there is one.
func (c *Controller) NextPairsPage(ctx context.Context) error {
	s := c.Snapshot()
	if next := s.PageIndex() + 1; next < s.PageCount() {
		return c.SetPairsPage(ctx, next)
	}
	return nil
}

// PrevPairsPage moves one page back if there is one.
func (c *Controller) PrevPairsPage(ctx context.Context) error {
	if prev := c.Snapshot().PageIndex() - 1; prev >= 0 {
		return c.SetPairsPage(ctx, prev)
	}
	return nil
}

// SetPairsFilter filters the pairs table and returns to the first page.
func (c *Controller) SetPairsFilter(ctx context.Context, search string) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.PairsView.Search = search
	c.state.PairsView.Start = 0
	c.mu.Unlock()
	return c.loadPairs(ctx, space)
}

// SetSort orders the pairs table by column.
func (c *Controller) SetSort(ctx context.Context, column int, descending bool) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	if column < 0 || column > constants.MaxPairSortColumn {
		return fmt.Errorf("sort column must be between 0 and %d, got %d", constants.MaxPairSortColumn, column)
	}
	c.mu.Lock()
	c.state.PairsView.SortBy = column
	c.state.PairsView.Descending = descending
	c.mu.Unlock()
	return c.loadPairs(ctx, space)
}

// SetPageSize changes the rows per pairs page and returns to the first page.
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	if size < constants.MinPageSize || size > constants.MaxPageSize {
		return fmt.Errorf("page size must be between %d and %d, got %d", constants.MinPageSize, constants.MaxPageSize, size)
	}
	c.mu.Lock()
	c.state.Options.PageSize = size
	c.state.PairsView.Start = 0
	c.mu.Unlock()
	return c.loadPairs(ctx, space)
}

// SetWallclock switches times between wallclock and CPU and re-draws the
// summary, the panels and the pairs table.
func (c *Controller) SetWallclock(ctx context.Context, wallclock bool) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Options.Wallclock = wallclock
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return c.loadSummary(ctx, space) })
	g.Go(func() error { return c.loadPanels(ctx, space) })
	g.Go(func() error { return c.loadPairs(ctx, space) })
	return g.Wait()
}

// SetSyncResults restricts the pairs table to benchmarks every configuration finished.
func (c *Controller) SetSyncResults(ctx context.Context, sync bool) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Options.SyncResults = sync
	c.state.PairsView.Start = 0
	c.mu.Unlock()
	return c.loadPairs(ctx, space)
}

// SetStage switches the pipeline stage and re-draws every view.
func (c *Controller) SetStage(ctx context.Context, stage int) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	if stage < 0 {
		return fmt.Errorf("stage must not be negative, got %d", stage)
	}
	c.mu.Lock()
	c.state.Options.Stage = stage
	c.state.PairsView.Start = 0
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return c.loadSummary(ctx, space) })
	g.Go(func() error { return c.loadPanels(ctx, space) })
	g.Go(func() error { return c.loadPairs(ctx, space) })
	return g.Wait()
}

// SelectOverviewConfigs chooses the configurations plotted on the overview
// graph. More than the graph can plot fails with ErrTooManySelections and
// keeps the previous selection.
func (c *Controller) SelectOverviewConfigs(ctx context.Context, ids []int) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	if len(ids) > constants.MaxOverviewSelections {
		return ErrTooManySelections
	}
	changed := false
	if _, err := c.whileSelected(space, func(s *State) {
		if !slices.Equal(s.Overview.ConfigIDs, ids) {
			s.Overview = OverviewGraph{ConfigIDs: slices.Clone(ids)}
			changed = true
		}
	}); err != nil || !changed {
		return err
	}
	return c.loadOverview(ctx, space)
}

// SetLogScale toggles the logarithmic y axis of the overview graph.
func (c *Controller) SetLogScale(ctx context.Context, logY bool) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Options.LogY = logY
	c.mu.Unlock()
	return c.loadOverview(ctx, space)
}

// SetComparison chooses the two configurations of the comparison graph.
func (c *Controller) SetComparison(ctx context.Context, config1, config2 int) error {
	space, err := c.current()
	if err != nil {
		return err
	}
	visible := false
	ok, err := c.whileSelected(space, func(s *State) {
		if visible = s.Comparison.Visible; visible {
			s.Comparison = ComparisonGraph{Visible: true, Config1: config1, Config2: config2}
		}
	})
	switch {
	case err != nil || !ok:
		return err
	case !visible:
		return fmt.Errorf("the comparison needs at least two configurations")
	}
	return c.loadComparison(ctx, space)
}
