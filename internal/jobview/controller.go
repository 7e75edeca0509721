// Package jobview holds the state of a job details view: the selected job
// space, its solver summary, graphs, subspace panels and the pairs table.
//
// Every request is scoped to the job space that was selected when it was
// issued. Responses that come back after the user moved to another space are
// dropped by a fetchscope.Coordinator, so a slow answer for an old space never
// overwrites the view of the new one.
package jobview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/events"
	"github.com/starexec/jobview/internal/fetchscope"
	"github.com/starexec/jobview/internal/http"
	"github.com/starexec/jobview/internal/logging"
	"github.com/starexec/jobview/internal/models"
)

// ErrTooManySelections is returned when more configurations are chosen for the
// overview graph than it can plot.
var ErrTooManySelections = fmt.Errorf("at most %d configurations can be selected", constants.MaxOverviewSelections)

// Source is the part of the job server API the view reads from.
type Source interface {
	ListJobSpaces(ctx context.Context, jobID, parentID int) ([]models.JobSpace, error)
	GetSolverStats(ctx context.Context, jobID, spaceID int, q api.StatsQuery) (*models.StatsPage, error)
	GetPairs(ctx context.Context, jobID, spaceID int, q api.PairQuery) (*models.PairPage, error)
	GetSpaceOverviewGraph(ctx context.Context, jobID, spaceID, stage int, logY bool, configIDs []int) (string, error)
	GetSolverComparisonGraph(ctx context.Context, jobID, spaceID, config1, config2 int, big bool, stage int) (*models.Graph, error)
}

// Controller owns the view state of one job.
type Controller struct {
	src    Source
	jobID  int
	scope  *fetchscope.Coordinator[int]
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	pairEcho int // draw counter of the latest pairs request
}

// New creates a controller for jobID. logger and bus may be nil.
func New(src Source, jobID int, opts Options, logger *logging.Logger, bus *events.EventBus) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.PageSize < constants.MinPageSize || opts.PageSize > constants.MaxPageSize {
		opts.PageSize = constants.DefaultPageSize
	}
	return &Controller{
		src:    src,
		jobID:  jobID,
		logger: logger,
		now:    time.Now,
		scope: fetchscope.New[int](
			fetchscope.WithName("job-space"),
			fetchscope.WithLogger(logger),
			fetchscope.WithEventBus(bus),
		),
		state: State{JobID: jobID, Options: opts},
	}
}

// Scope exposes the coordinator, for callers that issue their own scoped fetches.
func (c *Controller) Scope() *fetchscope.Coordinator[int] {
	return c.scope
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ClearNotice drops the transient notice.
func (c *Controller) ClearNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Notice = ""
}

// fetchInto runs fn scoped to space and, if space is still selected when it
// returns, hands the outcome to apply with the state locked.
func fetchInto[V any](ctx context.Context, c *Controller, space int, fn fetchscope.RequestFunc[V], apply func(s *State, v V, err error)) (fetchscope.Result[int, V], error) {
	return fetchscope.FetchAndApply(ctx, c.scope, space, fn, func(v V, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		apply(&c.state, v, err)
	})
}

// whileSelected runs fn on the state if space is still selected, holding the
// selection lock so that no Select can interleave. It reports whether fn ran.
// Requests use it to mark their view as loading: a caller that captured a
// space the user has since left must not touch the views of the new space.
func (c *Controller) whileSelected(space int, fn func(s *State)) (bool, error) {
	return c.scope.WhileCurrent(space, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn(&c.state)
	})
}

// failLocked records a failed request for the user.
func (c *Controller) failLocked(what string, err error) {
	c.logger.Warn().Err(err).Str("view", what).Int("space", c.state.SpaceID).Msg("request failed")
	c.state.notify(fmt.Sprintf("%s: %s", what, http.UserMessage(err)), c.now())
}

// SelectSpace makes spaceID the current job space and loads its views. It
// reports whether the selection changed; selecting the current space again
// does nothing and leaves in-flight requests valid. It blocks until all
// requests for the space finished or were superseded.
func (c *Controller) SelectSpace(ctx context.Context, spaceID int) (bool, error) {
	if !c.Select(spaceID) {
		return false, nil
	}
	return true, c.Load(ctx, spaceID)
}

// Select makes spaceID current and clears the views of the previous space
// without loading anything. The views are reset under the selection lock, so
// concurrent selections leave the state on the space that won. Interactive
// callers select on the input goroutine and run Load in the background.
func (c *Controller) Select(spaceID int) bool {
	return c.scope.SelectFunc(spaceID, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.resetSpace(spaceID)
	})
}

// Load fetches every view of spaceID. If spaceID is no longer selected the
// requests are not sent.
func (c *Controller) Load(ctx context.Context, spaceID int) error {
	var g errgroup.Group
	g.Go(func() error { return c.loadSummary(ctx, spaceID) })
	g.Go(func() error { return c.loadPairs(ctx, spaceID) })
	g.Go(func() error { return c.loadPanels(ctx, spaceID) })
	return g.Wait()
}

// Refresh re-draws the pairs table and the subspace panels of the current space.
func (c *Controller) Refresh(ctx context.Context) error {
	space, ok := c.scope.Current()
	if !ok {
		return fetchscope.ErrNoSelection
	}
	var g errgroup.Group
	g.Go(func() error { return c.loadPairs(ctx, space) })
	g.Go(func() error { return c.loadPanels(ctx, space) })
	return g.Wait()
}

func (c *Controller) current() (int, error) {
	space, ok := c.scope.Current()
	if !ok {
		return 0, fetchscope.ErrNoSelection
	}
	return space, nil
}

func (c *Controller) loadSummary(ctx context.Context, space int) error {
	var q api.StatsQuery
	ok, err := c.whileSelected(space, func(s *State) {
		q = api.StatsQuery{
			Paging:    api.Paging{Length: constants.PanelPageSize},
			Wallclock: s.Options.Wallclock,
			Stage:     s.Options.Stage,
		}
		s.Loading.Summary = true
	})
	if err != nil || !ok {
		return err
	}

	res, err := fetchInto(ctx, c, space,
		func(ctx context.Context) (*models.StatsPage, error) {
			return c.src.GetSolverStats(ctx, c.jobID, space, q)
		},
		func(s *State, page *models.StatsPage, err error) {
			s.Loading.Summary = false
			if err != nil {
				s.Summary, s.SummaryErr = nil, err
				s.Overview, s.Comparison = OverviewGraph{}, ComparisonGraph{}
				c.failLocked("summary", err)
				return
			}
			s.Summary, s.SummaryErr = page, nil
			s.Overview = OverviewGraph{ConfigIDs: configIDs(page, constants.MaxOverviewSelections)}
			s.Comparison = ComparisonGraph{}
			if page.TotalRecords > 1 && len(page.Rows) > 1 {
				s.Comparison = ComparisonGraph{
					Visible: true,
					Config1: page.Rows[0].Config.ID,
					Config2: page.Rows[1].Config.ID,
				}
			}
		})
	if err != nil {
		return err
	}
	if !res.Fresh() {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error { return c.loadOverview(ctx, space) })
	g.Go(func() error { return c.loadComparison(ctx, space) })
	return g.Wait()
}

func (c *Controller) loadOverview(ctx context.Context, space int) error {
	c.mu.Lock()
	ids := slices.Clone(c.state.Overview.ConfigIDs)
	logY, stage := c.state.Options.LogY, c.state.Options.Stage
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	_, err := fetchInto(ctx, c, space,
		func(ctx context.Context) (string, error) {
			return c.src.GetSpaceOverviewGraph(ctx, c.jobID, space, stage, logY, ids)
		},
		func(s *State, src string, err error) {
			// The user may have picked other configurations while this was rendering.
			if !slices.Equal(s.Overview.ConfigIDs, ids) {
				c.logger.Debug().Ints("requested", ids).Ints("selected", s.Overview.ConfigIDs).Msg("discarding overview graph for old selection")
				return
			}
			if err != nil {
				s.Overview.Src, s.Overview.LargeSrc, s.Overview.Err = "", "", err
				return
			}
			s.Overview.Src, s.Overview.LargeSrc, s.Overview.Err = src, api.LargeGraphURL(src), nil
		})
	return err
}

func (c *Controller) loadComparison(ctx context.Context, space int) error {
	c.mu.Lock()
	cmp := c.state.Comparison
	stage := c.state.Options.Stage
	c.mu.Unlock()
	if !cmp.Visible {
		return nil
	}

	sameConfigs := func(s *State) bool {
		return s.Comparison.Visible && s.Comparison.Config1 == cmp.Config1 && s.Comparison.Config2 == cmp.Config2
	}

	res, err := fetchInto(ctx, c, space,
		func(ctx context.Context) (*models.Graph, error) {
			return c.src.GetSolverComparisonGraph(ctx, c.jobID, space, cmp.Config1, cmp.Config2, false, stage)
		},
		func(s *State, g *models.Graph, err error) {
			if !sameConfigs(s) {
				return
			}
			s.Comparison.Graph, s.Comparison.Err = g, err
		})
	if err != nil || !res.Fresh() {
		return err
	}

	_, err = fetchInto(ctx, c, space,
		func(ctx context.Context) (*models.Graph, error) {
			return c.src.GetSolverComparisonGraph(ctx, c.jobID, space, cmp.Config1, cmp.Config2, true, stage)
		},
		func(s *State, g *models.Graph, err error) {
			if !sameConfigs(s) || err != nil {
				return
			}
			s.Comparison.Large = g
		})
	return err
}

func (c *Controller) loadPairs(ctx context.Context, space int) error {
	var (
		echo int
		q    api.PairQuery
	)
	ok, err := c.whileSelected(space, func(s *State) {
		c.pairEcho++
		echo = c.pairEcho
		q = s.pairQuery(echo)
		s.Loading.Pairs = true
	})
	if err != nil || !ok {
		return err
	}

	_, err = fetchInto(ctx, c, space,
		func(ctx context.Context) (*models.PairPage, error) {
			return c.src.GetPairs(ctx, c.jobID, space, q)
		},
		func(s *State, page *models.PairPage, err error) {
			// A later draw of the same space was issued; only the latest counts.
			if echo != c.pairEcho {
				return
			}
			s.Loading.Pairs = false
			switch {
			case errors.Is(err, api.ErrTooManyPairs):
				s.Pairs, s.PairsErr, s.TooManyPairs = nil, nil, true
			case err != nil:
				s.Pairs, s.PairsErr, s.TooManyPairs = nil, err, false
				c.failLocked("pairs", err)
			default:
				s.Pairs, s.PairsErr, s.TooManyPairs = page, nil, false
			}
		})
	return err
}

func (c *Controller) loadPanels(ctx context.Context, space int) error {
	var q api.StatsQuery
	ok, err := c.whileSelected(space, func(s *State) {
		q = api.StatsQuery{
			Paging:    api.Paging{Length: constants.PanelPageSize},
			Short:     true,
			Wallclock: s.Options.Wallclock,
			Stage:     s.Options.Stage,
		}
		s.Loading.Panels = true
	})
	if err != nil || !ok {
		return err
	}

	res, err := fetchInto(ctx, c, space,
		func(ctx context.Context) ([]models.JobSpace, error) {
			return c.src.ListJobSpaces(ctx, c.jobID, space)
		},
		func(s *State, children []models.JobSpace, err error) {
			s.Loading.Panels = false
			if err != nil {
				s.Panels, s.PanelsErr = nil, err
				c.failLocked("subspaces", err)
				return
			}
			panels := make([]Panel, len(children))
			for i, child := range children {
				panels[i] = Panel{Space: child, Loading: true}
				// Keep the previous numbers on screen while they refresh.
				for _, old := range s.Panels {
					if old.Space.ID == child.ID {
						panels[i].Stats = old.Stats
					}
				}
			}
			s.Panels, s.PanelsErr = panels, nil
		})
	if err != nil || !res.Fresh() || res.Err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(constants.MaxPanelFetches)
	for _, child := range res.Value {
		child := child
		g.Go(func() error {
			_, err := fetchInto(ctx, c, space,
				func(ctx context.Context) (*models.StatsPage, error) {
					return c.src.GetSolverStats(ctx, c.jobID, child.ID, q)
				},
				func(s *State, page *models.StatsPage, err error) {
					for i := range s.Panels {
						if s.Panels[i].Space.ID != child.ID {
							continue
						}
						s.Panels[i].Loading = false
						s.Panels[i].Err = err
						if err == nil {
							s.Panels[i].Stats = page
						}
					}
				})
			return err
		})
	}
	return g.Wait()
}
