package jobview

import (
	"slices"
	"time"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/models"
)

// Options are the view toggles that shape every request.
type Options struct {
	PageSize    int
	Wallclock   bool // wallclock instead of CPU time
	SyncResults bool
	Stage       int
	LogY        bool // log scale on the overview graph
}

// OptionsFromConfig takes the view defaults from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PageSize:    cfg.PageSize,
		Wallclock:   cfg.Wallclock,
		SyncResults: cfg.SyncResults,
		Stage:       cfg.Stage,
	}
}

// PairsView is the paging state of the pairs table.
type PairsView struct {
	Start      int
	Search     string
	SortBy     int
	Descending bool
}

// Panel is the short statistics table of one subspace.
type Panel struct {
	Space   models.JobSpace
	Stats   *models.StatsPage
	Err     error
	Loading bool
}

// OverviewGraph is the space overview chart and the configurations it plots.
type OverviewGraph struct {
	ConfigIDs []int
	Src       string
	LargeSrc  string
	Err       error
}

// ComparisonGraph is the scatter plot of two configurations. It is only
// visible when the summary has at least two configurations.
type ComparisonGraph struct {
	Visible bool
	Config1 int
	Config2 int
	Graph   *models.Graph
	Large   *models.Graph
	Err     error
}

// Loading flags the views that wait for data.
type Loading struct {
	Summary bool
	Pairs   bool
	Panels  bool
}

// State is everything the job view renders. Pages are never mutated after
// they are stored, so copies share them.
type State struct {
	JobID    int
	SpaceID  int
	Selected bool
	Options  Options

	Summary    *models.StatsPage
	SummaryErr error

	PairsView    PairsView
	Pairs        *models.PairPage
	PairsErr     error
	TooManyPairs bool

	Panels     []Panel
	PanelsErr  error
	Overview   OverviewGraph
	Comparison ComparisonGraph

	Loading Loading

	// Notice is a transient message for the user about the last failure.
	Notice   string
	NoticeAt time.Time
}

// PageIndex returns the zero-based pairs page.
func (s State) PageIndex() int {
	if s.Options.PageSize <= 0 {
		return 0
	}
	return s.PairsView.Start / s.Options.PageSize
}

// PageCount returns the number of pairs pages for the current filter.
func (s State) PageCount() int {
	if s.Pairs == nil || s.Options.PageSize <= 0 {
		return 0
	}
	return (s.Pairs.TotalFiltered + s.Options.PageSize - 1) / s.Options.PageSize
}

// resetSpace clears every view derived from the previous space.
func (s *State) resetSpace(spaceID int) {
	s.SpaceID = spaceID
	s.Selected = true
	s.Summary, s.SummaryErr = nil, nil
	s.Pairs, s.PairsErr, s.TooManyPairs = nil, nil, false
	s.PairsView.Start = 0
	s.Panels, s.PanelsErr = nil, nil
	s.Overview = OverviewGraph{}
	s.Comparison = ComparisonGraph{}
	s.Loading = Loading{Summary: true, Pairs: true, Panels: true}
}

func (s *State) notify(msg string, now time.Time) {
	s.Notice = msg
	s.NoticeAt = now
}

func (s State) clone() State {
	out := s
	out.Panels = slices.Clone(s.Panels)
	out.Overview.ConfigIDs = slices.Clone(s.Overview.ConfigIDs)
	return out
}

func (s State) pairQuery(echo int) api.PairQuery {
	return api.PairQuery{
		Paging: api.Paging{
			Start:  s.PairsView.Start,
			Length: s.Options.PageSize,
			Echo:   echo,
			Search: s.PairsView.Search,
		},
		SortBy:      s.PairsView.SortBy,
		Descending:  s.PairsView.Descending,
		Wallclock:   s.Options.Wallclock,
		SyncResults: s.Options.SyncResults,
		Stage:       s.Options.Stage,
	}
}

// configIDs returns the configuration ids of the first n summary rows.
func configIDs(page *models.StatsPage, n int) []int {
	if page == nil {
		return nil
	}
	ids := make([]int, 0, n)
	for _, row := range page.Rows {
		if len(ids) == n {
			break
		}
		ids = append(ids, row.Config.ID)
	}
	return ids
}
