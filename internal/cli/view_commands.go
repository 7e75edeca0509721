package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/jobview"
	"github.com/starexec/jobview/internal/logging"
	"github.com/starexec/jobview/internal/tui"
)

// newSpacesCmd creates the 'spaces' command.
func newSpacesCmd() *cobra.Command {
	var parent int

	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "List the job spaces of a job",
		Long: `List the job spaces of a job. Without --parent the root job space is
listed; with --parent its direct subspaces.

Example:
  jobview spaces --job 1234
  jobview spaces --job 1234 --parent 56`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(outputFormat); err != nil {
				return err
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			spaces, err := client.ListJobSpaces(GetContext(), cfg.JobID, parent)
			if err != nil {
				return fmt.Errorf("failed to list job spaces: %w", err)
			}
			if done, err := emit(cmd.OutOrStdout(), spaces); done {
				return err
			}
			return printSpaces(cmd.OutOrStdout(), spaces)
		},
	}

	cmd.Flags().IntVar(&parent, "parent", 0, "Parent job space ID (0 = root)")
	return cmd
}

// newStatsCmd creates the 'stats' command.
func newStatsCmd() *cobra.Command {
	var (
		spaceID int
		short   bool
		cpu     bool
		stage   int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show solver statistics of a job space",
		Long: `Show how every solver configuration did in a job space and its subspaces.

Example:
  jobview stats --job 1234 --space 56
  jobview stats --job 1234 --space 56 --cpu --short`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(outputFormat); err != nil {
				return err
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			q := api.StatsQuery{
				Paging:    api.Paging{Length: constants.PanelPageSize},
				Short:     short,
				Wallclock: cfg.Wallclock && !cpu,
				Stage:     stage,
			}
			page, err := client.GetSolverStats(GetContext(), cfg.JobID, spaceID, q)
			if err != nil {
				return fmt.Errorf("failed to get solver stats: %w", err)
			}
			if done, err := emit(cmd.OutOrStdout(), page); done {
				return err
			}
			return printStats(cmd.OutOrStdout(), page.Rows, short)
		},
	}

	cmd.Flags().IntVarP(&spaceID, "space", "s", 0, "Job space ID (required)")
	cmd.Flags().BoolVar(&short, "short", false, "Only solved count and time")
	cmd.Flags().BoolVar(&cpu, "cpu", false, "Report CPU time instead of wallclock time")
	cmd.Flags().IntVar(&stage, "stage", 0, "Pipeline stage (0 = primary)")
	cmd.MarkFlagRequired("space")
	return cmd
}

// newPairsCmd creates the 'pairs' command.
func newPairsCmd() *cobra.Command {
	var (
		spaceID int
		page    int
		length  int
		search  string
		sortBy  int
		desc    bool
		sync    bool
		cpu     bool
		stage   int
	)

	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "List the job pairs of a job space",
		Long: `List one page of the job pairs of a job space.

Sort columns: 0 benchmark, 1 solver, 2 configuration, 3 status, 4 time,
5 result, 6 space.

Example:
  jobview pairs --job 1234 --space 56
  jobview pairs --job 1234 --space 56 --page 3 --sort 4 --desc
  jobview pairs --job 1234 --space 56 --search unsat --sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(outputFormat); err != nil {
				return err
			}
			if page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", page)
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("length") {
				length = cfg.PageSize
			}

			q := api.PairQuery{
				Paging: api.Paging{
					Start:  (page - 1) * length,
					Length: length,
					Echo:   1,
					Search: search,
				},
				SortBy:      sortBy,
				Descending:  desc,
				Wallclock:   cfg.Wallclock && !cpu,
				SyncResults: sync,
				Stage:       stage,
			}
			pairs, err := client.GetPairs(GetContext(), cfg.JobID, spaceID, q)
			if errors.Is(err, api.ErrTooManyPairs) {
				return fmt.Errorf("job space %d has too many pairs to list; use 'jobview job download' instead", spaceID)
			}
			if err != nil {
				return fmt.Errorf("failed to get job pairs: %w", err)
			}
			if done, err := emit(cmd.OutOrStdout(), pairs); done {
				return err
			}
			return printPairs(cmd.OutOrStdout(), pairs, q.Start)
		},
	}

	cmd.Flags().IntVarP(&spaceID, "space", "s", 0, "Job space ID (required)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&length, "length", constants.DefaultPageSize, fmt.Sprintf("Rows per page (%d-%d)", constants.MinPageSize, constants.MaxPageSize))
	cmd.Flags().StringVar(&search, "search", "", "Only pairs matching this text")
	cmd.Flags().IntVar(&sortBy, "sort", api.SortBenchmark, "Sort column (0-6)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&sync, "sync", false, "Only benchmarks every configuration finished")
	cmd.Flags().BoolVar(&cpu, "cpu", false, "Report CPU time instead of wallclock time")
	cmd.Flags().IntVar(&stage, "stage", 0, "Pipeline stage (0 = primary)")
	cmd.MarkFlagRequired("space")
	return cmd
}

// newGraphCmd creates the 'graph' command group.
func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render job graphs (overview, compare)",
		Long:  `Ask the server to render a graph and print the address of the image.`,
	}
	cmd.AddCommand(newGraphOverviewCmd())
	cmd.AddCommand(newGraphCompareCmd())
	return cmd
}

func newGraphOverviewCmd() *cobra.Command {
	var (
		spaceID int
		configs []int
		logY    bool
		stage   int
	)

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Solved benchmarks over time for up to five configurations",
		Long: `Render the space overview graph. Without --configs the first five
configurations of the solver summary are plotted.

Example:
  jobview graph overview --job 1234 --space 56
  jobview graph overview --job 1234 --space 56 --configs 7,9 --log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(configs) > constants.MaxOverviewSelections {
				return fmt.Errorf("--configs takes at most %d configurations, got %d", constants.MaxOverviewSelections, len(configs))
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if len(configs) == 0 {
				page, err := client.GetSolverStats(ctx, cfg.JobID, spaceID, api.StatsQuery{
					Paging:    api.Paging{Length: constants.PanelPageSize},
					Wallclock: cfg.Wallclock,
					Stage:     stage,
				})
				if err != nil {
					return fmt.Errorf("failed to get solver stats: %w", err)
				}
				for _, row := range page.Rows {
					if len(configs) == constants.MaxOverviewSelections {
						break
					}
					configs = append(configs, row.Config.ID)
				}
				if len(configs) == 0 {
					return fmt.Errorf("job space %d has no configurations to plot", spaceID)
				}
			}

			src, err := client.GetSpaceOverviewGraph(ctx, cfg.JobID, spaceID, stage, logY, configs)
			if err != nil {
				return fmt.Errorf("failed to render overview graph: %w", err)
			}
			result := map[string]any{"configs": configs, "src": src, "large": api.LargeGraphURL(src)}
			if done, err := emit(cmd.OutOrStdout(), result); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Overview graph: %s\nLarge:          %s\n", src, api.LargeGraphURL(src))
			return nil
		},
	}

	cmd.Flags().IntVarP(&spaceID, "space", "s", 0, "Job space ID (required)")
	cmd.Flags().IntSliceVar(&configs, "configs", nil, "Configuration IDs to plot (at most 5)")
	cmd.Flags().BoolVar(&logY, "log", false, "Logarithmic y axis")
	cmd.Flags().IntVar(&stage, "stage", 0, "Pipeline stage (0 = primary)")
	cmd.MarkFlagRequired("space")
	return cmd
}

func newGraphCompareCmd() *cobra.Command {
	var (
		spaceID int
		config1 int
		config2 int
		big     bool
		stage   int
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Scatter plot of two configurations",
		Long: `Render the solver comparison graph of two configurations.

Example:
  jobview graph compare --job 1234 --space 56 --config1 7 --config2 9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config1 <= 0 || config2 <= 0 {
				return fmt.Errorf("--config1 and --config2 are required")
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			graph, err := client.GetSolverComparisonGraph(GetContext(), cfg.JobID, spaceID, config1, config2, big, stage)
			if err != nil {
				return fmt.Errorf("failed to render comparison graph: %w", err)
			}
			if done, err := emit(cmd.OutOrStdout(), graph); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comparison graph: %s\n", graph.Src)
			return nil
		},
	}

	cmd.Flags().IntVarP(&spaceID, "space", "s", 0, "Job space ID (required)")
	cmd.Flags().IntVar(&config1, "config1", 0, "First configuration ID")
	cmd.Flags().IntVar(&config2, "config2", 0, "Second configuration ID")
	cmd.Flags().BoolVar(&big, "big", false, "Render the large version")
	cmd.Flags().IntVar(&stage, "stage", 0, "Pipeline stage (0 = primary)")
	cmd.MarkFlagRequired("space")
	return cmd
}

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var (
		spaceID  int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a job space and refresh it periodically",
		Long: `Load every view of a job space and print it again each time the
pairs and subspace panels are refreshed. Stop with Ctrl+C.

Example:
  jobview watch --job 1234 --space 56
  jobview watch --job 1234 --space 56 --interval 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.PollInterval()
			}
			if interval < constants.MinPollInterval {
				return fmt.Errorf("--interval must be at least %s", constants.MinPollInterval)
			}

			ctx := GetContext()
			ctrl := newController(ctx, client, cfg)
			if _, err := ctrl.SelectSpace(ctx, spaceID); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return ctrl.Watch(ctx, interval, func(s jobview.State) {
				printState(out, s, time.Now())
				ctrl.ClearNotice()
			})
		},
	}

	cmd.Flags().IntVarP(&spaceID, "space", "s", 0, "Job space ID (required)")
	cmd.Flags().DurationVar(&interval, "interval", constants.DefaultPollInterval, "Refresh interval")
	cmd.MarkFlagRequired("space")
	return cmd
}

// newExploreCmd creates the 'explore' command.
func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse a job interactively",
		Long: `Open the interactive job explorer: the job space tree on the left and
the solver summary, pairs and subspaces of the selected space on the right.

Logs are written to the log directory while the explorer is open.

Example:
  jobview explore --job 1234`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := openExploreLog()
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger = logging.NewLogger("tui", nil)
			logger.SetOutput(logFile)

			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			ctrl := newController(GetContext(), client, cfg)
			return tui.Run(GetContext(), ctrl, client, cfg.JobID, cfg.PollInterval())
		},
	}
	return cmd
}

func openExploreLog() (io.WriteCloser, error) {
	if err := config.EnsureLogDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(config.LogDirectory(), "explore.log")
	return logging.NewRotatingFile(path, logging.DefaultFileConfig), nil
}
