package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/models"
	"github.com/starexec/jobview/internal/pathutil"
	"github.com/starexec/jobview/internal/progress"
)

// newJobCmd creates the 'job' command group.
func newJobCmd() *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Job actions (pause, resume, delete, rename, queue, download, ...)",
		Long:  `Commands that change a job or download its results.`,
	}

	jobCmd.AddCommand(newJobActionCmd("pause", "Pause a running job", func(c *api.Client, id int) error {
		return c.PauseJob(GetContext(), id)
	}))
	jobCmd.AddCommand(newJobActionCmd("resume", "Resume a paused job", func(c *api.Client, id int) error {
		return c.ResumeJob(GetContext(), id)
	}))
	jobCmd.AddCommand(newJobActionCmd("clear-cache", "Clear the cached statistics of a job", func(c *api.Client, id int) error {
		return c.ClearStatsCache(GetContext(), id)
	}))
	jobCmd.AddCommand(newJobActionCmd("recompile", "Rebuild the job space tree of a job", func(c *api.Client, id int) error {
		return c.RecompileSpaces(GetContext(), id)
	}))
	jobCmd.AddCommand(newJobDeleteCmd())
	jobCmd.AddCommand(newJobRenameCmd())
	jobCmd.AddCommand(newJobQueueCmd())
	jobCmd.AddCommand(newJobPostProcessCmd())
	jobCmd.AddCommand(newJobDownloadCmd())

	return jobCmd
}

// newJobActionCmd builds a command that runs one action on the job.
func newJobActionCmd(use, short string, run func(*api.Client, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := run(client, cfg.JobID); err != nil {
				return fmt.Errorf("%s job %d: %w", use, cfg.JobID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d: %s done\n", cfg.JobID, use)
			return nil
		},
	}
}

// newJobDeleteCmd creates the 'job delete' command.
func newJobDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [job-id...]",
		Short: "Delete one or more jobs",
		Long: `Delete jobs. Without arguments the job named by --job is deleted.

WARNING: This operation cannot be undone!

Example:
  jobview job delete --job 1234
  jobview job delete 1234 1235 1236 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			ids := []int{cfg.JobID}
			if len(args) > 0 {
				ids = ids[:0]
				for _, arg := range args {
					id, err := strconv.Atoi(arg)
					if err != nil || id <= 0 {
						return fmt.Errorf("invalid job id %q", arg)
					}
					ids = append(ids, id)
				}
			}

			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprintf(out, "You are about to delete %d job(s): %v. This cannot be undone.\n", len(ids), ids)
				ok, err := confirm(bufio.NewReader(cmd.InOrStdin()), out, "Are you sure?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Deletion cancelled")
					return nil
				}
			}

			GetLogger().Info().Ints("jobs", ids).Msg("Deleting jobs")
			if err := client.DeleteJob(GetContext(), ids...); err != nil {
				return fmt.Errorf("failed to delete jobs: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d job(s)\n", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func newJobRenameCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename a job",
		Long: `Rename a job. Names are 2 to 32 letters, digits, spaces or - . + ^ _.

Example:
  jobview job rename --job 1234 --name "sat-2026 rerun"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := client.RenameJob(GetContext(), cfg.JobID, name); err != nil {
				return fmt.Errorf("failed to rename job %d: %w", cfg.JobID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d renamed to %q\n", cfg.JobID, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New job name (required)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newJobQueueCmd() *cobra.Command {
	var queueID int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Move a job to another queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := client.ChangeQueue(GetContext(), cfg.JobID, queueID); err != nil {
				return fmt.Errorf("failed to change queue of job %d: %w", cfg.JobID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d moved to queue %d\n", cfg.JobID, queueID)
			return nil
		},
	}

	cmd.Flags().IntVar(&queueID, "queue", 0, "Queue ID (required)")
	cmd.MarkFlagRequired("queue")
	return cmd
}

func newJobPostProcessCmd() *cobra.Command {
	var (
		processorID int
		stage       int
	)

	cmd := &cobra.Command{
		Use:   "postprocess",
		Short: "Run a post processor over the finished pairs of a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := client.PostProcess(GetContext(), cfg.JobID, processorID, stage); err != nil {
				return fmt.Errorf("failed to start post processing of job %d: %w", cfg.JobID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Post processing of job %d started\n", cfg.JobID)
			return nil
		},
	}

	cmd.Flags().IntVar(&processorID, "processor", 0, "Post processor ID (required)")
	cmd.Flags().IntVar(&stage, "stage", 0, "Pipeline stage (0 = primary)")
	cmd.MarkFlagRequired("processor")
	return cmd
}

// newJobDownloadCmd creates the 'job download' command.
func newJobDownloadCmd() *cobra.Command {
	var (
		kindName      string
		outputPath    string
		includeIDs    bool
		completedOnly bool
		overwrite     bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download job results",
		Long: `Download the results of a job.

Kinds:
  csv     pair information as CSV (default)
  xml     the job description as XML
  output  a zip archive of every pair's output

Example:
  jobview job download --job 1234
  jobview job download --job 1234 --kind output --out results.zip
  jobview job download --job 1234 --ids --completed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseDownloadKind(kindName)
			if err != nil {
				return err
			}
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = fmt.Sprintf("job-%d%s", cfg.JobID, kind.Extension())
			}
			if outputPath, err = pathutil.ResolveAbsolutePath(outputPath); err != nil {
				return fmt.Errorf("invalid output path: %w", err)
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(outputPath); err == nil && !overwrite {
				ok, err := confirm(bufio.NewReader(cmd.InOrStdin()), out, fmt.Sprintf("%s exists. Overwrite?", outputPath))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Download cancelled")
					return nil
				}
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outputPath, err)
			}

			logger := GetLogger()
			reporter := progress.NewReporter(os.Stderr, logger)
			opts := api.DownloadOptions{IncludeIDs: includeIDs, CompletedOnly: completedOnly, Dest: outputPath}
			n, err := client.DownloadJob(GetContext(), cfg.JobID, kind, opts, f, reporter)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(outputPath)
				return fmt.Errorf("failed to download job %d: %w", cfg.JobID, err)
			}

			logger.Info().Str("path", outputPath).Int64("bytes", n).Msg("Download complete")
			fmt.Fprintf(out, "Saved %s (%d bytes)\n", outputPath, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "csv", "What to download: csv, xml or output")
	cmd.Flags().StringVar(&outputPath, "out", "", "Output file (default job-<id>.<ext>)")
	cmd.Flags().BoolVar(&includeIDs, "ids", false, "Include primitive IDs in the CSV")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only pairs that finished")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file without asking")
	return cmd
}
