// Package cli provides the command-line interface for jobview.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/starexec/jobview/internal/logging"
	"github.com/starexec/jobview/internal/version"
)

var (
	// Global flags
	cfgFile      string
	apiKey       string
	tokenFile    string // Path to file containing the API key
	serverURL    string
	jobID        int
	proxyMode    string
	outputFormat string
	verbose      bool
	debug        bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jobview",
		Short: "Browse the results of a StarExec job from the terminal",
		Long: `jobview ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse the job spaces of a StarExec job: solver statistics, job pairs,
graphs and subspace summaries, and run job actions.

Interactive mode:
  jobview explore --job 1234

Scripting:
  jobview pairs --job 1234 --space 56 --output json`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing the API key")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Job server base URL (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&jobID, "job", "j", 0, "Job ID (overrides config)")
	rootCmd.PersistentFlags().StringVar(&proxyMode, "proxy-mode", "", "Proxy mode: no-proxy, system, basic or ntlm")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newSpacesCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPairsCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newExploreCmd())
	rootCmd.AddCommand(newJobCmd())
	rootCmd.AddCommand(newConfigCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// It is cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
