package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/http"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management (init, show, validate, path)",
		Long:  `Commands for managing the jobview configuration file.`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup. The file is written to the path shown
by 'jobview config path'.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view it.")
					return nil
				}
			}

			cfg, err := config.Load(path)
			if err != nil {
				cfg = config.NewConfig()
			}
			in := cmd.InOrStdin()
			r := bufio.NewReader(in)

			if cfg.ServerURL, err = promptString(r, out, "Server URL", cfg.ServerURL); err != nil {
				return err
			}
			for attempt := 0; cfg.APIKey == ""; attempt++ {
				if attempt == 3 {
					return config.ErrMissingAPIKey
				}
				if cfg.APIKey, err = promptSecret(r, in, out, "API key (required)"); err != nil {
					return err
				}
			}
			jobInput, err := promptString(r, out, "Default job ID (optional)", "")
			if err != nil {
				return err
			}
			if jobInput != "" {
				id, err := strconv.Atoi(jobInput)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid job id %q", jobInput)
				}
				cfg.JobID = id
			}
			if cfg.ProxyMode, err = promptString(r, out, "Proxy mode (no-proxy, system, basic, ntlm)", cfg.ProxyMode); err != nil {
				return err
			}
			if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
				if cfg.ProxyHost, err = promptString(r, out, "Proxy host", cfg.ProxyHost); err != nil {
					return err
				}
				portInput, err := promptString(r, out, "Proxy port", strconv.Itoa(cfg.ProxyPort))
				if err != nil {
					return err
				}
				if cfg.ProxyPort, err = strconv.Atoi(portInput); err != nil {
					return fmt.Errorf("invalid proxy port %q", portInput)
				}
				if cfg.ProxyUser, err = promptString(r, out, "Proxy user", cfg.ProxyUser); err != nil {
					return err
				}
			}
			cfg.MergeWithFlags("", "", 0, "", "", 0)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "\nConfiguration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the merged configuration from the file, JOBVIEW_* environment
variables and command-line flags.

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			shown := cfg.Redacted()
			out := cmd.OutOrStdout()
			if done, err := emit(out, shown); done {
				return err
			}

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  URL:     %s\n", shown.ServerURL)
			if shown.APIKey != "" {
				fmt.Fprintf(out, "  API key: %s\n", shown.APIKey)
			} else {
				fmt.Fprintln(out, "  API key: <not set>")
			}
			if shown.JobID > 0 {
				fmt.Fprintf(out, "  Job:     %d\n", shown.JobID)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy:")
			fmt.Fprintf(out, "  Mode: %s\n", shown.ProxyMode)
			if shown.ProxyHost != "" {
				fmt.Fprintf(out, "  Host: %s:%d\n", shown.ProxyHost, shown.ProxyPort)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "View:")
			fmt.Fprintf(out, "  Page size:     %d\n", shown.PageSize)
			fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval())
			fmt.Fprintf(out, "  Wallclock:     %t\n", shown.Wallclock)
			fmt.Fprintf(out, "  Stage:         %d\n", shown.Stage)
			fmt.Fprintf(out, "  Sync results:  %t\n", shown.SyncResults)
			fmt.Fprintln(out)

			path := configPath()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
	return cmd
}

// newConfigValidateCmd creates the 'config validate' command.
func newConfigValidateCmd() *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and optionally the connection",
		Long: `Check the merged configuration. With --connect also list the root job
space of the configured job to verify the API key and network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid")
			if !connect {
				return nil
			}

			if err := cfg.ValidateForJob(); err != nil {
				return fmt.Errorf("cannot test the connection: %w", err)
			}
			client, err := api.NewClient(cfg, api.WithLogger(GetLogger()))
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}
			ctx, cancel := context.WithTimeout(GetContext(), constants.APIContextTimeout)
			defer cancel()

			fmt.Fprintf(out, "Testing connection to %s...\n", cfg.ServerURL)
			spaces, err := client.ListJobSpaces(ctx, cfg.JobID, 0)
			if err != nil {
				GetLogger().Error().Err(err).Msg("Connection test failed")
				return fmt.Errorf("connection test failed: %s", http.UserMessage(err))
			}
			fmt.Fprintf(out, "Connection OK, job %d has %d root space(s)\n", cfg.JobID, len(spaces))
			return nil
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "Also test the connection to the server")
	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)
			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Size: %d bytes, modified %s\n", info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "File does not exist. Create it with: jobview config init")
			}
			return nil
		},
	}
}
