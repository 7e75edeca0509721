package cli

import (
	"context"
	"fmt"

	"github.com/starexec/jobview/internal/api"
	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/events"
	"github.com/starexec/jobview/internal/jobview"
	"github.com/starexec/jobview/internal/pathutil"
)

// loadConfig merges the config file, the environment, the token file and the
// global flags, in increasing priority.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return nil, err
	}

	key := apiKey
	if key == "" && tokenFile != "" {
		path, err := pathutil.ExpandHome(tokenFile)
		if err != nil {
			return nil, err
		}
		key, err = config.ReadTokenFile(path)
		if err != nil {
			return nil, err
		}
	}
	cfg.MergeWithFlags(key, serverURL, jobID, proxyMode, "", 0)
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client for the job
// named by --job or the config.
func getAPIClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateForJob(); err != nil {
		return nil, nil, fmt.Errorf("%w (use --job, --api-key or 'jobview config init')", err)
	}

	client, err := api.NewClient(cfg, api.WithLogger(GetLogger()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, cfg, nil
}

// newController creates a view controller for the configured job. Fetch
// outcomes are published on a bus whose events are logged until ctx ends.
func newController(ctx context.Context, client *api.Client, cfg *config.Config) *jobview.Controller {
	bus := events.NewEventBus(0)
	stop := watchFetchEvents(bus, GetLogger())
	go func() {
		<-ctx.Done()
		stop()
		bus.Close()
	}()
	return jobview.New(client, cfg.JobID, jobview.OptionsFromConfig(cfg), GetLogger(), bus)
}
