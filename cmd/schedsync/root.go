package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"schedsync/internal/category"
	"schedsync/internal/config"
	"schedsync/internal/event"
	"schedsync/internal/filter"
	appLog "schedsync/internal/log"
	"schedsync/internal/remote"
	"schedsync/internal/store"
)

// app bundles everything a subcommand needs. It is built once per process
// in the root command's PersistentPreRunE.
type app struct {
	cfg      *config.Config
	registry *category.Registry
	store    *store.Store
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	cmd := &cobra.Command{
		Use:           "schedsync",
		Short:         "Keep a local schedule cache in sync with the scheduling service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "Path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newFetchCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newExportCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) init(opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", opts.configPath, err)
	}

	appLog.SetFormat(cfg.LogFormat)
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	if opts.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	norm, err := event.NewNormalizer(cfg.FieldMap())
	if err != nil {
		return err
	}

	client := remote.NewClient(remote.Options{
		BaseURL:    cfg.Remote.BaseURL,
		Timeout:    cfg.Remote.Timeout,
		ListPath:   cfg.Remote.ListPath,
		CreatePath: cfg.Remote.CreatePath,
		UpdatePath: cfg.Remote.UpdatePath,
		DeletePath: cfg.Remote.DeletePath,
		Headers:    cfg.Remote.Headers,
	})

	var storeOpts []store.Option
	if cfg.LegacyAddPolicy {
		storeOpts = append(storeOpts, store.WithLegacyAddPolicy())
	}

	a.cfg = cfg
	a.registry = reg
	a.store = store.New(client, filter.New(reg), norm, nil, storeOpts...)

	appLog.Debug("effective config",
		"base_url", cfg.Remote.BaseURL,
		"timeout", cfg.Remote.Timeout,
		"user_id", cfg.UserID,
		"refresh", cfg.RefreshCron,
		"categories", reg.Len(),
		"legacy_add_policy", cfg.LegacyAddPolicy,
	)
	return nil
}

// userID resolves the --user flag against the configured default.
func (a *app) userID(flag string) (event.ID, error) {
	if flag != "" {
		return event.ID(flag), nil
	}
	if a.cfg.UserID != "" {
		return event.ID(a.cfg.UserID), nil
	}
	return "", fmt.Errorf("no user id: pass --user or set user_id in config")
}

func defaultConfigPath() string {
	if p := os.Getenv("SCHEDSYNC_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "schedsync.yaml"
	}
	return filepath.Join(dir, "schedsync", "config.yaml")
}
