package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/internal/config"
	"github.com/mangoshelf/libcache/internal/snapshot"
)

var (
	// Global flags.
	configFile   string
	snapshotPath string
	libraryPath  string
	verbose      bool

	// Set by loadConfig before any subcommand runs.
	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "libcache",
	Short: "Inspect and manage the persisted library snapshot",
	Long: `libcache manages the library snapshot that lets the media server skip a
full directory scan on startup.

Settings are read from mango.yml (in ~/.config/mango or the working
directory), MANGO_* environment variables, and the flags below.

Examples:
  # Show what the snapshot contains
  libcache inspect

  # Check the snapshot against the library and the expected title count
  libcache verify --count 1234

  # Remove the snapshot so the next start rescans
  libcache purge`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default mango.yml)")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "snapshot file (overrides "+config.KeySnapshotPath+")")
	rootCmd.PersistentFlags().StringVar(&libraryPath, "library", "", "library root (overrides "+config.KeyLibraryPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag(config.KeySnapshotPath, cmd.Flags().Lookup("snapshot")); err != nil {
		return err
	}
	if err := v.BindPFlag(config.KeyLibraryPath, cmd.Flags().Lookup("library")); err != nil {
		return err
	}

	if cfg, err = config.Load(v); err != nil {
		return err
	}

	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	log.Debug("configuration loaded", zap.Stringer("config", cfg), zap.String("file", v.ConfigFileUsed()))
	return nil
}

func openStore() *snapshot.Store {
	return snapshot.New(cfg.SnapshotPath, nil, log.Named("snapshot"))
}
