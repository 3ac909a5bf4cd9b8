// Package cli provides the command-line interface for the scanner.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spread-scanner/internal/config"
	"spread-scanner/internal/logging"
	"spread-scanner/internal/marketdata"
	"spread-scanner/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Provider marketdata.Provider
	Store    store.DataStore
}

// NewRootCmd creates the root command for the CLI. configDir is the
// directory the configuration was loaded from; the position database lives
// next to config.toml so --config relocates both.
func NewRootCmd(cfg config.Config, logger zerolog.Logger, configDir string) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	dbPath := filepath.Join(configDir, "scanner.db")
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, history will be unavailable")
	} else {
		app.Store = dataStore
	}

	rootCmd := &cobra.Command{
		Use:   "spreadscan",
		Short: "Vertical spread scanner gated by index divergence",
		Long: `spreadscan screens an equity universe through four ordered layers --
fundamentals, mean reversion, option Greeks and expected value -- and emits
ranked vertical spread signals. Scanning only goes live when the equal-weight
vs cap-weight index divergence crosses its threshold.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/spread-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addScanCommands(rootCmd, app)
	addPositionCommands(rootCmd, app)
	addWatchCommand(rootCmd, app)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("spreadscan " + Version)
		},
	}
}
