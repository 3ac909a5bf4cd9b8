package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	scanerrors "spread-scanner/internal/errors"
)

func addWatchCommand(rootCmd *cobra.Command, app *App) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scan cycles on a schedule until interrupted",
		Long: `watch runs the full scan cycle on a fixed schedule. Each cycle
re-evaluates the trigger first; inactive cycles log the divergence and skip
the universe. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, _ := cmd.Flags().GetString("schedule")
			snapshotPath, _ := cmd.Flags().GetString("snapshot")

			c := cron.New()
			runOnce := func() {
				ctx := cmd.Context()
				result, err := runCycle(ctx, app, snapshotPath)
				if err != nil {
					app.Logger.Error().Err(err).Msg("Scan cycle failed")
					return
				}

				if result.NoTrigger {
					app.Logger.Info().
						Float64("spread", result.Trigger.Spread).
						Msg("Trigger inactive, universe not scanned")
					return
				}

				if app.Store != nil && len(result.Signals) > 0 {
					cycleID := uuid.NewString()
					if err := app.Store.SaveSignals(ctx, cycleID, result.Signals); err != nil {
						app.Logger.Warn().Err(err).Msg("Failed to persist signals")
					}
				}

				app.Logger.Info().
					Int("signals", len(result.Signals)).
					Int("scanned", len(result.Diagnostics)).
					Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
					Msg("Scan cycle complete")
				printResult(cmd, result, false)
			}

			if _, err := c.AddFunc(schedule, runOnce); err != nil {
				return scanerrors.NewConfigError("schedule", schedule, "invalid cron expression")
			}

			app.Logger.Info().Str("schedule", schedule).Msg("Watching")
			runOnce()
			c.Start()
			defer c.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
				app.Logger.Info().Msg("Shutting down")
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	watchCmd.Flags().String("schedule", "@every 15m", "cron schedule for scan cycles")
	watchCmd.Flags().String("snapshot", "", "scan an offline market snapshot (JSON)")
	rootCmd.AddCommand(watchCmd)
}
