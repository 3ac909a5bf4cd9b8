package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/marketdata"
	"spread-scanner/internal/models"
	"spread-scanner/internal/scanner"
	"spread-scanner/internal/store"
	"spread-scanner/pkg/utils"
)

func addScanCommands(rootCmd *cobra.Command, app *App) {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle and print ranked signals",
		Example: `  spreadscan scan --snapshot data/snapshot.json
  spreadscan scan --snapshot data/snapshot.json --diagnostics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotPath, _ := cmd.Flags().GetString("snapshot")
			showDiagnostics, _ := cmd.Flags().GetBool("diagnostics")
			asJSON, _ := cmd.Flags().GetBool("json")

			result, err := runCycle(cmd.Context(), app, snapshotPath)
			if err != nil {
				return err
			}

			if app.Store != nil && len(result.Signals) > 0 {
				cycleID := uuid.NewString()
				if err := app.Store.SaveSignals(cmd.Context(), cycleID, result.Signals); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to persist signals")
				}
			}

			if asJSON {
				return printJSON(cmd, result)
			}
			printResult(cmd, result, showDiagnostics)
			return nil
		},
	}
	scanCmd.Flags().String("snapshot", "", "scan an offline market snapshot (JSON)")
	scanCmd.Flags().Bool("diagnostics", false, "print per-instrument elimination reasons")
	rootCmd.AddCommand(scanCmd)

	triggerCmd := &cobra.Command{
		Use:   "trigger",
		Short: "Show the current index divergence and trigger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotPath, _ := cmd.Flags().GetString("snapshot")
			provider, _, err := buildProvider(app, snapshotPath)
			if err != nil {
				return err
			}

			monitor := scanner.NewTriggerMonitor(provider, app.Config.Trigger, time.Now)
			state, err := monitor.Compute(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, state)
			}
			status := "INACTIVE"
			if state.Active {
				status = "ACTIVE"
			}
			cmd.Printf("%s/%s spread: %+.2f%% (threshold %.2f%%) -> %s\n",
				app.Config.Trigger.EqualWeightIndex, app.Config.Trigger.CapWeightIndex,
				state.Spread, app.Config.Trigger.Threshold, status)
			return nil
		},
	}
	triggerCmd.Flags().String("snapshot", "", "compute from an offline market snapshot (JSON)")
	rootCmd.AddCommand(triggerCmd)
}

// runCycle wires the provider stack and executes one orchestrated cycle.
func runCycle(ctx context.Context, app *App, snapshotPath string) (*scanner.Result, error) {
	provider, universe, err := buildProvider(app, snapshotPath)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		universe = app.Config.Scan.Universe
	}

	orch := scanner.NewOrchestrator(provider, app.Config, app.Logger, time.Now)

	// Concentration limits count the stored open book.
	if app.Store != nil {
		open, err := app.Store.GetPositions(ctx, store.PositionFilter{State: string(models.PositionOpened)})
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to load open positions")
		} else {
			orch.SetOpenPositions(open)
		}
	}

	return orch.RunCycle(ctx, universe)
}

// buildProvider assembles resilience and caching around the data source.
func buildProvider(app *App, snapshotPath string) (marketdata.Provider, []string, error) {
	var base marketdata.Provider
	var universe []string

	switch {
	case snapshotPath != "":
		snap, err := marketdata.LoadSnapshot(snapshotPath)
		if err != nil {
			return nil, nil, err
		}
		sp := marketdata.NewSnapshotProvider(snap)
		base = sp
		universe = sp.Universe()
	case app.Provider != nil:
		base = app.Provider
	default:
		return nil, nil, scanerrors.Wrap(scanerrors.ErrConfigInvalid, "no market data source: pass --snapshot or configure a provider")
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = app.Config.Data.RetryMaxAttempts

	resilient := marketdata.NewResilient(base, app.Config.Data.RateLimitPerHour, retry)
	cache := marketdata.NewCache(app.Config.Data.CacheTTL(), nil)
	return marketdata.NewCached(resilient, cache, nil), universe, nil
}

func printResult(cmd *cobra.Command, result *scanner.Result, showDiagnostics bool) {
	status := "inactive"
	if result.Trigger.Active {
		status = "active"
	}
	cmd.Printf("Trigger: %+.2f%% (%s)\n", result.Trigger.Spread, status)

	if result.NoTrigger {
		cmd.Println("No trigger: strategy is not live, universe was not scanned.")
		return
	}

	if len(result.Signals) == 0 {
		cmd.Println("Zero signals found.")
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tID\tSYMBOL\tKIND\tSHORT/LONG\tDTE\tEV%\tPOP\tR/R\tSIZE")
		for _, sig := range result.Signals {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f/%.0f\t%d\t%.1f%%\t%.0f%%\t%.2f\t$%.0f\n",
				sig.Rank, shortID(sig.ID), sig.Symbol, sig.Spread.Kind,
				sig.Spread.Short.Strike, sig.Spread.Long.Strike,
				sig.Spread.DTE, sig.EVPercent*100, sig.POP*100, sig.RiskReward, sig.PositionSize)
		}
		w.Flush()
	}

	if showDiagnostics {
		cmd.Println("\nDiagnostics:")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tOUTCOME\tREASON")
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.Symbol, d.Outcome, d.Reason)
		}
		w.Flush()
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(raw))
	return nil
}
