package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
	"spread-scanner/internal/store"
	"spread-scanner/internal/tracker"
)

func addPositionCommands(rootCmd *cobra.Command, app *App) {
	positionsCmd := &cobra.Command{
		Use:   "positions",
		Short: "Manage the position lifecycle",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List positions, open first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return scanerrors.Wrap(scanerrors.ErrDataUnavailable, "position store not available")
			}
			state, _ := cmd.Flags().GetString("state")
			limit, _ := cmd.Flags().GetInt("limit")

			positions, err := app.Store.GetPositions(cmd.Context(), store.PositionFilter{
				State: state,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, positions)
			}
			if len(positions) == 0 {
				cmd.Println("No positions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSYMBOL\tKIND\tSTATE\tENTRY\tTARGET\tSTOP\tP&L\tOPENED")
			for _, pos := range positions {
				pnl := pos.UnrealizedPnL
				if pos.State.Closed() {
					pnl = pos.RealizedPnL
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t$%.2f\t$%.0f\t$%.0f\t$%.2f\t%s\n",
					shortID(pos.ID), pos.Signal.Symbol, pos.Signal.Spread.Kind, pos.State,
					pos.EntryPrice, pos.TargetProfit, pos.StopLoss, pnl,
					pos.OpenedAt.Format("2006-01-02"))
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().String("state", "", "filter by lifecycle state")
	listCmd.Flags().Int("limit", 50, "maximum rows")
	positionsCmd.AddCommand(listCmd)

	openCmd := &cobra.Command{
		Use:   "open <signal-id>",
		Short: "Open a position from an emitted signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return scanerrors.Wrap(scanerrors.ErrDataUnavailable, "position store not available")
			}
			entry, _ := cmd.Flags().GetFloat64("entry")

			sig, err := findSignal(cmd, app, args[0])
			if err != nil {
				return err
			}
			if entry == 0 {
				entry = sig.Spread.Net
			}

			tr := newTracker(app)
			pos, err := tr.Open(cmd.Context(), sig, entry)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, pos)
			}
			cmd.Printf("Opened %s %s @ $%.2f (target $%.0f, stop $%.0f)\n",
				pos.Signal.Symbol, pos.Signal.Spread.Kind, pos.EntryPrice,
				pos.TargetProfit, pos.StopLoss)
			cmd.Println("Position ID: " + pos.ID)
			return nil
		},
	}
	openCmd.Flags().Float64("entry", 0, "fill price per share (default: signal net credit/debit)")
	positionsCmd.AddCommand(openCmd)

	markCmd := &cobra.Command{
		Use:   "mark <position-id>",
		Short: "Mark an open position to market and apply exit rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return scanerrors.Wrap(scanerrors.ErrDataUnavailable, "position store not available")
			}
			pnl, _ := cmd.Flags().GetFloat64("pnl")
			dte, _ := cmd.Flags().GetInt("dte")

			tr := newTracker(app)
			if err := tr.Restore(cmd.Context()); err != nil {
				return err
			}

			state, err := tr.MarkToMarket(cmd.Context(), args[0], pnl, dte)
			if err != nil {
				return err
			}

			if state.Closed() {
				cmd.Printf("Position closed: %s (P&L $%.2f)\n", state, pnl)
			} else {
				cmd.Printf("Position remains %s (P&L $%.2f, %d DTE)\n", state, pnl, dte)
			}
			return nil
		},
	}
	markCmd.Flags().Float64("pnl", 0, "current P&L in dollars")
	markCmd.Flags().Int("dte", 0, "days to expiry remaining")
	markCmd.MarkFlagRequired("pnl")
	markCmd.MarkFlagRequired("dte")
	positionsCmd.AddCommand(markCmd)

	rootCmd.AddCommand(positionsCmd)
}

func newTracker(app *App) *tracker.Tracker {
	return tracker.New(app.Store, app.Logger, app.Config.Risk, time.Now)
}

// findSignal resolves a stored signal by full or prefix ID.
func findSignal(cmd *cobra.Command, app *App, id string) (models.Signal, error) {
	signals, err := app.Store.GetSignals(cmd.Context(), store.SignalFilter{})
	if err != nil {
		return models.Signal{}, err
	}
	for _, sig := range signals {
		if sig.ID == id || shortID(sig.ID) == id {
			return sig, nil
		}
	}
	return models.Signal{}, scanerrors.Wrapf(scanerrors.ErrNotFound, "signal %s", id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
