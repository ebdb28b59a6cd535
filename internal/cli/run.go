package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yield-pilot/internal/controller"
	"yield-pilot/internal/executor"
	"yield-pilot/internal/models"
	"yield-pilot/internal/source"
	"yield-pilot/internal/store"
	"yield-pilot/internal/stream"
)

// newRunCmd creates the run command. It starts the control loop against a
// fixtures file with the paper executor and streams events to the terminal
// until interrupted.
func newRunCmd(app *App) *cobra.Command {
	var fixturesPath string
	var mode string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the yield control loop",
		Long: `Run the supervised control loop against a fixtures file using the paper
executor. Events stream to the terminal until interrupted with Ctrl-C.

Modes:
  manual      decisions are suggested, nothing is queued
  monitoring  detailed alerts with risk analysis, nothing is queued
  autonomous  trades are queued, gated, and paper-executed

The session accepts interactive commands on stdin: status, mode, approve,
reject, pause, resume, emergency-stop, quit. Type 'help' for details.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			src, err := source.LoadFile(fixturesPath)
			if err != nil {
				return err
			}

			cfg := app.Config.Controller
			if mode != "" {
				cfg.Mode = mode
			}
			if interval > 0 {
				cfg.DecisionInterval = interval
			}

			ctrl, err := controller.New(cfg, app.Config.Strategy.ToStrategy(), controller.Deps{
				Yields:    src,
				Portfolio: src,
				Executor:  executor.NewPaperExecutor(),
				Audit:     app.Store,
				Logger:    app.Logger,
			})
			if err != nil {
				return err
			}

			// Persist every event alongside the terminal stream.
			if app.Store != nil {
				ctrl.Hub().RegisterConsumer(store.NewEventRecorder(app.Store))
			}
			events := ctrl.Hub().Subscribe()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := ctrl.Start(ctx); err != nil {
				return err
			}

			state := ctrl.GetState()
			output.Bold("Yield Pilot running")
			output.Printf("  Session:  %s\n", state.SessionID)
			output.Printf("  Mode:     %s\n", state.Mode)
			output.Printf("  Interval: %s\n", cfg.DecisionInterval)
			output.Dim("Type 'help' for commands, Ctrl-C to stop")
			output.Println()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			lines := make(chan string)
			go readLines(cmd.InOrStdin(), lines)

			shutdown := func() error {
				output.Println()
				output.Info("Stopping...")
				if err := ctrl.Stop(); err != nil {
					return err
				}
				printSessionSummary(output, ctrl.GetState())
				return nil
			}

			for {
				select {
				case <-sigCh:
					return shutdown()
				case line, ok := <-lines:
					if !ok {
						// stdin closed; keep streaming events.
						lines = nil
						continue
					}
					if dispatchControl(ctrl, output, line) {
						return shutdown()
					}
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					printEvent(output, ev)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "path to JSON fixtures file (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "operating mode: manual, monitoring, or autonomous")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "decision interval (default from config)")
	cmd.MarkFlagRequired("fixtures")

	return cmd
}

// printEvent renders a single controller event for the terminal.
func printEvent(output *Output, ev stream.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case stream.EventDecision:
		output.Printf("%s  %s %v (confidence %.2f): %v\n",
			ts, output.Yellow("DECISION"), ev.Data["type"], ev.Data["confidence"], ev.Data["reasoning"])
	case stream.EventTradeQueued:
		output.Printf("%s  %s %v (%s, approval required: %v)\n",
			ts, output.Yellow("QUEUED"), ev.Data["trade_id"],
			FormatUSD(toFloat(ev.Data["estimated_value"])), ev.Data["requires_approval"])
	case stream.EventTradeApproved:
		output.Printf("%s  %s %v by %v\n", ts, output.Green("APPROVED"), ev.Data["trade_id"], ev.Data["approver"])
	case stream.EventTradeExecuted:
		output.Printf("%s  %s %v tx=%v value=%s\n",
			ts, output.Green("EXECUTED"), ev.Data["trade_id"], ev.Data["tx_id"], FormatUSD(toFloat(ev.Data["value"])))
	case stream.EventTradeFailed:
		output.Printf("%s  %s %v: %v\n", ts, output.Red("FAILED"), ev.Data["trade_id"], ev.Data["reason"])
	case stream.EventCircuitBreaker:
		output.Printf("%s  %s %v\n", ts, output.Red("BREAKER"), ev.Data["reason"])
	case stream.EventEmergencyStop:
		output.Printf("%s  %s %v\n", ts, output.Red("EMERGENCY"), ev.Data["reason"])
	case stream.EventModeChange:
		output.Printf("%s  %s %v -> %v\n", ts, output.Yellow("MODE"), ev.Data["from"], ev.Data["to"])
	case stream.EventAlert:
		output.Printf("%s  %s %v\n", ts, output.Yellow("ALERT"), summarizeAlert(ev.Data))
	case stream.EventYieldUpdate:
		output.Dim("%s  yields refreshed (%v opportunities)", ts, ev.Data["count"])
	case stream.EventPortfolioUpdate:
		output.Dim("%s  portfolio %s drawdown %.1f%%", ts,
			FormatUSD(toFloat(ev.Data["total_value"])), toFloat(ev.Data["drawdown"]))
	default:
		output.Dim("%s  %s %v", ts, ev.Type, ev.Data)
	}
}

func summarizeAlert(data map[string]interface{}) string {
	if kind, ok := data["kind"].(string); ok {
		switch kind {
		case "decision":
			return fmt.Sprintf("%v: %v", data["type"], data["reasoning"])
		case "trade_rejected":
			return fmt.Sprintf("trade %v rejected: %v", data["trade_id"], data["reason"])
		case "resumed":
			return "controller resumed"
		}
	}
	return fmt.Sprintf("%v", data)
}

func printSessionSummary(output *Output, state models.TradingState) {
	output.Println()
	output.Bold("Session Summary")
	output.Printf("  Trades executed: %d\n", state.TradesExecutedToday)
	output.Printf("  Volume:          %s\n", FormatUSD(state.TotalVolumeToday))
	output.Printf("  Pending trades:  %d\n", countByStatus(state.PendingTrades, models.TradePending))
	if state.Paused {
		output.Warning("  Paused: %s", state.PauseReason)
	}
}

func countByStatus(trades []models.PendingTrade, status models.TradeStatus) int {
	var n int
	for _, trade := range trades {
		if trade.Status == status {
			n++
		}
	}
	return n
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
