package cli

import (
	"bufio"
	"io"
	"strings"

	"yield-pilot/internal/controller"
	"yield-pilot/internal/models"
)

// readLines forwards input lines to the channel until EOF, then closes it.
func readLines(r io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

// dispatchControl runs one interactive control line against the live session.
// Returns true when the operator asked to quit.
func dispatchControl(ctrl *controller.Controller, output *Output, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "status":
		printStatus(output, ctrl.GetState())
	case "mode":
		if len(args) != 1 {
			output.Error("usage: mode <manual|monitoring|autonomous>")
			return false
		}
		if err := ctrl.SetMode(models.Mode(args[0])); err != nil {
			output.Error("%v", err)
		}
	case "approve":
		if len(args) != 1 {
			output.Error("usage: approve <trade-id>")
			return false
		}
		if err := ctrl.ApproveTrade(args[0], "operator"); err != nil {
			output.Error("%v", err)
		}
	case "reject":
		if len(args) == 0 {
			output.Error("usage: reject <trade-id> [reason]")
			return false
		}
		reason := "rejected by operator"
		if len(args) > 1 {
			reason = strings.Join(args[1:], " ")
		}
		if err := ctrl.RejectTrade(args[0], reason); err != nil {
			output.Error("%v", err)
		}
	case "pause":
		reason := "paused by operator"
		if len(args) > 0 {
			reason = strings.Join(args, " ")
		}
		ctrl.Pause(reason)
	case "resume":
		ctrl.Resume()
	case "emergency-stop":
		reason := "operator emergency stop"
		if len(args) > 0 {
			reason = strings.Join(args, " ")
		}
		ctrl.EmergencyStop(reason)
	case "help":
		printControlHelp(output)
	case "quit", "exit":
		return true
	default:
		output.Error("unknown command %q, type 'help'", name)
	}
	return false
}

func printControlHelp(output *Output) {
	output.Println("Commands:")
	output.Println("  status                      session counters and pending trades")
	output.Println("  mode <m>                    switch to manual, monitoring, or autonomous")
	output.Println("  approve <trade-id>          approve a pending trade")
	output.Println("  reject <trade-id> [reason]  reject a pending trade")
	output.Println("  pause [reason]              pause queueing and execution")
	output.Println("  resume                      clear the pause")
	output.Println("  emergency-stop [reason]     pause immediately, explicit resume required")
	output.Println("  quit                        stop the session and exit")
}

// printStatus renders the session counters and open trades.
func printStatus(output *Output, state models.TradingState) {
	output.Bold("Session %s", state.SessionID)
	output.Printf("  Mode:            %s\n", state.Mode)
	if state.Paused {
		output.Warning("  Paused:          %s", state.PauseReason)
	}
	output.Printf("  Portfolio:       %s (drawdown %.1f%%)\n",
		FormatUSD(state.Portfolio.TotalValue()), state.CurrentDrawdown)
	output.Printf("  Trades today:    %d (%s)\n", state.TradesExecutedToday, FormatUSD(state.TotalVolumeToday))
	output.Printf("  Loss streak:     %d\n", state.ConsecutiveLosses)

	var open []models.PendingTrade
	for _, trade := range state.PendingTrades {
		if !trade.Status.Terminal() {
			open = append(open, trade)
		}
	}
	if len(open) == 0 {
		output.Dim("  No open trades")
		return
	}

	output.Println()
	table := NewTable(output, "TRADE", "STATUS", "VALUE", "ACTIONS")
	for _, trade := range open {
		table.AddRow(
			trade.ID,
			string(trade.Status),
			FormatUSD(trade.EstimatedValueUsd),
			strings.Join(actionLabels(trade.Actions), ", "),
		)
	}
	table.Render()
}

func actionLabels(actions []models.RebalanceAction) []string {
	labels := make([]string, 0, len(actions))
	for _, action := range actions {
		switch {
		case action.From != nil:
			labels = append(labels, string(action.Type)+" "+action.From.Protocol+"/"+action.From.Asset)
		case action.To != nil:
			labels = append(labels, string(action.Type)+" "+action.To.Protocol+"/"+action.To.Asset)
		default:
			labels = append(labels, string(action.Type))
		}
	}
	return labels
}
