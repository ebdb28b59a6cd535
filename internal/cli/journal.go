package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"yield-pilot/internal/errors"
	"yield-pilot/internal/models"
	"yield-pilot/internal/store"
)

// newJournalCmd creates the journal command group for querying the audit
// trail.
func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the decision and trade audit trail",
		Long:  "Query decisions and trades recorded by previous control-loop sessions.",
	}

	cmd.AddCommand(newJournalDecisionsCmd(app))
	cmd.AddCommand(newJournalTradesCmd(app))

	return cmd
}

func newJournalDecisionsCmd(app *App) *cobra.Command {
	var limit int
	var sessionID string
	var decisionType string

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recorded decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.ErrDatabaseError
			}

			records, err := app.Store.GetDecisions(cmd.Context(), store.DecisionFilter{
				SessionID: sessionID,
				Type:      models.DecisionType(decisionType),
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Dim("No decisions recorded")
				return nil
			}

			table := NewTable(output, "TIME", "TYPE", "CONF", "ACTIONS", "MODE", "REASONING")
			for _, rec := range records {
				table.AddRow(
					rec.Decision.Timestamp.Format("2006-01-02 15:04:05"),
					string(rec.Decision.Type),
					fmt.Sprintf("%.2f", rec.Decision.Confidence),
					fmt.Sprintf("%d", len(rec.Decision.Actions)),
					string(rec.Context.Mode),
					truncate(rec.Decision.Reasoning, 60),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of decisions")
	cmd.Flags().StringVar(&sessionID, "session", "", "filter by session ID")
	cmd.Flags().StringVar(&decisionType, "type", "", "filter by decision type (hold, enter, rebalance, exit)")

	return cmd
}

func newJournalTradesCmd(app *App) *cobra.Command {
	var limit int
	var status string

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List recorded trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.ErrDatabaseError
			}

			trades, err := app.Store.GetTrades(cmd.Context(), store.TradeFilter{
				Status: models.TradeStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Dim("No trades recorded")
				return nil
			}

			table := NewTable(output, "TIME", "ID", "STATUS", "VALUE", "APPROVER", "TX/ERROR")
			for _, trade := range trades {
				detail := trade.TxID
				if trade.Error != "" {
					detail = trade.Error
				}
				table.AddRow(
					trade.Timestamp.Format("2006-01-02 15:04:05"),
					truncate(trade.ID, 8),
					tradeStatusCell(output, trade.Status),
					FormatUSD(trade.EstimatedValueUsd),
					trade.ApprovedBy,
					truncate(detail, 40),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of trades")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, approved, rejected, executing, completed, failed)")

	return cmd
}

func tradeStatusCell(output *Output, status models.TradeStatus) string {
	switch status {
	case models.TradeCompleted:
		return output.Green(string(status))
	case models.TradeFailed, models.TradeRejected:
		return output.Red(string(status))
	default:
		return output.Yellow(string(status))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
