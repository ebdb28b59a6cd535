package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"yield-pilot/internal/source"
)

// newScoreCmd creates the score command. It ranks the opportunities in a
// fixtures file without starting the control loop.
func newScoreCmd(app *App) *cobra.Command {
	var fixturesPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score and rank yield opportunities",
		Long: `Score yield opportunities from a fixtures file across the five risk
factors and print them ranked by adjusted APY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			src, err := source.LoadFile(fixturesPath)
			if err != nil {
				return err
			}
			ranked, err := src.FetchRankedYields(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(ranked)
			}

			output.Bold("Ranked Opportunities (%d)", len(ranked))
			output.Println()

			table := NewTable(output, "#", "PROTOCOL", "ASSET", "APY", "ADJ APY", "RISK", "SHARPE", "TIER")
			for i, opp := range ranked {
				table.AddRow(
					fmt.Sprintf("%d", i+1),
					opp.Protocol,
					opp.Asset,
					fmt.Sprintf("%.2f%%", opp.APY),
					fmt.Sprintf("%.2f%%", opp.AdjustedAPY),
					fmt.Sprintf("%d", opp.Risk.Overall),
					fmt.Sprintf("%.2f", opp.SharpeRatio),
					output.Tier(string(opp.Tier)),
				)
			}
			table.Render()

			if verbose {
				output.Println()
				for _, opp := range ranked {
					if len(opp.Risk.Warnings) == 0 && len(opp.Risk.Positives) == 0 {
						continue
					}
					output.Bold("%s/%s", opp.Protocol, opp.Asset)
					if len(opp.Risk.Warnings) > 0 {
						output.Warning("  warnings: %s", strings.Join(opp.Risk.Warnings, "; "))
					}
					if len(opp.Risk.Positives) > 0 {
						output.Success("  positives: %s", strings.Join(opp.Risk.Positives, "; "))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "path to JSON fixtures file (required)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show per-opportunity warnings and positives")
	cmd.MarkFlagRequired("fixtures")

	return cmd
}
