package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"yield-pilot/internal/config"
	"yield-pilot/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-08-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.AuditStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize SQLite audit store
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = filepath.Join(config.DefaultConfigDir(), "audit.db")
	}
	auditStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize audit store, journal will be unavailable")
	} else {
		app.Store = auditStore
		logger.Debug().Str("path", dbPath).Msg("Audit store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "yieldpilot",
		Short: "Yield Pilot - supervised DeFi yield control loop",
		Long: `Yield Pilot is a supervised control loop for DeFi yield positions.

It scores yield opportunities across five risk factors, decides when moving
capital is worth it, and executes trades behind approval gates and circuit
breakers. Three operating modes: manual (suggest only), monitoring (detailed
alerts), and autonomous (gated execution).

Use 'yieldpilot help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/yield-pilot)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScoreCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Yield Pilot v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Strategy Configuration")
	output.Printf("  Risk Tolerance:    %s\n", cfg.Strategy.RiskTolerance)
	output.Printf("  Rebalance Thresh:  %.2f pct points\n", cfg.Strategy.RebalanceThreshold)
	output.Printf("  Max Concentration: %.0f%%\n", cfg.Strategy.MaxProtocolConcentration*100)
	output.Printf("  Max Slippage:      %d bps\n", cfg.Strategy.MaxSlippageBps)
	output.Println()

	output.Bold("Controller Configuration")
	output.Printf("  Mode:              %s\n", cfg.Controller.Mode)
	output.Printf("  Decision Interval: %s\n", cfg.Controller.DecisionInterval)
	output.Printf("  Trade Cooldown:    %s\n", cfg.Controller.MinTimeBetweenTrades)
	output.Printf("  Daily Volume Cap:  %s\n", FormatUSD(cfg.Controller.MaxDailyTradesUsd))
	output.Printf("  Max Losses:        %d\n", cfg.Controller.MaxConsecutiveLosses)
	output.Printf("  Max Drawdown:      %.1f%%\n", cfg.Controller.MaxDrawdownPercent)
	output.Printf("  Approval Above:    %s\n", FormatUSD(cfg.Controller.RequireApprovalAboveUsd))
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:              %s\n", cfg.Store.Path)
}
