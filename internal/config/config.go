// Package config provides configuration management for the yield control loop.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"yield-pilot/internal/errors"
	"yield-pilot/internal/logging"
	"yield-pilot/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Controller ControllerConfig `mapstructure:"controller"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Store      StoreConfig      `mapstructure:"store"`
}

// StrategyConfig holds the decision-engine strategy parameters.
type StrategyConfig struct {
	RiskTolerance            string  `mapstructure:"risk_tolerance"`             // low, medium, high
	RebalanceThreshold       float64 `mapstructure:"rebalance_threshold"`        // pct points, floored at 1.0
	MaxProtocolConcentration float64 `mapstructure:"max_protocol_concentration"` // 0-1
	MaxSlippageBps           int     `mapstructure:"max_slippage_bps"`
}

// ControllerConfig holds the trading controller limits and timers.
type ControllerConfig struct {
	Mode                    string        `mapstructure:"mode"` // manual, monitoring, autonomous
	DecisionInterval        time.Duration `mapstructure:"decision_interval"`
	MinTimeBetweenTrades    time.Duration `mapstructure:"min_time_between_trades"`
	MaxTradeValueUsd        float64       `mapstructure:"max_trade_value_usd"` // reserved, not enforced beyond the daily cap
	MaxDailyTradesUsd       float64       `mapstructure:"max_daily_trades_usd"`
	MaxConsecutiveLosses    int           `mapstructure:"max_consecutive_losses"`
	MaxDrawdownPercent      float64       `mapstructure:"max_drawdown_percent"`
	EmergencyExitThreshold  int           `mapstructure:"emergency_exit_threshold"` // reserved, no automatic exit wired
	RequireApprovalAboveUsd float64       `mapstructure:"require_approval_above_usd"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// StoreConfig holds audit store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/yield-pilot"
	}
	return filepath.Join(home, ".config", "yield-pilot")
}

// Default returns the built-in default configuration.
func Default() *Config {
	logCfg := logging.DefaultLogConfig()
	return &Config{
		Strategy: StrategyConfig{
			RiskTolerance:            string(models.ToleranceMedium),
			RebalanceThreshold:       1.0,
			MaxProtocolConcentration: 0.5,
			MaxSlippageBps:           50,
		},
		Controller: ControllerConfig{
			Mode:                    string(models.ModeManual),
			DecisionInterval:        60 * time.Second,
			MinTimeBetweenTrades:    5 * time.Minute,
			MaxTradeValueUsd:        50_000,
			MaxDailyTradesUsd:       100_000,
			MaxConsecutiveLosses:    3,
			MaxDrawdownPercent:      10,
			EmergencyExitThreshold:  85,
			RequireApprovalAboveUsd: 1_000,
		},
		Logging: LoggingConfig{
			Level:      logCfg.Level,
			Console:    logCfg.Console,
			File:       logCfg.File,
			FilePath:   logCfg.FilePath,
			MaxSize:    logCfg.MaxSize,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAge,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "audit.db"),
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A missing config file is not an error; defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("YIELDPILOT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects invalid configuration before any of it is applied.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	return c.Controller.Validate()
}

// Validate checks the strategy parameters.
func (c StrategyConfig) Validate() error {
	if !models.RiskTolerance(c.RiskTolerance).Valid() {
		return errors.NewValidationError("strategy.risk_tolerance", c.RiskTolerance, "must be low, medium, or high")
	}
	if c.RebalanceThreshold < 0 {
		return errors.NewValidationError("strategy.rebalance_threshold", c.RebalanceThreshold, "must not be negative")
	}
	if c.MaxProtocolConcentration <= 0 || c.MaxProtocolConcentration > 1 {
		return errors.NewValidationError("strategy.max_protocol_concentration", c.MaxProtocolConcentration, "must be in (0, 1]")
	}
	if c.MaxSlippageBps < 0 {
		return errors.NewValidationError("strategy.max_slippage_bps", c.MaxSlippageBps, "must not be negative")
	}
	return nil
}

// Validate checks the controller limits.
func (c ControllerConfig) Validate() error {
	if !models.Mode(c.Mode).Valid() {
		return errors.NewValidationError("controller.mode", c.Mode, "must be manual, monitoring, or autonomous")
	}
	if c.DecisionInterval <= 0 {
		return errors.NewValidationError("controller.decision_interval", c.DecisionInterval, "must be positive")
	}
	if c.MinTimeBetweenTrades < 0 {
		return errors.NewValidationError("controller.min_time_between_trades", c.MinTimeBetweenTrades, "must not be negative")
	}
	if c.MaxDailyTradesUsd <= 0 {
		return errors.NewValidationError("controller.max_daily_trades_usd", c.MaxDailyTradesUsd, "must be positive")
	}
	if c.MaxConsecutiveLosses <= 0 {
		return errors.NewValidationError("controller.max_consecutive_losses", c.MaxConsecutiveLosses, "must be positive")
	}
	if c.MaxDrawdownPercent <= 0 || c.MaxDrawdownPercent > 100 {
		return errors.NewValidationError("controller.max_drawdown_percent", c.MaxDrawdownPercent, "must be in (0, 100]")
	}
	if c.RequireApprovalAboveUsd < 0 {
		return errors.NewValidationError("controller.require_approval_above_usd", c.RequireApprovalAboveUsd, "must not be negative")
	}
	return nil
}

// ToStrategy converts the config section to the engine's strategy model.
func (c StrategyConfig) ToStrategy() models.StrategyConfig {
	return models.StrategyConfig{
		RiskTolerance:            models.RiskTolerance(c.RiskTolerance),
		RebalanceThreshold:       c.RebalanceThreshold,
		MaxProtocolConcentration: c.MaxProtocolConcentration,
		MaxSlippageBps:           c.MaxSlippageBps,
	}
}

// ToLogConfig converts the config section to the logging package config.
func (c LoggingConfig) ToLogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Level,
		Console:    c.Console,
		File:       c.File,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}
