package controller

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-pilot/internal/config"
	"yield-pilot/internal/errors"
	"yield-pilot/internal/executor"
	"yield-pilot/internal/models"
	"yield-pilot/internal/source"
)

func testControllerConfig() config.ControllerConfig {
	return config.ControllerConfig{
		Mode:                    string(models.ModeAutonomous),
		DecisionInterval:        time.Hour, // ticks are driven manually in tests
		MinTimeBetweenTrades:    0,
		MaxDailyTradesUsd:       100_000,
		MaxConsecutiveLosses:    2,
		MaxDrawdownPercent:      10,
		RequireApprovalAboveUsd: 1_000,
	}
}

func testStrategy() models.StrategyConfig {
	return models.StrategyConfig{
		RiskTolerance:            models.ToleranceMedium,
		RebalanceThreshold:       1.0,
		MaxProtocolConcentration: 1.0,
		MaxSlippageBps:           50,
	}
}

func testOpportunities() []models.YieldOpportunity {
	return []models.YieldOpportunity{
		{Protocol: "kamino", Asset: "USDC", APY: 8.0, BaseAPY: 7.0, RewardAPY: 1.0, TVLUsd: 200_000_000},
		{Protocol: "marinade", Asset: "MSOL", APY: 7.0, BaseAPY: 7.0, TVLUsd: 900_000_000},
	}
}

func newTestController(t *testing.T, cfg config.ControllerConfig, portfolio models.Portfolio) (*Controller, *source.StaticSource, *executor.PaperExecutor) {
	t.Helper()

	src := source.NewStaticSource(testOpportunities(), portfolio)
	paper := executor.NewPaperExecutor()

	ctrl, err := New(cfg, testStrategy(), Deps{
		Yields:    src,
		Portfolio: src,
		Executor:  paper,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	ctrl.state.Active = true
	ctrl.state.Mode = models.Mode(cfg.Mode)
	ctrl.state.SessionID = uuid.NewString()
	ctrl.state.CounterDay = time.Now().Format("2006-01-02")
	return ctrl, src, paper
}

func approvedTrade(valueUsd float64) models.PendingTrade {
	return models.PendingTrade{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actions: []models.RebalanceAction{
			{
				Type:     models.ActionWithdraw,
				From:     &models.ActionTarget{Protocol: "marinade", Asset: "MSOL", Amount: valueUsd},
				ValueUsd: valueUsd,
			},
			{
				Type:     models.ActionDeposit,
				To:       &models.ActionTarget{Protocol: "kamino", Asset: "USDC"},
				ValueUsd: valueUsd,
			},
		},
		EstimatedValueUsd: valueUsd,
		Status:            models.TradeApproved,
		ApprovedAt:        time.Now(),
		ApprovedBy:        "test",
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testControllerConfig()
	cfg.DecisionInterval = 0

	src := source.NewStaticSource(nil, models.Portfolio{})
	_, err := New(cfg, testStrategy(), Deps{Yields: src, Portfolio: src, Logger: zerolog.Nop()})

	var verr *errors.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestQueueTradesAutoApprovesBelowThreshold(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	// Manual mode so auto-approval does not dispatch execution.
	ctrl.state.Mode = models.ModeManual

	ctrl.queueTrades(models.Decision{
		ID:   uuid.NewString(),
		Type: models.DecisionRebalance,
		Actions: []models.RebalanceAction{
			{
				Type:     models.ActionWithdraw,
				From:     &models.ActionTarget{Protocol: "marinade", Asset: "MSOL"},
				ValueUsd: 500,
			},
			{
				Type:     models.ActionDeposit,
				To:       &models.ActionTarget{Protocol: "kamino", Asset: "USDC"},
				ValueUsd: 500,
			},
		},
	})

	state := ctrl.GetState()
	require.Len(t, state.PendingTrades, 1)

	trade := state.PendingTrades[0]
	assert.False(t, trade.RequiresApproval)
	assert.Equal(t, models.TradeApproved, trade.Status)
	assert.Equal(t, "auto", trade.ApprovedBy)
	assert.InDelta(t, 500, trade.EstimatedValueUsd, 1e-9)
}

func TestQueueTradesRequiresApprovalAboveThreshold(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.Mode = models.ModeManual

	ctrl.queueTrades(models.Decision{
		ID:   uuid.NewString(),
		Type: models.DecisionRebalance,
		Actions: []models.RebalanceAction{
			{
				Type:     models.ActionWithdraw,
				From:     &models.ActionTarget{Protocol: "marinade", Asset: "MSOL"},
				ValueUsd: 5_000,
			},
			{
				Type:     models.ActionDeposit,
				To:       &models.ActionTarget{Protocol: "kamino", Asset: "USDC"},
				ValueUsd: 5_000,
			},
		},
	})

	state := ctrl.GetState()
	require.Len(t, state.PendingTrades, 1)

	trade := state.PendingTrades[0]
	assert.True(t, trade.RequiresApproval)
	assert.Equal(t, models.TradePending, trade.Status)
	// The withdraw/deposit pair moves capital once.
	assert.InDelta(t, 5_000, trade.EstimatedValueUsd, 1e-9)
	assert.Len(t, trade.Actions, 2)
}

func TestQueueTradesConcurrentWithConfigUpdate(t *testing.T) {
	// The approval threshold is read while queueing and written by
	// UpdateConfig; both must go through the mutex. Run under -race.
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.Mode = models.ModeManual

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			threshold := float64(500 + i)
			assert.NoError(t, ctrl.UpdateConfig(ConfigUpdate{RequireApprovalAboveUsd: &threshold}))
		}
	}()

	for i := 0; i < 200; i++ {
		ctrl.queueTrades(models.Decision{
			ID:   uuid.NewString(),
			Type: models.DecisionRebalance,
			Actions: []models.RebalanceAction{
				{
					Type:     models.ActionDeposit,
					To:       &models.ActionTarget{Protocol: "kamino", Asset: "USDC"},
					ValueUsd: 600,
				},
			},
		})
	}
	<-done

	assert.Len(t, ctrl.GetState().PendingTrades, 200)
}

func TestGroupActionsPairsWithdrawWithDeposit(t *testing.T) {
	actions := []models.RebalanceAction{
		{Type: models.ActionWithdraw, From: &models.ActionTarget{Protocol: "a"}},
		{Type: models.ActionDeposit, To: &models.ActionTarget{Protocol: "b"}},
		{Type: models.ActionWithdraw, From: &models.ActionTarget{Protocol: "c"}},
		{Type: models.ActionDeposit, To: &models.ActionTarget{Protocol: "b"}},
	}

	groups := groupActions(actions)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 2)

	// A lone deposit forms its own group.
	groups = groupActions(actions[1:2])
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 1)
}

func TestApproveTradeErrors(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	err := ctrl.ApproveTrade("nope", "operator")
	assert.True(t, errors.Is(err, errors.ErrTradeNotFound))

	trade := approvedTrade(5_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	err = ctrl.ApproveTrade(trade.ID, "operator")
	var verr *errors.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestRejectTradeIsTerminal(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	trade := approvedTrade(5_000)
	trade.Status = models.TradePending
	trade.ApprovedBy = ""
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	require.NoError(t, ctrl.RejectTrade(trade.ID, "too risky"))

	state := ctrl.GetState()
	assert.Equal(t, models.TradeRejected, state.PendingTrades[0].Status)
	assert.Equal(t, "too risky", state.PendingTrades[0].Error)

	// Rejection is terminal, the trade cannot be approved afterwards.
	err := ctrl.ApproveTrade(trade.ID, "operator")
	assert.Error(t, err)
}

func TestExecuteTradeSuccess(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.ConsecutiveLosses = 1

	trade := approvedTrade(5_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	ctrl.executeTrade(trade.ID)

	state := ctrl.GetState()
	got := state.PendingTrades[0]
	assert.Equal(t, models.TradeCompleted, got.Status)
	assert.NotEmpty(t, got.TxID)
	assert.False(t, got.ExecutedAt.IsZero())

	assert.Equal(t, 1, state.TradesExecutedToday)
	assert.InDelta(t, 5_000, state.TotalVolumeToday, 1e-9)
	assert.Equal(t, 0, state.ConsecutiveLosses, "a completed trade resets the loss streak")
	assert.False(t, state.LastTradeTime.IsZero())
}

func TestExecuteTradeFailureTripsBreakerAtLimit(t *testing.T) {
	ctrl, _, paper := newTestController(t, testControllerConfig(), models.Portfolio{})

	first := approvedTrade(2_000)
	second := approvedTrade(2_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, first, second)

	paper.FailNext(errors.NewDataError("rpc", "connection reset", nil))
	ctrl.executeTrade(first.ID)

	state := ctrl.GetState()
	assert.Equal(t, models.TradeFailed, state.PendingTrades[0].Status)
	assert.Equal(t, 1, state.ConsecutiveLosses)
	assert.False(t, state.Paused, "one loss must not trip the breaker")

	paper.FailNext(errors.NewDataError("rpc", "connection reset", nil))
	ctrl.executeTrade(second.ID)

	state = ctrl.GetState()
	assert.Equal(t, 2, state.ConsecutiveLosses)
	assert.True(t, state.Paused)
	assert.Equal(t, "Circuit breaker: 2 consecutive losses", state.PauseReason)
}

func TestExecuteTradeDailyCapFailsTrade(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.TotalVolumeToday = 96_000

	trade := approvedTrade(5_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	ctrl.executeTrade(trade.ID)

	state := ctrl.GetState()
	assert.Equal(t, models.TradeFailed, state.PendingTrades[0].Status)
	assert.Equal(t, "daily volume limit exceeded", state.PendingTrades[0].Error)
	assert.False(t, state.Paused)
	assert.InDelta(t, 96_000, state.TotalVolumeToday, 1e-9, "a blocked trade adds no volume")
	assert.Equal(t, 0, state.TradesExecutedToday)
}

func TestExecuteTradeCooldownKeepsApproved(t *testing.T) {
	cfg := testControllerConfig()
	cfg.MinTimeBetweenTrades = 5 * time.Minute
	ctrl, _, _ := newTestController(t, cfg, models.Portfolio{})
	ctrl.state.LastTradeTime = time.Now()

	trade := approvedTrade(5_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	ctrl.executeTrade(trade.ID)

	state := ctrl.GetState()
	assert.Equal(t, models.TradeApproved, state.PendingTrades[0].Status,
		"a deferred trade stays approved for a later attempt")
	assert.Equal(t, 0, state.TradesExecutedToday)
}

func TestExecuteTradeResetsCountersOnNewDay(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.CounterDay = "2020-01-01"
	ctrl.state.TotalVolumeToday = 99_999
	ctrl.state.TradesExecutedToday = 7

	trade := approvedTrade(5_000)
	ctrl.state.PendingTrades = append(ctrl.state.PendingTrades, trade)

	ctrl.executeTrade(trade.ID)

	state := ctrl.GetState()
	assert.Equal(t, models.TradeCompleted, state.PendingTrades[0].Status)
	assert.Equal(t, 1, state.TradesExecutedToday)
	assert.InDelta(t, 5_000, state.TotalVolumeToday, 1e-9)
	assert.Equal(t, time.Now().Format("2006-01-02"), state.CounterDay)
}

func TestRunTickSkipsWhenPaused(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.Paused = true

	ctrl.runTick(context.Background())

	assert.True(t, ctrl.GetState().LastDecisionTime.IsZero())
}

func TestRunTickAbortsOnYieldFetchFailure(t *testing.T) {
	ctrl, src, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	// Seed a snapshot, then make the feed fail.
	require.True(t, ctrl.refreshYields(context.Background()))
	snapshot := ctrl.GetState().CurrentYields
	require.NotEmpty(t, snapshot)

	src.FailYields(errors.NewDataError("defillama", "timeout", nil))
	ctrl.runTick(context.Background())

	state := ctrl.GetState()
	assert.True(t, state.LastDecisionTime.IsZero(), "a failed fetch aborts the tick")
	assert.Equal(t, len(snapshot), len(state.CurrentYields), "previous snapshot is retained")
}

func TestRunTickManualModeQueuesNothing(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})
	ctrl.state.Mode = models.ModeManual

	ctrl.runTick(context.Background())

	state := ctrl.GetState()
	assert.False(t, state.LastDecisionTime.IsZero())
	assert.Empty(t, state.PendingTrades)
}

func TestRunTickAutonomousExecutesEnterTrade(t *testing.T) {
	// Empty portfolio: the engine proposes entering the best opportunity.
	ctrl, _, paper := newTestController(t, testControllerConfig(), models.Portfolio{})

	ctrl.runTick(context.Background())
	ctrl.execWG.Wait()

	state := ctrl.GetState()
	require.Len(t, state.PendingTrades, 1)
	assert.Equal(t, models.TradeCompleted, state.PendingTrades[0].Status)
	assert.Equal(t, 1, state.TradesExecutedToday)
	require.Len(t, paper.Executions(), 1)
}

func TestPauseResumeEmergencyStop(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	ctrl.Pause("manual hold")
	state := ctrl.GetState()
	assert.True(t, state.Paused)
	assert.Equal(t, "manual hold", state.PauseReason)

	// Idempotent, last reason wins.
	ctrl.Pause("second reason")
	assert.Equal(t, "second reason", ctrl.GetState().PauseReason)

	ctrl.Resume()
	state = ctrl.GetState()
	assert.False(t, state.Paused)
	assert.Empty(t, state.PauseReason)

	ctrl.EmergencyStop("depeg detected")
	state = ctrl.GetState()
	assert.True(t, state.Paused)
	assert.Equal(t, "EMERGENCY: depeg detected", state.PauseReason)
}

func TestSetMode(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	err := ctrl.SetMode("turbo")
	var verr *errors.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	require.NoError(t, ctrl.SetMode(models.ModeMonitoring))
	assert.Equal(t, models.ModeMonitoring, ctrl.GetState().Mode)
}

func TestUpdateConfigPartial(t *testing.T) {
	ctrl, _, _ := newTestController(t, testControllerConfig(), models.Portfolio{})

	interval := 30 * time.Second
	require.NoError(t, ctrl.UpdateConfig(ConfigUpdate{DecisionInterval: &interval}))

	cfg := ctrl.GetConfig()
	assert.Equal(t, interval, cfg.DecisionInterval)
	assert.InDelta(t, 100_000, cfg.MaxDailyTradesUsd, 1e-9, "untouched fields are preserved")

	bad := -time.Second
	err := ctrl.UpdateConfig(ConfigUpdate{DecisionInterval: &bad})
	require.Error(t, err)
	assert.Equal(t, interval, ctrl.GetConfig().DecisionInterval, "invalid updates change nothing")
}

func TestRefreshPortfolioTracksDrawdown(t *testing.T) {
	portfolio := models.Portfolio{Positions: []models.Position{
		{Protocol: "kamino", Asset: "USDC", ValueUsd: 100_000, CurrentAPY: 8},
	}}
	ctrl, src, _ := newTestController(t, testControllerConfig(), portfolio)

	require.NoError(t, ctrl.refreshPortfolio(context.Background()))
	state := ctrl.GetState()
	assert.InDelta(t, 100_000, state.PeakValue, 1e-9)
	assert.InDelta(t, 0, state.CurrentDrawdown, 1e-9)

	// A 5% decline stays under the 10% limit.
	src.SetPortfolio(models.Portfolio{Positions: []models.Position{
		{Protocol: "kamino", Asset: "USDC", ValueUsd: 95_000, CurrentAPY: 8},
	}})
	require.NoError(t, ctrl.refreshPortfolio(context.Background()))
	state = ctrl.GetState()
	assert.InDelta(t, 5.0, state.CurrentDrawdown, 1e-9)
	assert.False(t, state.Paused)

	// A 12% decline trips the breaker.
	src.SetPortfolio(models.Portfolio{Positions: []models.Position{
		{Protocol: "kamino", Asset: "USDC", ValueUsd: 88_000, CurrentAPY: 8},
	}})
	require.NoError(t, ctrl.refreshPortfolio(context.Background()))
	state = ctrl.GetState()
	assert.InDelta(t, 12.0, state.CurrentDrawdown, 1e-9)
	assert.True(t, state.Paused)
	assert.Contains(t, state.PauseReason, "Circuit breaker: drawdown")

	// Peak never decreases.
	assert.InDelta(t, 100_000, state.PeakValue, 1e-9)
}

func TestStartStopLifecycle(t *testing.T) {
	src := source.NewStaticSource(testOpportunities(), models.Portfolio{})
	ctrl, err := New(testControllerConfig(), testStrategy(), Deps{
		Yields:    src,
		Portfolio: src,
		Executor:  executor.NewPaperExecutor(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.True(t, errors.Is(ctrl.Stop(), errors.ErrNotRunning))

	require.NoError(t, ctrl.Start(context.Background()))
	state := ctrl.GetState()
	assert.True(t, state.Active)
	assert.NotEmpty(t, state.SessionID)
	assert.NotEmpty(t, state.CurrentYields, "initial snapshot is loaded on start")

	assert.True(t, errors.Is(ctrl.Start(context.Background()), errors.ErrAlreadyRunning))

	require.NoError(t, ctrl.Stop())
	assert.False(t, ctrl.GetState().Active)
}
