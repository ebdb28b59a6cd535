package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yield-pilot/internal/config"
	"yield-pilot/internal/engine"
	"yield-pilot/internal/errors"
	"yield-pilot/internal/executor"
	"yield-pilot/internal/models"
	"yield-pilot/internal/scheduler"
	"yield-pilot/internal/source"
	"yield-pilot/internal/store"
	"yield-pilot/internal/stream"
)

// The portfolio refresh cadence is fixed; only the decision interval is
// operator-configurable.
const portfolioRefreshSchedule = "@every 30s"

// dailyResetSchedule resets the session counters at midnight.
const dailyResetSchedule = "0 0 0 * * *"

// Deps holds the controller's injected collaborators.
type Deps struct {
	Yields    source.YieldSource
	Portfolio source.PortfolioSource
	Executor  executor.Executor
	Audit     store.AuditStore // optional; best-effort when set
	Hub       *stream.Hub      // optional; created when nil
	Logger    zerolog.Logger
}

// Controller is the stateful orchestrator of the yield control loop. It
// pulls fresh opportunities and portfolio snapshots on a timer, runs the
// decision engine, and depending on its mode either only alerts or queues
// trades through the approval and safety gates.
//
// All shared state is guarded by a single mutex; an external approval call
// and the controller's own auto-execution path can race on the same trade.
// At most one trade executes at a time.
type Controller struct {
	engine *engine.Engine
	deps   Deps
	hub    *stream.Hub
	log    zerolog.Logger

	mu        sync.Mutex
	cfg       config.ControllerConfig
	strategy  models.StrategyConfig
	state     models.TradingState
	executing bool

	runCtx context.CancelFunc
	execWG sync.WaitGroup
	loopWG sync.WaitGroup
	sched  *scheduler.Scheduler

	now func() time.Time
}

// New creates a controller. Configuration is validated before any state is
// created; an invalid config is rejected synchronously.
func New(cfg config.ControllerConfig, strategy models.StrategyConfig, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Yields == nil {
		return nil, errors.NewValidationError("deps.yields", nil, "yield source is required")
	}
	if deps.Portfolio == nil {
		return nil, errors.NewValidationError("deps.portfolio", nil, "portfolio source is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = stream.NewHub()
	}

	return &Controller{
		engine:   engine.New(),
		deps:     deps,
		hub:      hub,
		log:      deps.Logger.With().Str("component", "controller").Logger(),
		cfg:      cfg,
		strategy: strategy,
		now:      time.Now,
	}, nil
}

// Hub returns the event hub; consumers subscribe here.
func (c *Controller) Hub() *stream.Hub {
	return c.hub
}

// Start loads the initial snapshots and starts the decision and
// portfolio-refresh loops.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Active {
		c.mu.Unlock()
		return errors.ErrAlreadyRunning
	}

	now := c.now()
	c.state = models.TradingState{
		Mode:       models.Mode(c.cfg.Mode),
		Active:     true,
		SessionID:  uuid.NewString(),
		CounterDay: now.Format("2006-01-02"),
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = cancel
	interval := c.cfg.DecisionInterval
	c.mu.Unlock()

	c.hub.Start()

	// Initial snapshots are best-effort; the loops retry every tick.
	c.refreshYields(runCtx)
	c.refreshPortfolio(runCtx)

	c.sched = scheduler.New(c.log)
	if err := c.sched.AddJob(portfolioRefreshSchedule, scheduler.NewJobFunc("portfolio_refresh", func() error {
		return c.refreshPortfolio(runCtx)
	})); err != nil {
		return err
	}
	if err := c.sched.AddJob(dailyResetSchedule, scheduler.NewJobFunc("daily_reset", func() error {
		c.mu.Lock()
		c.rollDayLocked(c.now())
		c.mu.Unlock()
		return nil
	})); err != nil {
		return err
	}
	c.sched.Start()

	c.loopWG.Add(1)
	go c.decisionLoop(runCtx, interval)

	c.log.Info().
		Str("session_id", c.GetState().SessionID).
		Str("mode", c.cfg.Mode).
		Dur("decision_interval", interval).
		Msg("Controller started")
	return nil
}

// Stop cancels both loops. A trade already executing is allowed to finish;
// it is not forcibly aborted.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.state.Active {
		c.mu.Unlock()
		return errors.ErrNotRunning
	}
	c.state.Active = false
	cancel := c.runCtx
	c.mu.Unlock()

	cancel()
	c.sched.Stop()
	c.loopWG.Wait()
	c.hub.Stop()

	c.log.Info().Msg("Controller stopped")
	return nil
}

// decisionLoop ticks at the configured decision interval. The interval is
// re-read every iteration so UpdateConfig takes effect on the next tick.
func (c *Controller) decisionLoop(ctx context.Context, interval time.Duration) {
	defer c.loopWG.Done()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.runTick(ctx)
			c.mu.Lock()
			next := c.cfg.DecisionInterval
			c.mu.Unlock()
			timer.Reset(next)
		}
	}
}

// runTick is one decision-loop iteration. Skipped entirely while inactive
// or paused. A failed yield fetch aborts the tick; the previous snapshot is
// retained and the fetch retried next tick.
func (c *Controller) runTick(ctx context.Context) {
	c.mu.Lock()
	if !c.state.Active || c.state.Paused {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.refreshYields(ctx) {
		return
	}

	c.mu.Lock()
	portfolio := c.state.Portfolio
	yields := make([]models.RiskAdjustedOpportunity, len(c.state.CurrentYields))
	copy(yields, c.state.CurrentYields)
	strategy := c.strategy
	mode := c.state.Mode
	c.mu.Unlock()

	decision := c.engine.Decide(portfolio, yields, strategy)

	c.mu.Lock()
	c.state.LastDecisionTime = c.now()
	c.mu.Unlock()

	c.emit(stream.EventDecision, map[string]interface{}{
		"decision_id": decision.ID,
		"type":        string(decision.Type),
		"confidence":  decision.Confidence,
		"actions":     len(decision.Actions),
		"reasoning":   decision.Reasoning,
	})

	switch mode {
	case models.ModeManual:
		if decision.HasActions() {
			c.emit(stream.EventAlert, map[string]interface{}{
				"kind":        "decision",
				"decision_id": decision.ID,
				"type":        string(decision.Type),
				"summary":     decision.Reasoning,
			})
		}
	case models.ModeMonitoring:
		c.emit(stream.EventAlert, map[string]interface{}{
			"kind":           "decision",
			"decision_id":    decision.ID,
			"type":           string(decision.Type),
			"confidence":     decision.Confidence,
			"reasoning":      decision.Reasoning,
			"actions":        actionSummaries(decision.Actions),
			"risk_current":   decision.Risk.CurrentRiskScore,
			"risk_proposed":  decision.Risk.ProposedRiskScore,
			"risk_change":    string(decision.Risk.Change),
			"portfolio_usd":  portfolio.TotalValue(),
			"opportunities":  len(yields),
		})
	case models.ModeAutonomous:
		c.queueTrades(decision)
	}

	c.auditDecision(&decision, portfolio.TotalValue())

	if mode == models.ModeAutonomous {
		c.executeApproved(ctx)
	}
}

// refreshYields pulls the ranked opportunity set. Returns false on failure;
// the previous snapshot stays in place.
func (c *Controller) refreshYields(ctx context.Context) bool {
	started := c.now()
	ranked, err := c.deps.Yields.FetchRankedYields(ctx)
	if err != nil {
		c.log.Warn().Err(err).Dur("duration", c.now().Sub(started)).
			Msg("Yield fetch failed, retaining previous snapshot")
		return false
	}

	c.mu.Lock()
	c.state.CurrentYields = ranked
	c.mu.Unlock()

	c.emit(stream.EventYieldUpdate, map[string]interface{}{
		"count": len(ranked),
	})
	return true
}

// refreshPortfolio pulls the portfolio snapshot and recomputes the peak
// value and drawdown. Exceeding the drawdown limit trips the breaker
// independently of the decision loop.
func (c *Controller) refreshPortfolio(ctx context.Context) error {
	portfolio, err := c.deps.Portfolio.FetchPortfolio(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Portfolio fetch failed, retaining previous snapshot")
		return nil
	}

	total := portfolio.TotalValue()

	c.mu.Lock()
	c.state.Portfolio = portfolio
	if total > c.state.PeakValue {
		c.state.PeakValue = total
	}
	if c.state.PeakValue > 0 {
		c.state.CurrentDrawdown = (c.state.PeakValue - total) / c.state.PeakValue * 100
	}
	drawdown := c.state.CurrentDrawdown
	trip := drawdown > c.cfg.MaxDrawdownPercent && !c.state.Paused
	var reason string
	if trip {
		reason = fmt.Sprintf("Circuit breaker: drawdown %.1f%% exceeds %.1f%% limit",
			drawdown, c.cfg.MaxDrawdownPercent)
		c.pauseLocked(reason)
	}
	c.mu.Unlock()

	c.emit(stream.EventPortfolioUpdate, map[string]interface{}{
		"total_value": total,
		"drawdown":    drawdown,
	})
	if trip {
		c.emit(stream.EventCircuitBreaker, map[string]interface{}{
			"reason": reason,
		})
	}
	return nil
}

// queueTrades turns a decision's actions into pending trades. A withdraw and
// its matching deposit queue as one trade so they execute atomically.
func (c *Controller) queueTrades(decision models.Decision) {
	if !decision.HasActions() {
		return
	}

	for _, group := range groupActions(decision.Actions) {
		trade := models.PendingTrade{
			ID:                uuid.NewString(),
			Timestamp:         c.now(),
			Actions:           group,
			EstimatedValueUsd: estimateValue(group),
			Status:            models.TradePending,
		}
		c.mu.Lock()
		trade.RequiresApproval = trade.EstimatedValueUsd > c.cfg.RequireApprovalAboveUsd
		c.state.PendingTrades = append(c.state.PendingTrades, trade)
		c.mu.Unlock()

		c.emit(stream.EventTradeQueued, map[string]interface{}{
			"trade_id":          trade.ID,
			"estimated_value":   trade.EstimatedValueUsd,
			"requires_approval": trade.RequiresApproval,
			"actions":           actionSummaries(trade.Actions),
		})
		c.auditTrade(trade)

		if !trade.RequiresApproval {
			if err := c.ApproveTrade(trade.ID, "auto"); err != nil {
				c.log.Error().Err(err).Str("trade_id", trade.ID).Msg("Auto-approval failed")
			}
		}
	}
}

// ApproveTrade approves a pending trade. In autonomous mode approval
// immediately dispatches execution.
func (c *Controller) ApproveTrade(id, approver string) error {
	c.mu.Lock()
	trade := c.findTradeLocked(id)
	if trade == nil {
		c.mu.Unlock()
		return errors.ErrTradeNotFound
	}
	if trade.Status != models.TradePending {
		status := trade.Status
		c.mu.Unlock()
		return errors.NewValidationError("status", string(status), "only pending trades can be approved")
	}
	trade.Status = models.TradeApproved
	trade.ApprovedAt = c.now()
	trade.ApprovedBy = approver
	snapshot := *trade
	autonomous := c.state.Mode == models.ModeAutonomous
	c.mu.Unlock()

	c.emit(stream.EventTradeApproved, map[string]interface{}{
		"trade_id": id,
		"approver": approver,
	})
	c.auditTrade(snapshot)

	if autonomous {
		c.execWG.Add(1)
		go func() {
			defer c.execWG.Done()
			c.executeTrade(id)
		}()
	}
	return nil
}

// RejectTrade rejects a pending trade. Rejection is terminal.
func (c *Controller) RejectTrade(id, reason string) error {
	c.mu.Lock()
	trade := c.findTradeLocked(id)
	if trade == nil {
		c.mu.Unlock()
		return errors.ErrTradeNotFound
	}
	if trade.Status != models.TradePending {
		status := trade.Status
		c.mu.Unlock()
		return errors.NewValidationError("status", string(status), "only pending trades can be rejected")
	}
	trade.Status = models.TradeRejected
	trade.Error = reason
	snapshot := *trade
	c.mu.Unlock()

	c.emit(stream.EventAlert, map[string]interface{}{
		"kind":     "trade_rejected",
		"trade_id": id,
		"reason":   reason,
	})
	c.auditTrade(snapshot)
	return nil
}

// executeApproved attempts execution of every approved trade. Trades inside
// the cooldown window stay approved and are retried on a later tick.
func (c *Controller) executeApproved(ctx context.Context) {
	c.mu.Lock()
	var ids []string
	for i := range c.state.PendingTrades {
		if c.state.PendingTrades[i].Status == models.TradeApproved {
			ids = append(ids, c.state.PendingTrades[i].ID)
		}
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	c.execWG.Add(1)
	go func() {
		defer c.execWG.Done()
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.executeTrade(id)
		}
	}()
}

// executeTrade runs an approved trade through the execution gate and, if it
// passes, hands it to the executor. At most one trade executes at a time;
// concurrent callers leave the trade approved for a later attempt.
//
// The executor call deliberately does not use the run context: a trade
// already executing finishes even through Stop. The executor enforces its
// own timeout.
func (c *Controller) executeTrade(id string) {
	now := c.now()

	c.mu.Lock()
	trade := c.findTradeLocked(id)
	if trade == nil || trade.Status != models.TradeApproved {
		c.mu.Unlock()
		return
	}
	if c.executing {
		c.mu.Unlock()
		return
	}

	c.rollDayLocked(now)

	gate := CheckGate(c.cfg, GateState{
		TotalVolumeToday:    c.state.TotalVolumeToday,
		TradesExecutedToday: c.state.TradesExecutedToday,
		ConsecutiveLosses:   c.state.ConsecutiveLosses,
		LastTradeTime:       c.state.LastTradeTime,
		CurrentDrawdown:     c.state.CurrentDrawdown,
		Paused:              c.state.Paused,
	}, trade.EstimatedValueUsd, now)

	if gate.Defer {
		c.mu.Unlock()
		c.log.Debug().Str("trade_id", id).Str("reason", gate.BlockReason).Msg("Execution deferred")
		return
	}
	if !gate.Allow {
		trade.Status = models.TradeFailed
		trade.Error = gate.BlockReason
		if gate.TripBreaker {
			c.pauseLocked(gate.BreakerReason)
		}
		snapshot := *trade
		c.mu.Unlock()

		if gate.TripBreaker {
			c.emit(stream.EventCircuitBreaker, map[string]interface{}{
				"reason": gate.BreakerReason,
			})
		}
		c.emit(stream.EventTradeFailed, map[string]interface{}{
			"trade_id": id,
			"reason":   gate.BlockReason,
		})
		c.auditTrade(snapshot)
		return
	}

	trade.Status = models.TradeExecuting
	c.executing = true
	actions := make([]models.RebalanceAction, len(trade.Actions))
	copy(actions, trade.Actions)
	estimated := trade.EstimatedValueUsd
	maxSlippage := c.strategy.MaxSlippageBps
	c.mu.Unlock()

	var txIDs []string
	var err error
	if c.deps.Executor == nil {
		err = errors.NewExecutionError(id, "no executor configured", nil)
	} else {
		txIDs, err = c.deps.Executor.ExecuteActions(context.Background(), actions, executor.Options{
			MaxSlippageBps: maxSlippage,
		})
	}

	c.finishExecution(id, estimated, txIDs, err)
}

// finishExecution applies the result of an executor call to the trade and
// the session counters.
func (c *Controller) finishExecution(id string, estimated float64, txIDs []string, execErr error) {
	now := c.now()

	c.mu.Lock()
	c.executing = false
	trade := c.findTradeLocked(id)
	if trade == nil {
		c.mu.Unlock()
		return
	}

	if execErr == nil {
		trade.Status = models.TradeCompleted
		trade.ExecutedAt = now
		trade.TxID = strings.Join(txIDs, ",")
		c.state.TradesExecutedToday++
		c.state.TotalVolumeToday += estimated
		c.state.LastTradeTime = now
		c.state.ConsecutiveLosses = 0
		snapshot := *trade
		c.mu.Unlock()

		c.emit(stream.EventTradeExecuted, map[string]interface{}{
			"trade_id": id,
			"tx_id":    snapshot.TxID,
			"value":    estimated,
		})
		c.auditTrade(snapshot)
		return
	}

	trade.Status = models.TradeFailed
	trade.Error = execErr.Error()
	c.state.ConsecutiveLosses++
	trip := c.state.ConsecutiveLosses >= c.cfg.MaxConsecutiveLosses
	var reason string
	if trip {
		reason = fmt.Sprintf("Circuit breaker: %d consecutive losses", c.state.ConsecutiveLosses)
		c.pauseLocked(reason)
	}
	snapshot := *trade
	c.mu.Unlock()

	c.emit(stream.EventTradeFailed, map[string]interface{}{
		"trade_id": id,
		"reason":   execErr.Error(),
	})
	if trip {
		c.emit(stream.EventCircuitBreaker, map[string]interface{}{
			"reason": reason,
		})
	}
	c.auditTrade(snapshot)
}

// SetMode swaps the operating mode. Entering autonomous mode runs a
// non-blocking safety self-check that only logs; it never blocks the
// transition.
func (c *Controller) SetMode(mode models.Mode) error {
	if !mode.Valid() {
		return errors.NewValidationError("mode", string(mode), "must be manual, monitoring, or autonomous")
	}

	c.mu.Lock()
	from := c.state.Mode
	c.state.Mode = mode
	c.cfg.Mode = string(mode)
	c.mu.Unlock()

	c.emit(stream.EventModeChange, map[string]interface{}{
		"from": string(from),
		"to":   string(mode),
	})

	if mode == models.ModeAutonomous {
		go c.safetySelfCheck()
	}
	return nil
}

// safetySelfCheck verifies the collaborators needed for autonomous
// operation are wired. Findings are logged, nothing more.
func (c *Controller) safetySelfCheck() {
	if c.deps.Executor == nil {
		c.log.Warn().Msg("Safety check: no executor configured, approved trades will fail")
	}
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()
	if err := cfg.Validate(); err != nil {
		c.log.Warn().Err(err).Msg("Safety check: controller config invalid")
	} else {
		c.log.Info().Msg("Safety check passed for autonomous mode")
	}
}

// Pause halts all new queueing and execution. Repeated calls are
// idempotent; the last reason wins.
func (c *Controller) Pause(reason string) {
	c.mu.Lock()
	c.pauseLocked(reason)
	c.mu.Unlock()

	c.emit(stream.EventCircuitBreaker, map[string]interface{}{
		"reason": reason,
		"source": "manual",
	})
}

// pauseLocked sets the pause latch. Callers hold the mutex and emit their
// own event.
func (c *Controller) pauseLocked(reason string) {
	c.state.Paused = true
	c.state.PauseReason = reason
	c.log.Warn().Str("reason", reason).Msg("Controller paused")
}

// Resume clears the pause state. Counters are not reset.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.state.Paused = false
	c.state.PauseReason = ""
	c.mu.Unlock()

	c.emit(stream.EventAlert, map[string]interface{}{
		"kind": "resumed",
	})
	c.log.Info().Msg("Controller resumed")
}

// EmergencyStop pauses immediately and synchronously. It does not cancel an
// execution already in flight; it only blocks new ones. Terminal until an
// explicit Resume.
func (c *Controller) EmergencyStop(reason string) {
	c.mu.Lock()
	c.pauseLocked("EMERGENCY: " + reason)
	c.mu.Unlock()

	c.emit(stream.EventEmergencyStop, map[string]interface{}{
		"reason": reason,
	})
}

// ConfigUpdate is a partial controller config update; nil fields are left
// unchanged. Mode changes go through SetMode.
type ConfigUpdate struct {
	DecisionInterval        *time.Duration
	MinTimeBetweenTrades    *time.Duration
	MaxTradeValueUsd        *float64
	MaxDailyTradesUsd       *float64
	MaxConsecutiveLosses    *int
	MaxDrawdownPercent      *float64
	EmergencyExitThreshold  *int
	RequireApprovalAboveUsd *float64
}

// UpdateConfig applies a partial config update. The merged config is
// validated before anything is applied.
func (c *Controller) UpdateConfig(update ConfigUpdate) error {
	c.mu.Lock()
	merged := c.cfg
	c.mu.Unlock()

	if update.DecisionInterval != nil {
		merged.DecisionInterval = *update.DecisionInterval
	}
	if update.MinTimeBetweenTrades != nil {
		merged.MinTimeBetweenTrades = *update.MinTimeBetweenTrades
	}
	if update.MaxTradeValueUsd != nil {
		merged.MaxTradeValueUsd = *update.MaxTradeValueUsd
	}
	if update.MaxDailyTradesUsd != nil {
		merged.MaxDailyTradesUsd = *update.MaxDailyTradesUsd
	}
	if update.MaxConsecutiveLosses != nil {
		merged.MaxConsecutiveLosses = *update.MaxConsecutiveLosses
	}
	if update.MaxDrawdownPercent != nil {
		merged.MaxDrawdownPercent = *update.MaxDrawdownPercent
	}
	if update.EmergencyExitThreshold != nil {
		merged.EmergencyExitThreshold = *update.EmergencyExitThreshold
	}
	if update.RequireApprovalAboveUsd != nil {
		merged.RequireApprovalAboveUsd = *update.RequireApprovalAboveUsd
	}

	if err := merged.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = merged
	c.mu.Unlock()
	return nil
}

// GetState returns a copy of the current trading state.
func (c *Controller) GetState() models.TradingState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state
	state.PendingTrades = make([]models.PendingTrade, len(c.state.PendingTrades))
	copy(state.PendingTrades, c.state.PendingTrades)
	state.CurrentYields = make([]models.RiskAdjustedOpportunity, len(c.state.CurrentYields))
	copy(state.CurrentYields, c.state.CurrentYields)
	return state
}

// GetConfig returns a copy of the current controller config.
func (c *Controller) GetConfig() config.ControllerConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// rollDayLocked resets the session counters when the calendar day changes.
func (c *Controller) rollDayLocked(now time.Time) {
	day := now.Format("2006-01-02")
	if c.state.CounterDay == day {
		return
	}
	c.state.CounterDay = day
	c.state.TradesExecutedToday = 0
	c.state.TotalVolumeToday = 0
}

// findTradeLocked returns a pointer into the trade history, or nil.
func (c *Controller) findTradeLocked(id string) *models.PendingTrade {
	for i := range c.state.PendingTrades {
		if c.state.PendingTrades[i].ID == id {
			return &c.state.PendingTrades[i]
		}
	}
	return nil
}

// emit publishes a controller event to the hub.
func (c *Controller) emit(eventType stream.EventType, data map[string]interface{}) {
	c.hub.Publish(stream.Event{
		Type:      eventType,
		Timestamp: c.now(),
		Data:      data,
	})
}

// auditDecision records a decision to the audit store. Best-effort.
func (c *Controller) auditDecision(decision *models.Decision, portfolioValue float64) {
	if c.deps.Audit == nil {
		return
	}
	c.mu.Lock()
	dctx := store.DecisionContext{
		SessionID:      c.state.SessionID,
		Mode:           c.state.Mode,
		PortfolioValue: portfolioValue,
	}
	c.mu.Unlock()

	if err := c.deps.Audit.RecordDecision(context.Background(), decision, dctx); err != nil {
		c.log.Warn().Err(err).Str("decision_id", decision.ID).Msg("Audit store write failed")
	}
}

// auditTrade records a trade snapshot to the audit store. Best-effort.
func (c *Controller) auditTrade(trade models.PendingTrade) {
	if c.deps.Audit == nil {
		return
	}
	if err := c.deps.Audit.RecordTrade(context.Background(), &trade); err != nil {
		c.log.Warn().Err(err).Str("trade_id", trade.ID).Msg("Audit store write failed")
	}
}

// groupActions splits a decision's action list into execution groups: a
// withdraw and the deposit that follows it belong to the same group.
func groupActions(actions []models.RebalanceAction) [][]models.RebalanceAction {
	var groups [][]models.RebalanceAction
	for i := 0; i < len(actions); i++ {
		group := []models.RebalanceAction{actions[i]}
		if actions[i].Type == models.ActionWithdraw &&
			i+1 < len(actions) && actions[i+1].Type == models.ActionDeposit {
			group = append(group, actions[i+1])
			i++
		}
		groups = append(groups, group)
	}
	return groups
}

// estimateValue returns the USD value a trade group moves. A withdraw and
// its matching deposit move the same capital, so the pair counts once.
func estimateValue(group []models.RebalanceAction) float64 {
	if len(group) == 2 && group[0].Type == models.ActionWithdraw && group[1].Type == models.ActionDeposit {
		return group[0].ValueUsd
	}
	var value float64
	for _, action := range group {
		value += action.ValueUsd
	}
	return value
}

// actionSummaries renders actions for event payloads.
func actionSummaries(actions []models.RebalanceAction) []string {
	summaries := make([]string, 0, len(actions))
	for _, action := range actions {
		summaries = append(summaries, summarizeAction(action))
	}
	return summaries
}

func summarizeAction(action models.RebalanceAction) string {
	switch {
	case action.From != nil && action.To != nil:
		return string(action.Type) + " " + action.From.Protocol + "/" + action.From.Asset +
			" -> " + action.To.Protocol + "/" + action.To.Asset
	case action.From != nil:
		return string(action.Type) + " " + action.From.Protocol + "/" + action.From.Asset
	case action.To != nil:
		return string(action.Type) + " " + action.To.Protocol + "/" + action.To.Asset
	default:
		return string(action.Type)
	}
}
