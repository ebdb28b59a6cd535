package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yield-pilot/internal/errors"
	"yield-pilot/internal/models"
)

// PaperExecutor implements Executor for dry runs and tests. Fills are
// simulated in-process; no funds move anywhere.
type PaperExecutor struct {
	mu         sync.Mutex
	txCounter  int
	latency    time.Duration
	failures   []error // consumed one per call
	executions []Execution
}

// Execution records one simulated executor call.
type Execution struct {
	Timestamp time.Time
	Actions   []models.RebalanceAction
	Options   Options
	TxIDs     []string
	Err       error
}

// NewPaperExecutor creates a new paper executor.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

// SetLatency makes every execution take at least d of wall-clock time.
func (p *PaperExecutor) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// FailNext queues err to be returned by the next ExecuteActions call.
// Multiple queued failures are consumed in order.
func (p *PaperExecutor) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, err)
}

// ExecuteActions implements Executor with a simulated fill.
func (p *PaperExecutor) ExecuteActions(ctx context.Context, actions []models.RebalanceAction, opts Options) ([]string, error) {
	p.mu.Lock()
	latency := p.latency
	var failure error
	if len(p.failures) > 0 {
		failure = p.failures[0]
		p.failures = p.failures[1:]
	}
	p.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failure != nil {
		p.record(actions, opts, nil, failure)
		return nil, errors.NewExecutionError("", "simulated execution failure", failure)
	}

	if len(actions) == 0 {
		err := errors.NewExecutionError("", "no actions to execute", nil)
		p.record(actions, opts, nil, err)
		return nil, err
	}

	txIDs := make([]string, 0, len(actions))
	p.mu.Lock()
	for range actions {
		p.txCounter++
		txIDs = append(txIDs, fmt.Sprintf("paper-tx-%06d", p.txCounter))
	}
	p.mu.Unlock()

	p.record(actions, opts, txIDs, nil)
	return txIDs, nil
}

func (p *PaperExecutor) record(actions []models.RebalanceAction, opts Options, txIDs []string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executions = append(p.executions, Execution{
		Timestamp: time.Now(),
		Actions:   actions,
		Options:   opts,
		TxIDs:     txIDs,
		Err:       err,
	})
}

// Executions returns a copy of the recorded execution history.
func (p *PaperExecutor) Executions() []Execution {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Execution, len(p.executions))
	copy(out, p.executions)
	return out
}
