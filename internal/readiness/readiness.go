package readiness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Zchasse63/voice-fit-sub006/internal/telemetry"
)

// Trigger is a recommendation to reduce load before a session. A negative
// AdjustmentPercentage means a reduction.
type Trigger struct {
	Reasons              []string `json:"reasons"`
	AdjustmentPercentage float64  `json:"adjustment_percentage"`
	RecommendedAction    string   `json:"recommended_action"`
}

type Service interface {
	Evaluate(ctx context.Context, userID string) (*Trigger, error)
}

// NoopService never recommends an adjustment. Used when no readiness
// endpoint is configured.
type NoopService struct{}

func (NoopService) Evaluate(context.Context, string) (*Trigger, error) { return nil, nil }

type Evaluator struct {
	svc      Service
	log      *slog.Logger
	reporter telemetry.Reporter
}

func NewEvaluator(svc Service, logger *slog.Logger, reporter telemetry.Reporter) *Evaluator {
	if svc == nil {
		svc = NoopService{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = telemetry.Nop{}
	}
	return &Evaluator{svc: svc, log: logger, reporter: reporter}
}

// CheckBeforeStart fails open: any service error yields nil so the run can
// start. The caller owns the timeout.
func (e *Evaluator) CheckBeforeStart(ctx context.Context, userID string) *Trigger {
	trigger, err := e.svc.Evaluate(ctx, userID)
	if err != nil {
		e.log.Warn("readiness check failed, starting without adjustment", "user_id", userID, "error", err)
		e.reporter.CaptureError(err, map[string]string{"component": "readiness"})
		return nil
	}
	if trigger == nil || len(trigger.Reasons) == 0 {
		return nil
	}
	out := *trigger
	out.Reasons = append([]string(nil), trigger.Reasons...)
	return &out
}

type Response string

const (
	ResponseNone     Response = "none"
	ResponseApproved Response = "approved"
	ResponseRejected Response = "rejected"
)

// Decision is how a gated start resolved. The adjustment is shown to the
// runner but never applied to segment targets, so Adjusted is always false.
type Decision struct {
	Start    bool     `json:"start"`
	Adjusted bool     `json:"adjusted"`
	Response Response `json:"response"`
	Trigger  *Trigger `json:"trigger,omitempty"`
}

// Gate holds a start until the runner answers a trigger.
type Gate struct {
	mu       sync.Mutex
	trigger  *Trigger
	decision *Decision
}

// NewGate resolves immediately when trigger is nil.
func NewGate(trigger *Trigger) *Gate {
	g := &Gate{trigger: trigger}
	if trigger == nil {
		g.decision = &Decision{Start: true, Response: ResponseNone}
	}
	return g
}

func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision == nil
}

func (g *Gate) Trigger() *Trigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trigger
}

func (g *Gate) Approve() Decision { return g.resolve(ResponseApproved) }

func (g *Gate) Reject() Decision { return g.resolve(ResponseRejected) }

// Decision returns the resolution, false while still pending.
func (g *Gate) Decision() (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decision == nil {
		return Decision{}, false
	}
	return *g.decision, true
}

// resolve is first-answer-wins.
func (g *Gate) resolve(r Response) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decision == nil {
		g.decision = &Decision{Start: true, Adjusted: false, Response: r, Trigger: g.trigger}
	}
	return *g.decision
}
