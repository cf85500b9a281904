package readiness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeService struct {
	trigger *Trigger
	err     error
}

func (f fakeService) Evaluate(context.Context, string) (*Trigger, error) {
	return f.trigger, f.err
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *recordingReporter) CaptureError(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckBeforeStartFailsOpen(t *testing.T) {
	rep := &recordingReporter{}
	ev := NewEvaluator(fakeService{err: errors.New("service unavailable")}, quietLogger(), rep)

	if got := ev.CheckBeforeStart(context.Background(), "user-1"); got != nil {
		t.Fatalf("expected nil trigger on failure, got %+v", got)
	}
	if len(rep.errs) != 1 || rep.tags[0]["component"] != "readiness" {
		t.Fatalf("expected failure reported once, got %v", rep.errs)
	}
}

func TestCheckBeforeStartNoReasons(t *testing.T) {
	ev := NewEvaluator(fakeService{trigger: &Trigger{AdjustmentPercentage: -10}}, quietLogger(), nil)
	if got := ev.CheckBeforeStart(context.Background(), "user-1"); got != nil {
		t.Fatalf("expected nil for empty reasons")
	}
	if got := NewEvaluator(nil, nil, nil).CheckBeforeStart(context.Background(), "user-1"); got != nil {
		t.Fatalf("expected nil from default service")
	}
}

func TestCheckBeforeStartReturnsCopy(t *testing.T) {
	src := &Trigger{Reasons: []string{"low HRV", "poor sleep"}, AdjustmentPercentage: -15, RecommendedAction: "reduce volume"}
	ev := NewEvaluator(fakeService{trigger: src}, quietLogger(), nil)

	got := ev.CheckBeforeStart(context.Background(), "user-1")
	if got == nil || len(got.Reasons) != 2 || got.Reasons[0] != "low HRV" {
		t.Fatalf("unexpected trigger %+v", got)
	}
	got.Reasons[0] = "changed"
	if src.Reasons[0] != "low HRV" {
		t.Fatalf("trigger reasons shared with service")
	}
}

func TestGateApproveAndRejectBothStartUnadjusted(t *testing.T) {
	trig := &Trigger{Reasons: []string{"high fatigue"}, AdjustmentPercentage: -20}

	for _, answer := range []func(*Gate) Decision{(*Gate).Approve, (*Gate).Reject} {
		g := NewGate(trig)
		if !g.Pending() {
			t.Fatalf("expected pending gate")
		}
		if _, ok := g.Decision(); ok {
			t.Fatalf("expected no decision yet")
		}
		d := answer(g)
		if !d.Start || d.Adjusted {
			t.Fatalf("expected unadjusted start, got %+v", d)
		}
		if d.Trigger != trig {
			t.Fatalf("expected trigger carried on decision")
		}
		if g.Pending() {
			t.Fatalf("expected gate resolved")
		}
	}
}

func TestGateFirstAnswerWins(t *testing.T) {
	g := NewGate(&Trigger{Reasons: []string{"x"}})
	g.Reject()
	if d := g.Approve(); d.Response != ResponseRejected {
		t.Fatalf("expected first answer kept, got %s", d.Response)
	}
}

func TestGateWithoutTrigger(t *testing.T) {
	g := NewGate(nil)
	d, ok := g.Decision()
	if !ok || !d.Start || d.Response != ResponseNone {
		t.Fatalf("expected immediate start, got %+v", d)
	}
}

func TestHTTPServiceStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/readiness/fresh":
			w.WriteHeader(http.StatusNoContent)
		case "/readiness/tired":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"reasons":["resting HR elevated"],"adjustment_percentage":-10,"recommended_action":"easy day"}`))
		case "/readiness/garbled":
			_, _ = w.Write([]byte(`{`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL+"/", time.Second)
	ctx := context.Background()

	if trig, err := svc.Evaluate(ctx, "fresh"); err != nil || trig != nil {
		t.Fatalf("expected no trigger, got %+v %v", trig, err)
	}
	trig, err := svc.Evaluate(ctx, "tired")
	if err != nil || trig == nil || trig.AdjustmentPercentage != -10 || trig.RecommendedAction != "easy day" {
		t.Fatalf("unexpected trigger %+v %v", trig, err)
	}
	if _, err := svc.Evaluate(ctx, "garbled"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := svc.Evaluate(ctx, "other"); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestHTTPServiceTimeoutFailsOpen(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ev := NewEvaluator(NewHTTPService(srv.URL, 5*time.Second), quietLogger(), nil)
	start := time.Now()
	if got := ev.CheckBeforeStart(ctx, "user-1"); got != nil {
		t.Fatalf("expected fail open")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not honored")
	}
}

func TestHTTPServiceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPService("http://127.0.0.1:1", time.Second).Evaluate(ctx, "u"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
