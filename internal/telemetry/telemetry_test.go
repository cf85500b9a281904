package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
)

type captured struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *captured) before(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newCapturingReporter(t *testing.T) (*SentryReporter, *captured) {
	t.Helper()
	sink := &captured{}
	client, err := sentry.NewClient(sentry.ClientOptions{BeforeSend: sink.before})
	if err != nil {
		t.Fatalf("sentry client: %v", err)
	}
	return NewWithClient(client, slog.New(slog.NewTextHandler(io.Discard, nil))), sink
}

func TestCaptureErrorTagsEvent(t *testing.T) {
	r, sink := newCapturingReporter(t)
	r.CaptureError(errors.New("readiness down"), map[string]string{"component": "readiness"})
	r.CaptureError(nil, nil)

	if sink.count() != 1 {
		t.Fatalf("expected one event, got %d", sink.count())
	}
	if sink.events[0].Tags["component"] != "readiness" {
		t.Fatalf("expected component tag, got %v", sink.events[0].Tags)
	}
}

func TestNewWithoutDSN(t *testing.T) {
	r, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r.CaptureError(errors.New("dropped"), nil)
}

func TestScrubHeaders(t *testing.T) {
	ev := &sentry.Event{Request: &sentry.Request{Headers: map[string]string{"Authorization": "Bearer x", "Accept": "*/*"}}}
	out := scrubHeaders(ev, nil)
	if _, ok := out.Request.Headers["Authorization"]; ok {
		t.Fatalf("authorization header not scrubbed")
	}
	if out.Request.Headers["Accept"] == "" {
		t.Fatalf("unexpected header removed")
	}
}

func TestErrorHandlerReportsServerErrors(t *testing.T) {
	r, sink := newCapturingReporter(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, r)})
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "nope") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/bad", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if sink.count() != 1 {
		t.Fatalf("expected only the 500 reported, got %d", sink.count())
	}
}
