// Package telemetry reports errors the service swallows (fail-open paths) or
// returns as 5xx to Sentry.
package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter is the capture surface the rest of the code depends on.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
}

type Nop struct{}

func (Nop) CaptureError(error, map[string]string) {}

type SentryReporter struct {
	hub *sentry.Hub
	log *slog.Logger
}

// New builds a reporter with its own hub. An empty DSN yields a client that
// drops events, so callers never need a nil check.
func New(cfg Config, logger *slog.Logger) (*SentryReporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Warn("sentry DSN not configured, error tracking disabled")
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend:  scrubHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return NewWithClient(client, logger), nil
}

func NewWithClient(client *sentry.Client, logger *slog.Logger) *SentryReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope()), log: logger}
}

func (r *SentryReporter) CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
	r.log.Debug("error captured", "error", err)
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

func scrubHeaders(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil && event.Request.Headers != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
	return event
}

// ErrorHandler renders fiber errors as JSON and reports 5xx to the reporter.
func ErrorHandler(logger *slog.Logger, reporter Reporter) fiber.ErrorHandler {
	if reporter == nil {
		reporter = Nop{}
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
			reporter.CaptureError(err, map[string]string{"method": c.Method(), "route": c.Route().Path})
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
