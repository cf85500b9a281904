package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var ErrUnexpectedStatus = errors.New("unexpected readiness status")

// HTTPService calls GET {base}/readiness/{userID}. 204 means no trigger.
type HTTPService struct {
	baseURL string
	timeout time.Duration
}

func NewHTTPService(baseURL string, timeout time.Duration) *HTTPService {
	return &HTTPService{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (s *HTTPService) Evaluate(ctx context.Context, userID string) (*Trigger, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, context.DeadlineExceeded
	}

	agent := fiber.Get(s.baseURL + "/readiness/" + url.PathEscape(userID))
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("readiness request: %w", errors.Join(errs...))
	}

	switch code {
	case fiber.StatusNoContent:
		return nil, nil
	case fiber.StatusOK:
		var t Trigger
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("decode readiness trigger: %w", err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
}
