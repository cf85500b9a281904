package location

import (
	"context"
	"errors"
	"fmt"
)

// PermissionStatus mirrors the platform permission states.
type PermissionStatus int

const (
	PermissionUndetermined PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

var (
	ErrPermissionDenied       = errors.New("location permission denied")
	ErrPermissionUndetermined = errors.New("location permission not yet decided")
)

type SubscribeOptions struct {
	MinAccuracyMeters float64
	MinDistanceMeters float64
}

// Provider is the platform location subscription.
type Provider interface {
	Subscribe(onFix func(Fix), opts SubscribeOptions) (unsubscribe func(), err error)
	HasPermission() bool
	RequestPermission(ctx context.Context) (PermissionStatus, error)
}

// EnsurePermission asks for permission if needed. A denial and an undecided
// prompt come back as different errors so callers can offer the right recovery.
func EnsurePermission(ctx context.Context, p Provider) error {
	if p.HasPermission() {
		return nil
	}
	status, err := p.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request location permission: %w", err)
	}
	switch status {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return ErrPermissionDenied
	default:
		return ErrPermissionUndetermined
	}
}
