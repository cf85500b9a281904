package location

import (
	"context"
	"sync"
)

// ReplayProvider delivers a recorded list of fixes synchronously on Subscribe.
type ReplayProvider struct {
	Fixes      []Fix
	Permission PermissionStatus

	mu       sync.Mutex
	stopped  bool
	lastOpts SubscribeOptions
}

func NewReplayProvider(fixes []Fix) *ReplayProvider {
	return &ReplayProvider{Fixes: fixes, Permission: PermissionGranted}
}

func (p *ReplayProvider) Subscribe(onFix func(Fix), opts SubscribeOptions) (func(), error) {
	p.mu.Lock()
	p.stopped = false
	p.lastOpts = opts
	p.mu.Unlock()

	for _, fix := range p.Fixes {
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			break
		}
		onFix(fix)
	}
	return p.stop, nil
}

func (p *ReplayProvider) HasPermission() bool {
	return p.Permission == PermissionGranted
}

func (p *ReplayProvider) RequestPermission(_ context.Context) (PermissionStatus, error) {
	return p.Permission, nil
}

// Options returns the options passed to the most recent Subscribe call.
func (p *ReplayProvider) Options() SubscribeOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOpts
}

func (p *ReplayProvider) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}
