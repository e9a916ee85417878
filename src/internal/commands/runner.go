package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

// RestartableRunner keeps a long-running function alive. Errors and panics
// restart it after an exponential backoff; a nil return or a cancelled
// context stops it.
type RestartableRunner struct {
	name           string
	runFunc        func(ctx context.Context) error
	maxRestarts    int
	restartBackoff time.Duration
	maxBackoff     time.Duration

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	lastError    error
	restartCount int
}

type RunnerConfig struct {
	Name           string
	MaxRestarts    int           // 0 = unlimited
	RestartBackoff time.Duration // default 1s
	MaxBackoff     time.Duration // default 30s
}

func NewRestartableRunner(cfg RunnerConfig, runFunc func(ctx context.Context) error) *RestartableRunner {
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &RestartableRunner{
		name:           cfg.Name,
		runFunc:        runFunc,
		maxRestarts:    cfg.MaxRestarts,
		restartBackoff: cfg.RestartBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Start launches the run loop in a goroutine.
func (r *RestartableRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%s is already running", r.name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.restartCount = 0
	r.lastError = nil

	go r.loop(runCtx, r.done)
	return nil
}

// Stop cancels the run loop and waits up to 30s for it to exit.
func (r *RestartableRunner) Stop() error {
	r.mu.RLock()
	running, cancel, done := r.running, r.cancel, r.done
	r.mu.RUnlock()
	if !running {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		return fmt.Errorf("%s: timeout waiting for stop", r.name)
	}
	return nil
}

func (r *RestartableRunner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *RestartableRunner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastError
}

func (r *RestartableRunner) RestartCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restartCount
}

func (r *RestartableRunner) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(done)
	}()

	backoff := r.restartBackoff
	for {
		err := r.runOnce(ctx)

		r.mu.Lock()
		r.lastError = err
		r.mu.Unlock()

		if ctx.Err() != nil {
			log.Infof("%s: stopped", r.name)
			return
		}
		if err == nil {
			log.Infof("%s: exited cleanly", r.name)
			return
		}

		r.mu.Lock()
		r.restartCount++
		count := r.restartCount
		r.mu.Unlock()

		if r.maxRestarts > 0 && count >= r.maxRestarts {
			log.Errorf("%s: max restarts (%d) reached, giving up. Last error: %v", r.name, r.maxRestarts, err)
			return
		}

		log.Errorf("%s: failed: %v. Restarting in %v (restart #%d)", r.name, err, backoff, count)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

func (r *RestartableRunner) runOnce(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return r.runFunc(ctx)
}
