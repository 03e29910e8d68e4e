package bidder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Supervisor owns the pause flags for both intake loops and the process
// lifecycle. Shutdown is context cancellation; pausing is cooperative —
// loops read the flags at the top of every iteration.
type Supervisor struct {
	autoPaused atomic.Bool
	semiPaused atomic.Bool
	log        *slog.Logger
}

// NewSupervisor constructs a Supervisor with both loops running.
func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// PauseAuto pauses or resumes the auto loop.
func (s *Supervisor) PauseAuto(paused bool) {
	s.autoPaused.Store(paused)
	s.log.Info("auto loop pause flag changed", "paused", paused)
}

// PauseSemi pauses or resumes the semi loop.
func (s *Supervisor) PauseSemi(paused bool) {
	s.semiPaused.Store(paused)
	s.log.Info("semi loop pause flag changed", "paused", paused)
}

// AutoPaused reports the auto loop pause flag.
func (s *Supervisor) AutoPaused() bool { return s.autoPaused.Load() }

// SemiPaused reports the semi loop pause flag.
func (s *Supervisor) SemiPaused() bool { return s.semiPaused.Load() }

// Run starts each loop in its own goroutine and blocks until all of them
// return, which they do cooperatively once ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context, loops ...func(context.Context)) {
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(loop)
	}
	wg.Wait()
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns false on cancellation so multi-hour cooldowns cannot outlive a
// shutdown request.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
