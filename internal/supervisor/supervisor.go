// Package supervisor owns every long-running component's lifetime: it
// starts each as a structured task under one cancellable context, waits
// for them on shutdown, and surfaces whichever failed first. Generalized
// from the teacher's cmd/polybot/main.go, which wired goroutines and a
// manual shutdown sequence directly in main — lifted out here so main
// itself reduces to "build components, hand them to a Supervisor, wait
// for a signal" and the engine/manager cycle the teacher had (the trading
// engine held a bot reference, the bot held an engine reference) never
// needs to exist: the Supervisor holds every component, and components
// only hold the narrow interfaces they call into each other through.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is a long-running unit of work that must return promptly once ctx
// is cancelled.
type Task func(ctx context.Context) error

// Supervisor runs a set of Tasks under one lifetime and coordinates
// graceful shutdown.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mu       sync.Mutex
	running  int
	firstErr error
	paused   bool
}

// New builds a Supervisor whose tasks run until Shutdown is called or the
// parent context is cancelled.
func New(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel}
}

// Context returns the supervisor's lifetime context, for components that
// need to observe cancellation directly (e.g. a blocking network read).
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Spawn starts name as a background task. Its error, if any, is logged and
// recorded as the supervisor's first failure; a task returning nil simply
// exits (used for one-shot startup work spawned through Spawn rather than
// Every).
func (s *Supervisor) Spawn(name string, task Task) {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running--
			s.mu.Unlock()
		}()

		log.Info().Str("task", name).Msg("▶️ task started")
		if err := task(s.ctx); err != nil && s.ctx.Err() == nil {
			log.Error().Err(err).Str("task", name).Msg("🛑 task failed")
			s.recordFailure(fmt.Errorf("%s: %w", name, err))
			return
		}
		log.Info().Str("task", name).Msg("⏹️ task stopped")
	}()
}

// Every runs fn on a fixed interval until the supervisor shuts down,
// calling fn once immediately before the first tick. A single fn failure
// is logged and skipped rather than stopping the loop — a periodic
// maintenance cycle (tier cycle, watchlist rescore) outliving one bad
// iteration is worth more than tearing down the whole process over it.
func (s *Supervisor) Every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.Spawn(name, func(ctx context.Context) error {
		run := func() {
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("task", name).Msg("⚠️ periodic task iteration failed")
			}
		}

		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				run()
			}
		}
	})
}

func (s *Supervisor) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
}

// Pause/Resume flip a flag the strategy/candidate pipeline consults before
// submitting new entries; already-running tasks (ingestion, sync, exit
// management) keep running so open positions are still tracked and closed
// while paused. Wired to the alerting package's /pause and /resume
// commands.
func (s *Supervisor) Pause()  { s.mu.Lock(); s.paused = true; s.mu.Unlock() }
func (s *Supervisor) Resume() { s.mu.Lock(); s.paused = false; s.mu.Unlock() }
func (s *Supervisor) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Shutdown cancels every task's context and waits up to timeout for them
// to exit, returning the first task failure recorded (if any) or an error
// if the timeout elapsed first.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.mu.Lock()
		stillRunning := s.running
		s.mu.Unlock()
		return fmt.Errorf("shutdown timed out after %s with %d task(s) still running", timeout, stillRunning)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}
