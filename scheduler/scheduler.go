// Package scheduler runs named maintenance tasks on tickers: security
// tracker sweeps, lock table reporting, audit flush nudges. Tasks are
// replaced by name and individually removable, and a panicking task never
// takes the scheduler down.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of periodic work.
type Task func()

type entry struct {
	cancel context.CancelFunc
}

// Scheduler owns the goroutines behind all registered tasks.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Every runs fn on a fixed interval until the task is removed or the
// scheduler stops. Registering an existing name replaces the old task.
func (s *Scheduler) Every(name string, interval time.Duration, fn Task) {
	s.register(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
			case <-ctx.Done():
				return
			}
		}
	})
	s.logger.Info("periodic task registered",
		zap.String("name", name), zap.Duration("interval", interval))
}

// Once runs fn a single time after delay, unless removed first.
func (s *Scheduler) Once(name string, delay time.Duration, fn Task) {
	s.register(name, func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.run(name, fn)
			s.mu.Lock()
			delete(s.entries, name)
			s.mu.Unlock()
		case <-ctx.Done():
		}
	})
}

func (s *Scheduler) register(name string, loop func(context.Context)) {
	s.mu.Lock()
	if old, ok := s.entries[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.entries[name] = &entry{cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		loop(ctx)
	}()
}

func (s *Scheduler) run(name string, fn Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove cancels the named task.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.cancel()
		delete(s.entries, name)
	}
}

// Names lists the registered task names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

// Stop cancels every task and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
