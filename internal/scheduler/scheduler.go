/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrDuplicateJob   = errors.New("job already registered")
	ErrTriggerBacklog = errors.New("trigger queue is full")
)

const triggerQueueSize = 16

// JobFunc is one unit of periodic work. It must honour ctx cancellation.
type JobFunc func(ctx context.Context) error

type entry struct {
	name     string
	schedule Schedule
	run      JobFunc
	next     time.Time
	running  atomic.Bool
}

// Scheduler runs registered jobs on their schedules from a single ticker
// loop. Each run gets its own timeout, and a failing or panicking job never
// stops the loop.
type Scheduler struct {
	tickInterval time.Duration
	jobTimeout   time.Duration
	now          func() time.Time

	mu      sync.Mutex
	jobs    map[string]*entry
	order   []string
	started bool

	triggers chan string
	running  sync.WaitGroup

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg models.SchedulerConfig) *Scheduler {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &Scheduler{
		tickInterval: tick,
		jobTimeout:   timeout,
		now:          time.Now,
		jobs:         make(map[string]*entry),
		triggers:     make(chan string, triggerQueueSize),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(name string, schedule Schedule, run JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cannot add job %q after start", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = &entry{name: name, schedule: schedule, run: run}
	s.order = append(s.order, name)
	return nil
}

// Start computes each job's first run and begins the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	for _, name := range s.order {
		e := s.jobs[name]
		e.next = e.schedule.Next(now)
		zap.L().Info("Job scheduled", zap.String("job", name), zap.Time("next_run", e.next))
	}
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx)

	zap.L().Info("Scheduler started",
		zap.Int("jobs", len(s.order)),
		zap.Duration("tick_interval", s.tickInterval),
		zap.Duration("job_timeout", s.jobTimeout))
}

// Stop ends the loop and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping scheduler")
	close(s.stopChan)
	<-s.doneChan
	s.running.Wait()
	zap.L().Info("Scheduler stopped")
}

// Trigger queues a manual run of name and returns without waiting for it.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	_, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	select {
	case s.triggers <- name:
		zap.L().Info("Job triggered manually", zap.String("job", name))
		return nil
	default:
		return ErrTriggerBacklog
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runDue(ctx)
		case name := <-s.triggers:
			s.mu.Lock()
			e := s.jobs[name]
			s.mu.Unlock()
			s.dispatch(ctx, e)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for _, name := range s.order {
		e := s.jobs[name]
		if !now.Before(e.next) {
			e.next = e.schedule.Next(now)
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.dispatch(ctx, e)
	}
}

// dispatch starts a run unless the previous one is still going.
func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		zap.L().Warn("Job still running, skipping this run", zap.String("job", e.name))
		return
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer e.running.Store(false)
		s.execute(ctx, e)
	}()
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	runCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Job panicked",
				zap.String("job", e.name),
				zap.Any("panic", r),
				zap.Duration("elapsed", time.Since(started)))
		}
	}()

	zap.L().Info("Job started", zap.String("job", e.name))
	if err := e.run(runCtx); err != nil {
		zap.L().Error("Job failed",
			zap.String("job", e.name),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return
	}
	zap.L().Info("Job finished", zap.String("job", e.name), zap.Duration("elapsed", time.Since(started)))
}
