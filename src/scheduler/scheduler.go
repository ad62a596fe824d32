package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one scheduled unit of work. It should return once ctx is cancelled.
type Job func(ctx context.Context)

type Config struct {
	Interval     time.Duration
	RunOnStartup bool
	// RunTimeout bounds a single run. Zero means no bound.
	RunTimeout time.Duration
	Job        Job
}

// Scheduler runs a job on a fixed interval. Runs never overlap: a tick or
// manual trigger that arrives while a run is in progress is dropped.
type Scheduler struct {
	interval     time.Duration
	runOnStartup bool
	runTimeout   time.Duration
	job          Job

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	// stateMu orders every wg.Add against Stop's wg.Wait.
	stateMu sync.Mutex
	started bool
	stopped bool

	mu      sync.RWMutex
	nextRun time.Time
	lastRun time.Time
}

func NewScheduler(config Config) (*Scheduler, error) {
	if config.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if config.Job == nil {
		return nil, errors.New("scheduler job is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Printf("INFO: Scheduler initialized with interval %s (run on startup: %t)", config.Interval, config.RunOnStartup)

	return &Scheduler{
		interval:     config.Interval,
		runOnStartup: config.RunOnStartup,
		runTimeout:   config.RunTimeout,
		job:          config.Job,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the schedule loop. Calling it more than once has no effect.
func (s *Scheduler) Start() {
	s.stateMu.Lock()
	if s.started || s.stopped {
		s.stateMu.Unlock()
		return
	}
	s.started = true
	s.setNextRun(time.Now().Add(s.interval))
	s.wg.Add(1)
	go s.scheduleLoop()
	s.stateMu.Unlock()

	if s.runOnStartup {
		log.Println("INFO: Scheduler running initial sync on startup")
		s.TriggerNow()
	}

	log.Println("INFO: Scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.setNextRun(now.Add(s.interval))
			log.Printf("INFO: Scheduler triggered at %s", now.Format(time.RFC3339))
			s.run()
		}
	}
}

// TriggerNow starts a run in the background. It reports false when a run is
// already in progress or the scheduler has been stopped.
func (s *Scheduler) TriggerNow() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.stopped {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		log.Println("WARN: Scheduler run already in progress, skipping trigger")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute()
	}()
	return true
}

func (s *Scheduler) run() {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("WARN: Scheduler run already in progress, skipping tick")
		return
	}
	defer s.running.Store(false)
	s.execute()
}

func (s *Scheduler) execute() {
	ctx := s.ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	s.job(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.mu.Unlock()
	log.Printf("INFO: Scheduler run finished in %s", time.Since(start).Round(time.Millisecond))
}

// Stop cancels the loop and any in-flight run, waiting up to timeout for
// them to return.
func (s *Scheduler) Stop(timeout time.Duration) {
	log.Println("INFO: Scheduler shutting down...")
	s.stateMu.Lock()
	s.stopped = true
	s.cancel()
	s.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("INFO: Scheduler stopped")
	case <-time.After(timeout):
		log.Println("WARN: Timeout waiting for scheduler run to stop")
	}
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRun
}

func (s *Scheduler) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}
