package maturity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Goodisoft/vestearning/internal/app/metrics"
	"github.com/Goodisoft/vestearning/internal/app/system"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

// DefaultInterval is how often the sweeper runs when no schedule is
// configured.
const DefaultInterval = 30 * time.Minute

// ErrSweepBusy is returned by Tick when a sweep is already in flight in
// this process or the cross-process lock is held elsewhere.
var ErrSweepBusy = errors.New("sweep already in progress")

var _ system.Service = (*Sweeper)(nil)

// Sweeper drives the maturity engine on a recurring schedule. Ticks are
// independent, but a tick that arrives while a sweep is still in flight
// is skipped so the same investment is never finalized concurrently.
type Sweeper struct {
	engine   *Engine
	log      *logger.Logger
	interval time.Duration
	schedule cron.Schedule
	lock     SweepLock
	inFlight atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSweeper creates a lifecycle-managed sweeper with the default
// interval.
func NewSweeper(engine *Engine, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("maturity-sweeper")
	}
	return &Sweeper{
		engine:   engine,
		log:      log,
		interval: DefaultInterval,
	}
}

// WithInterval overrides the fixed sweep interval.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithSchedule replaces the fixed interval with a cron expression, e.g.
// "*/30 * * * *" or "@every 30m".
func (s *Sweeper) WithSchedule(spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	s.schedule = schedule
	return nil
}

// WithLock installs a cross-process lock acquired around each sweep.
func (s *Sweeper) WithLock(lock SweepLock) *Sweeper {
	s.lock = lock
	return s
}

func (s *Sweeper) Name() string { return "maturity-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			wait := s.nextWait()
			timer := time.NewTimer(wait)
			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.Tick(runCtx)
			}
		}
	}()

	s.log.Infof("maturity sweeper started (interval %s)", s.interval)
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("maturity sweeper stopped")
	return nil
}

// Tick runs one sweep unless one is already in flight. It is exported so
// an operator action or test can force a sweep outside the schedule;
// every forced sweep must go through it so the in-flight guard and the
// cross-process lock cover scheduled and forced runs alike.
func (s *Sweeper) Tick(ctx context.Context) (SweepResult, error) {
	if s.engine == nil {
		return SweepResult{}, nil
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.RecordSweepSkip()
		s.log.Warn("previous sweep still running; skipping tick")
		return SweepResult{}, ErrSweepBusy
	}
	defer s.inFlight.Store(false)

	if s.lock != nil {
		acquired, release, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.WithError(err).Warn("acquire sweep lock failed; skipping tick")
			return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			s.log.Debugf("sweep lock held elsewhere; skipping tick")
			return SweepResult{}, ErrSweepBusy
		}
		defer release()
	}

	result, err := s.engine.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Warn("maturity sweep failed")
	}
	return result, err
}

func (s *Sweeper) nextWait() time.Duration {
	if s.schedule != nil {
		now := time.Now()
		wait := s.schedule.Next(now).Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		return wait
	}
	return s.interval
}
