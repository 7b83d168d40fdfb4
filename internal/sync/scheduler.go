// ABOUTME: Sync Scheduler: interval timer, reconnect trigger and manual trigger feeding the engine.
// ABOUTME: The timer is re-armed whenever interval, authentication or reachability change.
package sync

import (
	"context"
	"fmt"
	"io"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
)

// ValidIntervals are the accepted auto-sync intervals in minutes.
var ValidIntervals = []int{1, 5, 10, 15, 30, 60}

// DefaultInterval is used when no interval has been configured.
const DefaultInterval = 15

// ValidInterval reports whether minutes is one of ValidIntervals.
func ValidInterval(minutes int) bool {
	for _, v := range ValidIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// Syncer is the single-flight entry point the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context) (*Report, error)
	Reset()
}

// Scheduler fires Syncer.Sync on a timer while signed in and online, once on
// every offline to online transition, and on demand.
type Scheduler struct {
	engine   Syncer
	identity Identity
	net      Reachability
	logger   *log.Logger
	unit     time.Duration
	onReport func(*Report, error)

	mu       gosync.Mutex
	interval int
	timer    *time.Timer
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	unsub    func()
	online   bool
	wg       gosync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the starting interval in minutes.
func WithInterval(minutes int) SchedulerOption {
	return func(s *Scheduler) { s.interval = minutes }
}

// WithTickUnit scales the interval; tests use milliseconds instead of minutes.
func WithTickUnit(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.unit = d }
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l *log.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithReportHook is called after every pass the scheduler starts.
func WithReportHook(fn func(*Report, error)) SchedulerOption {
	return func(s *Scheduler) { s.onReport = fn }
}

// NewScheduler builds a stopped scheduler. net may be nil, meaning always online.
func NewScheduler(engine Syncer, identity Identity, net Reachability, opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{
		engine:   engine,
		identity: identity,
		net:      net,
		unit:     time.Minute,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !ValidInterval(s.interval) {
		return nil, fmt.Errorf("invalid sync interval %d (want one of %v)", s.interval, ValidIntervals)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s, nil
}

// Start arms the timer and subscribes to reachability changes. Stop undoes it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.online = s.net == nil || s.net.IsOnline()
	if s.net != nil {
		s.unsub = s.net.Subscribe(s.onReachability)
	}
	s.rearmLocked()
	s.logger.Info("sync scheduler started", "interval_minutes", s.interval)
}

// Stop cancels the timer and waits for any pass the scheduler started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.cancel()
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// Interval returns the current interval in minutes.
func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the interval and restarts the timer.
func (s *Scheduler) SetInterval(minutes int) error {
	if !ValidInterval(minutes) {
		return fmt.Errorf("invalid sync interval %d (want one of %v)", minutes, ValidIntervals)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval == minutes {
		return nil
	}
	s.interval = minutes
	s.logger.Info("sync interval changed", "interval_minutes", minutes)
	s.rearmLocked()
	return nil
}

// AuthChanged clears a sticky engine error and re-arms the timer for the new identity.
func (s *Scheduler) AuthChanged() {
	s.engine.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rearmLocked()
}

// TriggerNow runs a pass on the calling goroutine. Overlapping triggers collapse.
func (s *Scheduler) TriggerNow(ctx context.Context) (*Report, error) {
	return s.engine.Sync(ctx)
}

func (s *Scheduler) onReachability(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.online
	s.online = online
	if s.ctx == nil {
		return
	}
	if online && !was {
		s.logger.Info("network restored; syncing")
		s.fireLocked()
	}
	s.rearmLocked()
}

// rearmLocked cancels any pending tick and schedules a new one if the
// scheduler should be ticking. Callers hold s.mu.
func (s *Scheduler) rearmLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.ctx == nil || !s.online {
		return
	}
	if _, ok := s.identity.CurrentUserID(); !ok {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(time.Duration(s.interval)*s.unit, func() { s.tick(gen) })
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.ctx == nil {
		return
	}
	s.fireLocked()
	s.rearmLocked()
}

// fireLocked starts a pass in the background. Callers hold s.mu.
func (s *Scheduler) fireLocked() {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rep, err := s.engine.Sync(ctx)
		if err != nil {
			s.logger.Warn("scheduled sync failed", "err", err)
		}
		if s.onReport != nil {
			s.onReport(rep, err)
		}
	}()
}
