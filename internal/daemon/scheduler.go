package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/seniorcare/opscentre/internal/sync"
)

// DefaultPollInterval matches the web client's polling period.
const DefaultPollInterval = 60 * time.Second

// ErrNotRunning is returned by triggers sent to a stopped scheduler.
var ErrNotRunning = errors.New("scheduler is not running")

// Runner executes one sync pass. *sync.Reconciler implements it.
type Runner interface {
	Run(ctx context.Context, req sync.Request) sync.Result
}

// Config holds configuration for the scheduler.
type Config struct {
	// PollInterval is how often to auto-pull.
	PollInterval time.Duration

	// SkipStartupPull disables the auto-pull run at startup.
	SkipStartupPull bool

	// ConfigFile, when set, is watched for changes. Reload is called after
	// each change and its result becomes the new poll interval.
	ConfigFile string
	Reload     func() (time.Duration, error)

	// DebounceInterval batches rapid config file writes.
	DebounceInterval time.Duration

	// OnResult is called after every run, from the worker goroutine.
	OnResult func(sync.Result)

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     DefaultPollInterval,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           slog.Default(),
	}
}

type trigger struct {
	req   sync.Request
	reply chan sync.Result
}

// Scheduler serializes sync runs on a single worker.
type Scheduler struct {
	runner Runner
	config *Config
	logger *slog.Logger

	triggers  chan trigger
	intervals chan time.Duration
	watcher   *ConfigWatcher

	mu       gosync.Mutex
	running  bool
	last     *sync.Result
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// New creates a scheduler. Use Start to begin polling.
func New(runner Runner, config *Config) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:    runner,
		config:    config,
		logger:    config.Logger.With("component", "scheduler"),
		triggers:  make(chan trigger),
		intervals: make(chan time.Duration, 1),
		interval:  config.PollInterval,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins polling and serving triggers.
//
// This blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting scheduler", "poll_interval", s.config.PollInterval)

	if s.config.ConfigFile != "" && s.config.Reload != nil {
		watcher, err := NewConfigWatcher(s.config.ConfigFile, s.config.DebounceInterval)
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			// The scheduler works without live reload.
			s.logger.Warn("not watching config file", "path", s.config.ConfigFile, "error", err)
			if watcher != nil {
				_ = watcher.Stop()
			}
		} else {
			s.mu.Lock()
			s.watcher = watcher
			s.mu.Unlock()
			s.wg.Add(1)
			go s.watchConfig(watcher)
		}
	}

	s.wg.Add(1)
	go s.work()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		return s.Stop()
	case <-s.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the scheduler. A run in progress is
// cancelled through its context.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	watcher := s.watcher
	s.mu.Unlock()

	s.cancel()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			s.logger.Warn("error closing config watcher", "error", err)
		}
	}
	s.wg.Wait()

	if wasRunning {
		s.logger.Info("scheduler stopped")
	}
	return nil
}

// TriggerNow runs req on the worker and waits for its result.
func (s *Scheduler) TriggerNow(ctx context.Context, req sync.Request) (sync.Result, error) {
	tr := trigger{req: req, reply: make(chan sync.Result, 1)}
	select {
	case s.triggers <- tr:
	case <-s.ctx.Done():
		return sync.Result{}, ErrNotRunning
	case <-ctx.Done():
		return sync.Result{}, ctx.Err()
	}

	select {
	case res := <-tr.reply:
		return res, nil
	case <-ctx.Done():
		return sync.Result{}, ctx.Err()
	}
}

// SetPollInterval changes the poll interval of a running scheduler.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	// Keep only the most recent request.
	select {
	case <-s.intervals:
	default:
	}
	select {
	case s.intervals <- d:
	default:
	}
}

// PollInterval returns the interval currently in effect.
func (s *Scheduler) PollInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Last returns the most recent result, if any run has finished.
func (s *Scheduler) Last() (sync.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return sync.Result{}, false
	}
	return *s.last, true
}

// IsRunning reports whether Start is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// work is the single worker loop.
func (s *Scheduler) work() {
	defer s.wg.Done()

	if !s.config.SkipStartupPull {
		s.execute(sync.Request{Mode: sync.ModeAutoPull})
	}

	ticker := time.NewTicker(s.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.execute(sync.Request{Mode: sync.ModeAutoPull})

		case tr := <-s.triggers:
			tr.reply <- s.execute(tr.req)

		case d := <-s.intervals:
			s.mu.Lock()
			changed := d != s.interval
			s.interval = d
			s.mu.Unlock()
			if changed {
				ticker.Reset(d)
				s.logger.Info("poll interval changed", "poll_interval", d)
			}
		}
	}
}

func (s *Scheduler) execute(req sync.Request) sync.Result {
	res := s.runner.Run(s.ctx, req)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if s.config.OnResult != nil {
		s.config.OnResult(res)
	}
	return res
}

// watchConfig reloads the config after each change to the config file.
func (s *Scheduler) watchConfig(watcher *ConfigWatcher) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case _, ok := <-watcher.Changes():
			if !ok {
				return
			}
			d, err := s.config.Reload()
			if err != nil {
				s.logger.Warn("failed to reload config", "error", err)
				continue
			}
			s.SetPollInterval(d)

		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}
