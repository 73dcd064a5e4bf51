package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/services"
	"github.com/desertthunder/exfarm/internal/sessions"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/shopspring/decimal"
)

const defaultStopCheck = 250 * time.Millisecond

// AccountProvider returns a usable marketplace account, registering one when needed.
type AccountProvider interface {
	EnsureAccount(ctx context.Context, userID int64, m exchanges.Marketplace) (*models.ExchangeAccount, error)
}

// AccountReleaser frees per-user account resources once the user's worker exits. Optional on an
// [AccountProvider].
type AccountReleaser interface {
	Release(userID int64) error
}

// Ledger records completed work.
type Ledger interface {
	RecordCompletion(ctx context.Context, userID int64, m models.Marketplace, taskType, title string, amount decimal.Decimal) (*models.Task, error)
	CompletedSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// UsageTracker marks an account as used. Optional.
type UsageTracker interface {
	TouchLastUsed(ctx context.Context, id string) error
}

// Settings controls the work loop.
type Settings struct {
	CheckInterval  time.Duration
	ErrorBackoff   time.Duration
	StopCheck      time.Duration
	MaxCycles      int // 0 = unbounded
	MaxTasksPerDay int // 0 = unbounded
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal // zero = no upper bound
	AutoAccept     bool
}

// SettingsFromConfig converts the [work] section of the config file.
func SettingsFromConfig(w shared.WorkConfig) Settings {
	return Settings{
		CheckInterval:  w.CheckIntervalDuration(),
		ErrorBackoff:   w.ErrorBackoffDuration(),
		StopCheck:      defaultStopCheck,
		MaxCycles:      w.MaxCycles,
		MaxTasksPerDay: w.MaxTasksPerDay,
		MinPrice:       decimal.NewFromFloat(w.MinTaskPrice),
		MaxPrice:       decimal.NewFromFloat(w.MaxTaskPrice),
		AutoAccept:     w.AutoAcceptTasks,
	}
}

// InRange reports whether amount falls within the configured price range.
func (s Settings) InRange(amount decimal.Decimal) bool {
	if amount.LessThan(s.MinPrice) {
		return false
	}
	return s.MaxPrice.IsZero() || !amount.GreaterThan(s.MaxPrice)
}

// Config wires a [Scheduler].
type Config struct {
	Registry *sessions.Registry
	Catalog  exchanges.Catalog
	Accounts AccountProvider
	Ledger   Ledger
	Notifier services.Notifier
	Usage    UsageTracker
	Settings Settings
	Logger   *log.Logger
	// Updates receives progress events. Sends never block; events are dropped when full.
	Updates chan<- CycleUpdate
	Now     func() time.Time
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs one work loop goroutine per working user.
type Scheduler struct {
	registry *sessions.Registry
	catalog  exchanges.Catalog
	accounts AccountProvider
	ledger   Ledger
	notifier services.Notifier
	usage    UsageTracker
	settings Settings
	logger   *log.Logger
	updates  chan<- CycleUpdate
	now      func() time.Time

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler from cfg.
func NewScheduler(cfg Config) *Scheduler {
	s := &Scheduler{
		registry: cfg.Registry,
		catalog:  cfg.Catalog,
		accounts: cfg.Accounts,
		ledger:   cfg.Ledger,
		notifier: cfg.Notifier,
		usage:    cfg.Usage,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		updates:  cfg.Updates,
		now:      cfg.Now,
		workers:  make(map[int64]*worker),
	}
	if s.registry == nil {
		s.registry = sessions.NewRegistry(0)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.settings.StopCheck <= 0 {
		s.settings.StopCheck = defaultStopCheck
	}
	return s
}

// Registry returns the session registry the scheduler reads.
func (s *Scheduler) Registry() *sessions.Registry { return s.registry }

// Start begins the work loop for user. Starting a running user is a no-op.
func (s *Scheduler) Start(ctx context.Context, user int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		w, ok := s.workers[user]
		if !ok {
			break
		}
		if s.registry.IsWorking(user) {
			return nil
		}
		// Stopping: let the previous loop exit before replacing it.
		s.mu.Unlock()
		<-w.done
		s.mu.Lock()
	}

	if err := s.registry.SetWorking(user, true); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{cancel: cancel, done: make(chan struct{})}
	s.workers[user] = w

	s.wg.Add(1)
	go s.run(wctx, user, w)

	s.logger.Info("work started", "user_id", user, "marketplaces", s.registry.Enabled(user))
	return nil
}

// Stop ends the work loop for user without waiting for it to exit.
func (s *Scheduler) Stop(user int64) {
	s.mu.Lock()
	w := s.workers[user]
	s.mu.Unlock()

	s.registry.SetWorking(user, false)
	if w != nil {
		w.cancel()
	}
}

// Running reports whether user's work loop goroutine is alive.
func (s *Scheduler) Running(user int64) bool {
	s.mu.Lock()
	w, ok := s.workers[user]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Wait blocks until user's work loop exits.
func (s *Scheduler) Wait(user int64) {
	s.mu.Lock()
	w, ok := s.workers[user]
	s.mu.Unlock()
	if ok {
		<-w.done
	}
}

// Shutdown stops every work loop and waits for all of them.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for user, w := range s.workers {
		s.registry.SetWorking(user, false)
		w.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, user int64, w *worker) {
	logger := s.logger.With("user_id", user)
	cycle, reason := 0, ""

	defer func() {
		w.cancel()
		if rel, ok := s.accounts.(AccountReleaser); ok {
			if err := rel.Release(user); err != nil {
				logger.Warn("failed to release account resources", "error", err)
			}
		}
		s.registry.SetWorking(user, false)
		s.mu.Lock()
		if s.workers[user] == w {
			delete(s.workers, user)
		}
		s.mu.Unlock()
		logger.Info("work stopped", "reason", reason, "cycle", cycle)
		s.send(idleUpdate(user, cycle, reason))
		close(w.done)
		s.wg.Done()
	}()

	for iterations := 0; ; {
		if reason = s.idleReason(ctx, user); reason != "" {
			return
		}

		enabled := s.registry.Enabled(user)
		cycle = s.registry.NextCycle(user)
		iterations++

		s.send(cycleStartedUpdate(user, cycle, enabled))
		err := s.runCycle(ctx, logger, user, cycle, enabled)
		if ctx.Err() != nil {
			reason = "stopped"
			return
		}

		if s.settings.MaxCycles > 0 && iterations >= s.settings.MaxCycles {
			reason = fmt.Sprintf("reached %d cycles", s.settings.MaxCycles)
			return
		}

		delay := s.settings.CheckInterval
		if err != nil && s.settings.ErrorBackoff > 0 {
			delay = s.settings.ErrorBackoff
			logger.Warn("cycle failed, backing off", "cycle", cycle, "error", err, "backoff", delay)
			s.send(backoffUpdate(user, cycle, delay))
		} else {
			s.send(sleepingUpdate(user, cycle, delay))
		}

		s.sleep(ctx, user, delay)
	}
}

// idleReason returns why the loop should stop, or "" to keep working.
func (s *Scheduler) idleReason(ctx context.Context, user int64) string {
	switch {
	case ctx.Err() != nil, !s.registry.IsWorking(user):
		return "stopped"
	case len(s.registry.Enabled(user)) == 0:
		return "no marketplaces enabled"
	}
	return ""
}

// sleep waits for d, returning early on cancellation or when the registry says to stop.
func (s *Scheduler) sleep(ctx context.Context, user int64, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(s.settings.StopCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-ticker.C:
			if s.idleReason(ctx, user) != "" {
				return
			}
		}
	}
}

// runCycle works every enabled marketplace once. It returns the last transient error so the
// caller can back off; other errors are logged and the cycle moves on.
func (s *Scheduler) runCycle(ctx context.Context, logger *log.Logger, user int64, cycle int, enabled []models.Marketplace) error {
	var transient error

	for _, id := range enabled {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m, err := s.catalog.Get(id)
		if err != nil {
			logger.Error("skipping marketplace", "marketplace", id, "error", err)
			s.send(failedUpdate(user, cycle, id, err))
			continue
		}

		err = s.work(ctx, logger.With("marketplace", id), user, cycle, m)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, shared.ErrDailyLimitReached):
			logger.Info("daily limit reached", "limit", s.settings.MaxTasksPerDay)
			s.send(limitUpdate(user, cycle, s.settings.MaxTasksPerDay))
			return nil
		case errors.Is(err, shared.ErrWorkCycleTransient):
			transient = err
			s.send(failedUpdate(user, cycle, id, err))
		default:
			logger.Error("marketplace work failed", "error", err)
			s.send(failedUpdate(user, cycle, id, err))
		}
	}
	return transient
}

// work handles one marketplace for one cycle.
func (s *Scheduler) work(ctx context.Context, logger *log.Logger, user int64, cycle int, m exchanges.Marketplace) error {
	s.send(update(user, cycle, EnsureAccount, m.ID(), "Checking account on "+m.DisplayName()))
	account, err := s.accounts.EnsureAccount(ctx, user, m)
	if err != nil {
		return fmt.Errorf("%w: account on %s: %w", shared.ErrWorkCycleTransient, m.ID(), err)
	}

	if err := s.checkDailyLimit(ctx, user); err != nil {
		return err
	}

	s.send(discoverUpdate(user, cycle, m.ID()))
	task, err := m.DiscoverTask(ctx, account, cycle)
	if err != nil {
		return fmt.Errorf("%w: discovery on %s: %w", shared.ErrWorkCycleTransient, m.ID(), err)
	}
	if task == nil {
		logger.Debug("no tasks offered", "cycle", cycle)
		return nil
	}
	task.UserID = user
	task.Marketplace = m.ID()

	if !s.settings.InRange(task.Amount) {
		logger.Debug("task outside price range", "title", task.Title, "amount", task.Amount)
		s.send(skippedUpdate(user, cycle, task))
		return nil
	}

	if !s.settings.AutoAccept {
		s.send(offeredUpdate(user, cycle, task))
		s.notify(ctx, logger, user, fmt.Sprintf("New task on %s: %s\nPrice: %s RUB",
			m.DisplayName(), task.Title, task.Amount.StringFixed(2)))
		return nil
	}

	s.send(executingUpdate(user, cycle, task))
	if err := m.ExecuteTask(ctx, task); err != nil {
		return fmt.Errorf("%w: execution on %s: %w", shared.ErrWorkCycleTransient, m.ID(), err)
	}

	recorded, err := s.ledger.RecordCompletion(ctx, user, m.ID(), task.TaskType, task.Title, task.Amount)
	if err != nil {
		return err
	}
	if s.usage != nil && account.ID != "" {
		if err := s.usage.TouchLastUsed(ctx, account.ID); err != nil {
			logger.Warn("failed to update account usage", "account", account.ID, "error", err)
		}
	}

	logger.Info("task completed", "cycle", cycle, "title", recorded.Title, "amount", recorded.Amount)
	s.send(completedUpdate(user, cycle, recorded))
	s.notify(ctx, logger, user, fmt.Sprintf("Task completed on %s: %s\nEarned: %s RUB",
		m.DisplayName(), recorded.Title, recorded.Amount.StringFixed(2)))
	return nil
}

func (s *Scheduler) checkDailyLimit(ctx context.Context, user int64) error {
	if s.settings.MaxTasksPerDay <= 0 {
		return nil
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	n, err := s.ledger.CompletedSince(ctx, user, midnight)
	if err != nil {
		return fmt.Errorf("%w: daily count: %w", shared.ErrWorkCycleTransient, err)
	}
	if n >= s.settings.MaxTasksPerDay {
		return shared.ErrDailyLimitReached
	}
	return nil
}

// notify delivers a chat message. Failures are logged only.
func (s *Scheduler) notify(ctx context.Context, logger *log.Logger, user int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, user, text); err != nil {
		logger.Warn("notification failed", "error", err)
	}
}

// send emits an update without blocking the work loop.
func (s *Scheduler) send(u CycleUpdate) {
	if s.updates == nil {
		return
	}
	select {
	case s.updates <- u:
	default:
	}
}
