package exchanges

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/shopspring/decimal"
)

const defaultOfferEvery = 3

type taskTemplate struct {
	Type  string
	Title string
}

// Simulated is a [Marketplace] whose discovery and execution are simulated.
type Simulated struct {
	id        models.Marketplace
	name      string
	form      Form
	minPrice  decimal.Decimal
	maxPrice  decimal.Decimal
	templates []taskTemplate

	offerEvery  int
	minDuration time.Duration
	maxDuration time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a [Simulated] marketplace.
type Option func(*Simulated)

// WithSeed makes prices, templates and durations deterministic. Each marketplace gets its own
// source derived from seed.
func WithSeed(seed uint64) Option {
	return func(s *Simulated) { s.rnd = rand.New(rand.NewPCG(seed, uint64(len(s.id)))) }
}

// WithOfferEvery offers a task on cycles divisible by n.
func WithOfferEvery(n int) Option {
	return func(s *Simulated) {
		if n > 0 {
			s.offerEvery = n
		}
	}
}

// WithExecutionTime sets the simulated execution duration range.
func WithExecutionTime(lo, hi time.Duration) Option {
	return func(s *Simulated) {
		if hi < lo {
			lo, hi = hi, lo
		}
		s.minDuration, s.maxDuration = lo, hi
	}
}

func newSimulated(id models.Marketplace, name string, form Form, lo, hi string, templates []taskTemplate, opts ...Option) *Simulated {
	s := &Simulated{
		id:          id,
		name:        name,
		form:        form,
		minPrice:    decimal.RequireFromString(lo),
		maxPrice:    decimal.RequireFromString(hi),
		templates:   templates,
		offerEvery:  defaultOfferEvery,
		minDuration: 2 * time.Second,
		maxDuration: 5 * time.Second,
		rnd:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(len(id)))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) ID() models.Marketplace { return s.id }

func (s *Simulated) DisplayName() string { return s.name }

func (s *Simulated) RegistrationForm() Form { return s.form }

// PriceRange returns the inclusive range discovered task prices are drawn from.
func (s *Simulated) PriceRange() (decimal.Decimal, decimal.Decimal) {
	return s.minPrice, s.maxPrice
}

// DiscoverTask offers a pending task on cycles divisible by the offer period.
func (s *Simulated) DiscoverTask(ctx context.Context, account *models.ExchangeAccount, cycle int) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cycle <= 0 || cycle%s.offerEvery != 0 {
		return nil, nil
	}

	s.mu.Lock()
	tmpl := s.templates[s.rnd.IntN(len(s.templates))]
	amount := s.drawPrice()
	duration := s.drawDuration()
	s.mu.Unlock()

	task := &models.Task{
		Marketplace: s.id,
		TaskType:    tmpl.Type,
		Title:       tmpl.Title,
		Amount:      amount,
		Status:      models.TaskPending,
		CreatedAt:   time.Now().UTC(),
		Duration:    duration,
	}
	if account != nil {
		task.UserID = account.UserID
	}
	return task, nil
}

// ExecuteTask waits for the task's simulated duration.
func (s *Simulated) ExecuteTask(ctx context.Context, task *models.Task) error {
	if task.Duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(task.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drawPrice picks a kopeck-rounded amount in [minPrice, maxPrice]. Callers hold mu.
func (s *Simulated) drawPrice() decimal.Decimal {
	lo := s.minPrice.Shift(2).IntPart()
	hi := s.maxPrice.Shift(2).IntPart()
	if hi <= lo {
		return s.minPrice
	}
	return decimal.New(lo+s.rnd.Int64N(hi-lo+1), -2)
}

// drawDuration picks an execution time in [minDuration, maxDuration]. Callers hold mu.
func (s *Simulated) drawDuration() time.Duration {
	span := s.maxDuration - s.minDuration
	if span <= 0 {
		return s.minDuration
	}
	return s.minDuration + time.Duration(s.rnd.Int64N(int64(span)+1))
}
