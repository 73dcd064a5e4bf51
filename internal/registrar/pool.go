package registrar

import (
	"context"
	"errors"
	"sync"

	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/models"
)

// Pool hands each user their own [Registrar], so one user's registration never holds up another's.
// Registrars are created on first use from a shared [Config] and closed by [Pool.Release] or
// [Pool.Close].
type Pool struct {
	cfg Config

	mu     sync.Mutex
	byUser map[int64]*Registrar
}

// NewPool creates an empty pool building registrars from cfg.
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg, byUser: make(map[int64]*Registrar)}
}

// For returns the registrar of userID, creating it if needed.
func (p *Pool) For(userID int64) *Registrar {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.byUser[userID]
	if !ok {
		r = New(p.cfg)
		p.byUser[userID] = r
	}
	return r
}

// EnsureAccount is [Registrar.EnsureAccount] on the registrar of userID.
func (p *Pool) EnsureAccount(ctx context.Context, userID int64, m exchanges.Marketplace) (*models.ExchangeAccount, error) {
	return p.For(userID).EnsureAccount(ctx, userID, m)
}

// Register is [Registrar.Register] on the registrar of userID.
func (p *Pool) Register(ctx context.Context, userID int64, m exchanges.Marketplace) (*models.ExchangeAccount, error) {
	return p.For(userID).Register(ctx, userID, m)
}

// Release closes and forgets the registrar of userID. Unknown users are a no-op.
func (p *Pool) Release(userID int64) error {
	p.mu.Lock()
	r, ok := p.byUser[userID]
	delete(p.byUser, userID)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return r.Close()
}

// Len reports how many users currently hold a registrar.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byUser)
}

// Close releases every registrar in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	all := p.byUser
	p.byUser = make(map[int64]*Registrar)
	p.mu.Unlock()

	var errs []error
	for _, r := range all {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
