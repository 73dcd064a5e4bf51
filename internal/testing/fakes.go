package testing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
)

// Message is one notification captured by [FakeNotifier].
type Message struct {
	UserID int64
	Text   string
}

// FakeNotifier records notifications. Err, when set, is returned from every call.
type FakeNotifier struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (n *FakeNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{UserID: userID, Text: text})
	return n.Err
}

// Messages returns a copy of the captured notifications.
func (n *FakeNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

// StubSolver returns a fixed captcha token.
type StubSolver struct {
	Token    string
	OK       bool
	Disabled bool
	calls    atomic.Int32
}

func (s *StubSolver) Solve(context.Context, string, string) (string, bool) {
	s.calls.Add(1)
	return s.Token, s.OK
}

func (s *StubSolver) Enabled() bool { return !s.Disabled }

// Calls returns how many times Solve ran.
func (s *StubSolver) Calls() int { return int(s.calls.Load()) }

// MemoryAccounts is an in-memory account store.
type MemoryAccounts struct {
	mu       sync.Mutex
	accounts []*models.ExchangeAccount
	seq      int
}

func (m *MemoryAccounts) Create(_ context.Context, account *models.ExchangeAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	account.ID = fmt.Sprintf("acct-%d", m.seq)
	copied := *account
	m.accounts = append(m.accounts, &copied)
	return nil
}

func (m *MemoryAccounts) GetActive(_ context.Context, userID int64, market models.Marketplace) (*models.ExchangeAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.accounts) - 1; i >= 0; i-- {
		a := m.accounts[i]
		if a.UserID == userID && a.Marketplace == market && a.Status == models.AccountSuccess {
			copied := *a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: user %d on %s", shared.ErrAccountNotFound, userID, market)
}

// All returns every stored account.
func (m *MemoryAccounts) All() []models.ExchangeAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExchangeAccount, len(m.accounts))
	for i, a := range m.accounts {
		out[i] = *a
	}
	return out
}
