// package models defines the data model for the task automation engine
package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace identifies a supported micro-task exchange (e.g. "advego").
type Marketplace string

func (m Marketplace) String() string { return string(m) }

// SortMarketplaces sorts ids in place and returns them.
func SortMarketplaces(ids []Marketplace) []Marketplace {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AccountStatus is the lifecycle state of an [ExchangeAccount].
type AccountStatus string

const (
	AccountPending AccountStatus = "pending"
	AccountSuccess AccountStatus = "success"
	AccountFailed  AccountStatus = "failed"
)

// TaskStatus is the lifecycle state of a [Task].
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// UserSession is the in-memory work state of one user.
type UserSession struct {
	UserID     int64
	Enabled    []Marketplace // sorted
	Working    bool
	CycleCount int
}

// ExchangeAccount holds credentials for one marketplace account owned by a user.
type ExchangeAccount struct {
	ID          string
	UserID      int64
	Marketplace Marketplace
	Login       string
	Password    string
	Email       string
	DisplayName string
	Status      AccountStatus
	CreatedAt   time.Time
	LastUsed    *time.Time
}

// Validate checks required account fields.
func (a *ExchangeAccount) Validate() error {
	if a.Marketplace == "" {
		return fmt.Errorf("marketplace is required")
	}
	if a.Login == "" || a.Password == "" {
		return fmt.Errorf("login and password are required")
	}
	switch a.Status {
	case AccountPending, AccountSuccess, AccountFailed:
	default:
		return fmt.Errorf("invalid account status %q", a.Status)
	}
	return nil
}

// Task is a unit of paid work on a marketplace.
type Task struct {
	ID          string
	UserID      int64
	Marketplace Marketplace
	TaskType    string
	Title       string
	Amount      decimal.Decimal
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration // simulated execution time; not persisted
}

// Validate checks that the task can be recorded.
func (t *Task) Validate() error {
	if t.Marketplace == "" {
		return fmt.Errorf("marketplace is required")
	}
	if t.TaskType == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %s", t.Amount)
	}
	return nil
}

// Balance is the running earnings total for one (user, marketplace) pair.
type Balance struct {
	UserID      int64
	Marketplace Marketplace
	Balance     decimal.Decimal
	LastUpdated time.Time
}

// UserAggregate summarises a user's earnings.
type UserAggregate struct {
	UserID           int64
	Username         string
	RegistrationDate time.Time
	TotalEarned      decimal.Decimal
	TasksCompleted   int
}

// MarketplaceEarnings is the sum of completed task amounts on one marketplace.
type MarketplaceEarnings struct {
	Marketplace Marketplace
	Amount      decimal.Decimal
	Tasks       int
}

// TotalBalance sums balances.
func TotalBalance(balances []Balance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}
