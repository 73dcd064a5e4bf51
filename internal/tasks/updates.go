package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/exfarm/internal/models"
)

// CycleUpdate represents a progress event of one user's work loop.
//
// Used to send real-time updates to the dashboard.
type CycleUpdate struct {
	UserID      int64
	Phase       Phase
	Cycle       int
	Marketplace models.Marketplace
	Message     string
	Task        *models.Task // set for offered and completed tasks
	Err         error
	Time        time.Time
}

// Work loop phase enumeration
type Phase int

const (
	CycleStarted Phase = iota
	EnsureAccount
	Discover
	Offered
	Executing
	Completed
	Skipped
	LimitReached
	Failed
	Backoff
	Sleeping
	Idle
)

func (p Phase) String() string {
	switch p {
	case CycleStarted:
		return "cycle_started"
	case EnsureAccount:
		return "ensure_account"
	case Discover:
		return "discover"
	case Offered:
		return "offered"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case LimitReached:
		return "limit_reached"
	case Failed:
		return "failed"
	case Backoff:
		return "backoff"
	case Sleeping:
		return "sleeping"
	case Idle:
		return "idle"
	default:
		return ""
	}
}

func update(user int64, cycle int, phase Phase, m models.Marketplace, msg string) CycleUpdate {
	return CycleUpdate{UserID: user, Cycle: cycle, Phase: phase, Marketplace: m, Message: msg, Time: time.Now()}
}

func cycleStartedUpdate(user int64, cycle int, enabled []models.Marketplace) CycleUpdate {
	return update(user, cycle, CycleStarted, "", fmt.Sprintf("Cycle %d on %d marketplace(s)", cycle, len(enabled)))
}

func discoverUpdate(user int64, cycle int, m models.Marketplace) CycleUpdate {
	return update(user, cycle, Discover, m, fmt.Sprintf("Looking for tasks on %s...", m))
}

func offeredUpdate(user int64, cycle int, task *models.Task) CycleUpdate {
	u := update(user, cycle, Offered, task.Marketplace, fmt.Sprintf("Offer: %s (%s RUB)", task.Title, task.Amount.StringFixed(2)))
	u.Task = task
	return u
}

func executingUpdate(user int64, cycle int, task *models.Task) CycleUpdate {
	u := update(user, cycle, Executing, task.Marketplace, fmt.Sprintf("Executing %s: %s", task.TaskType, task.Title))
	u.Task = task
	return u
}

func completedUpdate(user int64, cycle int, task *models.Task) CycleUpdate {
	u := update(user, cycle, Completed, task.Marketplace, fmt.Sprintf("✓ %s +%s RUB", task.Title, task.Amount.StringFixed(2)))
	u.Task = task
	return u
}

func skippedUpdate(user int64, cycle int, task *models.Task) CycleUpdate {
	u := update(user, cycle, Skipped, task.Marketplace, fmt.Sprintf("Skipped %s: price %s outside range", task.Title, task.Amount.StringFixed(2)))
	u.Task = task
	return u
}

func limitUpdate(user int64, cycle int, limit int) CycleUpdate {
	return update(user, cycle, LimitReached, "", fmt.Sprintf("Daily limit of %d tasks reached", limit))
}

func failedUpdate(user int64, cycle int, m models.Marketplace, err error) CycleUpdate {
	u := update(user, cycle, Failed, m, fmt.Sprintf("✗ %v", err))
	u.Err = err
	return u
}

func backoffUpdate(user int64, cycle int, d time.Duration) CycleUpdate {
	return update(user, cycle, Backoff, "", fmt.Sprintf("Backing off for %s", d))
}

func sleepingUpdate(user int64, cycle int, d time.Duration) CycleUpdate {
	return update(user, cycle, Sleeping, "", fmt.Sprintf("Next cycle in %s", d))
}

func idleUpdate(user int64, cycle int, reason string) CycleUpdate {
	return update(user, cycle, Idle, "", "Stopped: "+reason)
}
