package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/shopspring/decimal"
)

// Ledger persists completed tasks and keeps balances and user aggregates consistent with them.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a new [Ledger] with the given database connection
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureUser creates the user row on first contact. An existing row keeps its registration date;
// a non-empty username replaces the stored one.
func (l *Ledger) EnsureUser(ctx context.Context, userID int64, username string) error {
	query := `
		INSERT INTO users (user_id, username, registration_date) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username WHERE excluded.username != ''
	`
	if _, err := l.db.ExecContext(ctx, query, userID, username, now()); err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	return nil
}

// RecordCompletion stores a completed task and applies its amount to the user's balance for the
// marketplace and to the user's aggregate, all in one transaction.
//
// Any failure rolls the transaction back and returns [shared.ErrLedgerWriteFailed] wrapping the cause.
func (l *Ledger) RecordCompletion(ctx context.Context, userID int64, m models.Marketplace, taskType, title string, amount decimal.Decimal) (*models.Task, error) {
	ts := now()
	task := &models.Task{
		ID:          shared.GenerateID(),
		UserID:      userID,
		Marketplace: m,
		TaskType:    taskType,
		Title:       title,
		Amount:      amount,
		Status:      models.TaskCompleted,
		CreatedAt:   ts,
		CompletedAt: &ts,
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if err := l.record(ctx, task); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrLedgerWriteFailed, err)
	}
	return task, nil
}

func (l *Ledger) record(ctx context.Context, task *models.Task) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := *task.CompletedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, marketplace, task_type, title, amount, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.UserID, string(task.Marketplace), task.TaskType, task.Title, task.Amount.String(),
		string(task.Status), task.CreatedAt, ts)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	var balanceText string
	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM balances WHERE user_id = ? AND marketplace = ?",
		task.UserID, string(task.Marketplace),
	).Scan(&balanceText)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	balance, err := parseAmount(balanceText)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, marketplace, balance, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, marketplace) DO UPDATE SET balance = excluded.balance, last_updated = excluded.last_updated
	`, task.UserID, string(task.Marketplace), balance.Add(task.Amount).String(), ts)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	var totalText string
	err = tx.QueryRowContext(ctx, "SELECT total_earned FROM users WHERE user_id = ?", task.UserID).Scan(&totalText)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("failed to read user aggregate: %w", err)
	}
	total, err := parseAmount(totalText)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, registration_date, total_earned, tasks_completed) VALUES (?, ?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET total_earned = excluded.total_earned, tasks_completed = tasks_completed + 1
	`, task.UserID, ts, total.Add(task.Amount).String())
	if err != nil {
		return fmt.Errorf("failed to update user aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// Aggregate returns the user's totals. Unknown users get a zero aggregate.
func (l *Ledger) Aggregate(ctx context.Context, userID int64) (*models.UserAggregate, error) {
	var (
		agg       = &models.UserAggregate{UserID: userID, TotalEarned: decimal.Zero}
		totalText string
	)

	err := l.db.QueryRowContext(ctx,
		"SELECT username, registration_date, total_earned, tasks_completed FROM users WHERE user_id = ?",
		userID,
	).Scan(&agg.Username, &agg.RegistrationDate, &totalText, &agg.TasksCompleted)
	if isNoRows(err) {
		return agg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", userID, err)
	}

	if agg.TotalEarned, err = parseAmount(totalText); err != nil {
		return nil, err
	}
	return agg, nil
}

// Balances returns the user's per-marketplace balances ordered by marketplace.
func (l *Ledger) Balances(ctx context.Context, userID int64) ([]models.Balance, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT user_id, marketplace, balance, last_updated
		FROM balances
		WHERE user_id = ?
		ORDER BY marketplace ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		var (
			b           models.Balance
			marketplace string
			balanceText string
		)
		if err := rows.Scan(&b.UserID, &marketplace, &balanceText, &b.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Marketplace = models.Marketplace(marketplace)
		if b.Balance, err = parseAmount(balanceText); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return balances, nil
}

// Tasks returns the user's most recent tasks, newest first. A non-positive limit returns all.
func (l *Ledger) Tasks(ctx context.Context, userID int64, limit int) ([]*models.Task, error) {
	query := `
		SELECT id, user_id, marketplace, task_type, title, amount, status, created_at, completed_at
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tasks, nil
}

// CompletedSince counts the user's tasks completed at or after since.
func (l *Ledger) CompletedSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status = ? AND completed_at >= ?",
		userID, string(models.TaskCompleted), since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return n, nil
}

// EarningsByMarketplace sums completed task amounts per marketplace, ordered by marketplace.
//
// Amounts are summed in Go since the column holds decimal strings.
func (l *Ledger) EarningsByMarketplace(ctx context.Context, userID int64) ([]models.MarketplaceEarnings, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT marketplace, amount
		FROM tasks
		WHERE user_id = ? AND status = ?
		ORDER BY marketplace ASC
	`, userID, string(models.TaskCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	var earnings []models.MarketplaceEarnings
	for rows.Next() {
		var marketplace, amountText string
		if err := rows.Scan(&marketplace, &amountText); err != nil {
			return nil, fmt.Errorf("failed to scan earnings: %w", err)
		}
		amount, err := parseAmount(amountText)
		if err != nil {
			return nil, err
		}

		m := models.Marketplace(marketplace)
		if n := len(earnings); n == 0 || earnings[n-1].Marketplace != m {
			earnings = append(earnings, models.MarketplaceEarnings{Marketplace: m, Amount: decimal.Zero})
		}
		last := &earnings[len(earnings)-1]
		last.Amount = last.Amount.Add(amount)
		last.Tasks++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return earnings, nil
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		task        models.Task
		marketplace string
		amountText  string
		status      string
		completedAt sql.NullTime
	)

	err := s.Scan(&task.ID, &task.UserID, &marketplace, &task.TaskType, &task.Title, &amountText,
		&status, &task.CreatedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	task.Marketplace = models.Marketplace(marketplace)
	task.Status = models.TaskStatus(status)
	task.CompletedAt = nullTime(completedAt)
	if task.Amount, err = parseAmount(amountText); err != nil {
		return nil, err
	}
	return &task, nil
}
