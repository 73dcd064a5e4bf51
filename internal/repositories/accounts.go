package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
)

const accountColumns = `id, user_id, marketplace, login, password, email, display_name, status, created_at, last_used`

// AccountRepository persists [models.ExchangeAccount] records.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new [AccountRepository] with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account with a generated ID. A zero CreatedAt is set to now.
func (r *AccountRepository) Create(ctx context.Context, account *models.ExchangeAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	account.ID = shared.GenerateID()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now()
	}

	query := `
		INSERT INTO exchange_accounts (id, user_id, marketplace, login, password, email, display_name, status, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var lastUsed any
	if account.LastUsed != nil {
		lastUsed = account.LastUsed.UTC()
	}

	_, err := r.db.ExecContext(ctx, query, account.ID, account.UserID, string(account.Marketplace),
		account.Login, account.Password, account.Email, account.DisplayName, string(account.Status),
		account.CreatedAt, lastUsed)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetActive returns the user's most recent successful account on a marketplace.
//
// Returns [shared.ErrAccountNotFound] when there is none.
func (r *AccountRepository) GetActive(ctx context.Context, userID int64, m models.Marketplace) (*models.ExchangeAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM exchange_accounts
		WHERE user_id = ? AND marketplace = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, userID, string(m), string(models.AccountSuccess)))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: user %d on %s", shared.ErrAccountNotFound, userID, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// List returns every account owned by the user, failed ones included, ordered by marketplace.
func (r *AccountRepository) List(ctx context.Context, userID int64) ([]*models.ExchangeAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM exchange_accounts
		WHERE user_id = ?
		ORDER BY marketplace ASC, created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.ExchangeAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return accounts, nil
}

// TouchLastUsed records that the account was used by a work cycle.
func (r *AccountRepository) TouchLastUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE exchange_accounts SET last_used = ? WHERE id = ?", now(), id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, id)
	}
	return nil
}

func scanAccount(s scanner) (*models.ExchangeAccount, error) {
	var (
		a           models.ExchangeAccount
		marketplace string
		status      string
		lastUsed    sql.NullTime
	)
	err := s.Scan(&a.ID, &a.UserID, &marketplace, &a.Login, &a.Password, &a.Email, &a.DisplayName,
		&status, &a.CreatedAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	a.Marketplace = models.Marketplace(marketplace)
	a.Status = models.AccountStatus(status)
	a.LastUsed = nullTime(lastUsed)
	return &a, nil
}
