package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/shopspring/decimal"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func TestLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordCompletion", func(t *testing.T) {
		ledger := NewLedger(setupTestDB(t))

		task, err := ledger.RecordCompletion(ctx, 1, "advego", "click", "Visit site", dec("0.35"))
		if err != nil {
			t.Fatalf("failed to record completion: %v", err)
		}

		if task.ID == "" {
			t.Error("task ID should be set")
		}
		if task.Status != models.TaskCompleted {
			t.Errorf("expected status completed, got %s", task.Status)
		}
		if task.CompletedAt == nil {
			t.Error("completed_at should be set")
		}
	})

	t.Run("TwoMarketplaces", func(t *testing.T) {
		ledger := NewLedger(setupTestDB(t))

		if _, err := ledger.RecordCompletion(ctx, 7, "advego", "click", "A", dec("0.35")); err != nil {
			t.Fatalf("failed to record A: %v", err)
		}
		if _, err := ledger.RecordCompletion(ctx, 7, "kwork", "review", "B", dec("0.20")); err != nil {
			t.Fatalf("failed to record B: %v", err)
		}

		agg, err := ledger.Aggregate(ctx, 7)
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if !agg.TotalEarned.Equal(dec("0.55")) {
			t.Errorf("expected total 0.55, got %s", agg.TotalEarned)
		}
		if agg.TasksCompleted != 2 {
			t.Errorf("expected 2 tasks, got %d", agg.TasksCompleted)
		}

		balances, err := ledger.Balances(ctx, 7)
		if err != nil {
			t.Fatalf("failed to get balances: %v", err)
		}
		if len(balances) != 2 {
			t.Fatalf("expected 2 balances, got %d", len(balances))
		}
		if balances[0].Marketplace != "advego" || !balances[0].Balance.Equal(dec("0.35")) {
			t.Errorf("unexpected advego balance: %+v", balances[0])
		}
		if balances[1].Marketplace != "kwork" || !balances[1].Balance.Equal(dec("0.20")) {
			t.Errorf("unexpected kwork balance: %+v", balances[1])
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		db := setupTestDB(t)
		ledger := NewLedger(db)

		_, err := ledger.RecordCompletion(ctx, 1, "fl", "click", "", dec("-0.01"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if n := countRows(t, db, "tasks"); n != 0 {
			t.Errorf("expected no tasks, got %d", n)
		}
	})

	t.Run("FailureLeavesTablesUnchanged", func(t *testing.T) {
		db := setupTestDB(t)
		ledger := NewLedger(db)

		if _, err := ledger.RecordCompletion(ctx, 3, "advego", "click", "first", dec("1.00")); err != nil {
			t.Fatalf("failed to record first task: %v", err)
		}

		_, err := db.Exec(`CREATE TRIGGER fail_user_update BEFORE UPDATE ON users
			BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
		if err != nil {
			t.Fatalf("failed to create trigger: %v", err)
		}

		_, err = ledger.RecordCompletion(ctx, 3, "advego", "click", "second", dec("2.00"))
		if !errors.Is(err, shared.ErrLedgerWriteFailed) {
			t.Fatalf("expected ErrLedgerWriteFailed, got %v", err)
		}

		if n := countRows(t, db, "tasks"); n != 1 {
			t.Errorf("expected 1 task after rollback, got %d", n)
		}

		balances, err := ledger.Balances(ctx, 3)
		if err != nil {
			t.Fatalf("failed to get balances: %v", err)
		}
		if len(balances) != 1 || !balances[0].Balance.Equal(dec("1.00")) {
			t.Errorf("balance changed after rollback: %+v", balances)
		}

		agg, err := ledger.Aggregate(ctx, 3)
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if !agg.TotalEarned.Equal(dec("1.00")) || agg.TasksCompleted != 1 {
			t.Errorf("aggregate changed after rollback: %+v", agg)
		}
	})

	t.Run("FailureOnFirstTask", func(t *testing.T) {
		db := setupTestDB(t)
		ledger := NewLedger(db)

		_, err := db.Exec(`CREATE TRIGGER fail_balance_insert BEFORE INSERT ON balances
			BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
		if err != nil {
			t.Fatalf("failed to create trigger: %v", err)
		}

		if _, err := ledger.RecordCompletion(ctx, 4, "kwork", "click", "", dec("0.50")); !errors.Is(err, shared.ErrLedgerWriteFailed) {
			t.Fatalf("expected ErrLedgerWriteFailed, got %v", err)
		}

		for _, table := range []string{"tasks", "balances", "users"} {
			if n := countRows(t, db, table); n != 0 {
				t.Errorf("expected empty %s, got %d rows", table, n)
			}
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		db := setupTestDB(t)
		ledger := NewLedger(db)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := ledger.RecordCompletion(cctx, 5, "fl", "click", "", dec("0.10")); err == nil {
			t.Fatal("expected error with cancelled context")
		}
		if n := countRows(t, db, "tasks"); n != 0 {
			t.Errorf("expected no tasks, got %d", n)
		}
	})

	t.Run("ConcurrentInvariant", func(t *testing.T) {
		ledger := NewLedger(setupTestDB(t))
		markets := []models.Marketplace{"advego", "kwork", "fl"}

		const (
			workers = 10
			each    = 6
		)

		want := decimal.Zero
		var mu sync.Mutex
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < each; i++ {
					amount := decimal.New(int64(w*each+i+1), -2)
					if _, err := ledger.RecordCompletion(ctx, 9, markets[(w+i)%len(markets)], "click", "", amount); err != nil {
						t.Errorf("failed to record: %v", err)
						return
					}
					mu.Lock()
					want = want.Add(amount)
					mu.Unlock()
				}
			}(w)
		}
		wg.Wait()

		agg, err := ledger.Aggregate(ctx, 9)
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		balances, err := ledger.Balances(ctx, 9)
		if err != nil {
			t.Fatalf("failed to get balances: %v", err)
		}
		earnings, err := ledger.EarningsByMarketplace(ctx, 9)
		if err != nil {
			t.Fatalf("failed to get earnings: %v", err)
		}

		if agg.TasksCompleted != workers*each {
			t.Errorf("expected %d tasks, got %d", workers*each, agg.TasksCompleted)
		}
		if !agg.TotalEarned.Equal(want) {
			t.Errorf("expected total %s, got %s", want, agg.TotalEarned)
		}
		if total := models.TotalBalance(balances); !total.Equal(want) {
			t.Errorf("sum of balances %s != %s", total, want)
		}
		for i, e := range earnings {
			if e.Marketplace != balances[i].Marketplace || !e.Amount.Equal(balances[i].Balance) {
				t.Errorf("balance %+v does not match task sum %+v", balances[i], e)
			}
		}
	})

	t.Run("Aggregate", func(t *testing.T) {
		t.Run("UnknownUser", func(t *testing.T) {
			ledger := NewLedger(setupTestDB(t))

			agg, err := ledger.Aggregate(ctx, 404)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !agg.TotalEarned.IsZero() || agg.TasksCompleted != 0 {
				t.Errorf("expected zero aggregate, got %+v", agg)
			}
		})

		t.Run("EnsureUser", func(t *testing.T) {
			ledger := NewLedger(setupTestDB(t))

			if err := ledger.EnsureUser(ctx, 11, "alice"); err != nil {
				t.Fatalf("failed to ensure user: %v", err)
			}
			first, err := ledger.Aggregate(ctx, 11)
			if err != nil {
				t.Fatalf("failed to get aggregate: %v", err)
			}

			if err := ledger.EnsureUser(ctx, 11, ""); err != nil {
				t.Fatalf("failed to ensure user again: %v", err)
			}
			second, err := ledger.Aggregate(ctx, 11)
			if err != nil {
				t.Fatalf("failed to get aggregate: %v", err)
			}

			if second.Username != "alice" {
				t.Errorf("expected username alice, got %q", second.Username)
			}
			if !second.RegistrationDate.Equal(first.RegistrationDate) {
				t.Errorf("registration date changed: %v -> %v", first.RegistrationDate, second.RegistrationDate)
			}
		})
	})

	t.Run("Tasks", func(t *testing.T) {
		ledger := NewLedger(setupTestDB(t))
		for i := 0; i < 3; i++ {
			if _, err := ledger.RecordCompletion(ctx, 2, "advego", "click", fmt.Sprintf("task %d", i), dec("0.10")); err != nil {
				t.Fatalf("failed to record task: %v", err)
			}
		}

		all, err := ledger.Tasks(ctx, 2, 0)
		if err != nil {
			t.Fatalf("failed to list tasks: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 tasks, got %d", len(all))
		}

		limited, err := ledger.Tasks(ctx, 2, 2)
		if err != nil {
			t.Fatalf("failed to list tasks: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 tasks, got %d", len(limited))
		}
		for _, task := range limited {
			if !task.Amount.Equal(dec("0.10")) || task.Status != models.TaskCompleted {
				t.Errorf("unexpected task: %+v", task)
			}
		}
	})

	t.Run("CompletedSince", func(t *testing.T) {
		ledger := NewLedger(setupTestDB(t))
		start := time.Now().Add(-time.Minute)

		for i := 0; i < 2; i++ {
			if _, err := ledger.RecordCompletion(ctx, 6, "fl", "click", "", dec("0.10")); err != nil {
				t.Fatalf("failed to record task: %v", err)
			}
		}

		n, err := ledger.CompletedSince(ctx, 6, start)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 tasks since start, got %d", n)
		}

		n, err = ledger.CompletedSince(ctx, 6, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 tasks in the future, got %d", n)
		}
	})
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()

	newAccount := func(status models.AccountStatus) *models.ExchangeAccount {
		return &models.ExchangeAccount{
			UserID:      1,
			Marketplace: "advego",
			Login:       "brave_otter_1234",
			Password:    "Secret-Pass-123",
			Email:       "brave_otter_1234@example.com",
			DisplayName: "Anna Petrova",
			Status:      status,
		}
	}

	t.Run("CreateAndGetActive", func(t *testing.T) {
		repo := NewAccountRepository(setupTestDB(t))

		account := newAccount(models.AccountSuccess)
		if err := repo.Create(ctx, account); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}
		if account.ID == "" {
			t.Error("account ID should be set after creation")
		}

		got, err := repo.GetActive(ctx, 1, "advego")
		if err != nil {
			t.Fatalf("failed to get account: %v", err)
		}
		if got.ID != account.ID || got.Login != account.Login || got.DisplayName != account.DisplayName {
			t.Errorf("expected %+v, got %+v", account, got)
		}
		if got.LastUsed != nil {
			t.Errorf("expected nil last_used, got %v", got.LastUsed)
		}
	})

	t.Run("FailedAccountsAreNotActive", func(t *testing.T) {
		repo := NewAccountRepository(setupTestDB(t))

		if err := repo.Create(ctx, newAccount(models.AccountFailed)); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		if _, err := repo.GetActive(ctx, 1, "advego"); !errors.Is(err, shared.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}

		accounts, err := repo.List(ctx, 1)
		if err != nil {
			t.Fatalf("failed to list accounts: %v", err)
		}
		if len(accounts) != 1 || accounts[0].Status != models.AccountFailed {
			t.Errorf("expected one failed account, got %+v", accounts)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		repo := NewAccountRepository(setupTestDB(t))

		account := newAccount(models.AccountSuccess)
		account.Login = ""
		if err := repo.Create(ctx, account); err == nil {
			t.Fatal("expected validation error for empty login")
		}
	})

	t.Run("TouchLastUsed", func(t *testing.T) {
		repo := NewAccountRepository(setupTestDB(t))

		account := newAccount(models.AccountSuccess)
		if err := repo.Create(ctx, account); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}
		if err := repo.TouchLastUsed(ctx, account.ID); err != nil {
			t.Fatalf("failed to touch account: %v", err)
		}

		got, err := repo.GetActive(ctx, 1, "advego")
		if err != nil {
			t.Fatalf("failed to get account: %v", err)
		}
		if got.LastUsed == nil {
			t.Error("expected last_used to be set")
		}

		if err := repo.TouchLastUsed(ctx, "missing"); !errors.Is(err, shared.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})
}
