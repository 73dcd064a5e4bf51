package registrar

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/browser"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/models"
	tu "github.com/desertthunder/exfarm/internal/testing"
)

func newTestPool(f *browser.Fake, timeout time.Duration) *Pool {
	return NewPool(Config{
		Launch:   f.Launcher(),
		Accounts: &tu.MemoryAccounts{},
		Timeout:  timeout,
		Logger:   log.New(io.Discard),
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()
	market := exchanges.Advego()

	t.Run("One Registrar Per User", func(t *testing.T) {
		p := newTestPool(browser.NewFake(), time.Second)
		defer p.Close()

		if p.For(1) != p.For(1) {
			t.Error("expected the same registrar for repeated lookups")
		}
		if p.For(1) == p.For(2) {
			t.Error("expected distinct registrars for distinct users")
		}
		if p.Len() != 2 {
			t.Errorf("expected 2 registrars, got %d", p.Len())
		}
	})

	t.Run("Slow User Does Not Block Another", func(t *testing.T) {
		f := browser.NewFake()
		stallingPage(f)
		p := newTestPool(f, 5*time.Second)

		slow, stopSlow := context.WithCancel(ctx)
		slowDone := make(chan struct{})
		go func() {
			defer close(slowDone)
			p.Register(slow, 1, market)
		}()
		defer func() {
			stopSlow()
			<-slowDone
			p.Close()
		}()

		first := p.For(1)
		deadline := time.Now().Add(time.Second)
		for len(first.sem) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if len(first.sem) == 0 {
			t.Fatal("user 1 never started registering")
		}

		fast, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := p.Register(fast, 2, market)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("user 2 returned after %v while user 1 was registering", elapsed)
		}
		if len(first.sem) == 0 {
			t.Error("expected user 1 to still be registering")
		}
	})

	t.Run("EnsureAccount Uses User Registrar", func(t *testing.T) {
		f := browser.NewFake()
		advegoPage(f, false)
		p := newTestPool(f, 100*time.Millisecond)
		defer p.Close()

		got, err := p.EnsureAccount(ctx, 7, market)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.UserID != 7 || got.Status != models.AccountSuccess {
			t.Errorf("unexpected account %+v", got)
		}
		if p.Len() != 1 {
			t.Errorf("expected 1 registrar, got %d", p.Len())
		}
	})

	t.Run("Release Closes Session", func(t *testing.T) {
		f := browser.NewFake()
		advegoPage(f, false)
		p := newTestPool(f, 100*time.Millisecond)

		if _, err := p.Register(ctx, 8, market); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.Closed() {
			t.Fatal("session closed before release")
		}

		if err := p.Release(8); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if !f.Closed() {
			t.Error("expected browser session closed")
		}
		if p.Len() != 0 {
			t.Errorf("expected empty pool, got %d", p.Len())
		}
		if err := p.Release(8); err != nil {
			t.Errorf("expected releasing an unknown user to be a no-op, got %v", err)
		}
	})

	t.Run("Close Releases All", func(t *testing.T) {
		f := browser.NewFake()
		advegoPage(f, false)
		p := newTestPool(f, 100*time.Millisecond)

		for _, user := range []int64{9, 10} {
			if _, err := p.Register(ctx, user, market); err != nil {
				t.Fatalf("user %d: %v", user, err)
			}
		}
		if err := p.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if p.Len() != 0 || !f.Closed() {
			t.Errorf("expected pool emptied and session closed (len %d)", p.Len())
		}
	})
}
