package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/shared"
)

func newBotServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))

		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if req.ChatID != 77 || req.Text != "hello" {
			t.Errorf("unexpected message: %+v", req)
		}

		status := http.StatusOK
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.Write([]byte(`{"ok":false,"description":"nope"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestNotifier(url string, retries int) *TelegramNotifier {
	cfg := shared.BotConfig{Token: "test-token", APIURL: url, RateLimit: 1000, MaxRetries: retries}
	return NewTelegramNotifier(cfg, nil, log.New(io.Discard)).WithRetryDelay(time.Millisecond)
}

func TestTelegramNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends Message", func(t *testing.T) {
		srv, calls := newBotServer(t)
		if err := newTestNotifier(srv.URL, 2).Notify(ctx, 77, "hello"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", calls.Load())
		}
	})

	t.Run("Retries Server Errors", func(t *testing.T) {
		srv, calls := newBotServer(t, http.StatusBadGateway, http.StatusTooManyRequests)
		if err := newTestNotifier(srv.URL, 2).Notify(ctx, 77, "hello"); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("Gives Up After Max Retries", func(t *testing.T) {
		srv, calls := newBotServer(t, 500, 500, 500, 500)
		err := newTestNotifier(srv.URL, 1).Notify(ctx, 77, "hello")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", calls.Load())
		}
	})

	t.Run("Does Not Retry Client Errors", func(t *testing.T) {
		srv, calls := newBotServer(t, http.StatusForbidden)
		err := newTestNotifier(srv.URL, 3).Notify(ctx, 77, "hello")
		if err == nil || !strings.Contains(err.Error(), "nope") {
			t.Fatalf("expected description in error, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", calls.Load())
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		srv, _ := newBotServer(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if err := newTestNotifier(srv.URL, 2).Notify(cctx, 77, "hello"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestTelegramNotifierFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Error Hides Token", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := newTestNotifier(url, 0).Notify(ctx, 77, "hello")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if strings.Contains(err.Error(), "test-token") {
			t.Errorf("error leaks bot token: %v", err)
		}
	})

	t.Run("Unresponsive Server Times Out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(srv.Close)

		cfg := shared.BotConfig{Token: "test-token", APIURL: srv.URL, RateLimit: 1000}
		client := &http.Client{Timeout: 100 * time.Millisecond}
		n := NewTelegramNotifier(cfg, client, log.New(io.Discard))

		start := time.Now()
		err := n.Notify(ctx, 77, "hello")
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("Notify took %s, expected the client timeout to bound it", elapsed)
		}
		if strings.Contains(err.Error(), "test-token") {
			t.Errorf("error leaks bot token: %v", err)
		}
	})
}

func TestNewNotifier(t *testing.T) {
	logger := log.New(io.Discard)

	if _, ok := NewNotifier(shared.BotConfig{Token: "your_bot_token"}, nil, logger).(*LogNotifier); !ok {
		t.Error("expected LogNotifier for placeholder token")
	}
	if _, ok := NewNotifier(shared.BotConfig{Token: "123:abc"}, nil, logger).(*TelegramNotifier); !ok {
		t.Error("expected TelegramNotifier for real token")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf))

	if err := n.Notify(context.Background(), 5, "task done"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "task done") || !strings.Contains(out, "user_id=5") {
		t.Errorf("unexpected log output: %q", out)
	}
}
