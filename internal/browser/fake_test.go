package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	ctx := context.Background()

	f := NewFake()
	f.AddPage("https://example.com/signup").
		Element("#email").
		Element(".g-recaptcha", "data-sitekey", "key-1").
		Element("button[type=submit]").
		RevealOnClick("button[type=submit]", ".welcome")

	var b Browser = f

	t.Run("Navigate", func(t *testing.T) {
		if err := b.Navigate(ctx, "https://example.com/missing"); err == nil {
			t.Error("expected error for unknown page")
		}
		if err := b.Navigate(ctx, "https://example.com/signup"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.URL() != "https://example.com/signup" {
			t.Errorf("unexpected URL %s", f.URL())
		}
	})

	t.Run("Fill", func(t *testing.T) {
		if err := b.Fill(ctx, "#email", "a@b.c"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.Value("#email") != "a@b.c" {
			t.Errorf("expected filled value, got %q", f.Value("#email"))
		}
		if err := b.Fill(ctx, "#phone", "1"); err == nil {
			t.Error("expected error for missing element")
		}
	})

	t.Run("Attribute", func(t *testing.T) {
		v, ok, err := b.Attribute(ctx, ".g-recaptcha", "data-sitekey")
		if err != nil || !ok || v != "key-1" {
			t.Errorf("expected key-1, got %q ok=%v err=%v", v, ok, err)
		}
		if _, ok, _ := b.Attribute(ctx, ".none", "x"); ok {
			t.Error("expected missing attribute")
		}
	})

	t.Run("WaitVisible", func(t *testing.T) {
		wctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if err := b.WaitVisible(wctx, ".welcome"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}

		if err := b.Click(ctx, "button[type=submit]"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := b.WaitVisible(ctx, ".welcome"); err != nil {
			t.Errorf("expected revealed element, got %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		if err := b.Close(); err != nil || !f.Closed() {
			t.Errorf("expected closed browser, err=%v", err)
		}
	})
}
