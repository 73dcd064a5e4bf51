package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/formatter"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/sessions"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/desertthunder/exfarm/internal/tasks"
	"github.com/shopspring/decimal"
)

const testUser int64 = 7

type fakeScheduler struct {
	registry *sessions.Registry
	running  bool
	stops    int
}

func (f *fakeScheduler) Start(_ context.Context, user int64) error {
	if err := f.registry.SetWorking(user, true); err != nil {
		return err
	}
	f.running = true
	return nil
}

func (f *fakeScheduler) Stop(user int64) {
	f.registry.SetWorking(user, false)
	f.running = false
	f.stops++
}

func (f *fakeScheduler) Running(int64) bool           { return f.running }
func (f *fakeScheduler) Registry() *sessions.Registry { return f.registry }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(stats StatsFunc, updates chan tasks.CycleUpdate) (*Model, *fakeScheduler) {
	sched := &fakeScheduler{registry: sessions.NewRegistry(2)}
	m := NewModel(context.Background(), testUser, sched, exchanges.DefaultCatalog(), stats, updates)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, sched
}

// exec runs a command and feeds its message back into the model.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		m.Update(msg)
	case <-time.After(time.Second):
		t.Fatal("command did not return")
	}
}

func TestModelWorkView(t *testing.T) {
	t.Run("Lists Catalog", func(t *testing.T) {
		m, _ := newTestModel(nil, nil)
		if got := len(m.markets.Items()); got != 5 {
			t.Fatalf("expected 5 marketplaces, got %d", got)
		}
		view := m.View()
		if !strings.Contains(view, "[ ] Advego") || !strings.Contains(view, "Idle") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})

	t.Run("Toggle Selected", func(t *testing.T) {
		m, sched := newTestModel(nil, nil)

		m.Update(tea.KeyMsg{Type: tea.KeySpace})
		first := m.markets.Items()[0].(marketItem)
		if !first.enabled {
			t.Fatal("expected first marketplace enabled")
		}
		if got := sched.registry.Enabled(testUser); len(got) != 1 || got[0] != first.id {
			t.Errorf("expected registry to hold %s, got %v", first.id, got)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.markets.Items()[0].(marketItem).enabled {
			t.Error("expected second toggle to disable")
		}
	})

	t.Run("Start Without Marketplaces", func(t *testing.T) {
		m, sched := newTestModel(nil, nil)

		m.Update(runes("s"))
		if !errors.Is(m.err, shared.ErrNoMarketplaceSelected) {
			t.Fatalf("expected ErrNoMarketplaceSelected, got %v", m.err)
		}
		if sched.running {
			t.Error("expected scheduler not started")
		}
		if !strings.Contains(m.View(), "no marketplace selected") {
			t.Error("expected error in view")
		}
	})

	t.Run("Start And Stop", func(t *testing.T) {
		m, sched := newTestModel(nil, nil)

		m.Update(tea.KeyMsg{Type: tea.KeySpace})
		m.Update(runes("s"))
		if m.err != nil || !sched.running {
			t.Fatalf("expected running scheduler, err=%v", m.err)
		}
		if !strings.Contains(m.View(), "Working") {
			t.Error("expected working status")
		}

		m.Update(runes("x"))
		if sched.running || sched.stops != 1 {
			t.Error("expected scheduler stopped")
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m, _ := newTestModel(nil, nil)
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestModelFeed(t *testing.T) {
	updates := make(chan tasks.CycleUpdate, 32)
	m, _ := newTestModel(nil, updates)

	updates <- tasks.CycleUpdate{UserID: testUser, Phase: tasks.Completed, Marketplace: "advego", Message: "✓ Visit site +0.35 RUB", Time: time.Now()}
	exec(t, m, m.Init())

	if len(m.feed) != 1 {
		t.Fatalf("expected 1 feed entry, got %d", len(m.feed))
	}
	if !strings.Contains(m.View(), "[advego] ✓ Visit site +0.35 RUB") {
		t.Errorf("expected feed line in view:\n%s", m.View())
	}

	m.push(tasks.CycleUpdate{UserID: testUser + 1, Message: "other user"})
	if len(m.feed) != 1 {
		t.Error("expected updates for other users to be ignored")
	}

	for i := range feedSize + 5 {
		m.push(tasks.CycleUpdate{UserID: testUser, Cycle: i})
	}
	if len(m.feed) != feedSize || m.feed[len(m.feed)-1].Cycle != feedSize+4 {
		t.Errorf("expected feed capped at %d newest entries", feedSize)
	}
}

func TestModelStatsView(t *testing.T) {
	t.Run("Renders Report", func(t *testing.T) {
		stats := func(context.Context) (*formatter.StatsReport, error) {
			return &formatter.StatsReport{
				Aggregate: &models.UserAggregate{UserID: testUser, TotalEarned: decimal.RequireFromString("0.55"), TasksCompleted: 2},
			}, nil
		}
		m, _ := newTestModel(stats, nil)

		_, cmd := m.Update(runes("t"))
		if m.view != StatsView {
			t.Fatal("expected stats view")
		}
		if !strings.Contains(m.View(), "Loading") {
			t.Error("expected loading state before fetch completes")
		}

		exec(t, m, cmd)
		if !strings.Contains(m.View(), "Total earned: 0.55 RUB") {
			t.Errorf("expected report in view:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != WorkView {
			t.Error("expected esc to return to work view")
		}
	})

	t.Run("Error", func(t *testing.T) {
		stats := func(context.Context) (*formatter.StatsReport, error) {
			return nil, errors.New("database locked")
		}
		m, _ := newTestModel(stats, nil)

		_, cmd := m.Update(runes("t"))
		exec(t, m, cmd)
		if !strings.Contains(m.View(), "database locked") {
			t.Errorf("expected error in view:\n%s", m.View())
		}
	})
}
