package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/formatter"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/sessions"
	"github.com/desertthunder/exfarm/internal/tasks"
)

const feedSize = 12

// ViewState represents the current view in the TUI.
type ViewState int

const (
	WorkView ViewState = iota
	StatsView
)

// Scheduler is the part of [tasks.Scheduler] the dashboard drives.
type Scheduler interface {
	Start(ctx context.Context, user int64) error
	Stop(user int64)
	Running(user int64) bool
	Registry() *sessions.Registry
}

// StatsFunc loads the stats report for the dashboard's user.
type StatsFunc func(ctx context.Context) (*formatter.StatsReport, error)

var _ list.Item = marketItem{}

// marketItem wraps a marketplace and its enabled flag to implement [list.Item].
type marketItem struct {
	id      models.Marketplace
	name    string
	enabled bool
}

func (i marketItem) FilterValue() string { return i.name }
func (i marketItem) Title() string {
	if i.enabled {
		return "[x] " + i.name
	}
	return "[ ] " + i.name
}
func (i marketItem) Description() string { return i.id.String() }

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	user      int64
	scheduler Scheduler
	stats     StatsFunc
	updates   <-chan tasks.CycleUpdate
	width     int
	height    int
	markets   list.Model
	feed      []tasks.CycleUpdate
	report    *formatter.StatsReport
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model for user with the provided dependencies.
func NewModel(ctx context.Context, user int64, scheduler Scheduler, catalog exchanges.Catalog, stats StatsFunc, updates <-chan tasks.CycleUpdate) *Model {
	m := &Model{
		ctx:       ctx,
		view:      WorkView,
		user:      user,
		scheduler: scheduler,
		stats:     stats,
		updates:   updates,
		help:      help.New(),
		keys:      newKeyMap(),
	}

	enabled := make(map[models.Marketplace]bool)
	for _, id := range scheduler.Registry().Enabled(user) {
		enabled[id] = true
	}

	var items []list.Item
	for _, id := range catalog.IDs() {
		market, _ := catalog.Get(id)
		items = append(items, marketItem{id: id, name: market.DisplayName(), enabled: enabled[id]})
	}

	m.markets = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.markets.Title = "Marketplaces"
	m.markets.SetFilteringEnabled(false)
	m.markets.SetShowHelp(false)
	m.markets.KeyMap.Quit.SetEnabled(false)
	return m
}

// Init starts listening for cycle updates.
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.markets.SetSize(msg.Width/2, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case WorkView:
			return m.handleWorkKeys(msg)
		case StatsView:
			return m.handleStatsKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgCycleUpdate:
			m.push(msg.data.(tasks.CycleUpdate))
			return m, m.waitForUpdate()
		case MsgStatsFetched:
			res := msg.data.(statsResult)
			m.report, m.err = res.report, res.err
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.markets, cmd = m.markets.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case WorkView:
		return m.renderWork()
	case StatsView:
		return m.renderStats()
	default:
		return ""
	}
}

func (m *Model) handleWorkKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.toggleSelected()
		return m, nil
	case key.Matches(msg, m.keys.start):
		m.err = m.scheduler.Start(m.ctx, m.user)
		return m, nil
	case key.Matches(msg, m.keys.stop):
		m.scheduler.Stop(m.user)
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.stats):
		m.view = StatsView
		m.report, m.err = nil, nil
		return m, m.fetchStats()
	case key.Matches(msg, m.keys.back):
		return m, nil
	}

	var cmd tea.Cmd
	m.markets, cmd = m.markets.Update(msg)
	return m, cmd
}

func (m *Model) handleStatsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = WorkView
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.stats):
		return m, m.fetchStats()
	}
	return m, nil
}

func (m *Model) toggleSelected() {
	item, ok := m.markets.SelectedItem().(marketItem)
	if !ok {
		return
	}
	item.enabled, _ = m.scheduler.Registry().Toggle(m.user, item.id)
	m.markets.SetItem(m.markets.Index(), item)
}

// push appends an update to the feed, keeping the newest entries.
func (m *Model) push(u tasks.CycleUpdate) {
	if u.UserID != m.user {
		return
	}
	m.feed = append(m.feed, u)
	if len(m.feed) > feedSize {
		m.feed = m.feed[len(m.feed)-feedSize:]
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u, ok := <-m.updates:
			if !ok {
				return nil
			}
			return cycleUpdateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) fetchStats() tea.Cmd {
	return func() tea.Msg {
		if m.stats == nil {
			return statsFetchedMsg(nil, fmt.Errorf("stats unavailable"))
		}
		report, err := m.stats(m.ctx)
		return statsFetchedMsg(report, err)
	}
}

func (m *Model) status() string {
	snap, _ := m.scheduler.Registry().Snapshot(m.user)
	if m.scheduler.Running(m.user) {
		return styles.ok.Render(fmt.Sprintf("● Working (cycle %d)", snap.CycleCount))
	}
	return styles.help.Render(fmt.Sprintf("○ Idle (cycle %d)", snap.CycleCount))
}

func (m *Model) renderFeed() string {
	if len(m.feed) == 0 {
		return styles.help.Render("No activity yet")
	}

	var b strings.Builder
	for i, u := range m.feed {
		if i > 0 {
			b.WriteString("\n")
		}
		line := u.Time.Format("15:04:05") + " "
		if u.Marketplace != "" {
			line += "[" + u.Marketplace.String() + "] "
		}
		b.WriteString(styles.Phase(u.Phase).Render(line + u.Message))
	}
	return b.String()
}

func (m *Model) renderWork() string {
	title := styles.title.Render(fmt.Sprintf("exfarm · user %d", m.user))
	status := m.status()
	if m.err != nil {
		status += "  " + styles.err.Render(m.err.Error())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.markets.View(), "  ", styles.box.Render(m.renderFeed()))

	helpKeys := []key.Binding{m.keys.toggle, m.keys.start, m.keys.stop, m.keys.stats, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, status, body, helpView)
}

func (m *Model) renderStats() string {
	title := styles.title.Render("Stats")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.stats, m.keys.back, m.keys.quit})

	switch {
	case m.err != nil:
		return fmt.Sprintf("%s\n%s\n\n%s", title, styles.err.Render(fmt.Sprintf("Error: %v", m.err)), helpView)
	case m.report == nil:
		return fmt.Sprintf("%s\nLoading...\n\n%s", title, helpView)
	}

	text, err := formatter.ExportStatsToText(m.report)
	if err != nil {
		return styles.err.Render(err.Error())
	}
	return fmt.Sprintf("%s\n%s\n%s", title, styles.box.Render(strings.TrimRight(string(text), "\n")), helpView)
}
