package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/exfarm/internal/formatter"
	"github.com/desertthunder/exfarm/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCycleUpdate MsgKind = iota
	MsgStatsFetched
)

type statsResult struct {
	report *formatter.StatsReport
	err    error
}

// cycleUpdateMsg is the constructor for [MsgCycleUpdate]
func cycleUpdateMsg(update tasks.CycleUpdate) Msg {
	return Msg{kind: MsgCycleUpdate, data: update}
}

// statsFetchedMsg is the constructor for [MsgStatsFetched]
func statsFetchedMsg(report *formatter.StatsReport, err error) Msg {
	return Msg{kind: MsgStatsFetched, data: statsResult{report, err}}
}
