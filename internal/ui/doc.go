// Package ui implements the work dashboard using bubbletea's Elm architecture.
//
// The dashboard has two views:
//  1. [WorkView] : Toggle marketplaces, start and stop the work loop, and watch a live feed of cycle events
//  2. [StatsView] : Earnings, balances and status rendered by the formatter package
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Cycle updates flow through a channel from the [tasks.Scheduler]; the scheduler never blocks on a slow terminal.
//
// Keyboard navigation uses vim-style bindings (j/k, space, s/x, t, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
