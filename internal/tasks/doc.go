// Package tasks runs the per-user work loop that farms tasks across enabled marketplaces.
//
// # Work Loop
//
// [Scheduler.Start] spawns one goroutine per user. Each iteration increments the user's cycle
// count and, for every enabled marketplace in sorted order:
//
//  1. Ensures an account exists ([AccountProvider], normally the registrar)
//  2. Enforces the daily task limit
//  3. Discovers an offered task and filters it by the configured price range
//  4. Executes the task and records it in the [Ledger] when auto-accept is on, or
//     notifies the user about the offer otherwise
//
// Between iterations the loop sleeps for the check interval. The sleep returns early when the
// context is cancelled and re-checks the session registry on a short ticker, so [Scheduler.Stop]
// or an emptied marketplace set is observed in well under a second.
//
// Transient failures ([shared.ErrWorkCycleTransient]) inside a cycle are logged and replace the
// next sleep with the error backoff. Notification failures never stop the loop.
//
// # Progress Reporting
//
// The [CycleUpdate] struct carries the phase, cycle number, marketplace and, for offered or
// completed work, the task itself. Updates use select with default to prevent blocking.
package tasks
