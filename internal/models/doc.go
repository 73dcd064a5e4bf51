// Package models defines the domain entities shared by the work cycle engine.
//
// The package contains two categories of types:
//
// 1. In-memory state owned by the session registry
//   - [UserSession] : enabled marketplaces, working flag and cycle counter for one user
//
// 2. Persistent entities written through the repositories package
//   - [ExchangeAccount] : marketplace credentials created by the auto registrar
//   - [Task] : a discovered task, persisted by the ledger once completed
//   - [Balance] : running earnings per (user, marketplace)
//   - [UserAggregate] : total earnings and completed task count per user
//
// Money values use [decimal.Decimal]; they are stored as canonical decimal strings so the ledger
// invariants (balance equals the sum of completed task amounts) hold exactly.
package models
