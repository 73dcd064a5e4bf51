// Package repositories implements SQLite persistence for the earnings ledger and marketplace accounts.
//
// Key Implementations:
//   - [Ledger] : transactional task completion with per-marketplace balances and per-user aggregates
//   - [AccountRepository] : marketplace credentials created by the auto registrar
//
// Money columns are TEXT holding canonical decimal strings. [Ledger.RecordCompletion] reads the
// current values, adds in Go with [decimal.Decimal] and writes them back inside one BEGIN IMMEDIATE
// transaction, so concurrent writers serialize on the SQLite write lock and the ledger invariants
// (balance equals the sum of completed amounts, total_earned equals the sum of balances) hold exactly.
package repositories
