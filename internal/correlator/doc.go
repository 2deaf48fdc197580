// Package correlator turns periodic console snapshots of the game server into
// edge-triggered spawn, death and kill events.
//
// # Contract
//
// Each poll cycle:
//  1. Fetches five tables concurrently (pawns, player states, leaderboards,
//     last hits, dead flags) through a console.Querier
//  2. Validates them as one coherent snapshot; any mismatch discards the cycle
//  3. Reconciles the snapshot into the pawn and kill caches
//  4. Publishes deaths, then kills, then spawns to the current subscribers
//
// # Scheduling
//
// A single goroutine owns both caches. At most one fetch is in flight; ticks
// that fire meanwhile are skipped. The janitor runs on the same goroutine and
// evicts pawns idle for longer than the retention window. The kill cache lives
// for the lifetime of the Correlator.
//
// # Constructor
//
//	func New(q console.Querier, resolver roster.Resolver, subs Subscribers, logger *zap.Logger, opts Options) *Correlator
//	func (c *Correlator) Start(ctx context.Context) error  // blocking
//	func (c *Correlator) Stats() Stats
package correlator
