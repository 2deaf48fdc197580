// Package console issues read-only queries against a game server's console
// and collects the output lines that answer them.
//
// # Contract
//
// A Console owns one line Source (the server's stdout or its log file) and one
// command sink (the server's stdin). Every line read from the source has its
// "[2022.04.23-21.43.36:264][474]" prefix stripped and is broadcast to all
// in-flight queries; each query keeps only the lines its own pattern matches.
// Concurrent queries therefore never need the output to arrive in the order
// the commands were written, as long as their patterns are disjoint.
//
// Identical commands print identical lines, so queries sharing a command run
// one after another: a second query waits until the first returns before its
// command is written. The wait counts against the second query's Timeout.
//
// Two extraction modes are supported:
//
//   - Flat: Query matches each relevant line into one Match.
//   - Nested: QueryNested starts a Group at every header match and attaches the
//     following child matches to the most recent header.
//
// A query stops at the first of: its Last predicate returning true, Idle
// elapsing since the latest match, or Timeout. Running out of time is not an
// error; whatever was collected is returned.
//
// # Types
//
//	type Querier interface {
//	    Query(ctx, command, pattern, opts) ([]Match, error)
//	    QueryNested(ctx, command, header, child, opts) ([]Group, error)
//	}
//
//	func New(source Source, commands io.Writer, logger *zap.Logger) *Console
//	func (c *Console) Run(ctx context.Context) error  // blocking
package console
