// Package notifier fans derived events out to subscribers.
//
// # Contract
//
// The Dispatcher:
//  1. Receives the events of one reconciliation cycle, already ordered
//     deaths, kills, spawns
//  2. Hands each event to every subscriber in registration order
//  3. Waits out a subscriber's rate limit instead of dropping; an event is
//     skipped, with a metric, only when the publish context ends first
//  4. Logs and counts send errors and panics; one failing subscriber never
//     stops delivery to the others or affects the caller
//
// Delivery is fire-and-forget. Senders own their transport:
//   - WebhookSender queues an Envelope and POSTs it once, in send order
//   - NATSSender publishes an Envelope on "<subject>.<event>"
//
// # Rate Limiting
//
// Token bucket per subscriber name: default 50 events/second, burst 100.
//
// # Types
//
//	type Dispatcher struct { ... }
//	func NewDispatcher(logger *zap.Logger, opts DispatcherOptions) *Dispatcher
//	func (d *Dispatcher) Publish(ctx context.Context, subscribers []Sender, events ...types.Event)
package notifier
