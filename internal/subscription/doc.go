// Package subscription tracks which plugins receive events.
//
// # State machine
//
// Per plugin name: unknown -> subscribed on a subscribe request when the
// Directory can resolve the name, otherwise the request is a no-op with a
// warning. subscribed -> unknown on an unsubscribe request. Every request
// persists the full, ordered list of subscribed names through a Store.
//
// On Init the persisted names are re-subscribed in order; names that no
// longer resolve are dropped from the persisted list.
//
// Requests arrive as ondeath:subscribe / ondeath:unsubscribe events (see
// HandleEvent), over NATS (see Listen) or through the HTTP API.
package subscription
