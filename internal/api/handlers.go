// Package api serves the daemon's HTTP status and subscription endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Sources bundles what the handlers read from.
type Sources struct {
	Stats   StatsSource
	Subs    SubscriptionManager
	Players PlayerSource
	// Stale is passed to the health handler. Zero disables the degraded state.
	Stale time.Duration
}

// Handlers returns a map of path to http.Handler.
func Handlers(src Sources, logger *zap.Logger) map[string]http.Handler {
	return map[string]http.Handler{
		"/api/v1/status":      NewStatusHandler(src.Stats, src.Subs, src.Players, logger),
		"/api/v1/subscribers": NewSubscribersHandler(src.Subs, logger),
		"/api/v1/subscribe":   NewSubscribeHandler(src.Subs, logger),
		"/api/v1/unsubscribe": NewUnsubscribeHandler(src.Subs, logger),
		"/healthz":            NewHealthHandler(src.Stats, src.Subs, src.Stale, logger),
		"/metrics":            promhttp.Handler(),
	}
}

// NewMux registers every handler on a fresh mux.
func NewMux(src Sources, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	for path, h := range Handlers(src, logger) {
		mux.Handle(path, h)
	}
	return mux
}
