package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/subscription"
)

// SubscriptionManager is the subscription surface the API drives.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, name string) error
	Unsubscribe(ctx context.Context, name string) error
	Names() []string
}

// SubscribersResponse is the wire format for GET /api/v1/subscribers and the
// subscribe and unsubscribe endpoints.
type SubscribersResponse struct {
	Subscribers []string `json:"subscribers"`
}

// SubscriptionRequest is the body of POST /api/v1/subscribe and /api/v1/unsubscribe.
type SubscriptionRequest struct {
	From string `json:"from"`
}

// SubscribersHandler handles GET /api/v1/subscribers.
type SubscribersHandler struct {
	logger *zap.Logger
	subs   SubscriptionManager
}

// NewSubscribersHandler creates a new SubscribersHandler.
func NewSubscribersHandler(subs SubscriptionManager, logger *zap.Logger) *SubscribersHandler {
	return &SubscribersHandler{
		logger: logger.Named("subscribers"),
		subs:   subs,
	}
}

// ServeHTTP implements http.Handler.
func (h *SubscribersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeSubscribers(w, h.logger, h.subs.Names())
}

// SubscriptionHandler handles POST /api/v1/subscribe and /api/v1/unsubscribe.
type SubscriptionHandler struct {
	logger      *zap.Logger
	subs        SubscriptionManager
	unsubscribe bool
}

// NewSubscribeHandler creates the handler for POST /api/v1/subscribe.
func NewSubscribeHandler(subs SubscriptionManager, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger.Named("subscribe"), subs: subs}
}

// NewUnsubscribeHandler creates the handler for POST /api/v1/unsubscribe.
func NewUnsubscribeHandler(subs SubscriptionManager, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger.Named("unsubscribe"), subs: subs, unsubscribe: true}
}

// ServeHTTP implements http.Handler.
func (h *SubscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SubscriptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.From == "" {
		http.Error(w, "Missing \"from\"", http.StatusBadRequest)
		return
	}

	var err error
	if h.unsubscribe {
		err = h.subs.Unsubscribe(r.Context(), req.From)
	} else {
		err = h.subs.Subscribe(r.Context(), req.From)
	}
	switch {
	case errors.Is(err, subscription.ErrUnresolvable):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("Subscription change failed", zap.String("from", req.From), zap.Error(err))
		http.Error(w, "Failed to persist subscribers", http.StatusInternalServerError)
		return
	}

	writeSubscribers(w, h.logger, h.subs.Names())
}

func writeSubscribers(w http.ResponseWriter, logger *zap.Logger, names []string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SubscribersResponse{Subscribers: nonNil(names)}); err != nil {
		logger.Error("Failed to encode subscribers response", zap.Error(err))
	}
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
