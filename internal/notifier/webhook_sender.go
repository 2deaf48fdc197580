package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/types"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultWebhookQueue   = 100
)

// WebhookSenderConfig describes one plugin reached over HTTP.
type WebhookSenderConfig struct {
	// Name is the subscriber name this webhook serves.
	Name               string
	URL                string
	TimeoutSeconds     int
	InsecureSkipVerify bool
	// Events restricts delivery to these event names ("death" or "ondeath:death").
	// Empty means all events.
	Events []string
	// AuthToken is sent as a bearer token.
	AuthToken string
	// QueueSize bounds events waiting for delivery. Zero means 100.
	QueueSize int
}

// WebhookSender POSTs each event to a plugin's endpoint as an Envelope.
//
// Events are queued by Send and posted one at a time, in Send order, by a
// single delivery goroutine. Every envelope is posted exactly once. A failed
// post, whether refused, timed out or answered outside 2xx, is logged and
// counted and the next envelope follows.
type WebhookSender struct {
	logger *zap.Logger
	name   string
	target endpoint
	events eventFilter
	queue  chan Envelope
	now    func() time.Time

	startOnce sync.Once
	done      chan struct{}

	// failing is owned by the delivery goroutine.
	failing int
}

// NewWebhookSender validates cfg and returns an idle sender. Call Start to
// begin delivery.
func NewWebhookSender(logger *zap.Logger, cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.Name == "" {
		return nil, errors.New("webhook subscriber name is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	target, err := newEndpoint(cfg.URL, cfg.AuthToken, timeout, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultWebhookQueue
	}

	logger = logger.Named("webhook-sender").With(zap.String("subscriber", cfg.Name))
	if cfg.InsecureSkipVerify {
		logger.Warn("Webhook TLS certificate verification is disabled, this is insecure",
			zap.String("url", RedactURL(cfg.URL)))
	}
	return &WebhookSender{
		logger: logger,
		name:   cfg.Name,
		target: target,
		events: newEventFilter(cfg.Events),
		queue:  make(chan Envelope, queueSize),
		now:    time.Now,
		done:   make(chan struct{}),
	}, nil
}

// Name implements Sender.
func (ws *WebhookSender) Name() string { return ws.name }

// Start implements Sender. Delivery stops when ctx is cancelled, after the
// envelopes already queued have each been posted once.
func (ws *WebhookSender) Start(ctx context.Context) {
	ws.startOnce.Do(func() {
		ws.logger.Info("Webhook sender started", zap.String("url", RedactURL(ws.target.url)))
		go ws.deliver(ctx)
	})
}

// Close blocks until delivery has stopped. Call it after cancelling the
// context given to Start. Close on a sender never started returns at once.
func (ws *WebhookSender) Close() {
	started := true
	ws.startOnce.Do(func() { started = false })
	if started {
		<-ws.done
	}
}

// Send implements Sender. It queues the event and returns; it never waits
// on the network. A full queue drops the event and returns an error.
func (ws *WebhookSender) Send(_ context.Context, ev types.Event) error {
	if !ws.events.accepts(ev.Name()) {
		webhookSendTotal.WithLabelValues("filtered").Inc()
		return nil
	}
	select {
	case ws.queue <- NewEnvelope(ws.name, ev, ws.now()):
		return nil
	default:
		webhookSendTotal.WithLabelValues("dropped").Inc()
		ws.logger.Warn("Webhook queue full, dropping event", zap.String("event", ev.Name()))
		return fmt.Errorf("webhook %s: queue full", ws.name)
	}
}

func (ws *WebhookSender) deliver(ctx context.Context) {
	defer close(ws.done)
	defer ws.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-ws.queue:
			if ctx.Err() != nil {
				ws.deliverDetached(env)
				return
			}
			ws.deliverOne(ctx, env)
		}
	}
}

// flush posts what is still queued at shutdown.
func (ws *WebhookSender) flush() {
	for {
		select {
		case env := <-ws.queue:
			ws.deliverDetached(env)
		default:
			return
		}
	}
}

// deliverDetached posts env on its own timeout, outside the cancelled run context.
func (ws *WebhookSender) deliverDetached(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), ws.target.client.Timeout)
	defer cancel()
	ws.deliverOne(ctx, env)
}

func (ws *WebhookSender) deliverOne(ctx context.Context, env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		ws.logger.Error("Encode webhook envelope", zap.String("event", env.Type), zap.Error(err))
		return
	}

	start := time.Now()
	status, err := ws.target.post(ctx, body)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		webhookSendDuration.WithLabelValues("error").Observe(elapsed)
		ws.failing++
		ws.logger.Warn("Webhook delivery failed, event not resent",
			zap.String("event", env.Type),
			zap.Int("status", status),
			zap.Int("consecutiveFailures", ws.failing),
			zap.Error(err),
		)
		return
	}

	webhookSendTotal.WithLabelValues("success").Inc()
	webhookSendDuration.WithLabelValues("success").Observe(elapsed)
	if ws.failing > 0 {
		ws.logger.Info("Webhook delivery recovered", zap.Int("failedBefore", ws.failing))
		ws.failing = 0
	}
}
