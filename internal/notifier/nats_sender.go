package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/types"
)

// Publisher publishes raw messages on a subject. natsbus.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSSenderConfig holds the configuration for creating a NATSSender.
type NATSSenderConfig struct {
	// Name is the subscriber name.
	Name string
	// Subject is the subject prefix; events go to "<Subject>.<event>".
	Subject string
	// Events restricts delivery, as in WebhookSenderConfig.
	Events []string
}

// NATSSender delivers events to one subscriber over NATS.
type NATSSender struct {
	logger  *zap.Logger
	pub     Publisher
	name    string
	subject string
	events  eventFilter
	now     func() time.Time
}

// NewNATSSender creates a NATSSender.
func NewNATSSender(pub Publisher, logger *zap.Logger, cfg NATSSenderConfig) (*NATSSender, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("NATS subscriber name is required")
	}
	subject := strings.TrimSuffix(cfg.Subject, ".")
	if subject == "" {
		return nil, fmt.Errorf("NATS subject is required")
	}
	if strings.ContainsAny(subject, " *>") {
		return nil, fmt.Errorf("NATS subject %q must be a literal subject", subject)
	}
	return &NATSSender{
		logger:  logger.Named("nats-sender").With(zap.String("subscriber", cfg.Name)),
		pub:     pub,
		name:    cfg.Name,
		subject: subject,
		events:  newEventFilter(cfg.Events),
		now:     time.Now,
	}, nil
}

// Name implements Sender.
func (ns *NATSSender) Name() string { return ns.name }

// Start implements Sender. NATS publishes are already asynchronous.
func (ns *NATSSender) Start(context.Context) {
	ns.logger.Info("NATS sender started", zap.String("subject", ns.subject))
}

// Subject returns the subject ev is published on.
func (ns *NATSSender) Subject(ev types.Event) string {
	return ns.subject + "." + EventSuffix(ev.Name())
}

// Send implements Sender.
func (ns *NATSSender) Send(ctx context.Context, ev types.Event) error {
	if !ns.events.accepts(ev.Name()) {
		natsPublishTotal.WithLabelValues("filtered").Inc()
		return nil
	}
	body, err := json.Marshal(NewEnvelope(ns.name, ev, ns.now()))
	if err != nil {
		natsPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal NATS payload: %w", err)
	}
	if err := ns.pub.Publish(ctx, ns.Subject(ev), body); err != nil {
		natsPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", ns.Subject(ev), err)
	}
	natsPublishTotal.WithLabelValues("success").Inc()
	return nil
}
