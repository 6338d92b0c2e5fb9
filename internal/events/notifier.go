package events

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/resilience"
)

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Notifier publishes run events. Publishing is best effort: failures are
// logged and counted but never returned to the pipeline.
type Notifier struct {
	publisher Publisher
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewNotifier wraps publisher. breaker and m may be nil.
func NewNotifier(publisher Publisher, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Notifier {
	return &Notifier{
		publisher: publisher,
		breaker:   breaker,
		metrics:   m,
		logger:    slog.Default().With("component", "run-notifier"),
	}
}

// Notify publishes ev keyed by run ID so all events of a run land on one
// partition.
func (n *Notifier) Notify(ctx context.Context, ev RunEvent) {
	event := kafka.Event{
		Key:     ev.RunID,
		Value:   ev,
		Headers: map[string]string{"type": string(ev.Type), "kind": string(ev.Kind)},
	}
	publish := func(ctx context.Context) error {
		return n.publisher.Publish(ctx, event)
	}
	var err error
	if n.breaker != nil {
		err = n.breaker.Execute(ctx, publish)
	} else {
		err = publish(ctx)
	}

	status := "published"
	if err != nil {
		status = "error"
		n.logger.Warn("run event not published",
			"type", ev.Type,
			"run_id", ev.RunID,
			"kind", ev.Kind,
			"error", err,
		)
	}
	if n.metrics != nil {
		n.metrics.EventsPublished.WithLabelValues(string(ev.Type), status).Inc()
	}
}
