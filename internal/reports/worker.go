package reports

import (
	"context"

	kafkax "github.com/ariefcatur/go-sales-graphql/internal/kafka"
	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Cache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
	InvalidateReports(ctx context.Context) (int, error)
}

// Worker drops cached leaderboards when an order event can change them.
type Worker struct {
	Cache Cache
	Log   *zap.Logger
}

// HandleOrderEvent: dipasang sebagai handler consumer.
func (w *Worker) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// pesan rusak tidak akan pernah sukses, commit saja
		w.Log.Warn("drop malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case sales.EventOrderPlaced, sales.EventOrderRevised, sales.EventOrderDeleted:
	default:
		return nil // ignore
	}
	metrics.EventsConsumed.WithLabelValues(env.EventType).Inc()

	// 2) hanya order COMPLETED yang masuk leaderboard
	p, err := kafkax.UnwrapPayload[sales.OrderEventPayload](env.Payload)
	if err != nil {
		w.Log.Warn("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.Status != sales.StatusCompleted {
		return nil
	}

	// 3) dedup via Redis (pakai event_id)
	seen, err := w.Cache.Seen(ctx, env.EventID)
	if err != nil {
		return errors.Wrap(err, "dedup")
	}
	if seen {
		return nil
	}

	n, err := w.Cache.InvalidateReports(ctx)
	if err != nil {
		return err
	}
	if err := w.Cache.MarkSeen(ctx, env.EventID); err != nil {
		w.Log.Warn("mark event seen", zap.String("event_id", env.EventID), zap.Error(err))
	}
	w.Log.Info("reports invalidated",
		zap.String("event", env.EventType),
		zap.String("order_id", p.OrderID.String()),
		zap.Int("keys", n),
	)
	return nil
}
