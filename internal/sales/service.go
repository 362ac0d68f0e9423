package sales

import (
	"context"

	"go.uber.org/zap"
)

const (
	SearchLimit         = 10
	TopClientsLimit     = 10
	TopSalespeopleLimit = 3
)

// Publisher sends order events downstream. Delivery is best effort.
type Publisher interface {
	PublishEvent(ctx context.Context, ev Envelope) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenIssuer interface {
	Issue(id Identity) (string, error)
}

type Service struct {
	Store Store
	// Reports overrides Store for leaderboard reads (e.g. a cache). Optional.
	Reports   ReportStore
	Publisher Publisher
	Hasher    PasswordHasher
	Tokens    TokenIssuer
	Log       *zap.Logger
	Name      string
}

func NewService(store Store, hasher PasswordHasher, tokens TokenIssuer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Hasher: hasher, Tokens: tokens, Log: log, Name: "sales-api"}
}

type traceKey struct{}

// WithTraceID attaches the request id carried into published events.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) reports() ReportStore {
	if s.Reports != nil {
		return s.Reports
	}
	return s.Store
}

func (s *Service) publish(ctx context.Context, eventType string, o Order) {
	if s.Publisher == nil {
		return
	}
	ev, err := NewOrderEvent(eventType, s.Name, traceID(ctx), o)
	if err == nil {
		err = s.Publisher.PublishEvent(ctx, ev)
	}
	if err != nil {
		s.logger().Warn("publish order event",
			zap.String("event", eventType), zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}

func requireCaller(who Identity) error {
	if who.Anonymous() {
		return ErrNotAuthorized
	}
	return nil
}
