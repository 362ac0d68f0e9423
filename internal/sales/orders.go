package sales

import (
	"context"

	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"go.uber.org/zap"
)

func (s *Service) ownedOrder(ctx context.Context, who Identity, id ID) (Order, error) {
	if err := requireCaller(who); err != nil {
		return Order{}, err
	}
	o, err := s.Store.Order(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := Authorize(o.Owner, who.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Service) Order(ctx context.Context, who Identity, id ID) (Order, error) {
	return s.ownedOrder(ctx, who, id)
}

func (s *Service) MyOrders(ctx context.Context, who Identity) ([]Order, error) {
	if err := requireCaller(who); err != nil {
		return nil, err
	}
	return s.Store.Orders(ctx, OrderFilter{Owner: who.ID})
}

func (s *Service) OrdersByStatus(ctx context.Context, who Identity, status Status) ([]Order, error) {
	if err := requireCaller(who); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown status "+string(status))
	}
	return s.Store.Orders(ctx, OrderFilter{Owner: who.ID, Status: status})
}

// DeleteOrder removes the order record. Reserved stock is not returned.
func (s *Service) DeleteOrder(ctx context.Context, who Identity, id ID) error {
	o, err := s.ownedOrder(ctx, who, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteOrder(ctx, id); err != nil {
		return err
	}
	metrics.OrdersCommitted.WithLabelValues("deleted").Inc()
	s.logger().Info("order deleted", zap.String("order_id", id.String()), zap.String("owner", who.ID.String()))
	s.publish(ctx, EventOrderDeleted, o)
	return nil
}

func (s *Service) TopClients(ctx context.Context) ([]ClientRank, error) {
	return s.reports().TopClients(ctx, TopClientsLimit)
}

func (s *Service) TopSalespeople(ctx context.Context) ([]SalespersonRank, error) {
	return s.reports().TopSalespeople(ctx, TopSalespeopleLimit)
}
