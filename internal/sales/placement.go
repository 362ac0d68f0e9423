package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PlaceOrder reserves stock for every item and records a PENDING order owned by the
// caller. Items are checked in the given order; nothing is persisted until all of them
// pass, and the stock changes and the order are committed together.
func (s *Service) PlaceOrder(ctx context.Context, who Identity, in PlaceOrderInput) (Order, error) {
	if err := requireCaller(who); err != nil {
		return Order{}, err
	}
	if err := validateItems(in.Items); err != nil {
		return Order{}, err
	}
	// guard binds to the client's owner; the order itself is owned by the caller
	client, err := s.ownedClient(ctx, who, in.ClientID)
	if err != nil {
		s.rejected(ctx, "place", in.ClientID, err)
		return Order{}, err
	}

	lines, changes, total, err := s.plan(ctx, in.Items, nil)
	if err != nil {
		s.rejected(ctx, "place", client.ID, err)
		return Order{}, err
	}

	o := Order{
		ID:         NewID(),
		ClientID:   client.ID,
		Owner:      who.ID,
		Status:     StatusPending,
		Items:      lines,
		TotalCents: total,
		CreatedAt:  time.Now().UTC(),
		Version:    1,
	}
	saved, err := s.Store.CommitOrder(ctx, Plan{Changes: changes, Order: o})
	if err != nil {
		s.rejected(ctx, "place", client.ID, err)
		return Order{}, err
	}

	s.committed("placed", saved, changes)
	s.publish(ctx, EventOrderPlaced, saved)
	return saved, nil
}

// ReviseOrder overwrites client, items and status of an existing order. Replacing items
// only reserves the difference against what the order already holds, and cancelling a
// PENDING order gives its stock back.
func (s *Service) ReviseOrder(ctx context.Context, who Identity, id ID, in ReviseOrderInput) (Order, error) {
	existing, err := s.ownedOrder(ctx, who, id)
	if err != nil {
		s.rejected(ctx, "revise", id, err)
		return Order{}, err
	}

	clientID := existing.ClientID
	if in.ClientID != nil {
		clientID = *in.ClientID
	}
	// the guard binds to the target client, which may differ from the current one
	client, err := s.ownedClient(ctx, who, clientID)
	if err != nil {
		s.rejected(ctx, "revise", id, err)
		return Order{}, err
	}

	next := existing
	next.ClientID = client.ID
	next.Version = existing.Version + 1
	if in.Status != nil {
		if !in.Status.Valid() {
			return Order{}, invalid("status", "unknown status "+string(*in.Status))
		}
		if !CanTransition(existing.Status, *in.Status) {
			return Order{}, invalid("status", fmt.Sprintf("cannot move from %s to %s", existing.Status, *in.Status))
		}
		next.Status = *in.Status
	}

	var changes []StockChange
	switch {
	case in.Items != nil:
		if existing.Status != StatusPending || next.Status == StatusCanceled {
			return Order{}, invalid("items", "items can only change on a PENDING order")
		}
		if err := validateItems(in.Items); err != nil {
			return Order{}, err
		}
		lines, ch, total, err := s.plan(ctx, in.Items, existing.Quantities())
		if err != nil {
			s.rejected(ctx, "revise", id, err)
			return Order{}, err
		}
		next.Items, next.TotalCents, changes = lines, total, ch
	case existing.Status == StatusPending && next.Status == StatusCanceled:
		changes = stockChanges(nil, existing.Quantities())
	}

	saved, err := s.Store.CommitOrder(ctx, Plan{Changes: changes, Order: next, Replace: true})
	if err != nil {
		s.rejected(ctx, "revise", id, err)
		return Order{}, err
	}

	s.committed("revised", saved, changes)
	s.publish(ctx, EventOrderRevised, saved)
	return saved, nil
}

// plan checks items in the given order against current stock plus whatever the order
// already holds, and returns the priced line items with the stock changes to commit.
func (s *Service) plan(ctx context.Context, items []ItemInput, held map[ID]int) ([]LineItem, []StockChange, int, error) {
	products := make(map[ID]Product, len(items))
	requested := make(map[ID]int, len(items))
	lines := make([]LineItem, 0, len(items))
	total := 0

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			if p, err = s.Store.Product(ctx, it.ProductID); err != nil {
				return nil, nil, 0, err
			}
			products[p.ID] = p
		}

		requested[p.ID] += it.Qty
		available := p.Stock + held[p.ID]
		if requested[p.ID] > available {
			return nil, nil, 0, &InsufficientStockError{
				ProductID: p.ID, Name: p.Name, Requested: requested[p.ID], Available: available,
			}
		}

		if p.PriceCents > 0 && it.Qty > (MaxOrderTotalCents-total)/p.PriceCents {
			return nil, nil, 0, invalid("items", "order total too large")
		}
		lines = append(lines, LineItem{ProductID: p.ID, Qty: it.Qty, PriceCents: p.PriceCents})
		total += p.PriceCents * it.Qty
	}
	return lines, stockChanges(requested, held), total, nil
}

// stockChanges turns wanted and held quantities into deltas, sorted by product id so
// stores lock rows in a stable order.
func stockChanges(want, held map[ID]int) []StockChange {
	seen := make(map[ID]bool, len(want)+len(held))
	var out []StockChange
	add := func(id ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		if d := held[id] - want[id]; d != 0 {
			out = append(out, StockChange{ProductID: id, Delta: d})
		}
	}
	for id := range want {
		add(id)
	}
	for id := range held {
		add(id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *Service) committed(op string, o Order, changes []StockChange) {
	reserved := 0
	for _, c := range changes {
		if c.Delta < 0 {
			reserved -= c.Delta
		}
	}
	metrics.OrdersCommitted.WithLabelValues(op).Inc()
	metrics.UnitsReserved.Add(float64(reserved))
	s.logger().Info("order "+op,
		zap.String("order_id", o.ID.String()),
		zap.String("client_id", o.ClientID.String()),
		zap.String("owner", o.Owner.String()),
		zap.String("status", string(o.Status)),
		zap.Int("total_cents", o.TotalCents),
		zap.Int("units_reserved", reserved),
	)
}

func (s *Service) rejected(ctx context.Context, op string, ref ID, err error) {
	reason := "other"
	switch {
	case errors.Is(err, ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(err, ErrNotAuthorized):
		reason = "not_authorized"
	case errors.Is(err, ErrNotFound):
		reason = "not_found"
	case errors.Is(err, ErrConflict):
		reason = "conflict"
	}
	metrics.OrdersRejected.WithLabelValues(reason).Inc()
	s.logger().Warn("order "+op+" rejected",
		zap.String("ref", ref.String()),
		zap.String("reason", reason),
		zap.String("trace_id", traceID(ctx)),
		zap.Error(err),
	)
}
