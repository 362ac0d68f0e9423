package sales

import (
	"context"
	"strings"
	"time"
)

func (s *Service) Product(ctx context.Context, id ID) (Product, error) {
	return s.Store.Product(ctx, id)
}

func (s *Service) Products(ctx context.Context) ([]Product, error) {
	return s.Store.Products(ctx)
}

func (s *Service) SearchProducts(ctx context.Context, text string) ([]Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "required")
	}
	return s.Store.SearchProducts(ctx, text, SearchLimit)
}

// Product writes need a caller but no ownership: the catalogue is shared.

func (s *Service) CreateProduct(ctx context.Context, who Identity, in ProductInput) (Product, error) {
	if err := requireCaller(who); err != nil {
		return Product{}, err
	}
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	p := Product{
		ID:         NewID(),
		Name:       strings.TrimSpace(in.Name),
		Stock:      in.Stock,
		PriceCents: in.PriceCents,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.CreateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, who Identity, id ID, patch ProductPatch) (Product, error) {
	if err := requireCaller(who); err != nil {
		return Product{}, err
	}
	p, err := s.Store.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := patch.apply(&p); err != nil {
		return Product{}, err
	}
	if err := s.Store.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, who Identity, id ID) error {
	if err := requireCaller(who); err != nil {
		return err
	}
	return s.Store.DeleteProduct(ctx, id)
}
