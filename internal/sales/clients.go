package sales

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func (s *Service) CreateClient(ctx context.Context, who Identity, in ClientInput) (Client, error) {
	if err := requireCaller(who); err != nil {
		return Client{}, err
	}
	if err := in.validate(); err != nil {
		return Client{}, err
	}
	email := normalizeEmail(in.Email)
	if err := s.clientEmailFree(ctx, email, ""); err != nil {
		return Client{}, err
	}

	c := Client{
		ID:        NewID(),
		Name:      strings.TrimSpace(in.Name),
		Surname:   strings.TrimSpace(in.Surname),
		Company:   strings.TrimSpace(in.Company),
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		Owner:     who.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateClient(ctx, c); err != nil {
		return Client{}, err
	}
	return c, nil
}

// ownedClient loads a client the caller owns.
func (s *Service) ownedClient(ctx context.Context, who Identity, id ID) (Client, error) {
	if err := requireCaller(who); err != nil {
		return Client{}, err
	}
	c, err := s.Store.Client(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if err := Authorize(c.Owner, who.ID); err != nil {
		return Client{}, err
	}
	return c, nil
}

func (s *Service) Client(ctx context.Context, who Identity, id ID) (Client, error) {
	return s.ownedClient(ctx, who, id)
}

func (s *Service) MyClients(ctx context.Context, who Identity) ([]Client, error) {
	if err := requireCaller(who); err != nil {
		return nil, err
	}
	return s.Store.Clients(ctx, ClientFilter{Owner: who.ID})
}

func (s *Service) UpdateClient(ctx context.Context, who Identity, id ID, patch ClientPatch) (Client, error) {
	c, err := s.ownedClient(ctx, who, id)
	if err != nil {
		return Client{}, err
	}
	before := c.Email
	if err := patch.apply(&c); err != nil {
		return Client{}, err
	}
	if c.Email != before {
		if err := s.clientEmailFree(ctx, c.Email, c.ID); err != nil {
			return Client{}, err
		}
	}
	if err := s.Store.UpdateClient(ctx, c); err != nil {
		return Client{}, err
	}
	return c, nil
}

func (s *Service) DeleteClient(ctx context.Context, who Identity, id ID) error {
	if _, err := s.ownedClient(ctx, who, id); err != nil {
		return err
	}
	return s.Store.DeleteClient(ctx, id)
}

func (s *Service) clientEmailFree(ctx context.Context, email string, self ID) error {
	c, err := s.Store.ClientByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return errors.Wrap(err, "check client email")
	case c.ID != self:
		return &AlreadyExistsError{Kind: KindClient, Key: email}
	}
	return nil
}
