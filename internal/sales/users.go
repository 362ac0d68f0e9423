package sales

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *Service) CreateUser(ctx context.Context, in UserInput) (User, error) {
	if err := in.validate(); err != nil {
		return User{}, err
	}
	email := normalizeEmail(in.Email)

	if _, err := s.Store.UserByEmail(ctx, email); err == nil {
		return User{}, &AlreadyExistsError{Kind: KindUser, Key: email}
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return User{}, errors.Wrap(err, "hash password")
	}
	u := User{
		ID:           NewID(),
		Name:         strings.TrimSpace(in.Name),
		Surname:      strings.TrimSpace(in.Surname),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	// unique index tetap jadi kebenaran kalau ada race
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	s.logger().Info("user created", zap.String("user_id", u.ID.String()))
	return u, nil
}

// Authenticate returns a signed token for valid credentials.
func (s *Service) Authenticate(ctx context.Context, in Credentials) (string, error) {
	u, err := s.Store.UserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return "", err
	}
	if err := s.Hasher.Compare(u.PasswordHash, in.Password); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.Tokens.Issue(u.Identity())
}

func (s *Service) Me(_ context.Context, who Identity) (Identity, error) {
	if err := requireCaller(who); err != nil {
		return Identity{}, err
	}
	return who, nil
}
