package sales_test

import (
	"testing"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.CreateUser(f.ctx, sales.UserInput{Name: " Carol ", Email: "Carol@Example.COM", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "Carol", u.Name)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.NotEmpty(t, u.ID)

	_, err = f.svc.CreateUser(f.ctx, sales.UserInput{Name: "Other", Email: "carol@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, sales.ErrAlreadyExists)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]sales.UserInput{
		"no name":        {Email: "x@example.com", Password: "secret123"},
		"bad email":      {Name: "X", Email: "not-an-email", Password: "secret123"},
		"short password": {Name: "X", Email: "x@example.com", Password: "abc"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateUser(f.ctx, in)
			require.ErrorIs(t, err, sales.ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)

	token, err := f.svc.Authenticate(f.ctx, sales.Credentials{Email: "ALICE@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "token-"+f.alice.ID.String(), token)

	_, err = f.svc.Authenticate(f.ctx, sales.Credentials{Email: "alice@example.com", Password: "wrong"})
	require.ErrorIs(t, err, sales.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(f.ctx, sales.Credentials{Email: "nobody@example.com", Password: "secret123"})
	require.ErrorIs(t, err, sales.ErrNotFound)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	who, err := f.svc.Me(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, f.alice, who)

	_, err = f.svc.Me(f.ctx, sales.Identity{})
	require.ErrorIs(t, err, sales.ErrNotAuthorized)
}
