package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/ariefcatur/go-sales-graphql/internal/storetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Butuh MongoDB beneran: MONGO_TEST_URI=mongodb://localhost:27017/?directConnection=true
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	storetest.Run(t, func(t *testing.T) sales.Store {
		db := client.Database("sales_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		s := NewStore(db, zap.NewNop())
		require.NoError(t, s.EnsureIndexes(ctx))
		return s
	})
}
