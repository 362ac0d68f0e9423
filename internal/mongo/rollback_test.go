package mongo

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func rollbackFailures(t *testing.T, target string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.RollbackFailures.WithLabelValues(target).Write(&m))
	return m.GetCounter().GetValue()
}

// Client yang sudah di-disconnect bikin tiap langkah rollback gagal tanpa butuh server.
func TestRollbackFailuresAreLoggedAndReturned(t *testing.T) {
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	require.NoError(t, client.Disconnect(ctx))

	core, logs := observer.New(zap.ErrorLevel)
	s := NewStore(client.Database("sales_rollback"), zap.New(core))
	stockBefore, orderBefore := rollbackFailures(t, "stock"), rollbackFailures(t, "order")

	prior := sales.Order{ID: "o-1", Status: sales.StatusPending, Version: 1}
	applied := []sales.StockChange{{ProductID: "p-1", Delta: -3}, {ProductID: "p-2", Delta: -1}}
	err = s.rollback(ctx, applied, &prior, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore stock of p-2")

	entries := logs.FilterMessage("order rollback failed").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "p-2", entries[0].ContextMap()["product_id"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["delta"])
	assert.Equal(t, "p-1", entries[1].ContextMap()["product_id"])
	assert.EqualValues(t, 3, entries[1].ContextMap()["delta"])
	assert.Equal(t, "o-1", entries[2].ContextMap()["order_id"])

	assert.Equal(t, stockBefore+2, rollbackFailures(t, "stock"))
	assert.Equal(t, orderBefore+1, rollbackFailures(t, "order"))
}

func TestRollbackWithNothingAppliedIsQuiet(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &Store{log: zap.New(core)}
	require.NoError(t, s.rollback(context.Background(), nil, nil, 0))
	assert.Zero(t, logs.Len())
}
