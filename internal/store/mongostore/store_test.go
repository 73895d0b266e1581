package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenstem/order-pipeline/internal/model"
)

// Tests run only against a live Mongo, e.g.
//
//	MONGO_URI=mongodb://localhost:27017 go test ./internal/store/mongostore
func connect(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, client, err := Connect(ctx, uri, "orderpipeline_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	return st
}

func TestProductRoundTrip(t *testing.T) {
	st := connect(t)
	ctx := context.Background()
	id := "product-" + uuid.NewString()

	require.NoError(t, st.Products().Put(ctx, model.Product{ID: id, Title: "Monstera", Stock: 9}))
	p, err := st.Products().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.Stock)

	got, err := st.Products().GetMulti(ctx, []string{id, "missing-" + uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDecrementStockConditional(t *testing.T) {
	st := connect(t)
	ctx := context.Background()
	id := "product-" + uuid.NewString()
	require.NoError(t, st.Products().Put(ctx, model.Product{ID: id, Stock: 5}))

	require.NoError(t, st.Products().DecrementStock(ctx, id, 3))
	err := st.Products().DecrementStock(ctx, id, 3)
	assert.Equal(t, model.CodeInsufficientStock, model.CodeOf(err))

	p, err := st.Products().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Stock)

	err = st.Products().DecrementStock(ctx, "missing-"+uuid.NewString(), 1)
	assert.Equal(t, model.CodeNotFound, model.CodeOf(err))
}

func TestProfileSetRoleUpserts(t *testing.T) {
	st := connect(t)
	ctx := context.Background()
	uid := "user-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, st.Profiles().SetRole(ctx, uid, model.RoleModerator, now))
	p, err := st.Profiles().Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, p.Role)
}

func TestAuditAppendAndExists(t *testing.T) {
	st := connect(t)
	ctx := context.Background()
	orderID := "order-" + uuid.NewString()

	entry := model.AuditLogEntry{
		ID:        uuid.NewString(),
		Action:    model.AuditOrderCreated,
		UserID:    "u1",
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, st.Audit().Append(ctx, entry))

	ok, err := st.Audit().Exists(ctx, model.AuditOrderCreated, orderID)
	require.NoError(t, err)
	assert.True(t, ok)
}
