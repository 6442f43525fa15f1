package services_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tienda/internal/domain"
	"tienda/internal/repos"
)

// Seeded accounts: admin is staff, alice owns customer 1, bob owns customer 2.
var (
	admin = domain.Principal{UserID: 1, Username: "admin", IsStaff: true}
	alice = domain.Principal{UserID: 2, Username: "alice", CustomerID: 1}
	bob   = domain.Principal{UserID: 3, Username: "bob", CustomerID: 2}
)

func seeded(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stockOf(t *testing.T, db *sqlx.DB, productID int64) int {
	t.Helper()
	qty, err := repos.NewInventoryRepo(db).Qty(productID)
	require.NoError(t, err)
	return qty
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(_ context.Context, pattern string, data any) error {
	return m.Called(pattern, data).Error(0)
}
