package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStockLevel(t *testing.T) {
	cases := map[int]string{
		0:   "OUT_OF_STOCK",
		1:   "LOW_STOCK",
		4:   "LOW_STOCK",
		5:   "IN_STOCK",
		120: "IN_STOCK",
	}
	for qty, want := range cases {
		assert.Equal(t, want, StockLevel(qty), "qty=%d", qty)
	}
}

func TestSumLines(t *testing.T) {
	items := []OrderItem{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}
	assert.Equal(t, "40.28", SumLines(items).StringFixed(2))
	assert.True(t, SumLines(nil).IsZero())
}

func TestPrincipalOrderAccess(t *testing.T) {
	pending := Order{ID: 1, CustomerID: 7, Status: StatusPending}
	done := Order{ID: 2, CustomerID: 7, Status: StatusCompleted}

	anon := Principal{}
	owner := Principal{UserID: 2, CustomerID: 7}
	other := Principal{UserID: 3, CustomerID: 8}
	noProfile := Principal{UserID: 4}
	staff := Principal{UserID: 1, IsStaff: true}

	assert.False(t, anon.CanViewOrder(pending))
	assert.True(t, owner.CanViewOrder(pending))
	assert.False(t, other.CanViewOrder(pending))
	assert.False(t, noProfile.CanViewOrder(Order{CustomerID: 0}))
	assert.True(t, staff.CanViewOrder(pending))

	assert.True(t, owner.CanModifyOrder(pending))
	assert.False(t, owner.CanModifyOrder(done))
	assert.False(t, staff.CanModifyOrder(done))

	assert.True(t, staff.CanManageCatalog())
	assert.False(t, owner.CanManageCatalog())
	assert.False(t, Principal{IsStaff: true}.CanManageCatalog(), "staff flag without a user is anonymous")
}

func TestOrderStatus(t *testing.T) {
	assert.Equal(t, "Pending", StatusPending.Label())
	assert.Equal(t, "Canceled", StatusCanceled.Label())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, OrderStatus("Z").Valid())
}

func TestValidationError(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.OrNil())

	verr.Add("price", "first")
	verr.Add("price", "second")
	verr.Add("name", "required")

	err := verr.OrNil()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "first", verr.Fields["price"])
	assert.Equal(t, "validation failed: name: required; price: first", err.Error())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", User{Username: "alice"}.DisplayName())
	assert.Equal(t, "Alice Liddell", User{Username: "alice", FirstName: "Alice", LastName: "Liddell"}.DisplayName())
	assert.Equal(t, "Liddell", User{Username: "alice", LastName: "Liddell"}.DisplayName())
}
