package domain

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

type Supplier struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	ContactEmail string `db:"contact_email"`
	Phone        string `db:"phone"`
}

type Product struct {
	ID           int64           `db:"id"`
	SKU          sql.NullString  `db:"sku"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	CategoryID   sql.NullInt64   `db:"category_id"`
	CategoryName sql.NullString  `db:"category_name"`
	SupplierID   sql.NullInt64   `db:"supplier_id"`
	SupplierName sql.NullString  `db:"supplier_name"`
	Price        decimal.Decimal `db:"price"`
	Stock        int             `db:"stock"`
	CreatedAt    string          `db:"created_at"`
	UpdatedAt    string          `db:"updated_at"`
}

// StockLevel is IN_STOCK | LOW_STOCK | OUT_OF_STOCK.
func (p Product) StockLevel() string {
	return StockLevel(p.Stock)
}

func StockLevel(qty int) string {
	switch {
	case qty >= 5:
		return "IN_STOCK"
	case qty > 0:
		return "LOW_STOCK"
	}
	return "OUT_OF_STOCK"
}

type User struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Hash      string `db:"password_hash"`
	IsStaff   bool   `db:"is_staff"`
}

func (u User) DisplayName() string {
	full := u.FirstName
	if u.LastName != "" {
		if full != "" {
			full += " "
		}
		full += u.LastName
	}
	if full == "" {
		return u.Username
	}
	return full
}

type Customer struct {
	ID       int64  `db:"id"`
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Name     string `db:"name"`
	Phone    string `db:"phone"`
	Address  string `db:"address"`
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "P"
	StatusCompleted OrderStatus = "C"
	StatusCanceled  OrderStatus = "X"
)

func (s OrderStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	case StatusCanceled:
		return "Canceled"
	}
	return string(s)
}

func (s OrderStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusCanceled
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

type Order struct {
	ID           int64           `db:"id"`
	CustomerID   int64           `db:"customer_id"`
	CustomerName string          `db:"customer_name"`
	Status       OrderStatus     `db:"status"`
	Total        decimal.Decimal `db:"total"`
	CreatedAt    string          `db:"created_at"`
	Items        []OrderItem     `db:"-"`
}

type OrderItem struct {
	ID          int64           `db:"id"`
	OrderID     int64           `db:"order_id"`
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// SumLines is the order total for a fixed item set.
func SumLines(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}
