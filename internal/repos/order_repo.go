package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tienda/internal/domain"
)

type OrderRepo struct{ db sqlx.Ext }

func NewOrderRepo(db sqlx.Ext) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) With(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

const orderSelect = `
  SELECT o.id, o.customer_id,
         COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username) AS customer_name,
         o.status, o.total, o.created_at
  FROM orders o
  JOIN customers c ON c.id = o.customer_id
  JOIN users u ON u.id = c.user_id`

// Create inserts a new pending order header.
func (r *OrderRepo) Create(o *domain.Order) error {
	o.Status = domain.StatusPending
	o.CreatedAt = now()
	res, err := r.db.Exec(`
	  INSERT INTO orders(customer_id, status, total, created_at)
	  VALUES (?, ?, ?, ?)
	`, o.CustomerID, o.Status, o.Total, o.CreatedAt)
	if err != nil {
		return err
	}
	o.ID, err = res.LastInsertId()
	return err
}

// InsertItem inserts a single line item.
func (r *OrderRepo) InsertItem(it *domain.OrderItem) error {
	res, err := r.db.Exec(`
	  INSERT INTO order_items(order_id, product_id, quantity, unit_price)
	  VALUES (?, ?, ?, ?)
	`, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice)
	if err != nil {
		return err
	}
	it.ID, err = res.LastInsertId()
	return err
}

// Get loads the order header and its items.
func (r *OrderRepo) Get(id int64) (domain.Order, error) {
	var o domain.Order
	if err := sqlx.Get(r.db, &o, orderSelect+` WHERE o.id = ?`, id); err != nil {
		return domain.Order{}, notFound(err, fmt.Sprintf("order %d", id))
	}
	items, err := r.Items(id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepo) Items(orderID int64) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := sqlx.Select(r.db, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name AS product_name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id
	`, orderID)
	return items, err
}

func (r *OrderRepo) Item(orderID, itemID int64) (domain.OrderItem, error) {
	var it domain.OrderItem
	err := sqlx.Get(r.db, &it, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name AS product_name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ? AND oi.id = ?
	`, orderID, itemID)
	if err != nil {
		return domain.OrderItem{}, notFound(err, fmt.Sprintf("order item %d", itemID))
	}
	return it, nil
}

// ListAll returns every order, newest first.
func (r *OrderRepo) ListAll() ([]domain.Order, error) {
	var out []domain.Order
	err := sqlx.Select(r.db, &out, orderSelect+` ORDER BY o.created_at DESC, o.id DESC`)
	return out, err
}

// ListByCustomer returns one customer's orders, newest first.
func (r *OrderRepo) ListByCustomer(customerID int64) ([]domain.Order, error) {
	var out []domain.Order
	err := sqlx.Select(r.db, &out, orderSelect+`
		WHERE o.customer_id = ?
		ORDER BY o.created_at DESC, o.id DESC`, customerID)
	return out, err
}

func (r *OrderRepo) UpdateStatus(id int64, status domain.OrderStatus) error {
	_, err := r.db.Exec(`UPDATE orders SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *OrderRepo) UpdateCustomer(id, customerID int64) error {
	_, err := r.db.Exec(`UPDATE orders SET customer_id = ? WHERE id = ?`, customerID, id)
	return err
}

func (r *OrderRepo) SetTotal(id int64, total decimal.Decimal) error {
	_, err := r.db.Exec(`UPDATE orders SET total = ? WHERE id = ?`, total, id)
	return err
}

func (r *OrderRepo) SetItemQuantity(itemID int64, qty int) error {
	_, err := r.db.Exec(`UPDATE order_items SET quantity = ? WHERE id = ?`, qty, itemID)
	return err
}

func (r *OrderRepo) DeleteItem(itemID int64) error {
	_, err := r.db.Exec(`DELETE FROM order_items WHERE id = ?`, itemID)
	return err
}

// PendingIDs filters ids down to the orders that are still pending.
func (r *OrderRepo) PendingIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM orders WHERE status = ? AND id IN (?) ORDER BY id`, domain.StatusPending, ids)
	if err != nil {
		return nil, err
	}
	var out []int64
	err = sqlx.Select(r.db, &out, r.db.Rebind(query), args...)
	return out, err
}
