package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
)

// InventoryRepo owns the stock column of products.
type InventoryRepo struct{ db sqlx.Ext }

func NewInventoryRepo(db sqlx.Ext) *InventoryRepo { return &InventoryRepo{db: db} }

func (r *InventoryRepo) With(tx *sqlx.Tx) *InventoryRepo { return &InventoryRepo{db: tx} }

// Qty returns current stock for a product.
func (r *InventoryRepo) Qty(productID int64) (int, error) {
	var qty int
	err := sqlx.Get(r.db, &qty, `SELECT stock FROM products WHERE id = ?`, productID)
	if err != nil {
		return 0, notFound(err, fmt.Sprintf("product %d", productID))
	}
	return qty, nil
}

// Decrement atomically subtracts "by" units if enough stock exists.
func (r *InventoryRepo) Decrement(productID int64, by int) error {
	res, err := r.db.Exec(`
		UPDATE products
		SET stock = stock - ?
		WHERE id = ? AND stock >= ?
	`, by, productID, by)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("product %d (need %d): %w", productID, by, domain.ErrInsufficientStock)
	}
	return nil
}

// Increment returns "by" units to stock.
func (r *InventoryRepo) Increment(productID int64, by int) error {
	_, err := r.db.Exec(`UPDATE products SET stock = stock + ? WHERE id = ?`, by, productID)
	return err
}
