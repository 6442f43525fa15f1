package repos

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tienda/internal/domain"
)

type ProductRepo struct{ db sqlx.Ext }

func NewProductRepo(db sqlx.Ext) *ProductRepo { return &ProductRepo{db: db} }

// With returns a repo bound to tx.
func (r *ProductRepo) With(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

// ProductFilter narrows List and Count. Zero values mean "no constraint".
type ProductFilter struct {
	Q          string
	CategoryID int64
	SupplierID int64
	PriceMin   decimal.NullDecimal
	PriceMax   decimal.NullDecimal
}

const productSelect = `
  SELECT
    p.id, p.sku, p.name, p.description,
    p.category_id, c.name AS category_name,
    p.supplier_id, s.name AS supplier_name,
    p.price, p.stock, p.created_at, p.updated_at
  FROM products p
  LEFT JOIN categories c ON c.id = p.category_id
  LEFT JOIN suppliers  s ON s.id = p.supplier_id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(q string) string { return "%" + likeEscaper.Replace(q) + "%" }

func (f ProductFilter) where() (string, []any) {
	where := `1 = 1`
	args := []any{}
	if f.Q != "" {
		where += ` AND p.name LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(f.Q))
	}
	if f.CategoryID != 0 {
		where += ` AND p.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.SupplierID != 0 {
		where += ` AND p.supplier_id = ?`
		args = append(args, f.SupplierID)
	}
	if f.PriceMin.Valid {
		where += ` AND p.price >= ?`
		args = append(args, f.PriceMin.Decimal.InexactFloat64())
	}
	if f.PriceMax.Valid {
		where += ` AND p.price <= ?`
		args = append(args, f.PriceMax.Decimal.InexactFloat64())
	}
	return where, args
}

// List returns one page of products, most recently updated first.
func (r *ProductRepo) List(f ProductFilter, limit, offset int) ([]domain.Product, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	var out []domain.Product
	err := sqlx.Select(r.db, &out, productSelect+`
  WHERE `+where+`
  ORDER BY p.updated_at DESC, p.id DESC
  LIMIT ? OFFSET ?`, args...)
	return out, err
}

func (r *ProductRepo) Count(f ProductFilter) (int, error) {
	where, args := f.where()
	var n int
	err := sqlx.Get(r.db, &n, `SELECT COUNT(*) FROM products p WHERE `+where, args...)
	return n, err
}

func (r *ProductRepo) Get(id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.Get(r.db, &p, productSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return domain.Product{}, notFound(err, fmt.Sprintf("product %d", id))
	}
	return p, nil
}

// All returns every product ordered by id, for exports.
func (r *ProductRepo) All() ([]domain.Product, error) {
	var out []domain.Product
	err := sqlx.Select(r.db, &out, productSelect+` ORDER BY p.id`)
	return out, err
}

// Search matches q against product names; blank q matches nothing.
func (r *ProductRepo) Search(q string, limit int) ([]domain.Product, error) {
	if q == "" {
		return nil, nil
	}
	var out []domain.Product
	err := sqlx.Select(r.db, &out, productSelect+`
  WHERE p.name LIKE ? ESCAPE '\'
  ORDER BY p.name, p.id
  LIMIT ?`, containsPattern(q), limit)
	return out, err
}

func (r *ProductRepo) Create(p *domain.Product) error {
	ts := now()
	res, err := r.db.Exec(`
	  INSERT INTO products(sku, name, description, category_id, supplier_id, price, stock, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.SKU, p.Name, p.Description, p.CategoryID, p.SupplierID, p.Price, p.Stock, ts, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, ts, ts
	return nil
}

func (r *ProductRepo) Update(p *domain.Product) error {
	ts := now()
	res, err := r.db.Exec(`
	  UPDATE products
	  SET sku = ?, name = ?, description = ?, category_id = ?, supplier_id = ?, price = ?, stock = ?, updated_at = ?
	  WHERE id = ?
	`, p.SKU, p.Name, p.Description, p.CategoryID, p.SupplierID, p.Price, p.Stock, ts, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	p.UpdatedAt = ts
	return nil
}

// ItemRefs counts order items pointing at the product.
func (r *ProductRepo) ItemRefs(id int64) (int, error) {
	var n int
	err := sqlx.Get(r.db, &n, `SELECT COUNT(*) FROM order_items WHERE product_id = ?`, id)
	return n, err
}

// Delete removes the product unless an order item still references it.
func (r *ProductRepo) Delete(id int64) error {
	refs, err := r.ItemRefs(id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("product %d has %d order items: %w", id, refs, domain.ErrReferentialIntegrity)
	}
	res, err := r.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
