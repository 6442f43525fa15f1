package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
)

type CategoryRepo struct{ db sqlx.Ext }

func NewCategoryRepo(db sqlx.Ext) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) With(tx *sqlx.Tx) *CategoryRepo { return &CategoryRepo{db: tx} }

func (r *CategoryRepo) List() ([]domain.Category, error) {
	var out []domain.Category
	err := sqlx.Select(r.db, &out, `
  SELECT id, name, description
  FROM categories
  ORDER BY name COLLATE NOCASE
`)
	return out, err
}

func (r *CategoryRepo) Get(id int64) (domain.Category, error) {
	var c domain.Category
	if err := sqlx.Get(r.db, &c, `SELECT id, name, description FROM categories WHERE id = ?`, id); err != nil {
		return domain.Category{}, notFound(err, fmt.Sprintf("category %d", id))
	}
	return c, nil
}

// NameTaken reports whether another category already uses name, ignoring case.
func (r *CategoryRepo) NameTaken(name string, exceptID int64) (bool, error) {
	var n int
	err := sqlx.Get(r.db, &n, `SELECT COUNT(*) FROM categories WHERE LOWER(name) = LOWER(?) AND id <> ?`, name, exceptID)
	return n > 0, err
}

func (r *CategoryRepo) Create(c *domain.Category) error {
	res, err := r.db.Exec(`INSERT INTO categories(name, description) VALUES (?, ?)`, c.Name, c.Description)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *CategoryRepo) Update(c *domain.Category) error {
	res, err := r.db.Exec(`UPDATE categories SET name = ?, description = ? WHERE id = ?`, c.Name, c.Description, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete detaches products from the category, then removes it. Run inside a tx.
func (r *CategoryRepo) Delete(id int64) error {
	if _, err := r.db.Exec(`UPDATE products SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.Exec(`DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
