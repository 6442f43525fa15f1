package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
)

type SupplierRepo struct{ db sqlx.Ext }

func NewSupplierRepo(db sqlx.Ext) *SupplierRepo { return &SupplierRepo{db: db} }

func (r *SupplierRepo) With(tx *sqlx.Tx) *SupplierRepo { return &SupplierRepo{db: tx} }

func (r *SupplierRepo) List() ([]domain.Supplier, error) {
	var out []domain.Supplier
	err := sqlx.Select(r.db, &out, `
  SELECT id, name, contact_email, phone
  FROM suppliers
  ORDER BY name COLLATE NOCASE
`)
	return out, err
}

func (r *SupplierRepo) Get(id int64) (domain.Supplier, error) {
	var s domain.Supplier
	if err := sqlx.Get(r.db, &s, `SELECT id, name, contact_email, phone FROM suppliers WHERE id = ?`, id); err != nil {
		return domain.Supplier{}, notFound(err, fmt.Sprintf("supplier %d", id))
	}
	return s, nil
}

func (r *SupplierRepo) Create(s *domain.Supplier) error {
	res, err := r.db.Exec(`INSERT INTO suppliers(name, contact_email, phone) VALUES (?, ?, ?)`,
		s.Name, s.ContactEmail, s.Phone)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (r *SupplierRepo) Update(s *domain.Supplier) error {
	res, err := r.db.Exec(`UPDATE suppliers SET name = ?, contact_email = ?, phone = ? WHERE id = ?`,
		s.Name, s.ContactEmail, s.Phone, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("supplier %d: %w", s.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete detaches products from the supplier, then removes it. Run inside a tx.
func (r *SupplierRepo) Delete(id int64) error {
	if _, err := r.db.Exec(`UPDATE products SET supplier_id = NULL WHERE supplier_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.Exec(`DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("supplier %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
