package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
)

type CustomerRepo struct{ db sqlx.Ext }

func NewCustomerRepo(db sqlx.Ext) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) With(tx *sqlx.Tx) *CustomerRepo { return &CustomerRepo{db: tx} }

const customerSelect = `
  SELECT c.id, c.user_id, u.username,
         COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username) AS name,
         c.phone, c.address
  FROM customers c
  JOIN users u ON u.id = c.user_id`

func (r *CustomerRepo) List() ([]domain.Customer, error) {
	var out []domain.Customer
	err := sqlx.Select(r.db, &out, customerSelect+` ORDER BY u.username`)
	return out, err
}

func (r *CustomerRepo) Get(id int64) (domain.Customer, error) {
	var c domain.Customer
	if err := sqlx.Get(r.db, &c, customerSelect+` WHERE c.id = ?`, id); err != nil {
		return domain.Customer{}, notFound(err, fmt.Sprintf("customer %d", id))
	}
	return c, nil
}

func (r *CustomerRepo) Create(c *domain.Customer) error {
	res, err := r.db.Exec(`INSERT INTO customers(user_id, phone, address) VALUES (?, ?, ?)`,
		c.UserID, c.Phone, c.Address)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}
