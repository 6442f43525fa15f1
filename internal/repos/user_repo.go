package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
)

type UserRepo struct{ DB sqlx.Ext }

func NewUserRepo(db sqlx.Ext) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) With(tx *sqlx.Tx) *UserRepo { return &UserRepo{DB: tx} }

// Account is a user plus the id of its customer profile (0 when none).
type Account struct {
	domain.User
	CustomerID int64 `db:"customer_id"`
}

// Principal projects the account into the request-scoped actor.
func (a Account) Principal() domain.Principal {
	return domain.Principal{
		UserID:     a.ID,
		Username:   a.Username,
		Name:       a.DisplayName(),
		IsStaff:    a.IsStaff,
		CustomerID: a.CustomerID,
	}
}

const accountSelect = `
  SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_staff,
         COALESCE(c.id, 0) AS customer_id
  FROM users u
  LEFT JOIN customers c ON c.user_id = u.id`

func (r *UserRepo) ByUsername(username string) (*Account, error) {
	var a Account
	if err := sqlx.Get(r.DB, &a, accountSelect+` WHERE LOWER(u.username) = LOWER(?)`, username); err != nil {
		return nil, notFound(err, "user "+username)
	}
	return &a, nil
}

func (r *UserRepo) ByID(id int64) (*Account, error) {
	var a Account
	if err := sqlx.Get(r.DB, &a, accountSelect+` WHERE u.id = ?`, id); err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	return &a, nil
}

func (r *UserRepo) UsernameTaken(username string) (bool, error) {
	var n int
	err := sqlx.Get(r.DB, &n, `SELECT COUNT(*) FROM users WHERE LOWER(username) = LOWER(?)`, username)
	return n > 0, err
}

func (r *UserRepo) Create(u *domain.User) error {
	res, err := r.DB.Exec(`
	  INSERT INTO users(username, email, first_name, last_name, password_hash, is_staff, created_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.FirstName, u.LastName, u.Hash, u.IsStaff, now())
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

// EnsureGroup returns the id of the named group, creating it on first use.
func (r *UserRepo) EnsureGroup(name string) (int64, error) {
	if _, err := r.DB.Exec(`INSERT INTO auth_groups(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, err
	}
	var id int64
	err := sqlx.Get(r.DB, &id, `SELECT id FROM auth_groups WHERE name = ?`, name)
	return id, err
}

func (r *UserRepo) AddToGroup(userID, groupID int64) error {
	_, err := r.DB.Exec(`INSERT OR IGNORE INTO user_groups(user_id, group_id) VALUES (?, ?)`, userID, groupID)
	return err
}

func (r *UserRepo) BindSession(sid string, userID int64) error {
	ts := now()
	_, err := r.DB.Exec(`INSERT INTO sessions(id, user_id, created_at, last_seen)
                          VALUES(?, ?, ?, ?)
                          ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, last_seen = excluded.last_seen`,
		sid, userID, ts, ts)
	return err
}

func (r *UserRepo) SessionAccount(sid string) (*Account, error) {
	var a Account
	err := sqlx.Get(r.DB, &a, `
      SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_staff,
             COALESCE(c.id, 0) AS customer_id
      FROM sessions s
      JOIN users u ON u.id = s.user_id
      LEFT JOIN customers c ON c.user_id = u.id
      WHERE s.id = ?`, sid)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return &a, nil
}

func (r *UserRepo) UnbindSession(sid string) error {
	_, err := r.DB.Exec(`UPDATE sessions SET user_id = NULL, last_seen = ? WHERE id = ?`, now(), sid)
	return err
}
