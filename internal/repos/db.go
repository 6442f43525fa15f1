package repos

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"tienda/internal/domain"
	applog "tienda/internal/log"
)

const tsLayout = "2006-01-02 15:04:05.000000"

// CustomersGroup is the group every self-registered user joins.
const CustomersGroup = "Customers"

func now() string { return time.Now().UTC().Format(tsLayout) }

// Open connects to SQLite and ensures the schema exists.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenDB is Open plus the idempotent demo seed.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := Seed(db); err != nil {
		return nil, err
	}
	return db, nil
}

// InTx runs fn in a transaction, committing when fn returns nil.
// fn must only use tx: the pool holds a single connection.
func InTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS categories(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_nocase ON categories(LOWER(name));

CREATE TABLE IF NOT EXISTS suppliers(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  contact_email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sku TEXT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category_id INTEGER NULL REFERENCES categories(id) ON DELETE SET NULL,
  supplier_id INTEGER NULL REFERENCES suppliers(id) ON DELETE SET NULL,
  price NUMERIC NOT NULL CHECK (price > 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_supplier ON products(supplier_id);
CREATE INDEX IF NOT EXISTS idx_products_updated  ON products(updated_at);

CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  is_staff INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));

CREATE TABLE IF NOT EXISTS auth_groups(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS user_groups(
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  group_id INTEGER NOT NULL REFERENCES auth_groups(id) ON DELETE CASCADE,
  PRIMARY KEY (user_id, group_id)
);

CREATE TABLE IF NOT EXISTS customers(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
  status TEXT NOT NULL DEFAULT 'P' CHECK (status IN ('P','C','X')),
  total NUMERIC NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  unit_price NUMERIC NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order   ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id);

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- value of the 'sid' cookie
  user_id INTEGER NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT NOT NULL,
  last_seen TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

// Seed inserts demo catalog rows and accounts. Safe to run on every start.
func Seed(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.L().Info("seed.demo")

	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ts := now()

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	tx.MustExec(`INSERT INTO categories(id,name,description) VALUES
	  (1,'Beverages','Drinks and juices'),
	  (2,'Snacks',''),
	  (3,'Cleaning','Household cleaning supplies')`)

	tx.MustExec(`INSERT INTO suppliers(id,name,contact_email,phone) VALUES
	  (1,'Distribuidora Norte','ventas@norte.test','+595 21 555 100'),
	  (2,'Acme Wholesale','sales@acme.test','')`)

	tx.MustExec(`INSERT INTO products(id,sku,name,description,category_id,supplier_id,price,stock,created_at,updated_at) VALUES
	  (1,'BEV-001','Orange Juice 1L','Fresh squeezed',1,1,'12.50',40,?,?),
	  (2,'BEV-002','Mineral Water 500ml','',1,1,'4.00',3,?,?),
	  (3,'SNK-001','Salted Peanuts','',2,2,'15.00',25,?,?),
	  (4,'SNK-002','Chocolate Bar','',2,NULL,'20.00',0,?,?),
	  (5,NULL,'Dish Soap','Lemon scent',NULL,2,'32.90',12,?,?)`,
		ts, ts, ts, ts, ts, ts, ts, ts, ts, ts)

	tx.MustExec(`INSERT INTO users(id,username,email,first_name,last_name,password_hash,is_staff,created_at) VALUES
	  (1,'admin','admin@tienda.test','Store','Admin',?,1,?),
	  (2,'alice','alice@tienda.test','Alice','Gomez',?,0,?),
	  (3,'bob','bob@tienda.test','Bob','',?,0,?)`,
		string(hash), ts, string(hash), ts, string(hash), ts)

	tx.MustExec(`INSERT INTO auth_groups(id,name) VALUES (1,?)`, CustomersGroup)
	tx.MustExec(`INSERT INTO user_groups(user_id,group_id) VALUES (2,1),(3,1)`)
	tx.MustExec(`INSERT INTO customers(id,user_id,phone,address) VALUES
	  (1,2,'0981 111 222','Av. Mariscal Lopez 100'),
	  (2,3,'','')`)

	return tx.Commit()
}
