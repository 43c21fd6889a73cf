package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the SQLite database inside the process.
const MemoryDSN = ":memory:"

// Database provides SQLite backed repositories.
type Database struct {
	db *sql.DB

	addCarStmt   *sql.Stmt
	addUserStmt  *sql.Stmt
	addOrderStmt *sql.Stmt
	addAuditStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements. Use MemoryDSN for a database
// that lives only as long as the process.
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath == "" {
		dbPath = MemoryDSN
	}
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dbPath != MemoryDSN && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every new connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.addCarStmt, d.addUserStmt, d.addOrderStmt, d.addAuditStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// Store exposes the database through the repository interfaces.
func (d *Database) Store() *Store {
	return &Store{
		Cars:   sqlCars{d},
		Users:  sqlUsers{d},
		Orders: sqlOrders{d},
		Audit:  sqlAudit{d},
		close:  d.Close,
	}
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// AUTOINCREMENT keeps ids of deleted rows from being handed out again.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL,
            purchase_count INTEGER NOT NULL DEFAULT 0 CHECK (purchase_count >= 0)
        );`,
		`CREATE TABLE IF NOT EXISTS cars (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            make TEXT NOT NULL,
            model TEXT NOT NULL,
            year INTEGER NOT NULL,
            price TEXT NOT NULL,
            car_condition TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            client_id INTEGER NOT NULL,
            car_id INTEGER NOT NULL,
            created_at DATETIME NOT NULL,
            status TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_orders_car ON orders(car_id);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            username TEXT NOT NULL,
            action TEXT NOT NULL,
            created_at DATETIME NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addCarStmt, err = d.db.Prepare(`INSERT INTO cars(make,model,year,price,car_condition) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addUserStmt, err = d.db.Prepare(`INSERT INTO users(username,password_hash,role,purchase_count) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	if d.addOrderStmt, err = d.db.Prepare(`INSERT INTO orders(client_id,car_id,created_at,status) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	if d.addAuditStmt, err = d.db.Prepare(`INSERT INTO audit_log(user_id,username,action,created_at) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// mustAffect turns a zero-row UPDATE or DELETE into notFound.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (d *Database) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// ---------------------------------------------------------------------------
// Cars
// ---------------------------------------------------------------------------

type sqlCars struct{ d *Database }

const carColumns = `id,make,model,year,price,car_condition`

func scanCar(s scanner) (Car, error) {
	var c Car
	err := s.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.Price, &c.Condition)
	return c, err
}

func (r sqlCars) Save(ctx context.Context, car Car) (Car, error) {
	res, err := r.d.addCarStmt.ExecContext(ctx, car.Make, car.Model, car.Year, car.Price, car.Condition)
	if err != nil {
		return Car{}, fmt.Errorf("insert car: %w", err)
	}
	if car.ID, err = res.LastInsertId(); err != nil {
		return Car{}, err
	}
	return car, nil
}

func (r sqlCars) FindByID(ctx context.Context, id int64) (Car, error) {
	c, err := scanCar(r.d.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Car{}, ErrCarNotFound
	}
	return c, err
}

func (r sqlCars) FindAll(ctx context.Context) ([]Car, error) {
	rows, err := r.d.db.QueryContext(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

func (r sqlCars) Update(ctx context.Context, car Car) error {
	res, err := r.d.db.ExecContext(ctx,
		`UPDATE cars SET make=?, model=?, year=?, price=?, car_condition=? WHERE id=?`,
		car.Make, car.Model, car.Year, car.Price, car.Condition, car.ID)
	if err != nil {
		return fmt.Errorf("update car: %w", err)
	}
	return mustAffect(res, ErrCarNotFound)
}

func (r sqlCars) Delete(ctx context.Context, id int64) error {
	res, err := r.d.db.ExecContext(ctx, `DELETE FROM cars WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrCarNotFound)
}

func (r sqlCars) Count(ctx context.Context) (int, error) { return r.d.count(ctx, "cars") }

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type sqlUsers struct{ d *Database }

const userColumns = `id,username,password_hash,role,purchase_count`

func scanUser(s scanner) (User, error) {
	var u User
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.PurchaseCount)
	return u, err
}

func (r sqlUsers) Save(ctx context.Context, u User) (User, error) {
	res, err := r.d.addUserStmt.ExecContext(ctx, u.Username, u.PasswordHash, u.Role, u.PurchaseCount)
	if isUniqueViolation(err) {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return User{}, err
	}
	return u, nil
}

func (r sqlUsers) FindByID(ctx context.Context, id int64) (User, error) {
	return r.findOne(ctx, `WHERE id=?`, id)
}

func (r sqlUsers) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `WHERE username=?`, username)
}

func (r sqlUsers) findOne(ctx context.Context, where string, arg any) (User, error) {
	u, err := scanUser(r.d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (r sqlUsers) FindAll(ctx context.Context) ([]User, error) {
	rows, err := r.d.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r sqlUsers) Update(ctx context.Context, u User) error {
	res, err := r.d.db.ExecContext(ctx,
		`UPDATE users SET username=?, password_hash=?, role=?, purchase_count=? WHERE id=?`,
		u.Username, u.PasswordHash, u.Role, u.PurchaseCount, u.ID)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return mustAffect(res, ErrUserNotFound)
}

func (r sqlUsers) Delete(ctx context.Context, id int64) error {
	res, err := r.d.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrUserNotFound)
}

func (r sqlUsers) Count(ctx context.Context) (int, error) { return r.d.count(ctx, "users") }

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type sqlOrders struct{ d *Database }

const orderColumns = `id,client_id,car_id,created_at,status`

func scanOrder(s scanner) (Order, error) {
	var o Order
	err := s.Scan(&o.ID, &o.ClientID, &o.CarID, &o.Date, &o.Status)
	return o, err
}

func (r sqlOrders) Save(ctx context.Context, o Order) (Order, error) {
	res, err := r.d.addOrderStmt.ExecContext(ctx, o.ClientID, o.CarID, o.Date, o.Status)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r sqlOrders) FindByID(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.d.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (r sqlOrders) FindAll(ctx context.Context) ([]Order, error) {
	rows, err := r.d.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r sqlOrders) Update(ctx context.Context, o Order) error {
	res, err := r.d.db.ExecContext(ctx,
		`UPDATE orders SET client_id=?, car_id=?, created_at=?, status=? WHERE id=?`,
		o.ClientID, o.CarID, o.Date, o.Status, o.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return mustAffect(res, ErrOrderNotFound)
}

func (r sqlOrders) Delete(ctx context.Context, id int64) error {
	res, err := r.d.db.ExecContext(ctx, `DELETE FROM orders WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrOrderNotFound)
}

func (r sqlOrders) Count(ctx context.Context) (int, error) { return r.d.count(ctx, "orders") }

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type sqlAudit struct{ d *Database }

func (r sqlAudit) Append(ctx context.Context, a Audit) (Audit, error) {
	res, err := r.d.addAuditStmt.ExecContext(ctx, a.UserID, a.Username, a.Action, a.Date)
	if err != nil {
		return Audit{}, fmt.Errorf("insert audit: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return Audit{}, err
	}
	return a, nil
}

func (r sqlAudit) FindAll(ctx context.Context) ([]Audit, error) {
	rows, err := r.d.db.QueryContext(ctx, `SELECT id,user_id,username,action,created_at FROM audit_log ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []Audit
	for rows.Next() {
		var a Audit
		if err := rows.Scan(&a.ID, &a.UserID, &a.Username, &a.Action, &a.Date); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

func (r sqlAudit) Count(ctx context.Context) (int, error) { return r.d.count(ctx, "audit_log") }
