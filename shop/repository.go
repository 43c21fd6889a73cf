package shop

import (
	"context"
	"fmt"
)

// Repositories are the only owners of entity state. Reads return copies, so a
// caller has to go through Update for a change to become visible.
// Save assigns a fresh id that is never handed out again, even after Delete.

type CarRepository interface {
	Save(ctx context.Context, car Car) (Car, error)
	FindByID(ctx context.Context, id int64) (Car, error)
	FindAll(ctx context.Context) ([]Car, error)
	Update(ctx context.Context, car Car) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// UserRepository enforces unique usernames (exact, case-sensitive match).
type UserRepository interface {
	Save(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindAll(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user User) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type OrderRepository interface {
	Save(ctx context.Context, order Order) (Order, error)
	FindByID(ctx context.Context, id int64) (Order, error)
	FindAll(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, order Order) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, record Audit) (Audit, error)
	FindAll(ctx context.Context) ([]Audit, error)
	Count(ctx context.Context) (int, error)
}

// Store bundles one repository per entity over a shared backend.
type Store struct {
	Cars   CarRepository
	Users  UserRepository
	Orders OrderRepository
	Audit  AuditRepository

	close func() error
}

// Close releases the backend, if it holds any resources.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// OpenStore opens a store for the given driver. dsn is ignored by the memory driver.
func OpenStore(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		db, err := NewDatabase(dsn)
		if err != nil {
			return nil, err
		}
		return db.Store(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
