package shop

import (
	"context"
	"slices"
	"sync"
)

// table is an id-ordered in-memory collection. Rows are stored and returned
// by value, so nothing outside the table can alias its state.
type table[T any] struct {
	mu     sync.RWMutex
	lastID int64
	rows   []T

	id       func(*T) *int64
	notFound error
	// conflict, when set, rejects a row that clashes with another stored row.
	conflict func(stored, row *T) error
}

func (t *table[T]) insert(row T) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.id(&row) = 0
	if err := t.checkConflict(&row); err != nil {
		return row, err
	}
	t.lastID++
	*t.id(&row) = t.lastID
	t.rows = append(t.rows, row)
	return row, nil
}

func (t *table[T]) get(id int64) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.index(id); i >= 0 {
		return t.rows[i], nil
	}
	var zero T
	return zero, t.notFound
}

func (t *table[T]) find(match func(*T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.rows {
		if match(&t.rows[i]) {
			return t.rows[i], true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) all() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

func (t *table[T]) replace(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.index(*t.id(&row))
	if i < 0 {
		return t.notFound
	}
	if err := t.checkConflict(&row); err != nil {
		return err
	}
	t.rows[i] = row
	return nil
}

func (t *table[T]) remove(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.index(id)
	if i < 0 {
		return t.notFound
	}
	t.rows = slices.Delete(t.rows, i, i+1)
	return nil
}

func (t *table[T]) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// index must be called with mu held.
func (t *table[T]) index(id int64) int {
	for i := range t.rows {
		if *t.id(&t.rows[i]) == id {
			return i
		}
	}
	return -1
}

// checkConflict must be called with mu held.
func (t *table[T]) checkConflict(row *T) error {
	if t.conflict == nil {
		return nil
	}
	for i := range t.rows {
		if *t.id(&t.rows[i]) == *t.id(row) {
			continue
		}
		if err := t.conflict(&t.rows[i], row); err != nil {
			return err
		}
	}
	return nil
}

// NewMemoryStore returns a store that keeps everything in process memory.
func NewMemoryStore() *Store {
	return &Store{
		Cars: &memCars{table[Car]{
			id:       func(c *Car) *int64 { return &c.ID },
			notFound: ErrCarNotFound,
		}},
		Users: &memUsers{table[User]{
			id:       func(u *User) *int64 { return &u.ID },
			notFound: ErrUserNotFound,
			conflict: func(stored, u *User) error {
				if stored.Username == u.Username {
					return ErrUsernameTaken
				}
				return nil
			},
		}},
		Orders: &memOrders{table[Order]{
			id:       func(o *Order) *int64 { return &o.ID },
			notFound: ErrOrderNotFound,
		}},
		Audit: &memAudit{table[Audit]{
			id: func(a *Audit) *int64 { return &a.ID },
		}},
	}
}

type memCars struct{ t table[Car] }

func (m *memCars) Save(_ context.Context, car Car) (Car, error)     { return m.t.insert(car) }
func (m *memCars) FindByID(_ context.Context, id int64) (Car, error) { return m.t.get(id) }
func (m *memCars) FindAll(context.Context) ([]Car, error)           { return m.t.all(), nil }
func (m *memCars) Update(_ context.Context, car Car) error          { return m.t.replace(car) }
func (m *memCars) Delete(_ context.Context, id int64) error         { return m.t.remove(id) }
func (m *memCars) Count(context.Context) (int, error)               { return m.t.count(), nil }

type memUsers struct{ t table[User] }

func (m *memUsers) Save(_ context.Context, u User) (User, error)      { return m.t.insert(u) }
func (m *memUsers) FindByID(_ context.Context, id int64) (User, error) { return m.t.get(id) }
func (m *memUsers) FindAll(context.Context) ([]User, error)            { return m.t.all(), nil }
func (m *memUsers) Update(_ context.Context, u User) error             { return m.t.replace(u) }
func (m *memUsers) Delete(_ context.Context, id int64) error           { return m.t.remove(id) }
func (m *memUsers) Count(context.Context) (int, error)                 { return m.t.count(), nil }

func (m *memUsers) FindByUsername(_ context.Context, username string) (User, error) {
	u, ok := m.t.find(func(u *User) bool { return u.Username == username })
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

type memOrders struct{ t table[Order] }

func (m *memOrders) Save(_ context.Context, o Order) (Order, error)     { return m.t.insert(o) }
func (m *memOrders) FindByID(_ context.Context, id int64) (Order, error) { return m.t.get(id) }
func (m *memOrders) FindAll(context.Context) ([]Order, error)            { return m.t.all(), nil }
func (m *memOrders) Update(_ context.Context, o Order) error             { return m.t.replace(o) }
func (m *memOrders) Delete(_ context.Context, id int64) error            { return m.t.remove(id) }
func (m *memOrders) Count(context.Context) (int, error)                  { return m.t.count(), nil }

type memAudit struct{ t table[Audit] }

func (m *memAudit) Append(_ context.Context, a Audit) (Audit, error) { return m.t.insert(a) }
func (m *memAudit) FindAll(context.Context) ([]Audit, error)         { return m.t.all(), nil }
func (m *memAudit) Count(context.Context) (int, error)               { return m.t.count(), nil }
