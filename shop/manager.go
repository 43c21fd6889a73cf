package shop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dealership is the orchestration layer the console talks to. It checks
// permissions, validates input, enforces cross-entity rules and records every
// mutation in the audit log. Services stay reachable for read-only queries.
type Dealership struct {
	Cars   *CarService
	Users  *UserService
	Orders *OrderService
	Audit  *AuditService

	auth *Authorizer
	log  *zap.Logger
	now  Clock

	// orderMu makes "is the car booked" plus "create order" one step, and
	// serializes status changes with their purchase count side effect and
	// with UpdateUser.
	orderMu sync.Mutex
}

type dealershipOptions struct {
	now       Clock
	userOpts  []UserOption
	seedUsers []SeedUser
}

// Option is a functional option for NewDealership.
type Option func(o *dealershipOptions) error

// WithClock replaces time.Now as the timestamp source.
func WithClock(now Clock) Option {
	return func(o *dealershipOptions) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		o.now = now
		return nil
	}
}

// WithUserOptions passes options through to the UserService.
func WithUserOptions(opts ...UserOption) Option {
	return func(o *dealershipOptions) error {
		o.userOpts = append(o.userOpts, opts...)
		return nil
	}
}

// SeedUser is an account created when the dealership starts.
type SeedUser struct {
	Username string
	Password string
	Role     Role
}

// DefaultSeedUsers are the built-in accounts, one per role.
var DefaultSeedUsers = []SeedUser{
	{Username: "admin", Password: "admin", Role: RoleAdmin},
	{Username: "manager", Password: "manager", Role: RoleManager},
	{Username: "user", Password: "user", Role: RoleClient},
}

// WithSeedUsers registers the given accounts on startup. Existing usernames are skipped.
func WithSeedUsers(users ...SeedUser) Option {
	return func(o *dealershipOptions) error {
		for _, u := range users {
			if !u.Role.Valid() {
				return fmt.Errorf("seed user %q: unknown role %q", u.Username, u.Role)
			}
		}
		o.seedUsers = append(o.seedUsers, users...)
		return nil
	}
}

// NewDealership wires the services over store.
func NewDealership(ctx context.Context, store *Store, log *zap.Logger, opts ...Option) (*Dealership, error) {
	var o dealershipOptions
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if o.now == nil {
		o.now = time.Now
	}

	users, err := NewUserService(store.Users, log, o.userOpts...)
	if err != nil {
		return nil, err
	}
	auth, err := NewAuthorizer()
	if err != nil {
		return nil, err
	}
	d := &Dealership{
		Cars:   NewCarService(store.Cars, log),
		Users:  users,
		Orders: NewOrderService(store.Orders, log, o.now),
		Audit:  NewAuditService(store.Audit, log, o.now),
		auth:   auth,
		log:    log.Named("dealership"),
		now:    o.now,
	}

	for _, su := range o.seedUsers {
		_, err := d.Users.RegisterUser(ctx, su.Username, su.Password, su.Role)
		if err != nil && !errors.Is(err, ErrUsernameTaken) {
			return nil, fmt.Errorf("seed user %q: %w", su.Username, err)
		}
	}
	return d, nil
}

// ------------------ Sessions ------------------

// Register creates a CLIENT account.
func (d *Dealership) Register(ctx context.Context, username, password string) (User, error) {
	u, err := d.Users.RegisterUser(ctx, username, password, RoleClient)
	if err != nil {
		return User{}, err
	}
	d.audit(ctx, u, "Зарегистрирован новый пользователь: "+u.Username)
	return u, nil
}

// Login checks credentials and opens a session.
func (d *Dealership) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := d.Users.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	sess := newSession(u, d.now())
	d.log.Info("session started", zap.String("session", sess.ID.String()), zap.String("username", u.Username))
	d.audit(ctx, u, "Вход в систему")
	return sess, nil
}

// Logout records the end of the session.
func (d *Dealership) Logout(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	d.log.Info("session closed", zap.String("session", sess.ID.String()))
	d.audit(ctx, sess.User, "Выход из системы")
}

// actor reloads the session user so that role changes and deletions made
// by an administrator take effect immediately, then checks perm.
func (d *Dealership) actor(ctx context.Context, sess *Session, perm Permission) (User, error) {
	if sess == nil {
		return User{}, ErrUnauthenticated
	}
	u, err := d.Users.FindByID(ctx, sess.User.ID)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrUnauthenticated
	}
	if err != nil {
		return User{}, err
	}
	ok, err := d.auth.Allowed(u.Role, perm)
	if err != nil {
		return User{}, fmt.Errorf("authorize %s: %w", u.Username, err)
	}
	if !ok {
		d.log.Info("permission denied", zap.String("username", u.Username),
			zap.String("object", perm.Object), zap.String("action", perm.Action))
		return User{}, ErrForbidden
	}
	return u, nil
}

func (d *Dealership) audit(ctx context.Context, u User, action string) {
	if _, err := d.Audit.LogAction(ctx, u, action); err != nil {
		d.log.Error("audit record lost", zap.String("action", action), zap.Error(err))
	}
}

// ------------------ Cars ------------------

func validateCar(c Car) error {
	switch {
	case c.Make == "" || c.Model == "":
		return fmt.Errorf("%w: make and model are required", ErrInvalidCar)
	case c.Year <= 0:
		return fmt.Errorf("%w: year must be positive", ErrInvalidCar)
	case c.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidCar)
	case !c.Condition.Valid():
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidCar, c.Condition)
	}
	return nil
}

func (d *Dealership) AddCar(ctx context.Context, sess *Session, carMake, model string, year int, price decimal.Decimal, condition Condition) (Car, error) {
	u, err := d.actor(ctx, sess, PermManageCars)
	if err != nil {
		return Car{}, err
	}
	if err := validateCar(Car{Make: carMake, Model: model, Year: year, Price: price, Condition: condition}); err != nil {
		return Car{}, err
	}
	car, err := d.Cars.AddCar(ctx, carMake, model, year, price, condition)
	if err != nil {
		return Car{}, err
	}
	d.audit(ctx, u, fmt.Sprintf("Добавлен автомобиль %s %d года, цена %s, состояние %s (ID: %d)",
		car.Title(), car.Year, car.Price.StringFixed(2), car.Condition, car.ID))
	return car, nil
}

// UpdateCar replaces the editable fields of car.ID.
func (d *Dealership) UpdateCar(ctx context.Context, sess *Session, car Car) error {
	u, err := d.actor(ctx, sess, PermManageCars)
	if err != nil {
		return err
	}
	if err := validateCar(car); err != nil {
		return err
	}
	if err := d.Cars.UpdateCar(ctx, car); err != nil {
		return err
	}
	d.audit(ctx, u, fmt.Sprintf("Обновлен автомобиль под ID %d: %s %d года, цена %s, состояние %s",
		car.ID, car.Title(), car.Year, car.Price.StringFixed(2), car.Condition))
	return nil
}

func (d *Dealership) DeleteCar(ctx context.Context, sess *Session, id int64) error {
	u, err := d.actor(ctx, sess, PermManageCars)
	if err != nil {
		return err
	}
	car, err := d.Cars.GetCarByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.Cars.DeleteCar(ctx, id); err != nil {
		return err
	}
	d.audit(ctx, u, fmt.Sprintf("Удален автомобиль %s (ID: %d)", car.Title(), id))
	return nil
}

// AvailableCars returns the cars without a PENDING or COMPLETED order.
func (d *Dealership) AvailableCars(ctx context.Context) ([]Car, error) {
	cars, err := d.Cars.AllCars(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := d.Orders.AllOrders(ctx)
	if err != nil {
		return nil, err
	}
	booked := make(map[int64]bool, len(orders))
	for _, o := range orders {
		if o.Status.Reserves() {
			booked[o.CarID] = true
		}
	}
	available := cars[:0]
	for _, c := range cars {
		if !booked[c.ID] {
			available = append(available, c)
		}
	}
	return available, nil
}

// ImportCatalog adds every catalog car. It runs without a session, at startup.
func (d *Dealership) ImportCatalog(ctx context.Context, c Catalog) (int, error) {
	imported := 0
	for i, entry := range c.Cars {
		car, err := entry.Car()
		if err == nil {
			err = validateCar(car)
		}
		if err != nil {
			return imported, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		if _, err := d.Cars.AddCar(ctx, car.Make, car.Model, car.Year, car.Price, car.Condition); err != nil {
			return imported, err
		}
		imported++
	}
	d.log.Info("catalog imported", zap.Int("cars", imported))
	return imported, nil
}

// ------------------ Orders ------------------

// PlaceOrder creates a PENDING order for carID. A client always orders for
// itself; staff order on behalf of clientUsername. A car that is already
// booked is rejected with ErrCarBooked before anything is stored.
func (d *Dealership) PlaceOrder(ctx context.Context, sess *Session, clientUsername string, carID int64) (Order, error) {
	u, err := d.actor(ctx, sess, PermPlaceOrder)
	if err != nil {
		return Order{}, err
	}
	client := u
	if u.Role != RoleClient {
		if client, err = d.Users.FindByUsername(ctx, clientUsername); err != nil {
			return Order{}, err
		}
	}
	car, err := d.Cars.GetCarByID(ctx, carID)
	if err != nil {
		return Order{}, err
	}

	d.orderMu.Lock()
	defer d.orderMu.Unlock()

	booked, err := d.Orders.IsCarBooked(ctx, car.ID)
	if err != nil {
		return Order{}, err
	}
	if booked {
		d.log.Info("order rejected, car booked", zap.Int64("car_id", car.ID), zap.String("client", client.Username))
		return Order{}, ErrCarBooked
	}
	order, err := d.Orders.CreateOrder(ctx, client.ID, car.ID)
	if err != nil {
		return Order{}, err
	}
	d.audit(ctx, u, fmt.Sprintf("Добавлен заказ под %s на автомобиль под ID: %d", client.Username, car.ID))
	return order, nil
}

// ChangeOrderStatus moves an order along PENDING -> COMPLETED | CANCELED.
// Completing an order increments the client's purchase count exactly once.
// Any other change is rejected with an error wrapping ErrInvalidTransition
// and leaves the order and the client untouched.
func (d *Dealership) ChangeOrderStatus(ctx context.Context, sess *Session, orderID int64, status OrderStatus) (Order, error) {
	u, err := d.actor(ctx, sess, PermManageOrders)
	if err != nil {
		return Order{}, err
	}
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	d.orderMu.Lock()
	defer d.orderMu.Unlock()

	order, err := d.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	switch {
	case order.Status == StatusCompleted:
		err = ErrOrderCompleted
	case order.Status == status:
		err = ErrStatusUnchanged
	case !order.Status.CanTransitionTo(status):
		err = fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}
	if err != nil {
		d.log.Info("status change rejected", zap.Int64("order_id", orderID),
			zap.String("from", string(order.Status)), zap.String("to", string(status)))
		return order, err
	}

	order.Status = status
	if err := d.Orders.UpdateOrder(ctx, order); err != nil {
		return Order{}, err
	}
	if status == StatusCompleted {
		d.countPurchase(ctx, order.ClientID)
	}
	d.audit(ctx, u, fmt.Sprintf("Обновлен статус заказа под индексом: %d на %s", order.ID, status))
	return order, nil
}

func (d *Dealership) countPurchase(ctx context.Context, clientID int64) {
	client, err := d.Users.FindByID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		d.log.Warn("completed order has no client", zap.Int64("client_id", clientID))
		return
	}
	if err == nil {
		client.PurchaseCount++
		err = d.Users.Update(ctx, client)
	}
	if err != nil {
		d.log.Error("purchase count not updated", zap.Int64("client_id", clientID), zap.Error(err))
	}
}

func (d *Dealership) DeleteOrder(ctx context.Context, sess *Session, id int64) error {
	u, err := d.actor(ctx, sess, PermManageOrders)
	if err != nil {
		return err
	}
	order, err := d.Orders.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.Orders.DeleteOrder(ctx, id); err != nil {
		return err
	}
	d.audit(ctx, u, fmt.Sprintf("Удален заказ под индексом %d (клиент ID %d, автомобиль ID %d, статус %s)",
		id, order.ClientID, order.CarID, order.Status))
	return nil
}

// OrderViews lists every order with client and car names. Staff only.
func (d *Dealership) OrderViews(ctx context.Context, sess *Session) ([]OrderView, error) {
	if _, err := d.actor(ctx, sess, PermManageOrders); err != nil {
		return nil, err
	}
	orders, err := d.Orders.AllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return d.views(ctx, orders)
}

// MyOrders lists the orders placed for the session user.
func (d *Dealership) MyOrders(ctx context.Context, sess *Session) ([]OrderView, error) {
	u, err := d.actor(ctx, sess, PermViewOwnOrders)
	if err != nil {
		return nil, err
	}
	orders, err := d.Orders.OrdersByClient(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return d.views(ctx, orders)
}

const deletedRef = "(deleted)"

func (d *Dealership) views(ctx context.Context, orders []Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := OrderView{Order: o, ClientName: deletedRef, CarMake: deletedRef, CarModel: deletedRef}
		if client, err := d.Users.FindByID(ctx, o.ClientID); err == nil {
			v.ClientName = client.Username
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if car, err := d.Cars.GetCarByID(ctx, o.CarID); err == nil {
			v.CarMake, v.CarModel = car.Make, car.Model
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// ------------------ Users ------------------

// CreateUser lets an administrator add an account with any role.
func (d *Dealership) CreateUser(ctx context.Context, sess *Session, username, password string, role Role) (User, error) {
	u, err := d.actor(ctx, sess, PermManageUsers)
	if err != nil {
		return User{}, err
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("unknown role %q", role)
	}
	created, err := d.Users.RegisterUser(ctx, username, password, role)
	if err != nil {
		return User{}, err
	}
	d.audit(ctx, u, "Добавлен новый пользователь: "+created.Username)
	return created, nil
}

// UserChanges lists the fields UpdateUser should overwrite; nil means keep.
type UserChanges struct {
	Username *string
	Password *string
	Role     *Role
}

// UpdateUser applies ch to the user in a single write. Nothing is stored when
// any change is rejected.
func (d *Dealership) UpdateUser(ctx context.Context, sess *Session, id int64, ch UserChanges) (User, error) {
	u, err := d.actor(ctx, sess, PermManageUsers)
	if err != nil {
		return User{}, err
	}
	// The write below carries PurchaseCount, so it must not interleave with countPurchase.
	d.orderMu.Lock()
	defer d.orderMu.Unlock()

	target, err := d.Users.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if ch.Username != nil {
		if strings.TrimSpace(*ch.Username) == "" {
			return User{}, ErrInvalidUsername
		}
		if other, err := d.Users.FindByUsername(ctx, *ch.Username); err == nil && other.ID != id {
			return User{}, ErrUsernameTaken
		}
		target.Username = *ch.Username
	}
	if ch.Role != nil {
		if u.ID == id && *ch.Role != target.Role {
			return User{}, ErrSelfRoleChange
		}
		if !ch.Role.Valid() {
			return User{}, fmt.Errorf("unknown role %q", *ch.Role)
		}
		target.Role = *ch.Role
	}
	if ch.Password != nil {
		if target.PasswordHash, err = d.Users.HashPassword(*ch.Password); err != nil {
			return User{}, err
		}
	}
	if err := d.Users.Update(ctx, target); err != nil {
		return User{}, err
	}
	d.audit(ctx, u, fmt.Sprintf("Обновлен пользователь: %d", id))
	return target, nil
}

func (d *Dealership) DeleteUser(ctx context.Context, sess *Session, id int64) error {
	u, err := d.actor(ctx, sess, PermManageUsers)
	if err != nil {
		return err
	}
	if u.ID == id {
		return ErrSelfDelete
	}
	target, err := d.Users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.Users.Delete(ctx, id); err != nil {
		return err
	}
	d.audit(ctx, u, "Удален пользователь: "+target.Username)
	return nil
}

// ------------------ Audit ------------------

func (d *Dealership) AuditLogs(ctx context.Context, sess *Session) ([]Audit, error) {
	if _, err := d.actor(ctx, sess, PermReadAudit); err != nil {
		return nil, err
	}
	return d.Audit.AuditLogs(ctx)
}

// ExportAudit writes the whole journal to w.
func (d *Dealership) ExportAudit(ctx context.Context, sess *Session, w io.Writer) error {
	logs, err := d.AuditLogs(ctx, sess)
	if err != nil {
		return err
	}
	return WriteAudit(w, logs)
}

// ExportAuditFile writes the whole journal to the file at path.
func (d *Dealership) ExportAuditFile(ctx context.Context, sess *Session, path string) error {
	logs, err := d.AuditLogs(ctx, sess)
	if err != nil {
		return err
	}
	if err := WriteAuditFile(path, logs); err != nil {
		return err
	}
	d.log.Info("audit exported", zap.String("path", path), zap.Int("records", len(logs)))
	return nil
}
