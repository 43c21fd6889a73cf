package shop

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newDealership(t *testing.T, st *Store) *Dealership {
	t.Helper()
	d, err := NewDealership(context.Background(), st, zaptest.NewLogger(t),
		WithClock(newStepClock().Now),
		WithUserOptions(WithBcryptCost(bcrypt.MinCost)),
		WithSeedUsers(DefaultSeedUsers...),
	)
	require.NoError(t, err)
	return d
}

func login(t *testing.T, d *Dealership, username, password string) *Session {
	t.Helper()
	sess, err := d.Login(context.Background(), username, password)
	require.NoError(t, err)
	return sess
}

func addCar(t *testing.T, d *Dealership, sess *Session, carMake, model string) Car {
	t.Helper()
	car, err := d.AddCar(context.Background(), sess, carMake, model, 2020, decimal.NewFromInt(10000), ConditionNew)
	require.NoError(t, err)
	return car
}

func TestNewDealershipSeedsOnce(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	newDealership(t, st)
	d := newDealership(t, st)

	n, err := d.Users.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = NewDealership(ctx, st, zaptest.NewLogger(t), WithSeedUsers(SeedUser{Username: "x", Password: "x", Role: "OWNER"}))
	assert.Error(t, err)
	_, err = NewDealership(ctx, st, zaptest.NewLogger(t), WithClock(nil))
	assert.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())

	u, err := d.Register(ctx, "petr", "petr1")
	require.NoError(t, err)
	assert.Equal(t, RoleClient, u.Role)

	before, err := d.Users.UserCount(ctx)
	require.NoError(t, err)
	_, err = d.Register(ctx, "petr", "other1")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	after, err := d.Users.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	sess := login(t, d, "petr", "petr1")
	assert.Equal(t, u.ID, sess.User.ID)
	assert.NotEqual(t, sess.ID, login(t, d, "petr", "petr1").ID, "every login gets its own session")

	_, err = d.Login(ctx, "petr", "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPlaceOrderRejectsBookedCar(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		admin := login(t, d, "admin", "admin")
		client := login(t, d, "user", "user")
		_, err := d.Register(ctx, "olga", "olga1")
		require.NoError(t, err)
		olga := login(t, d, "olga", "olga1")
		car := addCar(t, d, admin, "Toyota", "Camry")

		order, err := d.PlaceOrder(ctx, client, "", car.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, order.Status)
		assert.Equal(t, client.User.ID, order.ClientID)

		_, err = d.PlaceOrder(ctx, olga, "", car.ID)
		assert.ErrorIs(t, err, ErrCarBooked)
		_, err = d.PlaceOrder(ctx, admin, "olga", car.ID)
		assert.ErrorIs(t, err, ErrCarBooked)
		n, err := d.Orders.OrderCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "a rejected order is never stored")

		available, err := d.AvailableCars(ctx)
		require.NoError(t, err)
		assert.Empty(t, available)

		_, err = d.ChangeOrderStatus(ctx, admin, order.ID, StatusCanceled)
		require.NoError(t, err)
		again, err := d.PlaceOrder(ctx, admin, "olga", car.ID)
		require.NoError(t, err)
		assert.Equal(t, olga.User.ID, again.ClientID)
	})
}

func TestPlaceOrderClientOrdersForItself(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")
	client := login(t, d, "user", "user")
	car := addCar(t, d, admin, "Lada", "Niva")

	order, err := d.PlaceOrder(ctx, client, "manager", car.ID)
	require.NoError(t, err)
	assert.Equal(t, client.User.ID, order.ClientID)

	_, err = d.PlaceOrder(ctx, admin, "nobody", car.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = d.PlaceOrder(ctx, client, "", 999)
	assert.ErrorIs(t, err, ErrCarNotFound)
}

func TestPlaceOrderConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		admin := login(t, d, "admin", "admin")
		car := addCar(t, d, admin, "BMW", "X5")

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			placed   int
			otherErr error
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.PlaceOrder(ctx, admin, "user", car.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					placed++
				case !errors.Is(err, ErrCarBooked):
					otherErr = err
				}
			}()
		}
		wg.Wait()

		require.NoError(t, otherErr)
		assert.Equal(t, 1, placed)
		n, err := d.Orders.OrderCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestChangeOrderStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		manager := login(t, d, "manager", "manager")
		client := login(t, d, "user", "user")
		car := addCar(t, d, manager, "Kia", "Rio")

		order, err := d.PlaceOrder(ctx, client, "", car.ID)
		require.NoError(t, err)

		_, err = d.ChangeOrderStatus(ctx, manager, order.ID, StatusPending)
		assert.ErrorIs(t, err, ErrStatusUnchanged)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		purchases := func() int {
			u, err := d.Users.FindByID(ctx, client.User.ID)
			require.NoError(t, err)
			return u.PurchaseCount
		}
		require.Zero(t, purchases())

		updated, err := d.ChangeOrderStatus(ctx, manager, order.ID, StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, updated.Status)
		assert.Equal(t, 1, purchases())

		for _, next := range []OrderStatus{StatusCompleted, StatusCanceled, StatusPending} {
			_, err = d.ChangeOrderStatus(ctx, manager, order.ID, next)
			assert.ErrorIs(t, err, ErrOrderCompleted, "to %s", next)
		}
		assert.Equal(t, 1, purchases())
		stored, err := d.Orders.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, stored.Status)

		_, err = d.ChangeOrderStatus(ctx, client, order.ID, StatusCanceled)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = d.ChangeOrderStatus(ctx, manager, 404, StatusCanceled)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestCanceledOrderIsTerminal(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")
	car := addCar(t, d, admin, "Ford", "Focus")
	order, err := d.PlaceOrder(ctx, admin, "user", car.ID)
	require.NoError(t, err)

	_, err = d.ChangeOrderStatus(ctx, admin, order.ID, StatusCanceled)
	require.NoError(t, err)
	_, err = d.ChangeOrderStatus(ctx, admin, order.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrOrderCompleted)
	_, err = d.ChangeOrderStatus(ctx, admin, order.ID, OrderStatus("LOST"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	u, err := d.Users.FindByUsername(ctx, "user")
	require.NoError(t, err)
	assert.Zero(t, u.PurchaseCount)
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")
	manager := login(t, d, "manager", "manager")
	client := login(t, d, "user", "user")

	_, err := d.AddCar(ctx, client, "Audi", "A4", 2018, decimal.NewFromInt(1), ConditionUsed)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = d.AddCar(ctx, nil, "Audi", "A4", 2018, decimal.NewFromInt(1), ConditionUsed)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = d.OrderViews(ctx, client)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = d.CreateUser(ctx, manager, "newbie", "newbie1", RoleClient)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = d.AuditLogs(ctx, manager)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, d.ExportAudit(ctx, client, &bytes.Buffer{}), ErrForbidden)

	_, err = d.AuditLogs(ctx, admin)
	assert.NoError(t, err)

	// role changes apply to sessions that are already open
	role := RoleClient
	_, err = d.UpdateUser(ctx, admin, manager.User.ID, UserChanges{Role: &role})
	require.NoError(t, err)
	_, err = d.AddCar(ctx, manager, "Audi", "A4", 2018, decimal.NewFromInt(1), ConditionUsed)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCarValidation(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")

	cases := map[string]Car{
		"zero year":         {Make: "Audi", Model: "A4", Year: 0, Price: decimal.NewFromInt(1), Condition: ConditionNew},
		"negative price":    {Make: "Audi", Model: "A4", Year: 2018, Price: decimal.NewFromInt(-1), Condition: ConditionNew},
		"unknown condition": {Make: "Audi", Model: "A4", Year: 2018, Price: decimal.NewFromInt(1), Condition: "RUSTY"},
		"empty make":        {Model: "A4", Year: 2018, Price: decimal.NewFromInt(1), Condition: ConditionNew},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.AddCar(ctx, admin, c.Make, c.Model, c.Year, c.Price, c.Condition)
			assert.ErrorIs(t, err, ErrInvalidCar)
		})
	}
	n, err := d.Cars.CarCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateAndDeleteCar(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	manager := login(t, d, "manager", "manager")
	car := addCar(t, d, manager, "Skoda", "Octavia")

	car.Price = decimal.RequireFromString("12500.50")
	car.Condition = ConditionDemo
	require.NoError(t, d.UpdateCar(ctx, manager, car))
	got, err := d.Cars.GetCarByID(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, ConditionDemo, got.Condition)
	assert.Equal(t, "12500.50", got.Price.StringFixed(2))

	require.NoError(t, d.DeleteCar(ctx, manager, car.ID))
	assert.ErrorIs(t, d.DeleteCar(ctx, manager, car.ID), ErrCarNotFound)
	assert.ErrorIs(t, d.UpdateCar(ctx, manager, car), ErrCarNotFound)
}

func TestOrderViewsResolveNames(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		admin := login(t, d, "admin", "admin")
		client := login(t, d, "user", "user")
		camry := addCar(t, d, admin, "Toyota", "Camry")
		niva := addCar(t, d, admin, "Lada", "Niva")
		_, err := d.PlaceOrder(ctx, client, "", camry.ID)
		require.NoError(t, err)
		_, err = d.PlaceOrder(ctx, admin, "manager", niva.ID)
		require.NoError(t, err)

		views, err := d.OrderViews(ctx, admin)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "user", views[0].ClientName)
		assert.Equal(t, "Toyota", views[0].CarMake)
		assert.Equal(t, "Camry", views[0].CarModel)

		mine, err := d.MyOrders(ctx, client)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, camry.ID, mine[0].CarID)

		require.NoError(t, d.DeleteCar(ctx, admin, camry.ID))
		mine, err = d.MyOrders(ctx, client)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "(deleted)", mine[0].CarMake)

		require.NoError(t, d.DeleteOrder(ctx, admin, mine[0].ID))
		mine, err = d.MyOrders(ctx, client)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})
}

func TestUserAdministration(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		admin := login(t, d, "admin", "admin")

		u, err := d.CreateUser(ctx, admin, "sergey", "sergey1", RoleManager)
		require.NoError(t, err)
		assert.Equal(t, RoleManager, u.Role)
		_, err = d.CreateUser(ctx, admin, "sergey", "sergey2", RoleClient)
		assert.ErrorIs(t, err, ErrUsernameTaken)

		taken := "manager"
		_, err = d.UpdateUser(ctx, admin, u.ID, UserChanges{Username: &taken})
		assert.ErrorIs(t, err, ErrUsernameTaken)

		name, password := "serg", "secret9"
		updated, err := d.UpdateUser(ctx, admin, u.ID, UserChanges{Username: &name, Password: &password})
		require.NoError(t, err)
		assert.Equal(t, "serg", updated.Username)
		login(t, d, "serg", "secret9")

		client := RoleClient
		_, err = d.UpdateUser(ctx, admin, admin.User.ID, UserChanges{Role: &client})
		assert.ErrorIs(t, err, ErrSelfRoleChange)

		assert.ErrorIs(t, d.DeleteUser(ctx, admin, admin.User.ID), ErrSelfDelete)

		before, err := d.Users.UserCount(ctx)
		require.NoError(t, err)
		serg := login(t, d, "serg", "secret9")
		require.NoError(t, d.DeleteUser(ctx, admin, u.ID))
		after, err := d.Users.UserCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, before-1, after)
		_, err = d.Users.FindByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = d.MyOrders(ctx, serg)
		assert.ErrorIs(t, err, ErrUnauthenticated, "a deleted user's session is dead")
	})
}

func TestUpdateUserStoresNothingOnRejectedChange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st *Store) {
		ctx := context.Background()
		d := newDealership(t, st)
		admin := login(t, d, "admin", "admin")
		u, err := d.CreateUser(ctx, admin, "sergey", "sergey1", RoleClient)
		require.NoError(t, err)
		auditBefore, err := d.Audit.AuditLogs(ctx)
		require.NoError(t, err)

		name, long := "renamed", strings.Repeat("p4", 40)
		manager := RoleManager
		_, err = d.UpdateUser(ctx, admin, u.ID, UserChanges{Username: &name, Password: &long, Role: &manager})
		require.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)

		empty := "  "
		_, err = d.UpdateUser(ctx, admin, u.ID, UserChanges{Username: &empty})
		require.ErrorIs(t, err, ErrInvalidUsername)

		stored, err := d.Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "sergey", stored.Username)
		assert.Equal(t, RoleClient, stored.Role)
		login(t, d, "sergey", "sergey1")

		auditAfter, err := d.Audit.AuditLogs(ctx)
		require.NoError(t, err)
		assert.Len(t, auditAfter, len(auditBefore)+1, "only the login above is recorded")
	})
}

func TestRegisterRejectsEmptyUsername(t *testing.T) {
	d := newDealership(t, NewMemoryStore())
	_, err := d.Register(context.Background(), "", "pass1")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestUpdateUserKeepsConcurrentPurchases(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")
	client := login(t, d, "user", "user")

	const n = 10
	orders := make([]Order, n)
	for i := range orders {
		car := addCar(t, d, admin, "Lada", "Niva")
		o, err := d.PlaceOrder(ctx, client, "", car.ID)
		require.NoError(t, err)
		orders[i] = o
	}

	var wg sync.WaitGroup
	for i, o := range orders {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := d.ChangeOrderStatus(ctx, admin, o.ID, StatusCompleted)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			pw := "user" + strings.Repeat("1", i+1)
			_, err := d.UpdateUser(ctx, admin, client.User.ID, UserChanges{Password: &pw})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := d.Users.FindByID(ctx, client.User.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.PurchaseCount)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())
	admin := login(t, d, "admin", "admin")
	car := addCar(t, d, admin, "Toyota", "Camry")
	client := login(t, d, "user", "user")
	_, err := d.PlaceOrder(ctx, client, "", car.ID)
	require.NoError(t, err)
	d.Logout(ctx, client)

	logs, err := d.AuditLogs(ctx, admin)
	require.NoError(t, err)
	actions := make([]string, len(logs))
	for i, a := range logs {
		actions[i] = a.Username + ": " + a.Action
	}
	assert.Equal(t, []string{
		"admin: Вход в систему",
		"admin: Добавлен автомобиль Toyota Camry 2020 года, цена 10000.00, состояние NEW (ID: 1)",
		"user: Вход в систему",
		"user: Добавлен заказ под user на автомобиль под ID: 1",
		"user: Выход из системы",
	}, actions)

	var buf bytes.Buffer
	require.NoError(t, d.ExportAudit(ctx, admin, &buf))
	assert.Equal(t, 5, strings.Count(buf.String(), "Пользователь: "))

	path := filepath.Join(t.TempDir(), "audit.txt")
	require.NoError(t, d.ExportAuditFile(ctx, admin, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}

func TestImportCatalog(t *testing.T) {
	ctx := context.Background()
	d := newDealership(t, NewMemoryStore())

	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	n, err := d.ImportCatalog(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cars, err := d.AvailableCars(ctx)
	require.NoError(t, err)
	require.Len(t, cars, 2)
	assert.Equal(t, "Camry", cars[0].Model)

	bad := Catalog{Cars: []CatalogEntry{{Make: "A", Model: "B", Year: 2000, Price: "-5", Condition: "NEW"}}}
	_, err = d.ImportCatalog(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidCar)
}
