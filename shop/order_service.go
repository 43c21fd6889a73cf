package shop

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Clock is the timestamp source for orders and audit records.
type Clock func() time.Time

// OrderService stores orders. Status transition rules and the purchase count
// side effect belong to the caller (see Dealership.ChangeOrderStatus).
type OrderService struct {
	orders OrderRepository
	log    *zap.Logger
	now    Clock
}

func NewOrderService(orders OrderRepository, log *zap.Logger, now Clock) *OrderService {
	if now == nil {
		now = time.Now
	}
	return &OrderService{orders: orders, log: log.Named("orders"), now: now}
}

// IsCarBooked reports whether the car has an order that is PENDING or COMPLETED.
func (s *OrderService) IsCarBooked(ctx context.Context, carID int64) (bool, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(orders, func(o Order) bool {
		return o.CarID == carID && o.Status.Reserves()
	}), nil
}

// CreateOrder stores a PENDING order dated now. It does not check whether the
// car is booked.
func (s *OrderService) CreateOrder(ctx context.Context, clientID, carID int64) (Order, error) {
	o, err := s.orders.Save(ctx, Order{
		ClientID: clientID,
		CarID:    carID,
		Date:     s.now(),
		Status:   StatusPending,
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	s.log.Debug("order created", zap.Int64("id", o.ID), zap.Int64("client_id", clientID), zap.Int64("car_id", carID))
	return o, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, id int64) (Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *OrderService) AllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.FindAll(ctx)
}

func (s *OrderService) OrderCount(ctx context.Context) (int, error) {
	return s.orders.Count(ctx)
}

func (s *OrderService) OrdersByClient(ctx context.Context, clientID int64) ([]Order, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(orders, func(o Order) bool { return o.ClientID != clientID }), nil
}

// UpdateOrder overwrites only the status of the stored order with order.ID.
func (s *OrderService) UpdateOrder(ctx context.Context, order Order) error {
	stored, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return err
	}
	stored.Status = order.Status
	if err := s.orders.Update(ctx, stored); err != nil {
		return fmt.Errorf("update order %d: %w", order.ID, err)
	}
	s.log.Debug("order updated", zap.Int64("id", order.ID), zap.String("status", string(order.Status)))
	return nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	s.log.Debug("order deleted", zap.Int64("id", id))
	return nil
}

// OrderSort selects the key used by SortOrderViews.
type OrderSort int

const (
	SortByDate OrderSort = iota
	SortByClient
	SortByStatus
	SortByMake
)

var statusRank = map[OrderStatus]int{StatusPending: 0, StatusCompleted: 1, StatusCanceled: 2}

// SortOrderViews returns a copy of views stably sorted by key, ascending.
// Statuses sort in lifecycle order PENDING, COMPLETED, CANCELED.
func SortOrderViews(views []OrderView, by OrderSort) []OrderView {
	sorted := slices.Clone(views)
	slices.SortStableFunc(sorted, func(a, b OrderView) int {
		switch by {
		case SortByClient:
			return strings.Compare(a.ClientName, b.ClientName)
		case SortByStatus:
			return cmp.Compare(statusRank[a.Status], statusRank[b.Status])
		case SortByMake:
			return strings.Compare(a.CarMake, b.CarMake)
		default:
			return a.Date.Compare(b.Date)
		}
	})
	return sorted
}
