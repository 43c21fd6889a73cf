package shop

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CarService manages the car inventory. It does not validate field values;
// callers are expected to have done that.
type CarService struct {
	cars CarRepository
	log  *zap.Logger
}

func NewCarService(cars CarRepository, log *zap.Logger) *CarService {
	return &CarService{cars: cars, log: log.Named("cars")}
}

// AddCar stores a new car and returns it with its assigned id.
func (s *CarService) AddCar(ctx context.Context, carMake, model string, year int, price decimal.Decimal, condition Condition) (Car, error) {
	car, err := s.cars.Save(ctx, Car{
		Make:      carMake,
		Model:     model,
		Year:      year,
		Price:     price,
		Condition: condition,
	})
	if err != nil {
		return Car{}, fmt.Errorf("add car: %w", err)
	}
	s.log.Debug("car added", zap.Int64("id", car.ID), zap.String("title", car.Title()))
	return car, nil
}

func (s *CarService) GetCarByID(ctx context.Context, id int64) (Car, error) {
	return s.cars.FindByID(ctx, id)
}

func (s *CarService) AllCars(ctx context.Context) ([]Car, error) {
	return s.cars.FindAll(ctx)
}

// UpdateCar overwrites make, model, year, price and condition of the stored car with car.ID.
func (s *CarService) UpdateCar(ctx context.Context, car Car) error {
	if err := s.cars.Update(ctx, car); err != nil {
		return fmt.Errorf("update car %d: %w", car.ID, err)
	}
	s.log.Debug("car updated", zap.Int64("id", car.ID))
	return nil
}

func (s *CarService) DeleteCar(ctx context.Context, id int64) error {
	if err := s.cars.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete car %d: %w", id, err)
	}
	s.log.Debug("car deleted", zap.Int64("id", id))
	return nil
}

func (s *CarService) CarCount(ctx context.Context) (int, error) {
	return s.cars.Count(ctx)
}

// CarsByMake returns cars whose make equals carMake, ignoring case.
func (s *CarService) CarsByMake(ctx context.Context, carMake string) ([]Car, error) {
	return s.filter(ctx, func(c Car) bool { return strings.EqualFold(c.Make, carMake) })
}

// CarsByModel returns cars whose model equals model, ignoring case.
func (s *CarService) CarsByModel(ctx context.Context, model string) ([]Car, error) {
	return s.filter(ctx, func(c Car) bool { return strings.EqualFold(c.Model, model) })
}

func (s *CarService) CarsByYear(ctx context.Context, year int) ([]Car, error) {
	return s.filter(ctx, func(c Car) bool { return c.Year == year })
}

// SortCarsByPrice returns all cars ordered by price. Equal prices keep id order.
func (s *CarService) SortCarsByPrice(ctx context.Context, ascending bool) ([]Car, error) {
	cars, err := s.cars.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(cars, func(a, b Car) int {
		if ascending {
			return a.Price.Cmp(b.Price)
		}
		return b.Price.Cmp(a.Price)
	})
	return cars, nil
}

func (s *CarService) filter(ctx context.Context, keep func(Car) bool) ([]Car, error) {
	cars, err := s.cars.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(cars, func(c Car) bool { return !keep(c) }), nil
}
