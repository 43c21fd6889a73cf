package console

import (
	"context"
	"strconv"
	"strings"

	"carshop/shop"

	"github.com/shopspring/decimal"
)

func (c *Console) carMenu(ctx context.Context, sess *shop.Session) error {
	return c.subMenu(ctx, sess, "Управление автомобилями", []menuItem{
		{"Добавить новый автомобиль", c.addCar},
		{"Обновить информацию об автомобиле", c.updateCar},
		{"Удалить автомобиль", c.deleteCar},
		{"Просмотреть все автомобили", c.listCars},
	})
}

func (c *Console) addCar(ctx context.Context, sess *shop.Session) error {
	carMake, err := c.readName("Введите марку автомобиля: ", "Марка автомобиля не должна быть пустой или состоять только из цифр.")
	if err != nil {
		return err
	}
	model, err := c.readName("Введите модель автомобиля: ", "Модель автомобиля не должна быть пустой или состоять только из цифр.")
	if err != nil {
		return err
	}
	year, err := c.readYear("Введите год выпуска: ", false)
	if err != nil {
		return err
	}
	price, _, err := c.readPrice("Введите цену: ", false)
	if err != nil {
		return err
	}
	condition, err := c.readCondition("Выберите состояние автомобиля:", false)
	if err != nil {
		return err
	}
	if _, err := c.shop.AddCar(ctx, sess, carMake, model, year, price, condition); err != nil {
		return err
	}
	c.println("\nАвтомобиль добавлен!")
	return nil
}

func (c *Console) updateCar(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID автомобиля для обновления: ")
	if err != nil {
		return err
	}
	car, err := c.shop.Cars.GetCarByID(ctx, id)
	if err != nil {
		return err
	}

	const skip = " (оставьте пустым для пропуска): "
	if s, err := c.readLine("Введите новую марку автомобиля" + skip); err != nil {
		return err
	} else if s != "" {
		if !validName(s) {
			c.println("\nМарка автомобиля не должна состоять только из цифр.")
		} else {
			car.Make = s
		}
	}
	if s, err := c.readLine("Введите новую модель автомобиля" + skip); err != nil {
		return err
	} else if s != "" {
		if !validName(s) {
			c.println("\nМодель автомобиля не должна состоять только из цифр.")
		} else {
			car.Model = s
		}
	}
	year, err := c.readYear("Введите новый год выпуска автомобиля"+skip, true)
	if err != nil {
		return err
	}
	if year != 0 {
		car.Year = year
	}
	price, ok, err := c.readPrice("Введите новую цену автомобиля"+skip, true)
	if err != nil {
		return err
	}
	if ok {
		car.Price = price
	}
	condition, err := c.readCondition("Выберите новое состояние автомобиля (оставьте пустым для пропуска):", true)
	if err != nil {
		return err
	}
	if condition != "" {
		car.Condition = condition
	}

	if err := c.shop.UpdateCar(ctx, sess, car); err != nil {
		return err
	}
	c.println("\nИнформация об автомобиле обновлена.")
	return nil
}

func (c *Console) deleteCar(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID автомобиля для удаления: ")
	if err != nil {
		return err
	}
	if err := c.shop.DeleteCar(ctx, sess, id); err != nil {
		return err
	}
	c.println("\nАвтомобиль удален.")
	return nil
}

func (c *Console) listCars(ctx context.Context, sess *shop.Session) error {
	cars, err := c.shop.Cars.AllCars(ctx)
	if err != nil {
		return err
	}
	if len(cars) == 0 {
		c.println("\nНет доступных автомобилей.")
		return nil
	}
	c.println("\nСписок всех автомобилей:")
	c.printCars(cars)
	return c.subMenu(ctx, sess, "Действия", []menuItem{
		{"Сортировать список", c.carFilterMenu},
	})
}

func (c *Console) listAvailableCars(ctx context.Context, sess *shop.Session) error {
	cars, err := c.shop.AvailableCars(ctx)
	if err != nil {
		return err
	}
	if len(cars) == 0 {
		c.println("\nНет доступных автомобилей.")
		return nil
	}
	c.println("\nДоступные автомобили:")
	c.printCars(cars)
	return nil
}

func (c *Console) carFilterMenu(ctx context.Context, sess *shop.Session) error {
	return c.subMenu(ctx, sess, "Опции сортировки и фильтрации", []menuItem{
		{"Фильтровать по марке", func(ctx context.Context, _ *shop.Session) error {
			s, err := c.readLine("Введите марку автомобиля для фильтрации: ")
			if err != nil {
				return err
			}
			return c.showCars(c.shop.Cars.CarsByMake(ctx, s))
		}},
		{"Фильтровать по модели", func(ctx context.Context, _ *shop.Session) error {
			s, err := c.readLine("Введите модель автомобиля для фильтрации: ")
			if err != nil {
				return err
			}
			return c.showCars(c.shop.Cars.CarsByModel(ctx, s))
		}},
		{"Фильтровать по году выпуска", func(ctx context.Context, _ *shop.Session) error {
			year, err := c.readYear("Введите год выпуска для фильтрации: ", false)
			if err != nil {
				return err
			}
			return c.showCars(c.shop.Cars.CarsByYear(ctx, year))
		}},
		{"Сортировать по цене", func(ctx context.Context, _ *shop.Session) error {
			asc, err := c.readAscending()
			if err != nil {
				return err
			}
			return c.showCars(c.shop.Cars.SortCarsByPrice(ctx, asc))
		}},
	})
}

func (c *Console) showCars(cars []shop.Car, err error) error {
	if err != nil {
		return err
	}
	if len(cars) == 0 {
		c.println("\nАвтомобили не найдены.")
		return nil
	}
	c.println("")
	c.printCars(cars)
	return nil
}

func (c *Console) printCars(cars []shop.Car) {
	for _, car := range cars {
		c.printf("ID: %d\n", car.ID)
		c.printf("Марка: %s\n", car.Make)
		c.printf("Модель: %s\n", car.Model)
		c.printf("Год выпуска: %d\n", car.Year)
		c.printf("Цена: %s\n", car.Price.StringFixed(2))
		c.printf("Состояние: %s\n\n", car.Condition.DisplayName())
	}
}

// validName rejects empty and all-digit make/model names.
func validName(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err != nil
}

func (c *Console) readName(prompt, complaint string) (string, error) {
	for {
		s, err := c.readLine(prompt)
		if err != nil {
			return "", err
		}
		if validName(s) {
			return s, nil
		}
		c.println("\n" + complaint)
	}
}

// readYear re-prompts until a positive year; optional returns 0 on an empty line.
func (c *Console) readYear(prompt string, optional bool) (int, error) {
	for {
		s, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		if s == "" && optional {
			return 0, nil
		}
		year, err := strconv.Atoi(s)
		switch {
		case err != nil:
			c.println("\nГод выпуска должен быть числом.")
		case year <= 0:
			c.println("\nГод выпуска должен быть положительным числом.")
		default:
			return year, nil
		}
	}
}

// readPrice re-prompts until a non-negative decimal. A comma is accepted as
// the decimal separator. ok is false when optional and the line is empty.
func (c *Console) readPrice(prompt string, optional bool) (decimal.Decimal, bool, error) {
	for {
		s, err := c.readLine(prompt)
		if err != nil {
			return decimal.Zero, false, err
		}
		if s == "" && optional {
			return decimal.Zero, false, nil
		}
		price, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
		switch {
		case err != nil:
			c.println("\nЦена автомобиля должна быть числом.")
		case price.IsNegative():
			c.println("\nЦена автомобиля не может быть отрицательной.")
		default:
			return price, true, nil
		}
	}
}

// readCondition returns "" when optional and skipped.
func (c *Console) readCondition(title string, optional bool) (shop.Condition, error) {
	names := make([]string, len(shop.Conditions))
	for i, cond := range shop.Conditions {
		names[i] = cond.DisplayName()
	}
	i, err := c.pick(title, names, optional)
	if err != nil || i < 0 {
		return "", err
	}
	return shop.Conditions[i], nil
}
