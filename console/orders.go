package console

import (
	"context"
	"strings"

	"carshop/shop"
)

func (c *Console) orderMenu(ctx context.Context, sess *shop.Session) error {
	return c.subMenu(ctx, sess, "Управление заказами", []menuItem{
		{"Создать новый заказ", c.placeOrder},
		{"Обновить статус заказа", c.changeOrderStatus},
		{"Удалить заказ", c.deleteOrder},
		{"Просмотреть все заказы", c.listOrders},
	})
}

func (c *Console) placeOrder(ctx context.Context, sess *shop.Session) error {
	client, err := c.readLine("\nВведите логин клиента: ")
	if err != nil {
		return err
	}
	carID, err := c.readID("Введите ID автомобиля: ")
	if err != nil {
		return err
	}
	if _, err := c.shop.PlaceOrder(ctx, sess, strings.ToLower(client), carID); err != nil {
		return err
	}
	c.println("\nЗаказ создан.")
	return nil
}

func (c *Console) placeOwnOrder(ctx context.Context, sess *shop.Session) error {
	carID, err := c.readID("\nВведите ID автомобиля: ")
	if err != nil {
		return err
	}
	if _, err := c.shop.PlaceOrder(ctx, sess, sess.User.Username, carID); err != nil {
		return err
	}
	c.println("\nЗаказ создан.")
	return nil
}

func (c *Console) changeOrderStatus(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID заказа для обновления: ")
	if err != nil {
		return err
	}
	order, err := c.shop.Orders.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	c.printf("\nТекущий статус: %s\n", order.Status.DisplayName())
	if order.Status == shop.StatusCompleted {
		c.println("\nЗаказ уже завершен. Статус не может быть изменен.")
		return nil
	}

	names := make([]string, len(shop.Statuses))
	for i, s := range shop.Statuses {
		names[i] = s.DisplayName()
	}
	i, err := c.pick("Выберите новый статус:", names, false)
	if err != nil {
		return err
	}
	updated, err := c.shop.ChangeOrderStatus(ctx, sess, id, shop.Statuses[i])
	if err != nil {
		return err
	}
	c.printf("\nСтатус заказа обновлен на: %s\n", updated.Status.DisplayName())
	return nil
}

func (c *Console) deleteOrder(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID заказа для удаления: ")
	if err != nil {
		return err
	}
	if err := c.shop.DeleteOrder(ctx, sess, id); err != nil {
		return err
	}
	c.println("\nЗаказ удален.")
	return nil
}

func (c *Console) listOrders(ctx context.Context, sess *shop.Session) error {
	views, err := c.shop.OrderViews(ctx, sess)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		c.println("\nНет доступных заказов.")
		return nil
	}
	c.println("")
	c.printOrders(views)

	sortBy := func(by shop.OrderSort) func(context.Context, *shop.Session) error {
		return func(context.Context, *shop.Session) error {
			c.println("")
			c.printOrders(shop.SortOrderViews(views, by))
			return nil
		}
	}
	return c.subMenu(ctx, sess, "Фильтрация и сортировка заказов", []menuItem{
		{"Сортировка по дате", sortBy(shop.SortByDate)},
		{"Сортировка по клиенту", sortBy(shop.SortByClient)},
		{"Сортировка по статусу", sortBy(shop.SortByStatus)},
		{"Сортировка по марке машины", sortBy(shop.SortByMake)},
	})
}

func (c *Console) listMyOrders(ctx context.Context, sess *shop.Session) error {
	views, err := c.shop.MyOrders(ctx, sess)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		c.println("\nУ вас нет заказов.")
		return nil
	}
	c.println("")
	c.printOrders(views)
	return nil
}

func (c *Console) printOrders(views []shop.OrderView) {
	for _, v := range views {
		c.printf("ID: %d\n", v.ID)
		c.printf("Клиент: %s\n", v.ClientName)
		c.printf("Автомобиль: %s %s\n", v.CarMake, v.CarModel)
		c.printf("Дата: %s\n", v.Date.Format(shop.AuditDateLayout))
		c.printf("Статус: %s\n\n", v.Status.DisplayName())
	}
}
