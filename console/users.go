package console

import (
	"context"
	"strings"

	"carshop/shop"
)

func (c *Console) userMenu(ctx context.Context, sess *shop.Session) error {
	return c.subMenu(ctx, sess, "Управление пользователями", []menuItem{
		{"Просмотреть всех пользователей", c.listUsers},
		{"Обновление информации о пользователях", c.updateUser},
		{"Добавить нового пользователя", c.createUser},
		{"Удалить пользователя", c.deleteUser},
	})
}

func (c *Console) listUsers(ctx context.Context, sess *shop.Session) error {
	users, err := c.shop.Users.AllUsers(ctx)
	if err := c.showUsers(users, err); err != nil {
		return err
	}
	return c.subMenu(ctx, sess, "Фильтрация и сортировка пользователей", []menuItem{
		{"Фильтрация по имени", func(ctx context.Context, _ *shop.Session) error {
			name, err := c.readLine("\nВведите имя пользователя для фильтрации: ")
			if err != nil {
				return err
			}
			return c.showUsers(c.shop.Users.UsersByName(ctx, name))
		}},
		{"Фильтрация по роли", func(ctx context.Context, _ *shop.Session) error {
			role, err := c.readRole("\nДоступные роли:")
			if err != nil {
				return err
			}
			return c.showUsers(c.shop.Users.UsersByRole(ctx, role))
		}},
		{"Сортировка по количеству покупок", func(ctx context.Context, _ *shop.Session) error {
			asc, err := c.readAscending()
			if err != nil {
				return err
			}
			return c.showUsers(c.shop.Users.SortUsersByPurchases(ctx, asc))
		}},
	})
}

func (c *Console) createUser(ctx context.Context, sess *shop.Session) error {
	username, err := c.readNewLogin(ctx)
	if err != nil {
		return err
	}
	password, err := c.readNewPassword()
	if err != nil {
		return err
	}
	role, err := c.readRole("\nВыберите роль пользователя:")
	if err != nil {
		return err
	}
	if _, err := c.shop.CreateUser(ctx, sess, username, password, role); err != nil {
		return err
	}
	c.println("\nПользователь добавлен.")
	return nil
}

func (c *Console) updateUser(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID пользователя для обновления: ")
	if err != nil {
		return err
	}
	if _, err := c.shop.Users.FindByID(ctx, id); err != nil {
		return err
	}
	field, err := c.pick("\nВыберите, что обновить:", []string{"Логин", "Пароль", "Роль"}, false)
	if err != nil {
		return err
	}

	var ch shop.UserChanges
	switch field {
	case 0:
		s, err := c.readLine("Введите новый логин: ")
		if err != nil {
			return err
		}
		if !ValidLogin(s) {
			c.println("\nНеверный формат логина.")
			return nil
		}
		s = strings.ToLower(s)
		ch.Username = &s
	case 1:
		s, err := c.readNewPassword()
		if err != nil {
			return err
		}
		ch.Password = &s
	case 2:
		role, err := c.readRole("\nВыберите новую роль:")
		if err != nil {
			return err
		}
		ch.Role = &role
	}
	if _, err := c.shop.UpdateUser(ctx, sess, id, ch); err != nil {
		return err
	}
	c.println("\nПользователь обновлен.")
	return nil
}

func (c *Console) deleteUser(ctx context.Context, sess *shop.Session) error {
	id, err := c.readID("\nВведите ID пользователя для удаления: ")
	if err != nil {
		return err
	}
	if err := c.shop.DeleteUser(ctx, sess, id); err != nil {
		return err
	}
	c.println("\nПользователь удален.")
	return nil
}

func (c *Console) readRole(title string) (shop.Role, error) {
	names := make([]string, len(shop.Roles))
	for i, r := range shop.Roles {
		names[i] = r.DisplayName()
	}
	i, err := c.pick(title, names, false)
	if err != nil {
		return "", err
	}
	return shop.Roles[i], nil
}

func (c *Console) showUsers(users []shop.User, err error) error {
	if err != nil {
		return err
	}
	if len(users) == 0 {
		c.println("\nНет доступных пользователей.")
		return nil
	}
	c.println("")
	for _, u := range users {
		c.printf("ID: %d\n", u.ID)
		c.printf("Логин: %s\n", u.Username)
		c.printf("Роль: %s\n", u.Role.DisplayName())
		c.printf("Количество покупок: %d\n\n", u.PurchaseCount)
	}
	return nil
}
