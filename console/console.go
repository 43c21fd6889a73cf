// Package console is the interactive numbered-menu front end of the dealership.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"carshop/shop"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	msgChoose        = "\nВыберите опцию: "
	msgInvalidChoice = "\nНеверный выбор. Попробуйте снова."
	msgNotANumber    = "\nВведите корректное число."
	msgLoggingOut    = "\nВыход из системы..."
)

var (
	// errInput wraps failures of the underlying reader other than io.EOF.
	errInput = errors.New("read input")
	// errLoggedOut unwinds nested menus back to the main menu.
	errLoggedOut = errors.New("session ended")
)

// Console reads commands line by line from in and writes prompts to out.
type Console struct {
	sc   *bufio.Scanner
	out  io.Writer
	shop *shop.Dealership

	passwordFn func() (string, error)
}

// New builds a console over d. When in is a terminal, passwords are read
// without echo.
func New(in io.Reader, out io.Writer, d *shop.Dealership) *Console {
	c := &Console{sc: bufio.NewScanner(in), out: out, shop: d}
	c.passwordFn = c.scanLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.passwordFn = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(c.out)
			if err != nil {
				return "", fmt.Errorf("%w: %v", errInput, err)
			}
			return strings.TrimSpace(string(b)), nil
		}
	}
	return c
}

// Run shows the main menu until the user exits or the input ends.
func (c *Console) Run(ctx context.Context) error {
	c.println("Добро пожаловать в Car Shop")
	for {
		c.println("\n1. Регистрация")
		c.println("2. Вход в систему")
		c.println("0. Выход")
		choice, err := c.readInt(msgChoose)
		if err == nil {
			switch choice {
			case 1:
				err = c.register(ctx)
			case 2:
				err = c.login(ctx)
			case 0:
				c.println("\nДо свидания!")
				return nil
			default:
				c.println(msgInvalidChoice)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Console) register(ctx context.Context) error {
	c.println("\nЛогин должен содержать:\n")
	c.println("  Буквы латинского алфавита")
	c.println("  Не менее 4-х символов")
	c.println("\nЛогин может содержать:\n")
	c.println("  Цифры")
	c.println("  Знаки препинания (. - _)")
	c.println("\nПароль должен содержать:\n")
	c.println("  Буквы латинского алфавита")
	c.println("  Не менее 4-х символов")
	c.println("  Цифры")

	username, err := c.readNewLogin(ctx)
	if err != nil {
		return err
	}
	password, err := c.readNewPassword()
	if err != nil {
		return err
	}
	if _, err := c.shop.Register(ctx, username, password); err != nil {
		c.report(err)
		c.println("\nОшибка при регистрации. Попробуйте еще раз.")
		return nil
	}
	c.println("\nВаш аккаунт зарегистрирован!")
	return nil
}

func (c *Console) login(ctx context.Context) error {
	c.println("\nВход в аккаунт\n")
	username, err := c.readLine("Введите логин: ")
	if err != nil {
		return err
	}
	password, err := c.readPassword("Введите пароль: ")
	if err != nil {
		return err
	}
	sess, err := c.shop.Login(ctx, strings.ToLower(username), password)
	if errors.Is(err, shop.ErrInvalidCredentials) {
		c.println("\nНеверный логин или пароль. Попробуйте еще раз.")
		return nil
	}
	if err != nil {
		return err
	}

	switch sess.User.Role {
	case shop.RoleAdmin:
		err = c.adminMenu(ctx, sess)
	case shop.RoleManager:
		err = c.managerMenu(ctx, sess)
	default:
		err = c.clientMenu(ctx, sess)
	}
	if errors.Is(err, errLoggedOut) {
		return nil
	}
	return err
}

func (c *Console) adminMenu(ctx context.Context, sess *shop.Session) error {
	return c.menu(ctx, sess, "Админ-панель", []menuItem{
		{"Управление автомобилями", c.carMenu},
		{"Управление заказами", c.orderMenu},
		{"Управление пользователями", c.userMenu},
		{"Просмотр журнала действий", c.auditMenu},
	})
}

func (c *Console) managerMenu(ctx context.Context, sess *shop.Session) error {
	return c.menu(ctx, sess, "Панель менеджера", []menuItem{
		{"Управление автомобилями", c.carMenu},
		{"Управление заказами", c.orderMenu},
	})
}

func (c *Console) clientMenu(ctx context.Context, sess *shop.Session) error {
	return c.menu(ctx, sess, "Личный кабинет", []menuItem{
		{"Просмотреть доступные автомобили", c.listAvailableCars},
		{"Создать заказ на покупку", c.placeOwnOrder},
		{"Просмотреть мои заказы", c.listMyOrders},
	})
}

type menuItem struct {
	title  string
	action func(ctx context.Context, sess *shop.Session) error
}

// menu runs a role dashboard: numbered items plus "0" to log out.
func (c *Console) menu(ctx context.Context, sess *shop.Session, title string, items []menuItem) error {
	for {
		c.printf("\n%s\n\n", title)
		for i, it := range items {
			c.printf("%d. %s\n", i+1, it.title)
		}
		c.println("0. Выйти из системы")

		choice, err := c.readInt(msgChoose)
		if err != nil {
			return err
		}
		switch {
		case choice == 0:
			c.shop.Logout(ctx, sess)
			c.println(msgLoggingOut)
			return nil
		case choice > 0 && choice <= len(items):
			if err := c.settle(items[choice-1].action(ctx, sess)); err != nil {
				return err
			}
		default:
			c.println(msgInvalidChoice)
		}
	}
}

// subMenu runs a management section until "0. Назад".
func (c *Console) subMenu(ctx context.Context, sess *shop.Session, title string, items []menuItem) error {
	for {
		c.printf("\n%s\n\n", title)
		for i, it := range items {
			c.printf("%d. %s\n", i+1, it.title)
		}
		c.println("0. Назад")

		choice, err := c.readInt(msgChoose)
		if err != nil {
			return err
		}
		switch {
		case choice == 0:
			return nil
		case choice > 0 && choice <= len(items):
			if err := c.settle(items[choice-1].action(ctx, sess)); err != nil {
				return err
			}
		default:
			c.println(msgInvalidChoice)
		}
	}
}

// settle prints business errors and passes input errors through.
func (c *Console) settle(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, errInput), errors.Is(err, errLoggedOut):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	c.report(err)
	if errors.Is(err, shop.ErrUnauthenticated) {
		return errLoggedOut
	}
	return nil
}

func (c *Console) report(err error) {
	var msg string
	switch {
	case errors.Is(err, shop.ErrCarNotFound):
		msg = "Автомобиль не найден."
	case errors.Is(err, shop.ErrUserNotFound):
		msg = "Пользователь не найден."
	case errors.Is(err, shop.ErrOrderNotFound):
		msg = "Заказ не найден."
	case errors.Is(err, shop.ErrCarBooked):
		msg = "Этот автомобиль уже забронирован или продан."
	case errors.Is(err, shop.ErrOrderCompleted):
		msg = "Заказ уже завершен. Статус не может быть изменен."
	case errors.Is(err, shop.ErrStatusUnchanged):
		msg = "Статус заказа уже установлен на это значение."
	case errors.Is(err, shop.ErrInvalidTransition):
		msg = "Недопустимое изменение статуса заказа."
	case errors.Is(err, shop.ErrUsernameTaken):
		msg = "Пользователь с таким логином уже существует."
	case errors.Is(err, shop.ErrSelfDelete):
		msg = "Вы не можете удалить сами себя."
	case errors.Is(err, shop.ErrInvalidUsername):
		msg = "Логин не может быть пустым."
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		msg = "Пароль слишком длинный (не более 72 символов)."
	case errors.Is(err, shop.ErrSelfRoleChange):
		msg = "Вы не можете обновить свою роль."
	case errors.Is(err, shop.ErrForbidden):
		msg = "Недостаточно прав для этой операции."
	case errors.Is(err, shop.ErrUnauthenticated):
		msg = "Сеанс завершен. Войдите в систему снова."
	default:
		msg = "Ошибка: " + err.Error()
	}
	c.println("\n" + msg)
}

// ------------------ input ------------------

func (c *Console) println(s string) { fmt.Fprintln(c.out, s) }

func (c *Console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

func (c *Console) scanLine() (string, error) {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", errInput, err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.sc.Text()), nil
}

func (c *Console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.scanLine()
}

func (c *Console) readPassword(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.passwordFn()
}

// readInt re-prompts until the line is an integer.
func (c *Console) readInt(prompt string) (int, error) {
	for {
		s, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err == nil {
			return n, nil
		}
		c.println(msgNotANumber)
	}
}

// readID re-prompts until the line is a positive id.
func (c *Console) readID(prompt string) (int64, error) {
	for {
		s, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
		c.println(msgNotANumber)
	}
}

// readAscending asks for a sort direction.
func (c *Console) readAscending() (bool, error) {
	c.println("\n1. По возрастанию")
	c.println("2. По убыванию")
	for {
		n, err := c.readInt(msgChoose)
		if err != nil {
			return false, err
		}
		if n == 1 || n == 2 {
			return n == 1, nil
		}
		c.println(msgInvalidChoice)
	}
}

// pick lists options 1..n and returns the chosen index. With optional set, an
// empty line returns -1.
func (c *Console) pick(title string, options []string, optional bool) (int, error) {
	c.println(title)
	for i, o := range options {
		c.printf("%d. %s\n", i+1, o)
	}
	for {
		s, err := c.readLine("Введите номер: ")
		if err != nil {
			return 0, err
		}
		if s == "" && optional {
			return -1, nil
		}
		n, err := strconv.Atoi(s)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		c.println("\nПожалуйста, введите номер из списка.")
	}
}
