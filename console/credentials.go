package console

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"carshop/shop"
)

var (
	credentialChars = regexp.MustCompile(`^[a-zA-Z0-9._-]{4,72}$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

// ValidLogin reports whether s is 4 to 72 of [a-zA-Z0-9._-] with a letter.
func ValidLogin(s string) bool {
	return credentialChars.MatchString(s) && hasLetter.MatchString(s)
}

// ValidPassword reports whether s is 4 to 72 of [a-zA-Z0-9._-] with a letter
// and a digit. 72 bytes is the bcrypt input limit.
func ValidPassword(s string) bool {
	return credentialChars.MatchString(s) && hasLetter.MatchString(s) && hasDigit.MatchString(s)
}

// readNewLogin re-prompts until the login is well formed and free. The result
// is lowercased.
func (c *Console) readNewLogin(ctx context.Context) (string, error) {
	for {
		s, err := c.readLine("Введите логин: ")
		if err != nil {
			return "", err
		}
		if !ValidLogin(s) {
			c.println("\nНеверный формат логина, попробуйте еще раз...")
			continue
		}
		s = strings.ToLower(s)
		_, err = c.shop.Users.FindByUsername(ctx, s)
		if err == nil {
			c.println("\nЭтот логин уже существует. Пожалуйста, выберите другой.")
			continue
		}
		if !errors.Is(err, shop.ErrNotFound) {
			return "", err
		}
		return s, nil
	}
}

func (c *Console) readNewPassword() (string, error) {
	for {
		s, err := c.readPassword("Введите пароль: ")
		if err != nil {
			return "", err
		}
		if ValidPassword(s) {
			return s, nil
		}
		c.println("\nНеверный формат пароля, попробуйте еще раз...")
	}
}
