package shop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService manages accounts. Passwords are stored as bcrypt hashes.
type UserService struct {
	users UserRepository
	log   *zap.Logger

	bcryptCost int
}

// UserOption is a functional option for NewUserService.
type UserOption func(s *UserService) error

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) UserOption {
	return func(s *UserService) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return fmt.Errorf("bcrypt cost %d is outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		if s.bcryptCost != 0 {
			return errors.New("bcrypt cost is already configured")
		}
		s.bcryptCost = cost
		return nil
	}
}

func NewUserService(users UserRepository, log *zap.Logger, opts ...UserOption) (*UserService, error) {
	s := &UserService{users: users, log: log.Named("users")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	return s, nil
}

// RegisterUser creates an account with a zero purchase count.
// It returns ErrUsernameTaken, leaving the store untouched, if username exists.
func (s *UserService) RegisterUser(ctx context.Context, username, password string, role Role) (User, error) {
	if strings.TrimSpace(username) == "" {
		return User{}, ErrInvalidUsername
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.Save(ctx, User{Username: username, PasswordHash: hash, Role: role})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user registered", zap.Int64("id", u.ID), zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

// Login returns the user whose username and password match exactly.
func (s *UserService) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("username", username))
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.users.FindByUsername(ctx, username)
}

func (s *UserService) FindByID(ctx context.Context, id int64) (User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) AllUsers(ctx context.Context) ([]User, error) {
	return s.users.FindAll(ctx)
}

func (s *UserService) UserCount(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

// UsersByName returns users whose username equals name, ignoring case.
func (s *UserService) UsersByName(ctx context.Context, name string) ([]User, error) {
	return s.filter(ctx, func(u User) bool { return strings.EqualFold(u.Username, name) })
}

func (s *UserService) UsersByRole(ctx context.Context, role Role) ([]User, error) {
	return s.filter(ctx, func(u User) bool { return u.Role == role })
}

// SortUsersByPurchases orders all users by purchase count; ties keep id order.
func (s *UserService) SortUsersByPurchases(ctx context.Context, ascending bool) ([]User, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b User) int {
		if ascending {
			return a.PurchaseCount - b.PurchaseCount
		}
		return b.PurchaseCount - a.PurchaseCount
	})
	return users, nil
}

// Update overwrites username, password hash, role and purchase count of the user with u.ID.
func (s *UserService) Update(ctx context.Context, u User) error {
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	s.log.Debug("user updated", zap.Int64("id", u.ID))
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, id int64, password string) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = s.HashPassword(password); err != nil {
		return err
	}
	return s.Update(ctx, u)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.log.Info("user deleted", zap.Int64("id", id))
	return nil
}

// HashPassword returns the bcrypt hash stored in User.PasswordHash. Passwords
// over 72 bytes fail with bcrypt.ErrPasswordTooLong.
func (s *UserService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *UserService) filter(ctx context.Context, keep func(User) bool) ([]User, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(users, func(u User) bool { return !keep(u) }), nil
}
