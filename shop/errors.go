package shop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every entity specific lookup miss.
	ErrNotFound = errors.New("not found")

	ErrCarNotFound   = fmt.Errorf("car %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)

	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCarBooked          = errors.New("car is already booked or sold")

	// ErrInvalidTransition is wrapped by every rejected order status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderCompleted    = fmt.Errorf("%w: order is already completed", ErrInvalidTransition)
	ErrStatusUnchanged   = fmt.Errorf("%w: order already has this status", ErrInvalidTransition)

	ErrUnauthenticated = errors.New("not logged in")
	ErrForbidden       = errors.New("operation not permitted for this role")
	ErrSelfDelete      = errors.New("you cannot delete yourself")
	ErrSelfRoleChange  = errors.New("you cannot change your own role")
	ErrInvalidCar      = errors.New("invalid car")
	ErrInvalidUsername = errors.New("username must not be empty")
)
