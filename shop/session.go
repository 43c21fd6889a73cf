package shop

import (
	"time"

	"github.com/google/uuid"
)

// Session is the logged-in state of one console (or any other) user. It is
// created by Dealership.Login and passed explicitly to every operation that
// acts on behalf of a user.
type Session struct {
	ID        uuid.UUID
	User      User
	StartedAt time.Time
}

func newSession(u User, now time.Time) *Session {
	return &Session{ID: uuid.New(), User: u, StartedAt: now}
}
