package shop

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AuditService keeps the append-only journal of user actions.
type AuditService struct {
	logs AuditRepository
	log  *zap.Logger
	now  Clock
}

func NewAuditService(logs AuditRepository, log *zap.Logger, now Clock) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{logs: logs, log: log.Named("audit"), now: now}
}

// LogAction records that user performed action, timestamped now.
func (s *AuditService) LogAction(ctx context.Context, user User, action string) (Audit, error) {
	a, err := s.logs.Append(ctx, Audit{
		UserID:   user.ID,
		Username: user.Username,
		Action:   action,
		Date:     s.now(),
	})
	if err != nil {
		return Audit{}, fmt.Errorf("log action: %w", err)
	}
	s.log.Info(action, zap.Int64("audit_id", a.ID), zap.String("user", user.Username))
	return a, nil
}

// AuditLogs returns a copy of the whole journal in insertion order.
func (s *AuditService) AuditLogs(ctx context.Context) ([]Audit, error) {
	return s.logs.FindAll(ctx)
}

func (s *AuditService) AuditLogsByUser(ctx context.Context, userID int64) ([]Audit, error) {
	return s.filter(ctx, func(a Audit) bool { return a.UserID == userID })
}

// AuditLogsByDate matches the exact timestamp. Use AuditLogsByDay for a
// calendar day.
func (s *AuditService) AuditLogsByDate(ctx context.Context, date time.Time) ([]Audit, error) {
	return s.filter(ctx, func(a Audit) bool { return a.Date.Equal(date) })
}

// AuditLogsByDay returns records from the calendar day of day, in day's location.
func (s *AuditService) AuditLogsByDay(ctx context.Context, day time.Time) ([]Audit, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return s.filter(ctx, func(a Audit) bool {
		return !a.Date.Before(start) && a.Date.Before(end)
	})
}

func (s *AuditService) filter(ctx context.Context, keep func(Audit) bool) ([]Audit, error) {
	logs, err := s.logs.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(logs, func(a Audit) bool { return !keep(a) }), nil
}

// SortAuditByUsername returns a copy of logs stably sorted by username.
func SortAuditByUsername(logs []Audit) []Audit {
	sorted := slices.Clone(logs)
	slices.SortStableFunc(sorted, func(a, b Audit) int { return strings.Compare(a.Username, b.Username) })
	return sorted
}

// SortAuditByDate returns a copy of logs stably sorted by timestamp.
func SortAuditByDate(logs []Audit) []Audit {
	sorted := slices.Clone(logs)
	slices.SortStableFunc(sorted, func(a, b Audit) int { return a.Date.Compare(b.Date) })
	return sorted
}
