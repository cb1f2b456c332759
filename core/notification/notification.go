package notification

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// UnreadLimit caps how many unread notifications are listed at once.
const UnreadLimit = 20

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("notification")
)

type Notification struct {
	ID          int         `json:"id" db:"id"`
	UserID      int         `json:"user_id" db:"user_id"`
	Title       string      `json:"title" db:"title"`
	Message     string      `json:"message" db:"message"`
	Type        string      `json:"notification_type" db:"notification_type"`
	RelatedID   null.Int    `json:"related_id" db:"related_id"`
	RelatedType null.String `json:"related_type" db:"related_type"`
	IsRead      bool        `json:"is_read" db:"is_read"`
	Priority    string      `json:"priority" db:"priority"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	ExpiresAt   null.Time   `json:"expires_at" db:"expires_at"`
}

type Repository interface {
	CreateNotifications(ctx context.Context, ns ...Notification) error
	GetNotification(ctx context.Context, id int) (Notification, error)
	// QueryUnread returns unread, unexpired notifications newest first.
	QueryUnread(ctx context.Context, userID int, now time.Time, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id int) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateMany stamps and saves notifications in one go.
func (svc *Service) CreateMany(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}
	now := NowFunc().UTC()
	for i := range ns {
		ns[i].CreatedAt = now
		if ns[i].Priority == "" {
			ns[i].Priority = PriorityNormal
		}
	}
	return svc.repo.CreateNotifications(ctx, ns...)
}

func (svc *Service) Unread(ctx context.Context, actor authz.Actor, userID int) ([]Notification, error) {
	if err := authz.RequireOwner(actor, userID); err != nil {
		return nil, err
	}
	return svc.repo.QueryUnread(ctx, userID, NowFunc().UTC(), UnreadLimit)
}

// MarkRead only works for the owner of the notification.
func (svc *Service) MarkRead(ctx context.Context, actor authz.Actor, id int) error {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(actor, n.UserID); err != nil {
		return err
	}
	return svc.repo.MarkRead(ctx, id)
}
