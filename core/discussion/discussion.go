package discussion

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("message")
)

// Event types published to subscribers of a subject.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

type Message struct {
	ID        int       `json:"id" db:"id"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	UserRole  string    `json:"user_role" db:"user_role"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Event struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type NewMessage struct {
	Message string `json:"message" form:"message" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Message = core.CleanString(nm.Message)
	return validate.Struct(nm)
}

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// GetMessage fills in the author's name and role.
		GetMessage(ctx context.Context, id int) (Message, error)
		// QueryMessages returns a subject's messages oldest first.
		QueryMessages(ctx context.Context, subjectID int) ([]Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		DeleteMessage(ctx context.Context, id int) error
	}

	// Publisher fans discussion changes out to live subscribers.
	Publisher interface {
		Publish(subjectID int, ev Event)
	}
)

type Service struct {
	repo      Repository
	policy    *authz.Policy
	publisher Publisher
}

func NewService(repo Repository, policy *authz.Policy, publisher Publisher) *Service {
	return &Service{repo: repo, policy: policy, publisher: publisher}
}

func (svc *Service) List(ctx context.Context, actor authz.Actor, subjectID int) ([]Message, error) {
	if err := svc.policy.RequireViewSubject(ctx, actor, subjectID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMessages(ctx, subjectID)
}

func (svc *Service) Post(ctx context.Context, actor authz.Actor, subjectID int, nm NewMessage) (Message, error) {
	if err := svc.policy.RequireViewSubject(ctx, actor, subjectID); err != nil {
		return Message{}, err
	}
	now := NowFunc().UTC()
	m, err := svc.repo.CreateMessage(ctx, Message{
		SubjectID: subjectID,
		UserID:    actor.ID,
		Message:   nm.Message,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if m, err = svc.repo.GetMessage(ctx, m.ID); err != nil {
		return Message{}, errors.Wrap(err, "reloading message")
	}
	svc.publish(EventCreated, m)
	return m, nil
}

// Edit lets authors, and only them, change their own messages.
func (svc *Service) Edit(ctx context.Context, actor authz.Actor, id int, nm NewMessage) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if err := authz.RequireOwner(actor, m.UserID); err != nil {
		return Message{}, err
	}
	m.Message = nm.Message
	m.UpdatedAt = NowFunc().UTC()
	if m, err = svc.repo.UpdateMessage(ctx, m); err != nil {
		return Message{}, errors.Wrap(err, "updating message")
	}
	svc.publish(EventUpdated, m)
	return m, nil
}

func (svc *Service) Delete(ctx context.Context, actor authz.Actor, id int) error {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(actor, m.UserID); err != nil {
		return err
	}
	if err := svc.repo.DeleteMessage(ctx, id); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	svc.publish(EventDeleted, m)
	return nil
}

// Subscribe checks that the actor may follow a subject's discussion.
func (svc *Service) Subscribe(ctx context.Context, actor authz.Actor, subjectID int) error {
	return svc.policy.RequireViewSubject(ctx, actor, subjectID)
}

func (svc *Service) publish(typ string, m Message) {
	if svc.publisher != nil {
		svc.publisher.Publish(m.SubjectID, Event{Type: typ, Message: m})
	}
}
