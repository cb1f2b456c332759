package enrollment

import (
	"context"
	"time"

	"github.com/trezcool/quizhub/core"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("enrollment")
)

type Enrollment struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	SubjectID  int       `json:"subject_id" db:"subject_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
	IsActive   bool      `json:"is_active" db:"is_active"`
}

type Filter struct {
	UserID    *int
	SubjectID *int
	// ActiveOnly drops unenrolled rows.
	ActiveOnly bool
}

type Repository interface {
	// GetEnrollment returns the row of (user, subject), active or not.
	GetEnrollment(ctx context.Context, userID, subjectID int) (Enrollment, error)
	CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	QueryEnrollments(ctx context.Context, filter Filter) ([]Enrollment, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enroll is idempotent: an inactive row is reactivated, an active one is left as is.
func (svc *Service) Enroll(ctx context.Context, userID, subjectID int) (Enrollment, error) {
	e, err := svc.repo.GetEnrollment(ctx, userID, subjectID)
	switch {
	case err == nil:
		if e.IsActive {
			return e, nil
		}
		e.IsActive = true
		e.EnrolledAt = NowFunc().UTC()
		return svc.repo.UpdateEnrollment(ctx, e)
	case core.IsNotFound(err):
		return svc.repo.CreateEnrollment(ctx, Enrollment{
			UserID:     userID,
			SubjectID:  subjectID,
			EnrolledAt: NowFunc().UTC(),
			IsActive:   true,
		})
	default:
		return Enrollment{}, err
	}
}

// Unenroll flips the active flag; the row and the user's scores are kept.
func (svc *Service) Unenroll(ctx context.Context, userID, subjectID int) error {
	e, err := svc.repo.GetEnrollment(ctx, userID, subjectID)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return ErrNotFound
	}
	e.IsActive = false
	_, err = svc.repo.UpdateEnrollment(ctx, e)
	return err
}

func (svc *Service) IsEnrolled(ctx context.Context, userID, subjectID int) (bool, error) {
	e, err := svc.repo.GetEnrollment(ctx, userID, subjectID)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return e.IsActive, nil
}

func (svc *Service) ActiveSubjectIDs(ctx context.Context, userID int) ([]int, error) {
	rows, err := svc.repo.QueryEnrollments(ctx, Filter{UserID: &userID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.SubjectID)
	}
	return ids, nil
}

func (svc *Service) ActiveStudentIDs(ctx context.Context, subjectID int) ([]int, error) {
	rows, err := svc.repo.QueryEnrollments(ctx, Filter{SubjectID: &subjectID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}
