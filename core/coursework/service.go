package coursework

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/notification"
)

const (
	urgentWithin   = 3 * 24 * time.Hour
	upcomingWithin = 7 * 24 * time.Hour
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
	ErrAlreadySubmitted   = errors.New("Already submitted")
	ErrContentRequired    = errors.New("Submission content required")
	ErrAssignmentClosed   = errors.New("this assignment is no longer active")
	errChapterMismatch    = "chapter does not belong to the subject"
	errGradeTooHigh       = "grade cannot exceed the assignment's max points"
)

type Repository interface {
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id int) (Assignment, error)
	// QueryAssignments returns the earliest deadlines first.
	QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)

	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	GetSubmission(ctx context.Context, id int) (Submission, error)
	// QuerySubmissions fills in the student's name, newest first.
	QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
}

type Service struct {
	repo          Repository
	catalog       *catalog.Service
	enrollments   *enrollment.Service
	notifications *notification.Service
	policy        *authz.Policy
	logger        core.Logger
}

func NewService(
	repo Repository,
	catalogSvc *catalog.Service,
	enrollmentSvc *enrollment.Service,
	notificationSvc *notification.Service,
	policy *authz.Policy,
	logger core.Logger,
) *Service {
	return &Service{
		repo:          repo,
		catalog:       catalogSvc,
		enrollments:   enrollmentSvc,
		notifications: notificationSvc,
		policy:        policy,
		logger:        logger,
	}
}

// Create saves an assignment and notifies every student actively enrolled in its subject.
func (svc *Service) Create(ctx context.Context, actor authz.Actor, na NewAssignment) (Assignment, error) {
	if _, err := svc.catalog.GetSubject(ctx, na.SubjectID); err != nil {
		return Assignment{}, err
	}
	if err := svc.policy.RequireManageSubject(ctx, actor, na.SubjectID); err != nil {
		return Assignment{}, err
	}

	a := Assignment{
		Title:          na.Title,
		Description:    na.Description,
		SubjectID:      na.SubjectID,
		TeacherID:      actor.ID,
		Deadline:       na.deadline,
		MaxPoints:      na.MaxPoints,
		AssignmentType: na.AssignmentType,
		Instructions:   na.Instructions,
		IsActive:       true,
		CreatedAt:      NowFunc().UTC(),
	}
	if na.ChapterID != nil {
		subjectID, err := svc.catalog.SubjectOfChapter(ctx, *na.ChapterID)
		if err != nil {
			return Assignment{}, err
		}
		if subjectID != na.SubjectID {
			return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "chapter_id", Error: errChapterMismatch})
		}
		a.ChapterID = null.IntFrom(*na.ChapterID)
	}

	a, err := svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	svc.notifyStudents(ctx, a)
	return a, nil
}

// notifyStudents failing never fails the assignment creation.
func (svc *Service) notifyStudents(ctx context.Context, a Assignment) {
	studentIDs, err := svc.enrollments.ActiveStudentIDs(ctx, a.SubjectID)
	if err != nil {
		svc.logger.Error("coursework.notifyStudents: querying students", err)
		return
	}

	priority := notification.PriorityNormal
	if a.Deadline.Sub(NowFunc()) <= urgentWithin {
		priority = notification.PriorityHigh
	}
	ns := make([]notification.Notification, 0, len(studentIDs))
	for _, id := range studentIDs {
		ns = append(ns, notification.Notification{
			UserID: id,
			Title:  "New Assignment: " + a.Title,
			Message: fmt.Sprintf("A new %s has been assigned. Deadline: %s",
				a.AssignmentType, a.Deadline.Format("2006-01-02 15:04")),
			Type:        "assignment",
			RelatedID:   null.IntFrom(a.ID),
			RelatedType: null.StringFrom("assignment"),
			Priority:    priority,
		})
	}
	if err := svc.notifications.CreateMany(ctx, ns...); err != nil {
		svc.logger.Error("coursework.notifyStudents: creating notifications", err)
	}
}

func (svc *Service) Get(ctx context.Context, id int) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// Submit records the one submission a student may hand in for an assignment.
func (svc *Service) Submit(ctx context.Context, actor authz.Actor, assignmentID int, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := svc.policy.RequireStudySubject(ctx, actor, a.SubjectID); err != nil {
		return Submission{}, err
	}
	if !a.IsActive {
		return Submission{}, core.NewValidationError(ErrAssignmentClosed)
	}

	existing, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentID: &assignmentID, StudentID: &actor.ID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "querying submissions")
	}
	if len(existing) > 0 {
		return Submission{}, core.NewValidationError(ErrAlreadySubmitted)
	}
	if err := ns.Validate(); err != nil {
		return Submission{}, err
	}

	now := NowFunc().UTC()
	return svc.repo.CreateSubmission(ctx, Submission{
		AssignmentID: assignmentID,
		StudentID:    actor.ID,
		Content:      ns.Content,
		SubmittedAt:  now,
		IsLate:       a.IsOverdue(now),
	})
}

// Grade is reserved to the teacher who authored the assignment.
func (svc *Service) Grade(ctx context.Context, actor authz.Actor, submissionID int, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := authz.RequireOwner(actor, a.TeacherID); err != nil {
		return Submission{}, err
	}
	if *gs.Grade > float64(a.MaxPoints) {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: errGradeTooHigh})
	}

	sub.Grade = null.Float64From(*gs.Grade)
	sub.Feedback = null.NewString(gs.Feedback, gs.Feedback != "")
	sub.GradedAt = null.TimeFrom(NowFunc().UTC())
	return svc.repo.UpdateSubmission(ctx, sub)
}

// Submissions lists the submissions of an assignment to those who manage its subject.
func (svc *Service) Submissions(ctx context.Context, actor authz.Actor, assignmentID int) ([]Submission, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := svc.policy.RequireManageSubject(ctx, actor, a.SubjectID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentID: &assignmentID})
}

// ListForStudent returns the active assignments of the student's enrolled subjects, by deadline.
func (svc *Service) ListForStudent(ctx context.Context, studentID int) ([]StudentAssignment, error) {
	return svc.studentAssignments(ctx, studentID, nil, nil)
}

// UpcomingDeadlines is ListForStudent restricted to the deadlines of the coming week.
func (svc *Service) UpcomingDeadlines(ctx context.Context, studentID int) ([]StudentAssignment, error) {
	from := NowFunc().UTC()
	to := from.Add(upcomingWithin)
	return svc.studentAssignments(ctx, studentID, &from, &to)
}

func (svc *Service) studentAssignments(ctx context.Context, studentID int, from, to *time.Time) ([]StudentAssignment, error) {
	subjectIDs, err := svc.enrollments.ActiveSubjectIDs(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(subjectIDs) == 0 {
		return []StudentAssignment{}, nil
	}
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		SubjectIDs:   subjectIDs,
		ActiveOnly:   true,
		DeadlineFrom: from,
		DeadlineTo:   to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	byAssignment := make(map[int]Submission, len(subs))
	for _, s := range subs {
		byAssignment[s.AssignmentID] = s
	}

	list := make([]StudentAssignment, 0, len(assignments))
	for _, a := range assignments {
		sa := StudentAssignment{Assignment: a}
		if s, ok := byAssignment[a.ID]; ok {
			sa.Submission = &s
		}
		list = append(list, sa)
	}
	return list, nil
}

// ListForTeacher returns the assignments a teacher authored; admins get every assignment.
func (svc *Service) ListForTeacher(ctx context.Context, actor authz.Actor) ([]Assignment, error) {
	var filter AssignmentFilter
	if !actor.IsAdmin() {
		filter.TeacherID = &actor.ID
	}
	return svc.repo.QueryAssignments(ctx, filter)
}
