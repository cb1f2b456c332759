package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/notification"
)

const (
	assignmentColumns = `id, title, description, subject_id, chapter_id, teacher_id, deadline, max_points,
	assignment_type, instructions, is_active, created_at`

	submissionSelect = `
	SELECT s.id, s.assignment_id, s.student_id, COALESCE(NULLIF(u.full_name, ''), u.email) AS student_name,
	       s.content, s.submitted_at, s.is_late, s.grade, s.feedback, s.graded_at
	FROM assignment_submission s JOIN app_user u ON u.id = s.student_id`
)

type courseworkRepository struct {
	db *sqlx.DB
}

var _ coursework.Repository = (*courseworkRepository)(nil)

func NewCourseworkRepository(db *sqlx.DB) *courseworkRepository {
	return &courseworkRepository{db: db}
}

func (repo *courseworkRepository) CreateAssignment(ctx context.Context, a coursework.Assignment) (coursework.Assignment, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO assignment (title, description, subject_id, chapter_id, teacher_id, deadline, max_points,
			assignment_type, instructions, is_active, created_at)
		VALUES (:title, :description, :subject_id, :chapter_id, :teacher_id, :deadline, :max_points,
			:assignment_type, :instructions, :is_active, :created_at)
		RETURNING id`, a)
	if err != nil {
		return coursework.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	a.ID = id
	return a, nil
}

func (repo *courseworkRepository) GetAssignment(ctx context.Context, id int) (coursework.Assignment, error) {
	var a coursework.Assignment
	if err := repo.db.GetContext(ctx, &a, "SELECT "+assignmentColumns+" FROM assignment WHERE id = $1", id); err != nil {
		return coursework.Assignment{}, notFound(err, coursework.ErrAssignmentNotFound)
	}
	return a, nil
}

func (repo *courseworkRepository) QueryAssignments(ctx context.Context, filter coursework.AssignmentFilter) ([]coursework.Assignment, error) {
	var w where
	w.anyOf("subject_id", filter.SubjectIDs)
	if filter.TeacherID != nil {
		w.add("teacher_id = ?", *filter.TeacherID)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if filter.DeadlineFrom != nil {
		w.add("deadline >= ?", *filter.DeadlineFrom)
	}
	if filter.DeadlineTo != nil {
		w.add("deadline <= ?", *filter.DeadlineTo)
	}

	as := make([]coursework.Assignment, 0)
	q := repo.db.Rebind("SELECT " + assignmentColumns + " FROM assignment" + w.String() + " ORDER BY deadline, id")
	if err := repo.db.SelectContext(ctx, &as, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return as, nil
}

func (repo *courseworkRepository) CreateSubmission(ctx context.Context, s coursework.Submission) (coursework.Submission, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO assignment_submission (assignment_id, student_id, content, submitted_at, is_late, grade, feedback, graded_at)
		VALUES (:assignment_id, :student_id, :content, :submitted_at, :is_late, :grade, :feedback, :graded_at)
		RETURNING id`, s)
	if err != nil {
		if isUniqueViolation(err) {
			return coursework.Submission{}, core.NewValidationError(coursework.ErrAlreadySubmitted)
		}
		return coursework.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return repo.GetSubmission(ctx, id)
}

func (repo *courseworkRepository) GetSubmission(ctx context.Context, id int) (coursework.Submission, error) {
	var s coursework.Submission
	if err := repo.db.GetContext(ctx, &s, submissionSelect+" WHERE s.id = $1", id); err != nil {
		return coursework.Submission{}, notFound(err, coursework.ErrSubmissionNotFound)
	}
	return s, nil
}

func (repo *courseworkRepository) QuerySubmissions(ctx context.Context, filter coursework.SubmissionFilter) ([]coursework.Submission, error) {
	var w where
	if filter.AssignmentID != nil {
		w.add("s.assignment_id = ?", *filter.AssignmentID)
	}
	if filter.StudentID != nil {
		w.add("s.student_id = ?", *filter.StudentID)
	}

	subs := make([]coursework.Submission, 0)
	q := repo.db.Rebind(submissionSelect + w.String() + " ORDER BY s.submitted_at DESC, s.id DESC")
	if err := repo.db.SelectContext(ctx, &subs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (repo *courseworkRepository) UpdateSubmission(ctx context.Context, s coursework.Submission) (coursework.Submission, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE assignment_submission SET content = :content, is_late = :is_late, grade = :grade,
			feedback = :feedback, graded_at = :graded_at
		WHERE id = :id`, s)
	if err != nil {
		return coursework.Submission{}, errors.Wrap(err, "updating submission")
	}
	if err = checkAffected(res, coursework.ErrSubmissionNotFound); err != nil {
		return coursework.Submission{}, err
	}
	return s, nil
}

// Notifications

const notificationColumns = `id, user_id, title, message, notification_type, related_id, related_type, is_read,
	priority, created_at, expires_at`

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotifications inserts all rows in one statement.
func (repo *notificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notification (user_id, title, message, notification_type, related_id, related_type, is_read,
			priority, created_at, expires_at)
		VALUES (:user_id, :title, :message, :notification_type, :related_id, :related_type, :is_read,
			:priority, :created_at, :expires_at)`, ns)
	return errors.Wrap(err, "inserting notifications")
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id int) (notification.Notification, error) {
	var n notification.Notification
	if err := repo.db.GetContext(ctx, &n, "SELECT "+notificationColumns+" FROM notification WHERE id = $1", id); err != nil {
		return notification.Notification{}, notFound(err, notification.ErrNotFound)
	}
	return n, nil
}

func (repo *notificationRepository) QueryUnread(ctx context.Context, userID int, now time.Time, limit int) ([]notification.Notification, error) {
	ns := make([]notification.Notification, 0)
	err := repo.db.SelectContext(ctx, &ns, `
		SELECT `+notificationColumns+` FROM notification
		WHERE user_id = $1 AND NOT is_read AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying unread notifications")
	}
	return ns, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE notification SET is_read = TRUE WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return checkAffected(res, notification.ErrNotFound)
}
