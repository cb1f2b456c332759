package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/notification"
)

type courseworkRepository struct {
	db *DB
}

var _ coursework.Repository = (*courseworkRepository)(nil)

func NewCourseworkRepository(db *DB) coursework.Repository {
	return &courseworkRepository{db: db}
}

func (repo *courseworkRepository) CreateAssignment(_ context.Context, a coursework.Assignment) (coursework.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = repo.db.nextID("assignment")
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *courseworkRepository) GetAssignment(_ context.Context, id int) (coursework.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return coursework.Assignment{}, coursework.ErrAssignmentNotFound
}

func (repo *courseworkRepository) QueryAssignments(_ context.Context, filter coursework.AssignmentFilter) ([]coursework.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	as := make([]coursework.Assignment, 0)
	for _, a := range repo.db.assignments {
		if !matchesIDs(filter.SubjectIDs, a.SubjectID) {
			continue
		}
		if filter.TeacherID != nil && a.TeacherID != *filter.TeacherID {
			continue
		}
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		if filter.DeadlineFrom != nil && a.Deadline.Before(*filter.DeadlineFrom) {
			continue
		}
		if filter.DeadlineTo != nil && a.Deadline.After(*filter.DeadlineTo) {
			continue
		}
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Deadline.Equal(as[j].Deadline) {
			return as[i].Deadline.Before(as[j].Deadline)
		}
		return as[i].ID < as[j].ID
	})
	return as, nil
}

// deleteAssignment cascades to submissions. Lock must be held.
func (db *DB) deleteAssignment(id int) {
	delete(db.assignments, id)
	for sid, s := range db.submissions {
		if s.AssignmentID == id {
			delete(db.submissions, sid)
		}
	}
}

// withStudent joins the student's name. Lock must be held.
func (repo *courseworkRepository) withStudent(s coursework.Submission) coursework.Submission {
	s.StudentName, _ = repo.db.displayName(s.StudentID)
	return s
}

func (repo *courseworkRepository) CreateSubmission(_ context.Context, s coursework.Submission) (coursework.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == s.AssignmentID && existing.StudentID == s.StudentID {
			return coursework.Submission{}, core.NewValidationError(coursework.ErrAlreadySubmitted)
		}
	}
	s.ID = repo.db.nextID("submission")
	s.StudentName = ""
	repo.db.submissions[s.ID] = s
	return repo.withStudent(s), nil
}

func (repo *courseworkRepository) GetSubmission(_ context.Context, id int) (coursework.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return repo.withStudent(s), nil
	}
	return coursework.Submission{}, coursework.ErrSubmissionNotFound
}

func (repo *courseworkRepository) QuerySubmissions(_ context.Context, filter coursework.SubmissionFilter) ([]coursework.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]coursework.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.AssignmentID != nil && s.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.StudentID != nil && s.StudentID != *filter.StudentID {
			continue
		}
		subs = append(subs, repo.withStudent(s))
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs, nil
}

func (repo *courseworkRepository) UpdateSubmission(_ context.Context, s coursework.Submission) (coursework.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[s.ID]; !ok {
		return coursework.Submission{}, coursework.ErrSubmissionNotFound
	}
	repo.db.submissions[s.ID] = s
	return repo.withStudent(s), nil
}

// Notifications

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, ns ...notification.Notification) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range ns {
		n.ID = repo.db.nextID("notification")
		repo.db.notifications[n.ID] = n
	}
	return nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id int) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryUnread(_ context.Context, userID int, now time.Time, limit int) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID != userID || n.IsRead {
			continue
		}
		if n.ExpiresAt.Valid && !n.ExpiresAt.Time.After(now) {
			continue
		}
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID > ns[j].ID
	})
	if limit > 0 && len(ns) > limit {
		ns = ns[:limit]
	}
	return ns, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.IsRead = true
	repo.db.notifications[id] = n
	return nil
}
