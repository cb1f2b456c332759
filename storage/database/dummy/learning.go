package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/material"
)

// Scores

type attemptRepository struct {
	db *DB
}

var _ attempt.Repository = (*attemptRepository)(nil)

func NewAttemptRepository(db *DB) attempt.Repository {
	return &attemptRepository{db: db}
}

func (repo *attemptRepository) CreateScore(_ context.Context, s attempt.Score) (attempt.Score, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = repo.db.nextID("score")
	repo.db.scores[s.ID] = s
	return s, nil
}

func (repo *attemptRepository) QueryScores(_ context.Context, filter attempt.Filter) ([]attempt.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scores := make([]attempt.Score, 0)
	for _, s := range repo.db.scores {
		if filter.UserID != nil && s.UserID != *filter.UserID {
			continue
		}
		if filter.QuizID != nil && s.QuizID != *filter.QuizID {
			continue
		}
		if !matchesIDs(filter.QuizIDs, s.QuizID) {
			continue
		}
		if filter.Since != nil && s.AttemptedAt.Before(*filter.Since) {
			continue
		}
		scores = append(scores, s)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Newer(scores[j]) })
	return scores, nil
}

// Enrollments

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) find(userID, subjectID int) (enrollment.Enrollment, bool) {
	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.SubjectID == subjectID {
			return e, true
		}
	}
	return enrollment.Enrollment{}, false
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, userID, subjectID int) (enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.find(userID, subjectID); ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.find(e.UserID, e.SubjectID); ok {
		existing.IsActive = e.IsActive
		repo.db.enrollments[existing.ID] = existing
		return existing, nil
	}
	e.ID = repo.db.nextID("enrollment")
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.Filter) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.UserID != nil && e.UserID != *filter.UserID {
			continue
		}
		if filter.SubjectID != nil && e.SubjectID != *filter.SubjectID {
			continue
		}
		if filter.ActiveOnly && !e.IsActive {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EnrolledAt.Equal(rows[j].EnrolledAt) {
			return rows[i].EnrolledAt.Before(rows[j].EnrolledAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

// Discussions

type discussionRepository struct {
	db *DB
}

var _ discussion.Repository = (*discussionRepository)(nil)

func NewDiscussionRepository(db *DB) discussion.Repository {
	return &discussionRepository{db: db}
}

// withAuthor joins the author's name and role. Lock must be held.
func (repo *discussionRepository) withAuthor(m discussion.Message) discussion.Message {
	m.UserName, m.UserRole = repo.db.displayName(m.UserID)
	return m
}

func (repo *discussionRepository) CreateMessage(_ context.Context, m discussion.Message) (discussion.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = repo.db.nextID("discussion")
	repo.db.messages[m.ID] = m
	return repo.withAuthor(m), nil
}

func (repo *discussionRepository) GetMessage(_ context.Context, id int) (discussion.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.messages[id]; ok {
		return repo.withAuthor(m), nil
	}
	return discussion.Message{}, discussion.ErrNotFound
}

func (repo *discussionRepository) QueryMessages(_ context.Context, subjectID int) ([]discussion.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]discussion.Message, 0)
	for _, m := range repo.db.messages {
		if m.SubjectID == subjectID {
			msgs = append(msgs, repo.withAuthor(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

func (repo *discussionRepository) UpdateMessage(_ context.Context, m discussion.Message) (discussion.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.messages[m.ID]
	if !ok {
		return discussion.Message{}, discussion.ErrNotFound
	}
	orig.Message = m.Message
	orig.UpdatedAt = m.UpdatedAt
	repo.db.messages[m.ID] = orig
	return repo.withAuthor(orig), nil
}

func (repo *discussionRepository) DeleteMessage(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.messages[id]; !ok {
		return discussion.ErrNotFound
	}
	delete(repo.db.messages, id)
	return nil
}

// Chapter materials

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(_ context.Context, m material.Material) (material.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = repo.db.nextID("material")
	repo.db.materials[m.ID] = m
	return m, nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, id int) (material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) QueryMaterials(_ context.Context, chapterID int) ([]material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ms := make([]material.Material, 0)
	for _, m := range repo.db.materials {
		if m.ChapterID == chapterID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID > ms[j].ID
	})
	return ms, nil
}

func (repo *materialRepository) DeleteMaterial(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return material.ErrNotFound
	}
	delete(repo.db.materials, id)
	return nil
}
