package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/material"
)

// Scores

type attemptRepository struct {
	db *sqlx.DB
}

var _ attempt.Repository = (*attemptRepository)(nil)

func NewAttemptRepository(db *sqlx.DB) *attemptRepository {
	return &attemptRepository{db: db}
}

func (repo *attemptRepository) CreateScore(ctx context.Context, s attempt.Score) (attempt.Score, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO score (user_id, quiz_id, total_scored, attempted_at)
		VALUES (:user_id, :quiz_id, :total_scored, :attempted_at)
		RETURNING id`, s)
	if err != nil {
		return attempt.Score{}, errors.Wrap(err, "inserting score")
	}
	s.ID = id
	return s, nil
}

func (repo *attemptRepository) QueryScores(ctx context.Context, filter attempt.Filter) ([]attempt.Score, error) {
	var w where
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.QuizID != nil {
		w.add("quiz_id = ?", *filter.QuizID)
	}
	w.anyOf("quiz_id", filter.QuizIDs)
	if filter.Since != nil {
		w.add("attempted_at >= ?", *filter.Since)
	}

	scores := make([]attempt.Score, 0)
	q := repo.db.Rebind(`SELECT id, user_id, quiz_id, total_scored, attempted_at FROM score` +
		w.String() + " ORDER BY attempted_at DESC, id DESC")
	if err := repo.db.SelectContext(ctx, &scores, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	return scores, nil
}

// Enrollments

const enrollmentColumns = "id, user_id, subject_id, enrolled_at, is_active"

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, userID, subjectID int) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := repo.db.GetContext(ctx, &e,
		"SELECT "+enrollmentColumns+" FROM enrollment WHERE user_id = $1 AND subject_id = $2", userID, subjectID)
	if err != nil {
		return enrollment.Enrollment{}, notFound(err, enrollment.ErrNotFound)
	}
	return e, nil
}

// CreateEnrollment reactivates the existing row of (user, subject) if a concurrent request inserted it first.
func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO enrollment (user_id, subject_id, enrolled_at, is_active)
		VALUES (:user_id, :subject_id, :enrolled_at, :is_active)
		ON CONFLICT (user_id, subject_id) DO UPDATE SET is_active = EXCLUDED.is_active
		RETURNING id`, e)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	e.ID = id
	return e, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE enrollment SET enrolled_at = :enrolled_at, is_active = :is_active WHERE id = :id", e)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if err = checkAffected(res, enrollment.ErrNotFound); err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.Filter) ([]enrollment.Enrollment, error) {
	var w where
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.SubjectID != nil {
		w.add("subject_id = ?", *filter.SubjectID)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}

	rows := make([]enrollment.Enrollment, 0)
	q := repo.db.Rebind("SELECT " + enrollmentColumns + " FROM enrollment" + w.String() + " ORDER BY enrolled_at, id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return rows, nil
}

// Discussions

const messageSelect = `
	SELECT d.id, d.subject_id, d.user_id, COALESCE(NULLIF(u.full_name, ''), u.email) AS user_name,
	       u.role AS user_role, d.message, d.created_at, d.updated_at
	FROM discussion d JOIN app_user u ON u.id = d.user_id`

type discussionRepository struct {
	db *sqlx.DB
}

var _ discussion.Repository = (*discussionRepository)(nil)

func NewDiscussionRepository(db *sqlx.DB) *discussionRepository {
	return &discussionRepository{db: db}
}

func (repo *discussionRepository) CreateMessage(ctx context.Context, m discussion.Message) (discussion.Message, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO discussion (subject_id, user_id, message, created_at, updated_at)
		VALUES (:subject_id, :user_id, :message, :created_at, :updated_at)
		RETURNING id`, m)
	if err != nil {
		return discussion.Message{}, errors.Wrap(err, "inserting message")
	}
	return repo.GetMessage(ctx, id)
}

func (repo *discussionRepository) GetMessage(ctx context.Context, id int) (discussion.Message, error) {
	var m discussion.Message
	if err := repo.db.GetContext(ctx, &m, messageSelect+" WHERE d.id = $1", id); err != nil {
		return discussion.Message{}, notFound(err, discussion.ErrNotFound)
	}
	return m, nil
}

func (repo *discussionRepository) QueryMessages(ctx context.Context, subjectID int) ([]discussion.Message, error) {
	msgs := make([]discussion.Message, 0)
	err := repo.db.SelectContext(ctx, &msgs, messageSelect+" WHERE d.subject_id = $1 ORDER BY d.created_at, d.id", subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return msgs, nil
}

func (repo *discussionRepository) UpdateMessage(ctx context.Context, m discussion.Message) (discussion.Message, error) {
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE discussion SET message = :message, updated_at = :updated_at WHERE id = :id", m)
	if err != nil {
		return discussion.Message{}, errors.Wrap(err, "updating message")
	}
	if err = checkAffected(res, discussion.ErrNotFound); err != nil {
		return discussion.Message{}, err
	}
	return m, nil
}

func (repo *discussionRepository) DeleteMessage(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM discussion WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return checkAffected(res, discussion.ErrNotFound)
}

// Chapter materials

const materialColumns = `id, chapter_id, title, description, material_type, file_path, file_type, file_size,
	external_url, uploaded_by, created_at`

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO chapter_material (chapter_id, title, description, material_type, file_path, file_type, file_size,
			external_url, uploaded_by, created_at)
		VALUES (:chapter_id, :title, :description, :material_type, :file_path, :file_type, :file_size,
			:external_url, :uploaded_by, :created_at)
		RETURNING id`, m)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	m.ID = id
	return m, nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id int) (material.Material, error) {
	var m material.Material
	if err := repo.db.GetContext(ctx, &m, "SELECT "+materialColumns+" FROM chapter_material WHERE id = $1", id); err != nil {
		return material.Material{}, notFound(err, material.ErrNotFound)
	}
	return m, nil
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, chapterID int) ([]material.Material, error) {
	ms := make([]material.Material, 0)
	err := repo.db.SelectContext(ctx, &ms,
		"SELECT "+materialColumns+" FROM chapter_material WHERE chapter_id = $1 ORDER BY created_at DESC, id DESC", chapterID)
	if err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	return ms, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM chapter_material WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return checkAffected(res, material.ErrNotFound)
}
