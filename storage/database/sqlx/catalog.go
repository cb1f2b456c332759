package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/catalog"
)

const (
	branchColumns   = "id, name, short_name, description, icon, color, created_at"
	subjectColumns  = "id, name, description, branch_id, is_core, created_at"
	chapterColumns  = "id, subject_id, name, description, created_at"
	quizColumns     = "id, chapter_id, name, date_of_quiz, time_duration, remarks, created_at"
	questionColumns = "id, quiz_id, statement, option1, option2, option3, option4, correct_option"
)

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Branches

func (repo *catalogRepository) CreateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO branch (name, short_name, description, icon, color, created_at)
		VALUES (:name, :short_name, :description, :icon, :color, :created_at)
		RETURNING id`, b)
	if err != nil {
		return catalog.Branch{}, errors.Wrap(err, "inserting branch")
	}
	b.ID = id
	return b, nil
}

func (repo *catalogRepository) GetBranch(ctx context.Context, id int) (catalog.Branch, error) {
	var b catalog.Branch
	err := repo.db.GetContext(ctx, &b, "SELECT "+branchColumns+" FROM branch WHERE id = $1", id)
	if err != nil {
		return catalog.Branch{}, notFound(err, catalog.ErrBranchNotFound)
	}
	return b, nil
}

func (repo *catalogRepository) QueryBranches(ctx context.Context) ([]catalog.Branch, error) {
	branches := make([]catalog.Branch, 0)
	if err := repo.db.SelectContext(ctx, &branches, "SELECT "+branchColumns+" FROM branch ORDER BY name, id"); err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	return branches, nil
}

func (repo *catalogRepository) UpdateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE branch SET name = :name, short_name = :short_name, description = :description, icon = :icon, color = :color
		WHERE id = :id`, b)
	if err != nil {
		return catalog.Branch{}, errors.Wrap(err, "updating branch")
	}
	if err = checkAffected(res, catalog.ErrBranchNotFound); err != nil {
		return catalog.Branch{}, err
	}
	return b, nil
}

func (repo *catalogRepository) DeleteBranch(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM branch WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return checkAffected(res, catalog.ErrBranchNotFound)
}

// CountBranchDependents counts every user of the branch, since all of them block its deletion.
func (repo *catalogRepository) CountBranchDependents(ctx context.Context, id int) (int, int, error) {
	var counts struct {
		Users    int `db:"users"`
		Subjects int `db:"subjects"`
	}
	err := repo.db.GetContext(ctx, &counts, `
		SELECT (SELECT count(*) FROM app_user WHERE branch_id = $1) AS users,
		       (SELECT count(*) FROM subject WHERE branch_id = $1) AS subjects`, id)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting branch dependents")
	}
	return counts.Users, counts.Subjects, nil
}

// Subjects

func (repo *catalogRepository) CreateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO subject (name, description, branch_id, is_core, created_at)
		VALUES (:name, :description, :branch_id, :is_core, :created_at)
		RETURNING id`, s)
	if err != nil {
		return catalog.Subject{}, errors.Wrap(err, "inserting subject")
	}
	s.ID = id
	return s, nil
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id int) (catalog.Subject, error) {
	var s catalog.Subject
	if err := repo.db.GetContext(ctx, &s, "SELECT "+subjectColumns+" FROM subject WHERE id = $1", id); err != nil {
		return catalog.Subject{}, notFound(err, catalog.ErrSubjectNotFound)
	}
	return s, nil
}

func (repo *catalogRepository) QuerySubjects(ctx context.Context, filter catalog.SubjectFilter) ([]catalog.Subject, error) {
	var w where
	if filter.BranchID != nil {
		w.add("branch_id = ?", *filter.BranchID)
	}
	w.anyOf("id", filter.IDs)
	if filter.Search != "" {
		w.add("lower(name) LIKE ?", likeArg(strings.ToLower(filter.Search)))
	}

	subjects := make([]catalog.Subject, 0)
	q := repo.db.Rebind("SELECT " + subjectColumns + " FROM subject" + w.String() + " ORDER BY name, id")
	if err := repo.db.SelectContext(ctx, &subjects, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

func (repo *catalogRepository) UpdateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE subject SET name = :name, description = :description, branch_id = :branch_id, is_core = :is_core
		WHERE id = :id`, s)
	if err != nil {
		return catalog.Subject{}, errors.Wrap(err, "updating subject")
	}
	if err = checkAffected(res, catalog.ErrSubjectNotFound); err != nil {
		return catalog.Subject{}, err
	}
	return s, nil
}

func (repo *catalogRepository) DeleteSubject(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM subject WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return checkAffected(res, catalog.ErrSubjectNotFound)
}

// Chapters

func (repo *catalogRepository) CreateChapter(ctx context.Context, ch catalog.Chapter) (catalog.Chapter, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO chapter (subject_id, name, description, created_at)
		VALUES (:subject_id, :name, :description, :created_at)
		RETURNING id`, ch)
	if err != nil {
		return catalog.Chapter{}, errors.Wrap(err, "inserting chapter")
	}
	ch.ID = id
	return ch, nil
}

func (repo *catalogRepository) GetChapter(ctx context.Context, id int) (catalog.Chapter, error) {
	var ch catalog.Chapter
	if err := repo.db.GetContext(ctx, &ch, "SELECT "+chapterColumns+" FROM chapter WHERE id = $1", id); err != nil {
		return catalog.Chapter{}, notFound(err, catalog.ErrChapterNotFound)
	}
	return ch, nil
}

func (repo *catalogRepository) QueryChapters(ctx context.Context, filter catalog.ChapterFilter) ([]catalog.Chapter, error) {
	var w where
	if filter.SubjectID != nil {
		w.add("subject_id = ?", *filter.SubjectID)
	}
	w.anyOf("subject_id", filter.SubjectIDs)

	chapters := make([]catalog.Chapter, 0)
	q := repo.db.Rebind("SELECT " + chapterColumns + " FROM chapter" + w.String() + " ORDER BY id")
	if err := repo.db.SelectContext(ctx, &chapters, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	return chapters, nil
}

func (repo *catalogRepository) UpdateChapter(ctx context.Context, ch catalog.Chapter) (catalog.Chapter, error) {
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE chapter SET name = :name, description = :description WHERE id = :id", ch)
	if err != nil {
		return catalog.Chapter{}, errors.Wrap(err, "updating chapter")
	}
	if err = checkAffected(res, catalog.ErrChapterNotFound); err != nil {
		return catalog.Chapter{}, err
	}
	return ch, nil
}

func (repo *catalogRepository) DeleteChapter(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM chapter WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting chapter")
	}
	return checkAffected(res, catalog.ErrChapterNotFound)
}

// Quizzes

func (repo *catalogRepository) CreateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO quiz (chapter_id, name, date_of_quiz, time_duration, remarks, created_at)
		VALUES (:chapter_id, :name, :date_of_quiz, :time_duration, :remarks, :created_at)
		RETURNING id`, qz)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	qz.ID = id
	return qz, nil
}

func (repo *catalogRepository) GetQuiz(ctx context.Context, id int) (catalog.Quiz, error) {
	var qz catalog.Quiz
	if err := repo.db.GetContext(ctx, &qz, "SELECT "+quizColumns+" FROM quiz WHERE id = $1", id); err != nil {
		return catalog.Quiz{}, notFound(err, catalog.ErrQuizNotFound)
	}
	return qz, nil
}

func (repo *catalogRepository) QueryQuizzes(ctx context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	var w where
	if filter.ChapterID != nil {
		w.add("chapter_id = ?", *filter.ChapterID)
	}
	if filter.SubjectID != nil {
		w.add("chapter_id IN (SELECT id FROM chapter WHERE subject_id = ?)", *filter.SubjectID)
	}
	if filter.SubjectIDs != nil {
		var sub where
		sub.anyOf("subject_id", filter.SubjectIDs)
		w.add("chapter_id IN (SELECT id FROM chapter"+sub.String()+")", sub.args...)
	}
	w.anyOf("id", filter.IDs)

	quizzes := make([]catalog.Quiz, 0)
	q := repo.db.Rebind("SELECT " + quizColumns + " FROM quiz" + w.String() + " ORDER BY date_of_quiz, id")
	if err := repo.db.SelectContext(ctx, &quizzes, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	return quizzes, nil
}

func (repo *catalogRepository) UpdateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE quiz SET name = :name, date_of_quiz = :date_of_quiz, time_duration = :time_duration, remarks = :remarks
		WHERE id = :id`, qz)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if err = checkAffected(res, catalog.ErrQuizNotFound); err != nil {
		return catalog.Quiz{}, err
	}
	return qz, nil
}

func (repo *catalogRepository) DeleteQuiz(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM quiz WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return checkAffected(res, catalog.ErrQuizNotFound)
}

// Questions

func (repo *catalogRepository) CreateQuestion(ctx context.Context, qn catalog.Question) (catalog.Question, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO question (quiz_id, statement, option1, option2, option3, option4, correct_option)
		VALUES (:quiz_id, :statement, :option1, :option2, :option3, :option4, :correct_option)
		RETURNING id`, qn)
	if err != nil {
		return catalog.Question{}, errors.Wrap(err, "inserting question")
	}
	qn.ID = id
	return qn, nil
}

func (repo *catalogRepository) GetQuestion(ctx context.Context, id int) (catalog.Question, error) {
	var qn catalog.Question
	if err := repo.db.GetContext(ctx, &qn, "SELECT "+questionColumns+" FROM question WHERE id = $1", id); err != nil {
		return catalog.Question{}, notFound(err, catalog.ErrQuestionNotFound)
	}
	return qn, nil
}

func (repo *catalogRepository) QueryQuestions(ctx context.Context, filter catalog.QuestionFilter) ([]catalog.Question, error) {
	var w where
	if filter.QuizID != nil {
		w.add("quiz_id = ?", *filter.QuizID)
	}
	w.anyOf("quiz_id", filter.QuizIDs)

	questions := make([]catalog.Question, 0)
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM question" + w.String() + " ORDER BY id")
	if err := repo.db.SelectContext(ctx, &questions, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

func (repo *catalogRepository) UpdateQuestion(ctx context.Context, qn catalog.Question) (catalog.Question, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE question SET statement = :statement, option1 = :option1, option2 = :option2, option3 = :option3,
			option4 = :option4, correct_option = :correct_option
		WHERE id = :id`, qn)
	if err != nil {
		return catalog.Question{}, errors.Wrap(err, "updating question")
	}
	if err = checkAffected(res, catalog.ErrQuestionNotFound); err != nil {
		return catalog.Question{}, err
	}
	return qn, nil
}

func (repo *catalogRepository) DeleteQuestion(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM question WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return checkAffected(res, catalog.ErrQuestionNotFound)
}

func (repo *catalogRepository) CountQuestions(ctx context.Context, quizIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(quizIDs))
	if len(quizIDs) == 0 {
		return counts, nil
	}
	q, args, err := sqlx.In("SELECT quiz_id, count(*) AS n FROM question WHERE quiz_id IN (?) GROUP BY quiz_id", quizIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building count query")
	}
	var rows []struct {
		QuizID int `db:"quiz_id"`
		N      int `db:"n"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "counting questions")
	}
	for _, r := range rows {
		counts[r.QuizID] = r.N
	}
	return counts, nil
}

// Teacher grants

func (repo *catalogRepository) AssignTeacher(ctx context.Context, ts catalog.TeacherSubject) error {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO teacher_subject (teacher_id, subject_id, assigned_at)
		VALUES (:teacher_id, :subject_id, :assigned_at)
		ON CONFLICT (teacher_id, subject_id) DO NOTHING`, ts)
	return errors.Wrap(err, "assigning teacher")
}

func (repo *catalogRepository) UnassignTeacher(ctx context.Context, teacherID, subjectID int) error {
	_, err := repo.db.ExecContext(ctx,
		"DELETE FROM teacher_subject WHERE teacher_id = $1 AND subject_id = $2", teacherID, subjectID)
	return errors.Wrap(err, "unassigning teacher")
}

func (repo *catalogRepository) QueryTeacherSubjects(ctx context.Context, teacherID int) ([]catalog.TeacherSubject, error) {
	grants := make([]catalog.TeacherSubject, 0)
	err := repo.db.SelectContext(ctx, &grants, `
		SELECT teacher_id, subject_id, assigned_at FROM teacher_subject
		WHERE teacher_id = $1 ORDER BY assigned_at, subject_id`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher subjects")
	}
	return grants, nil
}

func (repo *catalogRepository) IsTeacherAssigned(ctx context.Context, teacherID, subjectID int) (bool, error) {
	var ok bool
	err := repo.db.GetContext(ctx, &ok,
		"SELECT EXISTS (SELECT 1 FROM teacher_subject WHERE teacher_id = $1 AND subject_id = $2)", teacherID, subjectID)
	if err != nil {
		return false, errors.Wrap(err, "checking teacher assignment")
	}
	return ok, nil
}

func (repo *catalogRepository) Search(ctx context.Context, text string) (catalog.SearchResult, error) {
	res := catalog.SearchResult{
		Subjects: make([]catalog.Subject, 0),
		Chapters: make([]catalog.Chapter, 0),
		Quizzes:  make([]catalog.Quiz, 0),
	}
	like := likeArg(strings.ToLower(text))
	if err := repo.db.SelectContext(ctx, &res.Subjects,
		"SELECT "+subjectColumns+" FROM subject WHERE lower(name) LIKE $1 ORDER BY name, id", like); err != nil {
		return res, errors.Wrap(err, "searching subjects")
	}
	if err := repo.db.SelectContext(ctx, &res.Chapters,
		"SELECT "+chapterColumns+" FROM chapter WHERE lower(name) LIKE $1 ORDER BY name, id", like); err != nil {
		return res, errors.Wrap(err, "searching chapters")
	}
	if err := repo.db.SelectContext(ctx, &res.Quizzes,
		"SELECT "+quizColumns+" FROM quiz WHERE lower(name) LIKE $1 ORDER BY name, id", like); err != nil {
		return res, errors.Wrap(err, "searching quizzes")
	}
	return res, nil
}
