package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

type reportRepository struct {
	db *sqlx.DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *sqlx.DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Totals(ctx context.Context, since time.Time) (report.Totals, error) {
	var t report.Totals
	err := repo.db.GetContext(ctx, &t, `
		SELECT (SELECT count(*) FROM subject)                                    AS subjects,
		       (SELECT count(*) FROM chapter)                                    AS chapters,
		       (SELECT count(*) FROM quiz)                                       AS quizzes,
		       (SELECT count(*) FROM score)                                      AS attempts,
		       (SELECT COALESCE(avg(total_scored), 0)::float8 FROM score)        AS average_score,
		       (SELECT count(*) FROM score WHERE attempted_at >= $1)             AS attempts_since`, since)
	if err != nil {
		return report.Totals{}, errors.Wrap(err, "counting totals")
	}
	return t, nil
}

func (repo *reportRepository) StudentActivity(ctx context.Context, branchID *int) ([]report.StudentActivity, error) {
	var w where
	w.add("u.role = ?", user.RoleStudent)
	if branchID != nil {
		w.add("u.branch_id = ?", *branchID)
	}

	rows := make([]report.StudentActivity, 0)
	q := repo.db.Rebind(`
		SELECT u.id AS user_id, u.full_name, u.email, u.qualification, u.dob, u.address, u.pin_code, u.branch_id,
		       u.is_active, count(s.id) AS attempts, COALESCE(avg(s.total_scored), 0)::float8 AS average_score,
		       COALESCE(max(s.total_scored), 0) AS best_score, max(s.attempted_at) AS last_activity
		FROM app_user u LEFT JOIN score s ON s.user_id = u.id` + w.String() + `
		GROUP BY u.id
		ORDER BY u.id`)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying student activity")
	}
	return rows, nil
}

func (repo *reportRepository) ExportRows(ctx context.Context, userID int) ([]report.ExportRow, error) {
	rows := make([]report.ExportRow, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT s.quiz_id, q.chapter_id, q.date_of_quiz, s.total_scored AS score, q.remarks, s.attempted_at
		FROM score s JOIN quiz q ON q.id = s.quiz_id
		WHERE s.user_id = $1
		ORDER BY s.attempted_at, s.id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying export rows")
	}
	return rows, nil
}
