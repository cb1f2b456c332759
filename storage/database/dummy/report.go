package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Totals(_ context.Context, since time.Time) (report.Totals, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	t := report.Totals{
		Subjects: len(repo.db.subjects),
		Chapters: len(repo.db.chapters),
		Quizzes:  len(repo.db.quizzes),
		Attempts: len(repo.db.scores),
	}
	var sum int
	for _, s := range repo.db.scores {
		sum += s.TotalScored
		if !s.AttemptedAt.Before(since) {
			t.AttemptsSince++
		}
	}
	if t.Attempts > 0 {
		t.AverageScore = float64(sum) / float64(t.Attempts)
	}
	return t, nil
}

func (repo *reportRepository) StudentActivity(_ context.Context, branchID *int) ([]report.StudentActivity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	byUser := make(map[int]*report.StudentActivity)
	rows := make([]report.StudentActivity, 0)
	for _, u := range repo.db.users {
		if u.Role != user.RoleStudent {
			continue
		}
		if branchID != nil && (!u.BranchID.Valid || u.BranchID.Int != *branchID) {
			continue
		}
		byUser[u.ID] = &report.StudentActivity{
			UserID:        u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			Qualification: u.Qualification,
			DOB:           u.DOB,
			Address:       u.Address,
			PinCode:       u.PinCode,
			BranchID:      u.BranchID,
			IsActive:      u.IsActive,
		}
	}

	sums := make(map[int]int, len(byUser))
	for _, s := range repo.db.scores {
		a, ok := byUser[s.UserID]
		if !ok {
			continue
		}
		a.Attempts++
		sums[s.UserID] += s.TotalScored
		if a.Attempts == 1 || s.TotalScored > a.BestScore {
			a.BestScore = s.TotalScored
		}
		if !a.LastActivity.Valid || s.AttemptedAt.After(a.LastActivity.Time) {
			a.LastActivity = null.TimeFrom(s.AttemptedAt)
		}
	}
	for id, a := range byUser {
		if a.Attempts > 0 {
			a.AverageScore = float64(sums[id]) / float64(a.Attempts)
		}
		rows = append(rows, *a)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (repo *reportRepository) ExportRows(_ context.Context, userID int) ([]report.ExportRow, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	type scoredRow struct {
		id  int
		row report.ExportRow
	}
	scored := make([]scoredRow, 0)
	for _, s := range repo.db.scores {
		if s.UserID != userID {
			continue
		}
		qz, ok := repo.db.quizzes[s.QuizID]
		if !ok {
			continue
		}
		scored = append(scored, scoredRow{id: s.ID, row: report.ExportRow{
			QuizID:      s.QuizID,
			ChapterID:   qz.ChapterID,
			DateOfQuiz:  qz.DateOfQuiz,
			Score:       s.TotalScored,
			Remarks:     qz.Remarks,
			AttemptedAt: s.AttemptedAt,
		}})
	}
	sort.Slice(scored, func(i, j int) bool {
		if !scored[i].row.AttemptedAt.Equal(scored[j].row.AttemptedAt) {
			return scored[i].row.AttemptedAt.Before(scored[j].row.AttemptedAt)
		}
		return scored[i].id < scored[j].id
	})
	rows := make([]report.ExportRow, 0, len(scored))
	for _, s := range scored {
		rows = append(rows, s.row)
	}
	return rows, nil
}
