package report

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Activity statuses
const (
	StatusActive   = "active"   // last attempt within 7 days
	StatusRecent   = "recent"   // last attempt within 30 days
	StatusInactive = "inactive" // older, or never
)

type (
	// Totals are the catalog-wide counters of the admin dashboard.
	Totals struct {
		Subjects     int     `db:"subjects"`
		Chapters     int     `db:"chapters"`
		Quizzes      int     `db:"quizzes"`
		Attempts     int     `db:"attempts"`
		AverageScore float64 `db:"average_score"`
		// AttemptsSince counts attempts at or after the time passed to Repository.Totals.
		AttemptsSince int `db:"attempts_since"`
	}

	// StudentActivity is one student along with their attempt aggregates.
	StudentActivity struct {
		UserID        int       `db:"user_id"`
		FullName      string    `db:"full_name"`
		Email         string    `db:"email"`
		Qualification string    `db:"qualification"`
		DOB           null.Time `db:"dob"`
		Address       string    `db:"address"`
		PinCode       string    `db:"pin_code"`
		BranchID      null.Int  `db:"branch_id"`
		IsActive      bool      `db:"is_active"`
		Attempts      int       `db:"attempts"`
		AverageScore  float64   `db:"average_score"`
		BestScore     int       `db:"best_score"`
		LastActivity  null.Time `db:"last_activity"`
	}

	// ExportRow is one attempt as written to score exports.
	ExportRow struct {
		QuizID      int         `db:"quiz_id"`
		ChapterID   int         `db:"chapter_id"`
		DateOfQuiz  time.Time   `db:"date_of_quiz"`
		Score       int         `db:"score"`
		Remarks     null.String `db:"remarks"`
		AttemptedAt time.Time   `db:"attempted_at"`
	}

	UserStats struct {
		ID            int        `json:"id"`
		FullName      string     `json:"full_name"`
		Email         string     `json:"email"`
		Qualification string     `json:"qualification"`
		Attempts      int        `json:"attempts"`
		AverageScore  float64    `json:"averageScore"`
		BestScore     int        `json:"bestScore"`
		LastActivity  *time.Time `json:"lastActivity"`
		Status        string     `json:"status"`
	}

	AdminStats struct {
		TotalUsers             int         `json:"totalUsers"`
		TotalSubjects          int         `json:"totalSubjects"`
		TotalChapters          int         `json:"totalChapters"`
		TotalQuizzes           int         `json:"totalQuizzes"`
		TotalAttempts          int         `json:"totalAttempts"`
		ActiveUsers            int         `json:"activeUsers"`
		UsersAttemptingQuizzes int         `json:"usersAttemptingQuizzes"`
		AverageScore           float64     `json:"averageScore"`
		TodaysAttempts         int         `json:"todaysAttempts"`
		ActiveThisWeek         int         `json:"activeThisWeek"`
		Users                  []UserStats `json:"users"`
	}

	TeacherStudentScore struct {
		QuizID      int       `json:"quiz_id"`
		QuizName    string    `json:"quiz_name"`
		SubjectID   int       `json:"subject_id"`
		TotalScored int       `json:"total_scored"`
		AttemptedAt time.Time `json:"attempted_at"`
	}

	// TeacherStudent is a student who attempted quizzes of the teacher's subjects.
	TeacherStudent struct {
		ID       int                   `json:"id"`
		FullName string                `json:"full_name"`
		Email    string                `json:"email"`
		Attempts int                   `json:"attempts"`
		Scores   []TeacherStudentScore `json:"scores"`
	}
)

// ActivityStatus classifies a student by the age of their last attempt.
func ActivityStatus(last null.Time, now time.Time) string {
	if !last.Valid {
		return StatusInactive
	}
	switch age := now.Sub(last.Time); {
	case age <= 7*24*time.Hour:
		return StatusActive
	case age <= 30*24*time.Hour:
		return StatusRecent
	}
	return StatusInactive
}
