package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/scoring"
	"github.com/trezcool/quizhub/core/user"
)

var NowFunc = time.Now // mockable

type Repository interface {
	// Totals counts the catalog and all attempts; AttemptsSince counts attempts at or after `since`.
	Totals(ctx context.Context, since time.Time) (Totals, error)
	// StudentActivity lists students with their attempt aggregates, optionally for one branch.
	StudentActivity(ctx context.Context, branchID *int) ([]StudentActivity, error)
	// ExportRows lists a user's attempts, oldest first.
	ExportRows(ctx context.Context, userID int) ([]ExportRow, error)
}

type Service struct {
	repo      Repository
	users     *user.Service
	attempts  *attempt.Service
	catalog   *catalog.Service
	mailSvc   core.EmailService
	exportDir string
	logger    core.Logger
}

func NewService(
	repo Repository,
	userSvc *user.Service,
	attemptSvc *attempt.Service,
	catalogSvc *catalog.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		users:     userSvc,
		attempts:  attemptSvc,
		catalog:   catalogSvc,
		mailSvc:   mailSvc,
		exportDir: conf.Storage.ExportDir,
		logger:    logger,
	}
}

// AdminStats builds the admin dashboard. branchID narrows the student figures to one branch.
func (svc *Service) AdminStats(ctx context.Context, now time.Time, branchID *int) (AdminStats, error) {
	totals, err := svc.repo.Totals(ctx, core.StartOfDay(now))
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "counting totals")
	}
	activity, err := svc.repo.StudentActivity(ctx, branchID)
	if err != nil {
		return AdminStats{}, errors.Wrap(err, "querying student activity")
	}

	stats := AdminStats{
		TotalUsers:     len(activity),
		TotalSubjects:  totals.Subjects,
		TotalChapters:  totals.Chapters,
		TotalQuizzes:   totals.Quizzes,
		TotalAttempts:  totals.Attempts,
		AverageScore:   scoring.Round(totals.AverageScore, 1),
		TodaysAttempts: totals.AttemptsSince,
		Users:          make([]UserStats, 0, len(activity)),
	}
	for _, a := range activity {
		if a.IsActive {
			stats.ActiveUsers++
		}
		if a.Attempts > 0 {
			stats.UsersAttemptingQuizzes++
		}
		status := ActivityStatus(a.LastActivity, now)
		if status == StatusActive {
			stats.ActiveThisWeek++
		}
		us := UserStats{
			ID:            a.UserID,
			FullName:      a.FullName,
			Email:         a.Email,
			Qualification: a.Qualification,
			Attempts:      a.Attempts,
			AverageScore:  scoring.Round(a.AverageScore, 1),
			BestScore:     a.BestScore,
			Status:        status,
		}
		if a.LastActivity.Valid {
			last := a.LastActivity.Time
			us.LastActivity = &last
		}
		stats.Users = append(stats.Users, us)
	}
	return stats, nil
}

// TeacherStudents lists the students who attempted quizzes of the teacher's subjects.
func (svc *Service) TeacherStudents(ctx context.Context, teacherID int) ([]TeacherStudent, error) {
	subjectIDs, err := svc.catalog.AssignedSubjectIDs(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assigned subjects")
	}
	if len(subjectIDs) == 0 {
		return []TeacherStudent{}, nil
	}

	quizzes, err := svc.catalog.QueryQuizzes(ctx, catalog.QuizFilter{SubjectIDs: subjectIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	if len(quizzes) == 0 {
		return []TeacherStudent{}, nil
	}
	chapters, err := svc.catalog.QueryChapters(ctx, catalog.ChapterFilter{SubjectIDs: subjectIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	subjectOf := make(map[int]int, len(chapters)) // {chapter: subject}
	for _, ch := range chapters {
		subjectOf[ch.ID] = ch.SubjectID
	}
	quizByID := make(map[int]catalog.Quiz, len(quizzes))
	quizIDs := make([]int, 0, len(quizzes))
	for _, qz := range quizzes {
		quizByID[qz.ID] = qz
		quizIDs = append(quizIDs, qz.ID)
	}

	scores, err := svc.attempts.Query(ctx, attempt.Filter{QuizIDs: quizIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}

	byStudent := make(map[int]*TeacherStudent)
	skipped := make(map[int]bool)
	order := make([]int, 0)
	for _, s := range scores {
		if skipped[s.UserID] {
			continue
		}
		ts, ok := byStudent[s.UserID]
		if !ok {
			usr, err := svc.users.GetByID(ctx, s.UserID)
			if err != nil {
				return nil, errors.Wrap(err, "getting student")
			}
			if !usr.IsStudent() {
				skipped[s.UserID] = true
				continue
			}
			ts = &TeacherStudent{ID: usr.ID, FullName: usr.FullName, Email: usr.Email, Scores: []TeacherStudentScore{}}
			byStudent[s.UserID] = ts
			order = append(order, s.UserID)
		}
		qz := quizByID[s.QuizID]
		ts.Attempts++
		ts.Scores = append(ts.Scores, TeacherStudentScore{
			QuizID:      qz.ID,
			QuizName:    qz.Name,
			SubjectID:   subjectOf[qz.ChapterID],
			TotalScored: s.TotalScored,
			AttemptedAt: s.AttemptedAt,
		})
	}

	students := make([]TeacherStudent, 0, len(order))
	for _, id := range order {
		students = append(students, *byStudent[id])
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return students, nil
}
