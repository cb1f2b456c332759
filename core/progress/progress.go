package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/scoring"
)

type (
	QuizProgress struct {
		QuizID         int        `json:"quiz_id"`
		QuizName       string     `json:"quiz_name"`
		ChapterID      int        `json:"chapter_id"`
		TotalQuestions int        `json:"total_questions"`
		Attempted      bool       `json:"attempted"`
		LatestScore    int        `json:"latest_score"`
		Percentage     float64    `json:"percentage"`
		AttemptedAt    *time.Time `json:"attempted_at"`
	}

	SubjectProgress struct {
		SubjectID      int            `json:"subject_id"`
		SubjectName    string         `json:"subject_name"`
		TotalQuizzes   int            `json:"total_quizzes"`
		AttemptedCount int            `json:"attempted_quizzes"`
		Progress       float64        `json:"progress"`
		Quizzes        []QuizProgress `json:"quizzes"`
	}
)

// Aggregate computes the progress of one user in one subject.
//
// Every quiz of the tree is listed with its latest attempt by timestamp, if any.
// The subject progress is the mean of the unrounded percentages over attempted quizzes only,
// rounded once to 2 decimals; quizzes without
// questions report 0% and stay out of the mean. Attempts of quizzes outside the tree are ignored.
func Aggregate(tree catalog.SubjectTree, attempts []attempt.Score) SubjectProgress {
	latest := attempt.LatestByQuiz(attempts)

	sp := SubjectProgress{
		SubjectID:    tree.Subject.ID,
		SubjectName:  tree.Subject.Name,
		TotalQuizzes: tree.QuizCount(),
		Quizzes:      make([]QuizProgress, 0, tree.QuizCount()),
	}

	var sum float64
	var counted int
	for _, ch := range tree.Chapters {
		for _, qz := range ch.Quizzes {
			qp := QuizProgress{
				QuizID:         qz.ID,
				QuizName:       qz.Name,
				ChapterID:      ch.ID,
				TotalQuestions: qz.QuestionCount,
			}
			if s, ok := latest[qz.ID]; ok {
				at := s.AttemptedAt
				qp.Attempted = true
				qp.LatestScore = s.TotalScored
				qp.Percentage = scoring.Percentage(s.TotalScored, qz.QuestionCount)
				qp.AttemptedAt = &at
				sp.AttemptedCount++
				if qz.QuestionCount > 0 {
					sum += float64(s.TotalScored) / float64(qz.QuestionCount) * 100
					counted++
				}
			}
			sp.Quizzes = append(sp.Quizzes, qp)
		}
	}

	if counted > 0 {
		sp.Progress = scoring.Round(sum/float64(counted), 2)
	}
	return sp
}

type (
	// Enrollments lists the subjects a user is actively enrolled in.
	Enrollments interface {
		ActiveSubjectIDs(ctx context.Context, userID int) ([]int, error)
	}

	Service struct {
		catalog     *catalog.Service
		attempts    *attempt.Service
		enrollments Enrollments
	}
)

func NewService(catalogSvc *catalog.Service, attemptSvc *attempt.Service, enrollments Enrollments) *Service {
	return &Service{catalog: catalogSvc, attempts: attemptSvc, enrollments: enrollments}
}

// ForSubject loads only the subject's tree and the user's attempts on its quizzes.
func (svc *Service) ForSubject(ctx context.Context, userID, subjectID int) (SubjectProgress, error) {
	tree, err := svc.catalog.QuizTree(ctx, subjectID)
	if err != nil {
		return SubjectProgress{}, err
	}
	var scores []attempt.Score
	if quizIDs := tree.QuizIDs(); len(quizIDs) > 0 {
		scores, err = svc.attempts.Query(ctx, attempt.Filter{UserID: &userID, QuizIDs: quizIDs})
		if err != nil {
			return SubjectProgress{}, errors.Wrap(err, "querying scores")
		}
	}
	return Aggregate(tree, scores), nil
}

// Dashboard returns the progress of every subject the user is actively enrolled in.
// When branchID is set, subjects of other branches are left out.
func (svc *Service) Dashboard(ctx context.Context, userID int, branchID *int) ([]SubjectProgress, error) {
	subjectIDs, err := svc.enrollments.ActiveSubjectIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(subjectIDs) == 0 {
		return []SubjectProgress{}, nil
	}
	subjects, err := svc.catalog.QuerySubjects(ctx, catalog.SubjectFilter{IDs: subjectIDs, BranchID: branchID})
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}

	dashboard := make([]SubjectProgress, 0, len(subjects))
	for _, subj := range subjects {
		sp, err := svc.ForSubject(ctx, userID, subj.ID)
		if err != nil {
			return nil, err
		}
		dashboard = append(dashboard, sp)
	}
	return dashboard, nil
}
