package attempt

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/scoring"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("score")
)

// Score is the immutable record of one quiz attempt.
type Score struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	QuizID      int       `json:"quiz_id" db:"quiz_id"`
	TotalScored int       `json:"total_scored" db:"total_scored"`
	AttemptedAt time.Time `json:"time_stamp_of_attempt" db:"attempted_at"`
}

// Newer orders attempts by timestamp; equal timestamps fall back to the higher id.
func (s Score) Newer(other Score) bool {
	if !s.AttemptedAt.Equal(other.AttemptedAt) {
		return s.AttemptedAt.After(other.AttemptedAt)
	}
	return s.ID > other.ID
}

type Result struct {
	ScoreID        int       `json:"score_id"`
	QuizID         int       `json:"quiz_id"`
	TotalScored    int       `json:"total_scored"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     float64   `json:"percentage"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

type Filter struct {
	UserID  *int
	QuizID  *int
	QuizIDs []int
	// Since keeps attempts made at or after the given time.
	Since *time.Time
}

// Submission is the JSON body of an attempt: {"answers": {"<question id>": "<option>"}}.
type Submission struct {
	Answers map[int]string `json:"answers"`
}

type Repository interface {
	// CreateScore only ever inserts: scores are never updated.
	CreateScore(ctx context.Context, s Score) (Score, error)
	// QueryScores returns the newest attempts first.
	QueryScores(ctx context.Context, filter Filter) ([]Score, error)
}

type Service struct {
	repo    Repository
	catalog *catalog.Service
}

func NewService(repo Repository, catalogSvc *catalog.Service) *Service {
	return &Service{repo: repo, catalog: catalogSvc}
}

// Submit grades the answers against the quiz's current questions and records a new attempt.
// Enrollment is checked by the caller. Repeated submissions are all recorded.
func (svc *Service) Submit(ctx context.Context, userID, quizID int, answers map[int]string) (Result, error) {
	if _, err := svc.catalog.GetQuiz(ctx, quizID); err != nil {
		return Result{}, err
	}
	questions, err := svc.catalog.QuizQuestions(ctx, quizID)
	if err != nil {
		return Result{}, errors.Wrap(err, "loading questions")
	}

	total := scoring.Score(questions, answers)
	score, err := svc.repo.CreateScore(ctx, Score{
		UserID:      userID,
		QuizID:      quizID,
		TotalScored: total,
		AttemptedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "saving score")
	}

	return Result{
		ScoreID:        score.ID,
		QuizID:         quizID,
		TotalScored:    total,
		TotalQuestions: len(questions),
		Percentage:     scoring.Percentage(total, len(questions)),
		AttemptedAt:    score.AttemptedAt,
	}, nil
}

func (svc *Service) ListByUser(ctx context.Context, userID int) ([]Score, error) {
	return svc.repo.QueryScores(ctx, Filter{UserID: &userID})
}

func (svc *Service) Query(ctx context.Context, filter Filter) ([]Score, error) {
	return svc.repo.QueryScores(ctx, filter)
}

// Latest returns the attempt with the greatest timestamp, whatever its id.
func (svc *Service) Latest(ctx context.Context, userID, quizID int) (Score, error) {
	scores, err := svc.repo.QueryScores(ctx, Filter{UserID: &userID, QuizID: &quizID})
	if err != nil {
		return Score{}, err
	}
	latest, ok := LatestByQuiz(scores)[quizID]
	if !ok {
		return Score{}, ErrNotFound
	}
	return latest, nil
}

// LatestByQuiz keeps the newest attempt of every quiz.
func LatestByQuiz(scores []Score) map[int]Score {
	latest := make(map[int]Score)
	for _, s := range scores {
		if cur, ok := latest[s.QuizID]; !ok || s.Newer(cur) {
			latest[s.QuizID] = s
		}
	}
	return latest
}
