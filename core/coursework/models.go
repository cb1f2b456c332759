package coursework

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
)

// Assignment types
const (
	TypeHomework = "homework"
	TypeProject  = "project"
	TypeQuiz     = "quiz"
	TypeEssay    = "essay"
)

const defaultMaxPoints = 100

// deadline layouts accepted on input: RFC 3339 from the API, datetime-local from web forms.
var deadlineLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

var errBadDeadline = errors.New("must be a date and time such as 2024-05-31T23:59")

type (
	Assignment struct {
		ID             int       `json:"id" db:"id"`
		Title          string    `json:"title" db:"title"`
		Description    string    `json:"description" db:"description"`
		SubjectID      int       `json:"subject_id" db:"subject_id"`
		ChapterID      null.Int  `json:"chapter_id" db:"chapter_id"`
		TeacherID      int       `json:"teacher_id" db:"teacher_id"`
		Deadline       time.Time `json:"deadline" db:"deadline"`
		MaxPoints      int       `json:"max_points" db:"max_points"`
		AssignmentType string    `json:"assignment_type" db:"assignment_type"`
		Instructions   string    `json:"instructions" db:"instructions"`
		IsActive       bool      `json:"is_active" db:"is_active"`
		CreatedAt      time.Time `json:"created_at" db:"created_at"`
	}

	Submission struct {
		ID           int          `json:"id" db:"id"`
		AssignmentID int          `json:"assignment_id" db:"assignment_id"`
		StudentID    int          `json:"student_id" db:"student_id"`
		StudentName  string       `json:"student_name" db:"student_name"`
		Content      string       `json:"submission_text" db:"content"`
		SubmittedAt  time.Time    `json:"submitted_at" db:"submitted_at"`
		IsLate       bool         `json:"is_late" db:"is_late"`
		Grade        null.Float64 `json:"grade" db:"grade"`
		Feedback     null.String  `json:"feedback" db:"feedback"`
		GradedAt     null.Time    `json:"graded_at" db:"graded_at"`
	}

	// StudentAssignment is an assignment along with the student's own submission, if any.
	StudentAssignment struct {
		Assignment
		Submission *Submission `json:"submission"`
	}
)

func (a Assignment) IsOverdue(now time.Time) bool {
	return now.After(a.Deadline)
}

type NewAssignment struct {
	Title          string `json:"title" form:"title" validate:"required"`
	Description    string `json:"description" form:"description"`
	SubjectID      int    `json:"subject_id" form:"subject_id" validate:"required"`
	ChapterID      *int   `json:"chapter_id" form:"chapter_id"`
	Deadline       string `json:"deadline" form:"deadline" validate:"required"`
	MaxPoints      int    `json:"max_points" form:"max_points" validate:"gte=0"`
	AssignmentType string `json:"assignment_type" form:"assignment_type" validate:"oneof=homework project quiz essay"`
	Instructions   string `json:"instructions" form:"instructions"`

	deadline time.Time
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Instructions = core.CleanString(na.Instructions)
	na.Deadline = core.CleanString(na.Deadline)
	na.AssignmentType = core.CleanString(na.AssignmentType, true /* lower */)
	if na.AssignmentType == "" {
		na.AssignmentType = TypeHomework
	}
	if na.MaxPoints == 0 {
		na.MaxPoints = defaultMaxPoints
	}
	if err := validate.Struct(na); err != nil {
		return err
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, na.Deadline); err == nil {
			na.deadline = t.UTC()
			return nil
		}
	}
	return core.NewValidationError(nil, core.FieldError{Field: "deadline", Error: errBadDeadline.Error()})
}

type NewSubmission struct {
	Content string `json:"submission_text" form:"submission_text"`
}

func (ns *NewSubmission) Validate() error {
	ns.Content = core.CleanString(ns.Content)
	if ns.Content == "" {
		return core.NewValidationError(ErrContentRequired)
	}
	return nil
}

type GradeSubmission struct {
	Grade    *float64 `json:"grade" form:"grade" validate:"required,gte=0"`
	Feedback string   `json:"feedback" form:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type (
	AssignmentFilter struct {
		SubjectIDs []int
		TeacherID  *int
		ActiveOnly bool
		// DeadlineFrom and DeadlineTo bound the deadline, both inclusive.
		DeadlineFrom *time.Time
		DeadlineTo   *time.Time
	}

	SubmissionFilter struct {
		AssignmentID *int
		StudentID    *int
	}
)
