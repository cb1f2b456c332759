package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
)

// Slot names a Question's correct option may point to.
var Slots = []string{"option1", "option2", "option3", "option4"}

type (
	Branch struct {
		ID          int       `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		ShortName   string    `json:"short_name" db:"short_name"`
		Description string    `json:"description" db:"description"`
		Icon        string    `json:"icon" db:"icon"`
		Color       string    `json:"color" db:"color"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	Subject struct {
		ID          int       `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		Description string    `json:"description" db:"description"`
		BranchID    null.Int  `json:"branch_id" db:"branch_id"`
		IsCore      bool      `json:"is_core" db:"is_core"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	Chapter struct {
		ID          int       `json:"id" db:"id"`
		SubjectID   int       `json:"subject_id" db:"subject_id"`
		Name        string    `json:"name" db:"name"`
		Description string    `json:"description" db:"description"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	Quiz struct {
		ID           int         `json:"id" db:"id"`
		ChapterID    int         `json:"chapter_id" db:"chapter_id"`
		Name         string      `json:"name" db:"name"`
		DateOfQuiz   time.Time   `json:"date_of_quiz" db:"date_of_quiz"`
		TimeDuration string      `json:"time_duration" db:"time_duration"` // HH:MM
		Remarks      null.String `json:"remarks" db:"remarks"`
		CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	}

	Question struct {
		ID            int    `json:"id" db:"id"`
		QuizID        int    `json:"quiz_id" db:"quiz_id"`
		Statement     string `json:"question_statement" db:"statement"`
		Option1       string `json:"option1" db:"option1"`
		Option2       string `json:"option2" db:"option2"`
		Option3       string `json:"option3" db:"option3"`
		Option4       string `json:"option4" db:"option4"`
		CorrectOption string `json:"correct_option,omitempty" db:"correct_option"`
	}

	// TeacherSubject grants a teacher write access to a subject's content.
	TeacherSubject struct {
		TeacherID  int       `json:"teacher_id" db:"teacher_id"`
		SubjectID  int       `json:"subject_id" db:"subject_id"`
		AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
	}
)

// Option returns the text held by a slot (`option1`..`option4`).
func (q Question) Option(slot string) (string, bool) {
	switch core.CleanString(slot, true /* lower */) {
	case "option1":
		return q.Option1, true
	case "option2":
		return q.Option2, true
	case "option3":
		return q.Option3, true
	case "option4":
		return q.Option4, true
	}
	return "", false
}

func (q Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// CorrectAnswer resolves the correct option: a slot name is dereferenced, anything else is literal text.
func (q Question) CorrectAnswer() string {
	if text, ok := q.Option(q.CorrectOption); ok {
		return text
	}
	return q.CorrectOption
}

// IsResolvable reports whether the correct option is a slot name or the text of one of the options.
func (q Question) IsResolvable() bool {
	if _, ok := q.Option(q.CorrectOption); ok {
		return true
	}
	want := core.CleanString(q.CorrectOption, true /* lower */)
	for _, opt := range q.Options() {
		if core.CleanString(opt, true /* lower */) == want {
			return true
		}
	}
	return false
}

// WithoutAnswer hides the correct option from students.
func (q Question) WithoutAnswer() Question {
	q.CorrectOption = ""
	return q
}

// Branches

type NewBranch struct {
	Name        string `json:"name" form:"name" validate:"required"`
	ShortName   string `json:"short_name" form:"short_name"`
	Description string `json:"description" form:"description"`
	Icon        string `json:"icon" form:"icon"`
	Color       string `json:"color" form:"color" validate:"omitempty,hexcolor"`
}

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.ShortName = core.CleanString(nb.ShortName)
	nb.Description = core.CleanString(nb.Description)
	nb.Icon = core.CleanString(nb.Icon)
	nb.Color = core.CleanString(nb.Color, true /* lower */)
	return validate.Struct(nb)
}

type UpdateBranch struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	ShortName   *string `json:"short_name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

func (ub *UpdateBranch) Validate(validate *validator.Validate) error {
	cleanPtrs(ub.Name, ub.ShortName, ub.Description, ub.Icon, ub.Color)
	return validate.Struct(ub)
}

// Subjects

type NewSubject struct {
	Name        string `json:"name" form:"name" validate:"required"`
	Description string `json:"description" form:"description"`
	BranchID    *int   `json:"branch_id" form:"branch_id"`
	IsCore      bool   `json:"is_core" form:"is_core"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	BranchID    *int    `json:"branch_id"`
	IsCore      *bool   `json:"is_core"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	cleanPtrs(us.Name, us.Description)
	return validate.Struct(us)
}

type SubjectFilter struct {
	BranchID *int  `query:"branch_id"`
	IDs      []int `query:"-"`
	Search   string
}

// Chapters

type NewChapter struct {
	SubjectID   int    `json:"subject_id" form:"subject_id" validate:"required"`
	Name        string `json:"name" form:"name" validate:"required"`
	Description string `json:"description" form:"description"`
}

func (nc *NewChapter) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateChapter struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
}

func (uc *UpdateChapter) Validate(validate *validator.Validate) error {
	cleanPtrs(uc.Name, uc.Description)
	return validate.Struct(uc)
}

type ChapterFilter struct {
	SubjectID  *int  `query:"subject_id"`
	SubjectIDs []int `query:"-"`
}

// Quizzes

type NewQuiz struct {
	ChapterID    int    `json:"chapter_id" form:"chapter_id" validate:"required"`
	Name         string `json:"name" form:"name" validate:"required"`
	DateOfQuiz   string `json:"date_of_quiz" form:"date_of_quiz" validate:"required,date"`
	TimeDuration string `json:"time_duration" form:"time_duration" validate:"required,hhmm"`
	Remarks      string `json:"remarks" form:"remarks"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Name = core.CleanString(nq.Name)
	nq.DateOfQuiz = core.CleanString(nq.DateOfQuiz)
	nq.TimeDuration = core.CleanString(nq.TimeDuration)
	nq.Remarks = core.CleanString(nq.Remarks)
	return validate.Struct(nq)
}

type UpdateQuiz struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	DateOfQuiz   *string `json:"date_of_quiz" validate:"omitempty,date"`
	TimeDuration *string `json:"time_duration" validate:"omitempty,hhmm"`
	Remarks      *string `json:"remarks"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	cleanPtrs(uq.Name, uq.DateOfQuiz, uq.TimeDuration, uq.Remarks)
	return validate.Struct(uq)
}

type QuizFilter struct {
	ChapterID  *int  `query:"chapter_id"`
	SubjectID  *int  `query:"subject_id"`
	SubjectIDs []int `query:"-"`
	IDs        []int `query:"-"`
}

// Questions

type NewQuestion struct {
	QuizID        int    `json:"quiz_id" form:"quiz_id" validate:"required"`
	Statement     string `json:"question_statement" form:"question_statement" validate:"required"`
	Option1       string `json:"option1" form:"option1" validate:"required"`
	Option2       string `json:"option2" form:"option2" validate:"required"`
	Option3       string `json:"option3" form:"option3" validate:"required"`
	Option4       string `json:"option4" form:"option4" validate:"required"`
	CorrectOption string `json:"correct_option" form:"correct_option" validate:"required"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	for _, s := range []*string{&nq.Statement, &nq.Option1, &nq.Option2, &nq.Option3, &nq.Option4, &nq.CorrectOption} {
		*s = core.CleanString(*s)
	}
	return validate.Struct(nq)
}

type UpdateQuestion struct {
	Statement     *string `json:"question_statement" validate:"omitempty,min=1"`
	Option1       *string `json:"option1" validate:"omitempty,min=1"`
	Option2       *string `json:"option2" validate:"omitempty,min=1"`
	Option3       *string `json:"option3" validate:"omitempty,min=1"`
	Option4       *string `json:"option4" validate:"omitempty,min=1"`
	CorrectOption *string `json:"correct_option" validate:"omitempty,min=1"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	cleanPtrs(uq.Statement, uq.Option1, uq.Option2, uq.Option3, uq.Option4, uq.CorrectOption)
	return validate.Struct(uq)
}

type QuestionFilter struct {
	QuizID  *int  `query:"quiz_id"`
	QuizIDs []int `query:"-"`
}

// Tree & search

type (
	QuizNode struct {
		Quiz
		QuestionCount int `json:"question_count"`
	}

	ChapterNode struct {
		Chapter
		Quizzes []QuizNode `json:"quizzes"`
	}

	// SubjectTree is one subject's chapters, their quizzes and the number of questions of each quiz.
	SubjectTree struct {
		Subject  Subject       `json:"subject"`
		Chapters []ChapterNode `json:"chapters"`
	}

	SearchResult struct {
		Subjects []Subject `json:"subjects"`
		Chapters []Chapter `json:"chapters"`
		Quizzes  []Quiz    `json:"quizzes"`
	}
)

// QuizCount is the number of quizzes across all chapters.
func (t SubjectTree) QuizCount() (n int) {
	for _, ch := range t.Chapters {
		n += len(ch.Quizzes)
	}
	return n
}

func (t SubjectTree) QuizIDs() []int {
	ids := make([]int, 0, t.QuizCount())
	for _, ch := range t.Chapters {
		for _, qz := range ch.Quizzes {
			ids = append(ids, qz.ID)
		}
	}
	return ids
}

func cleanPtrs(ss ...*string) {
	for _, s := range ss {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(core.DateLayout, s)
	return t
}
