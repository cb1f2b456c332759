package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrBranchNotFound   = core.NewNotFoundError("branch")
	ErrSubjectNotFound  = core.NewNotFoundError("subject")
	ErrChapterNotFound  = core.NewNotFoundError("chapter")
	ErrQuizNotFound     = core.NewNotFoundError("quiz")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	ErrBranchInUse      = errors.New("cannot delete a branch that still has students or subjects")
)

type Repository interface {
	CreateBranch(ctx context.Context, b Branch) (Branch, error)
	GetBranch(ctx context.Context, id int) (Branch, error)
	QueryBranches(ctx context.Context) ([]Branch, error)
	UpdateBranch(ctx context.Context, b Branch) (Branch, error)
	DeleteBranch(ctx context.Context, id int) error
	// CountBranchDependents returns the number of users and subjects referencing a branch.
	CountBranchDependents(ctx context.Context, id int) (users int, subjects int, err error)

	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	GetSubject(ctx context.Context, id int) (Subject, error)
	QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, error)
	UpdateSubject(ctx context.Context, s Subject) (Subject, error)
	DeleteSubject(ctx context.Context, id int) error

	CreateChapter(ctx context.Context, ch Chapter) (Chapter, error)
	GetChapter(ctx context.Context, id int) (Chapter, error)
	QueryChapters(ctx context.Context, filter ChapterFilter) ([]Chapter, error)
	UpdateChapter(ctx context.Context, ch Chapter) (Chapter, error)
	DeleteChapter(ctx context.Context, id int) error

	CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id int) (Quiz, error)
	QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
	UpdateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id int) error

	CreateQuestion(ctx context.Context, q Question) (Question, error)
	GetQuestion(ctx context.Context, id int) (Question, error)
	QueryQuestions(ctx context.Context, filter QuestionFilter) ([]Question, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)
	DeleteQuestion(ctx context.Context, id int) error
	// CountQuestions returns {quiz id: number of questions}; quizzes without questions may be absent.
	CountQuestions(ctx context.Context, quizIDs []int) (map[int]int, error)

	// AssignTeacher is a no-op when the grant already exists.
	AssignTeacher(ctx context.Context, ts TeacherSubject) error
	UnassignTeacher(ctx context.Context, teacherID, subjectID int) error
	QueryTeacherSubjects(ctx context.Context, teacherID int) ([]TeacherSubject, error)
	IsTeacherAssigned(ctx context.Context, teacherID, subjectID int) (bool, error)

	// Search does a case-insensitive match on subject, chapter and quiz names.
	Search(ctx context.Context, text string) (SearchResult, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Branches

func (svc *Service) CreateBranch(ctx context.Context, nb NewBranch) (Branch, error) {
	return svc.repo.CreateBranch(ctx, Branch{
		Name:        nb.Name,
		ShortName:   nb.ShortName,
		Description: nb.Description,
		Icon:        nb.Icon,
		Color:       nb.Color,
		CreatedAt:   NowFunc().UTC(),
	})
}

func (svc *Service) GetBranch(ctx context.Context, id int) (Branch, error) {
	return svc.repo.GetBranch(ctx, id)
}

func (svc *Service) QueryBranches(ctx context.Context) ([]Branch, error) {
	return svc.repo.QueryBranches(ctx)
}

func (svc *Service) UpdateBranch(ctx context.Context, id int, ub UpdateBranch) (Branch, error) {
	b, err := svc.repo.GetBranch(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	setStr(&b.Name, ub.Name)
	setStr(&b.ShortName, ub.ShortName)
	setStr(&b.Description, ub.Description)
	setStr(&b.Icon, ub.Icon)
	setStr(&b.Color, ub.Color)
	return svc.repo.UpdateBranch(ctx, b)
}

// DeleteBranch refuses to delete a branch that still owns students or subjects.
func (svc *Service) DeleteBranch(ctx context.Context, id int) error {
	if _, err := svc.repo.GetBranch(ctx, id); err != nil {
		return err
	}
	users, subjects, err := svc.repo.CountBranchDependents(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting branch dependents")
	}
	if users > 0 || subjects > 0 {
		return core.NewValidationError(ErrBranchInUse)
	}
	return svc.repo.DeleteBranch(ctx, id)
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	s := Subject{
		Name:        ns.Name,
		Description: ns.Description,
		IsCore:      ns.IsCore,
		CreatedAt:   NowFunc().UTC(),
	}
	if ns.BranchID != nil {
		if _, err := svc.repo.GetBranch(ctx, *ns.BranchID); err != nil {
			return Subject{}, err
		}
		s.BranchID = null.IntFrom(*ns.BranchID)
	}
	return svc.repo.CreateSubject(ctx, s)
}

func (svc *Service) GetSubject(ctx context.Context, id int) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter)
}

func (svc *Service) UpdateSubject(ctx context.Context, id int, us UpdateSubject) (Subject, error) {
	s, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	setStr(&s.Name, us.Name)
	setStr(&s.Description, us.Description)
	if us.IsCore != nil {
		s.IsCore = *us.IsCore
	}
	if us.BranchID != nil {
		if _, err := svc.repo.GetBranch(ctx, *us.BranchID); err != nil {
			return Subject{}, err
		}
		s.BranchID = null.IntFrom(*us.BranchID)
	}
	return svc.repo.UpdateSubject(ctx, s)
}

// DeleteSubject cascades to chapters, quizzes, questions, scores and materials.
func (svc *Service) DeleteSubject(ctx context.Context, id int) error {
	if _, err := svc.repo.GetSubject(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteSubject(ctx, id)
}

// Chapters

func (svc *Service) CreateChapter(ctx context.Context, nc NewChapter) (Chapter, error) {
	if _, err := svc.repo.GetSubject(ctx, nc.SubjectID); err != nil {
		return Chapter{}, err
	}
	return svc.repo.CreateChapter(ctx, Chapter{
		SubjectID:   nc.SubjectID,
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   NowFunc().UTC(),
	})
}

func (svc *Service) GetChapter(ctx context.Context, id int) (Chapter, error) {
	return svc.repo.GetChapter(ctx, id)
}

func (svc *Service) QueryChapters(ctx context.Context, filter ChapterFilter) ([]Chapter, error) {
	return svc.repo.QueryChapters(ctx, filter)
}

func (svc *Service) UpdateChapter(ctx context.Context, id int, uc UpdateChapter) (Chapter, error) {
	ch, err := svc.repo.GetChapter(ctx, id)
	if err != nil {
		return Chapter{}, err
	}
	setStr(&ch.Name, uc.Name)
	setStr(&ch.Description, uc.Description)
	return svc.repo.UpdateChapter(ctx, ch)
}

func (svc *Service) DeleteChapter(ctx context.Context, id int) error {
	if _, err := svc.repo.GetChapter(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteChapter(ctx, id)
}

// Quizzes

func (svc *Service) CreateQuiz(ctx context.Context, nq NewQuiz) (Quiz, error) {
	if _, err := svc.repo.GetChapter(ctx, nq.ChapterID); err != nil {
		return Quiz{}, err
	}
	qz := Quiz{
		ChapterID:    nq.ChapterID,
		Name:         nq.Name,
		DateOfQuiz:   parseDate(nq.DateOfQuiz),
		TimeDuration: nq.TimeDuration,
		CreatedAt:    NowFunc().UTC(),
	}
	if nq.Remarks != "" {
		qz.Remarks = null.StringFrom(nq.Remarks)
	}
	return svc.repo.CreateQuiz(ctx, qz)
}

func (svc *Service) GetQuiz(ctx context.Context, id int) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, filter)
}

func (svc *Service) UpdateQuiz(ctx context.Context, id int, uq UpdateQuiz) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	setStr(&qz.Name, uq.Name)
	setStr(&qz.TimeDuration, uq.TimeDuration)
	if uq.DateOfQuiz != nil {
		qz.DateOfQuiz = parseDate(*uq.DateOfQuiz)
	}
	if uq.Remarks != nil {
		qz.Remarks = null.NewString(*uq.Remarks, *uq.Remarks != "")
	}
	return svc.repo.UpdateQuiz(ctx, qz)
}

func (svc *Service) DeleteQuiz(ctx context.Context, id int) error {
	if _, err := svc.repo.GetQuiz(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteQuiz(ctx, id)
}

// Questions

func (svc *Service) CreateQuestion(ctx context.Context, nq NewQuestion) (Question, error) {
	if _, err := svc.repo.GetQuiz(ctx, nq.QuizID); err != nil {
		return Question{}, err
	}
	return svc.repo.CreateQuestion(ctx, Question{
		QuizID:        nq.QuizID,
		Statement:     nq.Statement,
		Option1:       nq.Option1,
		Option2:       nq.Option2,
		Option3:       nq.Option3,
		Option4:       nq.Option4,
		CorrectOption: nq.CorrectOption,
	})
}

func (svc *Service) GetQuestion(ctx context.Context, id int) (Question, error) {
	return svc.repo.GetQuestion(ctx, id)
}

func (svc *Service) QueryQuestions(ctx context.Context, filter QuestionFilter) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, filter)
}

// QuizQuestions returns the questions of a quiz in creation order.
func (svc *Service) QuizQuestions(ctx context.Context, quizID int) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, QuestionFilter{QuizID: &quizID})
}

func (svc *Service) UpdateQuestion(ctx context.Context, id int, uq UpdateQuestion) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	setStr(&q.Statement, uq.Statement)
	setStr(&q.Option1, uq.Option1)
	setStr(&q.Option2, uq.Option2)
	setStr(&q.Option3, uq.Option3)
	setStr(&q.Option4, uq.Option4)
	setStr(&q.CorrectOption, uq.CorrectOption)
	if err := checkResolvable(q); err != nil {
		return Question{}, err
	}
	return svc.repo.UpdateQuestion(ctx, q)
}

func (svc *Service) DeleteQuestion(ctx context.Context, id int) error {
	if _, err := svc.repo.GetQuestion(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, id)
}

// Ownership lookups

func (svc *Service) SubjectOfChapter(ctx context.Context, chapterID int) (int, error) {
	ch, err := svc.repo.GetChapter(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	return ch.SubjectID, nil
}

func (svc *Service) SubjectOfQuiz(ctx context.Context, quizID int) (int, error) {
	qz, err := svc.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return svc.SubjectOfChapter(ctx, qz.ChapterID)
}

func (svc *Service) SubjectOfQuestion(ctx context.Context, questionID int) (int, error) {
	q, err := svc.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}
	return svc.SubjectOfQuiz(ctx, q.QuizID)
}

// Teacher grants

func (svc *Service) Assign(ctx context.Context, teacherID, subjectID int) error {
	if _, err := svc.repo.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	return svc.repo.AssignTeacher(ctx, TeacherSubject{
		TeacherID:  teacherID,
		SubjectID:  subjectID,
		AssignedAt: NowFunc().UTC(),
	})
}

func (svc *Service) Unassign(ctx context.Context, teacherID, subjectID int) error {
	return svc.repo.UnassignTeacher(ctx, teacherID, subjectID)
}

func (svc *Service) AssignedSubjectIDs(ctx context.Context, teacherID int) ([]int, error) {
	grants, err := svc.repo.QueryTeacherSubjects(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.SubjectID)
	}
	return ids, nil
}

func (svc *Service) AssignedSubjects(ctx context.Context, teacherID int) ([]Subject, error) {
	ids, err := svc.AssignedSubjectIDs(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Subject{}, nil
	}
	return svc.repo.QuerySubjects(ctx, SubjectFilter{IDs: ids})
}

func (svc *Service) IsAssigned(ctx context.Context, teacherID, subjectID int) (bool, error) {
	return svc.repo.IsTeacherAssigned(ctx, teacherID, subjectID)
}

// QuizTree loads the chapters, quizzes and question counts of one subject only.
func (svc *Service) QuizTree(ctx context.Context, subjectID int) (SubjectTree, error) {
	subj, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return SubjectTree{}, err
	}
	chapters, err := svc.repo.QueryChapters(ctx, ChapterFilter{SubjectID: &subjectID})
	if err != nil {
		return SubjectTree{}, errors.Wrap(err, "querying chapters")
	}
	quizzes, err := svc.repo.QueryQuizzes(ctx, QuizFilter{SubjectID: &subjectID})
	if err != nil {
		return SubjectTree{}, errors.Wrap(err, "querying quizzes")
	}
	quizIDs := make([]int, 0, len(quizzes))
	for _, qz := range quizzes {
		quizIDs = append(quizIDs, qz.ID)
	}
	counts, err := svc.repo.CountQuestions(ctx, quizIDs)
	if err != nil {
		return SubjectTree{}, errors.Wrap(err, "counting questions")
	}

	byChapter := make(map[int][]QuizNode, len(chapters))
	for _, qz := range quizzes {
		byChapter[qz.ChapterID] = append(byChapter[qz.ChapterID], QuizNode{Quiz: qz, QuestionCount: counts[qz.ID]})
	}
	tree := SubjectTree{Subject: subj, Chapters: make([]ChapterNode, 0, len(chapters))}
	for _, ch := range chapters {
		nodes := byChapter[ch.ID]
		if nodes == nil {
			nodes = []QuizNode{}
		}
		tree.Chapters = append(tree.Chapters, ChapterNode{Chapter: ch, Quizzes: nodes})
	}
	return tree, nil
}

func (svc *Service) Search(ctx context.Context, text string) (SearchResult, error) {
	text = core.CleanString(text)
	if text == "" {
		return SearchResult{Subjects: []Subject{}, Chapters: []Chapter{}, Quizzes: []Quiz{}}, nil
	}
	return svc.repo.Search(ctx, text)
}

// AuditCorrectOptions lists the questions whose correct option is neither a slot name
// nor the text of one of their options.
func (svc *Service) AuditCorrectOptions(ctx context.Context) ([]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, QuestionFilter{})
	if err != nil {
		return nil, err
	}
	unresolved := make([]Question, 0)
	for _, q := range questions {
		if !q.IsResolvable() {
			unresolved = append(unresolved, q)
		}
	}
	sort.Slice(unresolved, func(i, j int) bool { return unresolved[i].ID < unresolved[j].ID })
	return unresolved, nil
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
