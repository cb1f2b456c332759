package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/quizhub/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

// Branches

func (repo *catalogRepository) CreateBranch(_ context.Context, b catalog.Branch) (catalog.Branch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	b.ID = repo.db.nextID("branch")
	repo.db.branches[b.ID] = b
	return b, nil
}

func (repo *catalogRepository) GetBranch(_ context.Context, id int) (catalog.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.branches[id]; ok {
		return b, nil
	}
	return catalog.Branch{}, catalog.ErrBranchNotFound
}

func (repo *catalogRepository) QueryBranches(_ context.Context) ([]catalog.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	branches := make([]catalog.Branch, 0, len(repo.db.branches))
	for _, b := range repo.db.branches {
		branches = append(branches, b)
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].Name != branches[j].Name {
			return branches[i].Name < branches[j].Name
		}
		return branches[i].ID < branches[j].ID
	})
	return branches, nil
}

func (repo *catalogRepository) UpdateBranch(_ context.Context, b catalog.Branch) (catalog.Branch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.branches[b.ID]; !ok {
		return catalog.Branch{}, catalog.ErrBranchNotFound
	}
	repo.db.branches[b.ID] = b
	return b, nil
}

func (repo *catalogRepository) DeleteBranch(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.branches[id]; !ok {
		return catalog.ErrBranchNotFound
	}
	delete(repo.db.branches, id)
	return nil
}

func (repo *catalogRepository) CountBranchDependents(_ context.Context, id int) (users int, subjects int, err error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.users {
		if u.BranchID.Valid && u.BranchID.Int == id {
			users++
		}
	}
	for _, s := range repo.db.subjects {
		if s.BranchID.Valid && s.BranchID.Int == id {
			subjects++
		}
	}
	return users, subjects, nil
}

// Subjects

func (repo *catalogRepository) CreateSubject(_ context.Context, s catalog.Subject) (catalog.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = repo.db.nextID("subject")
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *catalogRepository) GetSubject(_ context.Context, id int) (catalog.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return s, nil
	}
	return catalog.Subject{}, catalog.ErrSubjectNotFound
}

func (repo *catalogRepository) QuerySubjects(_ context.Context, filter catalog.SubjectFilter) ([]catalog.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	subjects := make([]catalog.Subject, 0)
	for _, s := range repo.db.subjects {
		if filter.BranchID != nil && (!s.BranchID.Valid || s.BranchID.Int != *filter.BranchID) {
			continue
		}
		if !matchesIDs(filter.IDs, s.ID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
			continue
		}
		subjects = append(subjects, s)
	}
	sortSubjects(subjects)
	return subjects, nil
}

func sortSubjects(subjects []catalog.Subject) {
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name != subjects[j].Name {
			return subjects[i].Name < subjects[j].Name
		}
		return subjects[i].ID < subjects[j].ID
	})
}

func (repo *catalogRepository) UpdateSubject(_ context.Context, s catalog.Subject) (catalog.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[s.ID]; !ok {
		return catalog.Subject{}, catalog.ErrSubjectNotFound
	}
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *catalogRepository) DeleteSubject(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return catalog.ErrSubjectNotFound
	}
	repo.db.deleteSubject(id)
	return nil
}

// deleteSubject cascades to everything hanging off the subject. Lock must be held.
func (db *DB) deleteSubject(id int) {
	delete(db.subjects, id)
	for chID, ch := range db.chapters {
		if ch.SubjectID == id {
			db.deleteChapter(chID)
		}
	}
	for k := range db.teacherSubjects {
		if k.subjectID == id {
			delete(db.teacherSubjects, k)
		}
	}
	for eid, e := range db.enrollments {
		if e.SubjectID == id {
			delete(db.enrollments, eid)
		}
	}
	for mid, m := range db.messages {
		if m.SubjectID == id {
			delete(db.messages, mid)
		}
	}
	for aid, a := range db.assignments {
		if a.SubjectID == id {
			db.deleteAssignment(aid)
		}
	}
}

// Chapters

func (repo *catalogRepository) CreateChapter(_ context.Context, ch catalog.Chapter) (catalog.Chapter, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ch.ID = repo.db.nextID("chapter")
	repo.db.chapters[ch.ID] = ch
	return ch, nil
}

func (repo *catalogRepository) GetChapter(_ context.Context, id int) (catalog.Chapter, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ch, ok := repo.db.chapters[id]; ok {
		return ch, nil
	}
	return catalog.Chapter{}, catalog.ErrChapterNotFound
}

func (repo *catalogRepository) QueryChapters(_ context.Context, filter catalog.ChapterFilter) ([]catalog.Chapter, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	chapters := make([]catalog.Chapter, 0)
	for _, ch := range repo.db.chapters {
		if filter.SubjectID != nil && ch.SubjectID != *filter.SubjectID {
			continue
		}
		if !matchesIDs(filter.SubjectIDs, ch.SubjectID) {
			continue
		}
		chapters = append(chapters, ch)
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].ID < chapters[j].ID })
	return chapters, nil
}

func (repo *catalogRepository) UpdateChapter(_ context.Context, ch catalog.Chapter) (catalog.Chapter, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.chapters[ch.ID]; !ok {
		return catalog.Chapter{}, catalog.ErrChapterNotFound
	}
	repo.db.chapters[ch.ID] = ch
	return ch, nil
}

func (repo *catalogRepository) DeleteChapter(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.chapters[id]; !ok {
		return catalog.ErrChapterNotFound
	}
	repo.db.deleteChapter(id)
	return nil
}

// deleteChapter cascades to quizzes and materials; assignments only lose the chapter. Lock must be held.
func (db *DB) deleteChapter(id int) {
	delete(db.chapters, id)
	for qzID, qz := range db.quizzes {
		if qz.ChapterID == id {
			db.deleteQuiz(qzID)
		}
	}
	for mid, m := range db.materials {
		if m.ChapterID == id {
			delete(db.materials, mid)
		}
	}
	for aid, a := range db.assignments {
		if a.ChapterID.Valid && a.ChapterID.Int == id {
			a.ChapterID.Valid = false
			a.ChapterID.Int = 0
			db.assignments[aid] = a
		}
	}
}

// Quizzes

func (repo *catalogRepository) CreateQuiz(_ context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	qz.ID = repo.db.nextID("quiz")
	repo.db.quizzes[qz.ID] = qz
	return qz, nil
}

func (repo *catalogRepository) GetQuiz(_ context.Context, id int) (catalog.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if qz, ok := repo.db.quizzes[id]; ok {
		return qz, nil
	}
	return catalog.Quiz{}, catalog.ErrQuizNotFound
}

func (repo *catalogRepository) QueryQuizzes(_ context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quizzes := make([]catalog.Quiz, 0)
	for _, qz := range repo.db.quizzes {
		if filter.ChapterID != nil && qz.ChapterID != *filter.ChapterID {
			continue
		}
		ch := repo.db.chapters[qz.ChapterID]
		if filter.SubjectID != nil && ch.SubjectID != *filter.SubjectID {
			continue
		}
		if !matchesIDs(filter.SubjectIDs, ch.SubjectID) || !matchesIDs(filter.IDs, qz.ID) {
			continue
		}
		quizzes = append(quizzes, qz)
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].DateOfQuiz.Equal(quizzes[j].DateOfQuiz) {
			return quizzes[i].DateOfQuiz.Before(quizzes[j].DateOfQuiz)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
	return quizzes, nil
}

func (repo *catalogRepository) UpdateQuiz(_ context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.quizzes[qz.ID]; !ok {
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	repo.db.quizzes[qz.ID] = qz
	return qz, nil
}

func (repo *catalogRepository) DeleteQuiz(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.quizzes[id]; !ok {
		return catalog.ErrQuizNotFound
	}
	repo.db.deleteQuiz(id)
	return nil
}

// deleteQuiz cascades to questions and scores. Lock must be held.
func (db *DB) deleteQuiz(id int) {
	delete(db.quizzes, id)
	for qnID, qn := range db.questions {
		if qn.QuizID == id {
			delete(db.questions, qnID)
		}
	}
	for sid, s := range db.scores {
		if s.QuizID == id {
			delete(db.scores, sid)
		}
	}
}

// Questions

func (repo *catalogRepository) CreateQuestion(_ context.Context, qn catalog.Question) (catalog.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	qn.ID = repo.db.nextID("question")
	repo.db.questions[qn.ID] = qn
	return qn, nil
}

func (repo *catalogRepository) GetQuestion(_ context.Context, id int) (catalog.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if qn, ok := repo.db.questions[id]; ok {
		return qn, nil
	}
	return catalog.Question{}, catalog.ErrQuestionNotFound
}

func (repo *catalogRepository) QueryQuestions(_ context.Context, filter catalog.QuestionFilter) ([]catalog.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	questions := make([]catalog.Question, 0)
	for _, qn := range repo.db.questions {
		if filter.QuizID != nil && qn.QuizID != *filter.QuizID {
			continue
		}
		if !matchesIDs(filter.QuizIDs, qn.QuizID) {
			continue
		}
		questions = append(questions, qn)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (repo *catalogRepository) UpdateQuestion(_ context.Context, qn catalog.Question) (catalog.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.questions[qn.ID]; !ok {
		return catalog.Question{}, catalog.ErrQuestionNotFound
	}
	repo.db.questions[qn.ID] = qn
	return qn, nil
}

func (repo *catalogRepository) DeleteQuestion(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return catalog.ErrQuestionNotFound
	}
	delete(repo.db.questions, id)
	return nil
}

func (repo *catalogRepository) CountQuestions(_ context.Context, quizIDs []int) (map[int]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[int]int, len(quizIDs))
	for _, qn := range repo.db.questions {
		if containsInt(quizIDs, qn.QuizID) {
			counts[qn.QuizID]++
		}
	}
	return counts, nil
}

// Teacher grants

func (repo *catalogRepository) AssignTeacher(_ context.Context, ts catalog.TeacherSubject) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := teacherSubjectKey{ts.TeacherID, ts.SubjectID}
	if _, ok := repo.db.teacherSubjects[key]; !ok {
		repo.db.teacherSubjects[key] = ts
	}
	return nil
}

func (repo *catalogRepository) UnassignTeacher(_ context.Context, teacherID, subjectID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.teacherSubjects, teacherSubjectKey{teacherID, subjectID})
	return nil
}

func (repo *catalogRepository) QueryTeacherSubjects(_ context.Context, teacherID int) ([]catalog.TeacherSubject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grants := make([]catalog.TeacherSubject, 0)
	for k, ts := range repo.db.teacherSubjects {
		if k.teacherID == teacherID {
			grants = append(grants, ts)
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		if !grants[i].AssignedAt.Equal(grants[j].AssignedAt) {
			return grants[i].AssignedAt.Before(grants[j].AssignedAt)
		}
		return grants[i].SubjectID < grants[j].SubjectID
	})
	return grants, nil
}

func (repo *catalogRepository) IsTeacherAssigned(_ context.Context, teacherID, subjectID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.teacherSubjects[teacherSubjectKey{teacherID, subjectID}]
	return ok, nil
}

func (repo *catalogRepository) Search(_ context.Context, text string) (catalog.SearchResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	text = strings.ToLower(text)
	res := catalog.SearchResult{
		Subjects: make([]catalog.Subject, 0),
		Chapters: make([]catalog.Chapter, 0),
		Quizzes:  make([]catalog.Quiz, 0),
	}
	for _, s := range repo.db.subjects {
		if strings.Contains(strings.ToLower(s.Name), text) {
			res.Subjects = append(res.Subjects, s)
		}
	}
	for _, ch := range repo.db.chapters {
		if strings.Contains(strings.ToLower(ch.Name), text) {
			res.Chapters = append(res.Chapters, ch)
		}
	}
	for _, qz := range repo.db.quizzes {
		if strings.Contains(strings.ToLower(qz.Name), text) {
			res.Quizzes = append(res.Quizzes, qz)
		}
	}
	sortSubjects(res.Subjects)
	sort.Slice(res.Chapters, func(i, j int) bool {
		if res.Chapters[i].Name != res.Chapters[j].Name {
			return res.Chapters[i].Name < res.Chapters[j].Name
		}
		return res.Chapters[i].ID < res.Chapters[j].ID
	})
	sort.Slice(res.Quizzes, func(i, j int) bool {
		if res.Quizzes[i].Name != res.Quizzes[j].Name {
			return res.Quizzes[i].Name < res.Quizzes[j].Name
		}
		return res.Quizzes[i].ID < res.Quizzes[j].ID
	})
	return res, nil
}
