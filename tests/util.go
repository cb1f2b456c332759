package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/user"
)

// Logger is a core.Logger that records messages instead of printing them.
type Logger struct {
	mu     sync.Mutex
	Errors []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}
func (l *Logger) Warn(string, ...interface{})  {}
func (l *Logger) Fatal(string, ...interface{}) {}

func (l *Logger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.Errors = append(l.Errors, msg)
	l.mu.Unlock()
}

func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:  name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Catalog is one branch holding one subject with one chapter and one quiz.
type Catalog struct {
	Branch  catalog.Branch
	Subject catalog.Subject
	Chapter catalog.Chapter
	Quiz    catalog.Quiz
}

// CreateCatalog creates a Catalog whose quiz holds the given questions.
func CreateCatalog(t *testing.T, repo catalog.Repository, name string, questions ...catalog.Question) Catalog {
	ctx := context.Background()
	now := time.Now().UTC()
	fail := func(err error) {
		if err != nil {
			t.Fatalf("CreateCatalog() failed: %v", err)
		}
	}

	var (
		c   Catalog
		err error
	)
	c.Branch, err = repo.CreateBranch(ctx, catalog.Branch{Name: name + " branch", CreatedAt: now})
	fail(err)
	c.Subject, err = repo.CreateSubject(ctx, catalog.Subject{
		Name:      name,
		BranchID:  null.IntFrom(c.Branch.ID),
		CreatedAt: now,
	})
	fail(err)
	c.Chapter, err = repo.CreateChapter(ctx, catalog.Chapter{SubjectID: c.Subject.ID, Name: name + " chapter", CreatedAt: now})
	fail(err)
	c.Quiz, err = repo.CreateQuiz(ctx, catalog.Quiz{
		ChapterID:    c.Chapter.ID,
		Name:         name + " quiz",
		DateOfQuiz:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		TimeDuration: "00:30",
		CreatedAt:    now,
	})
	fail(err)
	for _, q := range questions {
		q.QuizID = c.Quiz.ID
		_, err = repo.CreateQuestion(ctx, q)
		fail(err)
	}
	return c
}
