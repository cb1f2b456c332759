//go:build integration
// +build integration

package sqlxrepos_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/user"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
	"github.com/trezcool/quizhub/storage/database/testdb"
	testutil "github.com/trezcool/quizhub/tests"
)

func startDB(t *testing.T) *sqlx.DB {
	t.Helper()
	h, err := testdb.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return sqlxrepos.NewDB(h.DB)
}

func TestRepositories(t *testing.T) {
	db := startDB(t)
	ctx := context.Background()

	users := sqlxrepos.NewUserRepository(db)
	cat := sqlxrepos.NewCatalogRepository(db)
	scores := sqlxrepos.NewAttemptRepository(db)
	enrollments := sqlxrepos.NewEnrollmentRepository(db)
	messages := sqlxrepos.NewDiscussionRepository(db)
	work := sqlxrepos.NewCourseworkRepository(db)
	notes := sqlxrepos.NewNotificationRepository(db)
	reports := sqlxrepos.NewReportRepository(db)

	student := testutil.CreateUser(t, users, "", "ada@quizhub.test", "pwd", user.RoleStudent, true)
	teacher := testutil.CreateUser(t, users, "Grace", "grace@quizhub.test", "pwd", user.RoleTeacher, true)
	c := testutil.CreateCatalog(t, cat, "Maths",
		catalog.Question{Statement: "1+1", Option1: "1", Option2: "2", Option3: "3", Option4: "4", CorrectOption: "option2"},
		catalog.Question{Statement: "2+2", Option1: "2", Option2: "3", Option3: "4", Option4: "5", CorrectOption: "4"},
	)

	t.Run("users", func(t *testing.T) {
		_, err := users.CreateUser(ctx, user.User{Email: "ADA@quizhub.test", Role: user.RoleStudent, PasswordHash: []byte("x")})
		assert.Equal(t, user.ErrEmailExists, err)
		assert.Equal(t, user.ErrEmailExists, users.CheckEmailUniqueness(ctx, "Ada@QuizHub.test"))
		assert.NoError(t, users.CheckEmailUniqueness(ctx, "ada@quizhub.test", student.ID))

		got, err := users.GetUser(ctx, user.GetFilter{Email: "ADA@quizhub.test"})
		require.NoError(t, err)
		assert.Equal(t, student.ID, got.ID)

		_, err = users.GetUser(ctx, user.GetFilter{ID: 999999})
		assert.True(t, core.IsNotFound(err))

		found, err := users.QueryUsers(ctx, user.QueryFilter{Search: "GRA", Role: user.RoleTeacher}, nil)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, teacher.ID, found[0].ID)
	})

	t.Run("catalog", func(t *testing.T) {
		counts, err := cat.CountQuestions(ctx, []int{c.Quiz.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, counts[c.Quiz.ID])

		quizzes, err := cat.QueryQuizzes(ctx, catalog.QuizFilter{SubjectIDs: []int{c.Subject.ID}})
		require.NoError(t, err)
		assert.Len(t, quizzes, 1)

		none, err := cat.QueryQuizzes(ctx, catalog.QuizFilter{SubjectIDs: []int{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		require.NoError(t, cat.AssignTeacher(ctx, catalog.TeacherSubject{TeacherID: teacher.ID, SubjectID: c.Subject.ID, AssignedAt: time.Now()}))
		require.NoError(t, cat.AssignTeacher(ctx, catalog.TeacherSubject{TeacherID: teacher.ID, SubjectID: c.Subject.ID, AssignedAt: time.Now()}))
		ok, err := cat.IsTeacherAssigned(ctx, teacher.ID, c.Subject.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		res, err := cat.Search(ctx, "math")
		require.NoError(t, err)
		assert.Len(t, res.Subjects, 1)
		assert.Len(t, res.Chapters, 1)
		assert.Len(t, res.Quizzes, 1)

		_, subjects, err := cat.CountBranchDependents(ctx, c.Branch.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, subjects)
	})

	t.Run("scores newest first", func(t *testing.T) {
		at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
		first, err := scores.CreateScore(ctx, attempt.Score{UserID: student.ID, QuizID: c.Quiz.ID, TotalScored: 1, AttemptedAt: at})
		require.NoError(t, err)
		second, err := scores.CreateScore(ctx, attempt.Score{UserID: student.ID, QuizID: c.Quiz.ID, TotalScored: 2, AttemptedAt: at})
		require.NoError(t, err)

		got, err := scores.QueryScores(ctx, attempt.Filter{UserID: &student.ID, QuizIDs: []int{c.Quiz.ID}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)

		totals, err := reports.Totals(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, 2, totals.Attempts)
		assert.Equal(t, 1.5, totals.AverageScore)

		rows, err := reports.ExportRows(ctx, student.ID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, c.Chapter.ID, rows[0].ChapterID)
		assert.Equal(t, 1, rows[0].Score)

		activity, err := reports.StudentActivity(ctx, nil)
		require.NoError(t, err)
		require.Len(t, activity, 1)
		assert.Equal(t, 2, activity[0].Attempts)
		assert.Equal(t, 2, activity[0].BestScore)
	})

	t.Run("enrollment reactivation keeps one row", func(t *testing.T) {
		e, err := enrollments.CreateEnrollment(ctx, enrollment.Enrollment{UserID: student.ID, SubjectID: c.Subject.ID, EnrolledAt: time.Now(), IsActive: true})
		require.NoError(t, err)
		e.IsActive = false
		_, err = enrollments.UpdateEnrollment(ctx, e)
		require.NoError(t, err)
		again, err := enrollments.CreateEnrollment(ctx, enrollment.Enrollment{UserID: student.ID, SubjectID: c.Subject.ID, EnrolledAt: time.Now(), IsActive: true})
		require.NoError(t, err)
		assert.Equal(t, e.ID, again.ID)

		active, err := enrollments.QueryEnrollments(ctx, enrollment.Filter{SubjectID: &c.Subject.ID, ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("messages carry their author", func(t *testing.T) {
		now := time.Now().UTC()
		m, err := messages.CreateMessage(ctx, discussion.Message{SubjectID: c.Subject.ID, UserID: student.ID, Message: "hi", CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, "ada@quizhub.test", m.UserName)
		assert.Equal(t, user.RoleStudent, m.UserRole)

		require.NoError(t, messages.DeleteMessage(ctx, m.ID))
		assert.True(t, core.IsNotFound(messages.DeleteMessage(ctx, m.ID)))
	})

	t.Run("one submission per student", func(t *testing.T) {
		now := time.Now().UTC()
		a, err := work.CreateAssignment(ctx, coursework.Assignment{
			Title: "Essay", SubjectID: c.Subject.ID, TeacherID: teacher.ID, Deadline: now.Add(time.Hour),
			MaxPoints: 100, AssignmentType: coursework.TypeEssay, IsActive: true, CreatedAt: now,
		})
		require.NoError(t, err)
		s, err := work.CreateSubmission(ctx, coursework.Submission{AssignmentID: a.ID, StudentID: student.ID, Content: "done", SubmittedAt: now})
		require.NoError(t, err)
		assert.Equal(t, "ada@quizhub.test", s.StudentName)

		_, err = work.CreateSubmission(ctx, coursework.Submission{AssignmentID: a.ID, StudentID: student.ID, Content: "again", SubmittedAt: now})
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, coursework.ErrAlreadySubmitted, verr.Err)
	})

	t.Run("unread notifications", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, notes.CreateNotifications(ctx,
			notification.Notification{UserID: student.ID, Title: "a", Message: "a", Priority: "normal", CreatedAt: now.Add(-time.Minute)},
			notification.Notification{UserID: student.ID, Title: "b", Message: "b", Priority: "normal", CreatedAt: now},
			notification.Notification{UserID: student.ID, Title: "old", Message: "old", Priority: "normal", CreatedAt: now, ExpiresAt: null.TimeFrom(now.Add(-time.Second))},
		))
		unread, err := notes.QueryUnread(ctx, student.ID, now, notification.UnreadLimit)
		require.NoError(t, err)
		require.Len(t, unread, 2)
		assert.Equal(t, "b", unread[0].Title)

		require.NoError(t, notes.MarkRead(ctx, unread[0].ID))
		unread, err = notes.QueryUnread(ctx, student.ID, now, notification.UnreadLimit)
		require.NoError(t, err)
		assert.Len(t, unread, 1)
	})
}

func TestJobStore_ClaimOncePerJob(t *testing.T) {
	db := startDB(t)
	ctx := context.Background()
	store := sqlxrepos.NewJobStore(db)

	const n = 10
	for i := 0; i < n; i++ {
		payload, _ := json.Marshal(job.ExportPayload{UserID: i, Format: "csv"})
		require.NoError(t, store.Enqueue(ctx, job.Job{
			ID:        uuid.New(),
			Kind:      job.KindExportScores,
			Payload:   payload,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := store.Claim(ctx)
				if err == job.ErrNoJob {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				claimed[j.ID]++
				mu.Unlock()
				assert.NoError(t, store.Finish(ctx, j.ID, "ok", nil))
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, n)
	for id, times := range claimed {
		assert.Equal(t, 1, times, id.String())
		j, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, job.StatusDone, j.Status)
		assert.True(t, j.FinishedAt.Valid)
	}

	// empty payloads are stored as an empty object
	empty := job.Job{ID: uuid.New(), Kind: job.KindDailyReminder, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Enqueue(ctx, empty))
	got, err := store.Get(ctx, empty.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got.Payload))
}
