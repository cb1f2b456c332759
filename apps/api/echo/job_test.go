package echoapi_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
	emailsvc "github.com/trezcool/quizhub/services/email"
	"github.com/trezcool/quizhub/services/queue"
)

// runWorker processes the jobs of the test env until the test ends.
func (env *testEnv) runWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := queue.NewWorker(env.jobs, env.svcs.Reports.JobHandlers(), env.conf, env.logger)
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (env *testEnv) waitJob(t *testing.T, id, token string) job.Job {
	var j job.Job
	require.Eventually(t, func() bool {
		req, rec := newAuthRequest(http.MethodGet, "/api/jobs/"+id, token)
		env.serve(req, rec)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &j); err != nil {
			return false
		}
		return j.Status == job.StatusDone || j.Status == job.StatusFailed
	}, 5*time.Second, 20*time.Millisecond)
	return j
}

func Test_jobApi_get(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	token := getToken(t, student)

	runHttpTests(t, env, []httpTest{
		{name: "auth required", path: "/api/jobs/0b7e0c4e-5c3f-4f0e-9d5e-1c2b3a4d5e6f", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "malformed id", path: "/api/jobs/42", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "unknown job", path: "/api/jobs/0b7e0c4e-5c3f-4f0e-9d5e-1c2b3a4d5e6f", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "job not found"}),
		},
	})
}

func Test_jobApi_exportDownload(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths", questionSum, questionCapital)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	token := getToken(t, student)

	questions, err := env.svcs.Catalog.QuizQuestions(context.Background(), maths.Quiz.ID)
	require.NoError(t, err)
	_, err = env.svcs.Attempts.Submit(context.Background(), student.ID, maths.Quiz.ID, map[int]string{
		questions[0].ID: "option2",
		questions[1].ID: "Paris",
	})
	require.NoError(t, err)

	emailsvc.ResetSentMessages()
	env.runWorker(t)

	req, rec := newAuthRequest(http.MethodPost, "/api/user/export_csv", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp JobResponse
	unmarshal(t, rec, &resp)

	j := env.waitJob(t, resp.JobID, token)
	require.Equal(t, job.StatusDone, j.Status, j.Error)
	assert.True(t, strings.HasPrefix(j.Result, fmt.Sprintf("quiz_data_user_%d_", student.ID)))
	assert.True(t, strings.HasSuffix(j.Result, ".csv"))
	assert.True(t, j.StartedAt.Valid)
	assert.True(t, j.FinishedAt.Valid)

	req, rec = newAuthRequest(http.MethodGet, "/api/jobs/"+resp.JobID+"/download", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), j.Result)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(report.ExportHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], fmt.Sprintf("%d,%d,2024-05-01,2,", maths.Quiz.ID, maths.Chapter.ID)), lines[1])

	// the requester also gets the file by mail
	var mailed []core.EmailMessage
	for _, msg := range emailsvc.GetSentMessages() {
		if msg.Subject == "Your quiz data export" {
			mailed = append(mailed, msg)
		}
	}
	require.Len(t, mailed, 1)
	assert.Equal(t, "jane@test.cd", mailed[0].To[0].Address)
	require.Len(t, mailed[0].Attachments, 1)
	at := mailed[0].Attachments[0]
	assert.Equal(t, j.Result, at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, rec.Body.String(), string(content))
}

func Test_jobApi_batchJobs(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	token := getToken(t, admin)
	env.runWorker(t)

	for path, wantResult := range map[string]string{
		"/api/admin/daily_reminder": "sent=1 failed=0",
		"/api/admin/monthly_report": "sent=0 failed=0", // no attempts this month
	} {
		req, rec := newAuthRequest(http.MethodPost, path, token)
		env.serve(req, rec)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var resp JobResponse
		unmarshal(t, rec, &resp)

		j := env.waitJob(t, resp.JobID, token)
		assert.Equal(t, job.StatusDone, j.Status, j.Error)
		assert.Equal(t, wantResult, j.Result, path)

		// nothing to download for batch jobs
		req, rec = newAuthRequest(http.MethodGet, "/api/jobs/"+resp.JobID+"/download", token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

// flakyMail refuses one address and records the others.
type flakyMail struct {
	failFor string
	mu      sync.Mutex
	sentTo  []string
}

func (m *flakyMail) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = m.Send(msg)
	}
}

func (m *flakyMail) Send(msg *core.EmailMessage) error {
	addr := msg.To[0].Address
	if addr == m.failFor {
		return errors.New("mailbox unavailable")
	}
	m.mu.Lock()
	m.sentTo = append(m.sentTo, addr)
	m.mu.Unlock()
	return nil
}

func Test_jobApi_batchJobsKeepGoing(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	maths := env.createCatalog(t, "Maths", questionSum)
	ann := env.enroll(t, env.createUser(t, "Ann", "ann@test.cd", user.RoleStudent), maths)
	env.createUser(t, "Zoe", "zoe@test.cd", user.RoleStudent)
	joe := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)

	// Ann attempted a quiz today
	_, err := env.svcs.Attempts.Submit(ctx, ann.ID, maths.Quiz.ID, map[int]string{})
	require.NoError(t, err)

	mailSvc := &flakyMail{failFor: "joe@test.cd"}
	svcs := di.NewServices(env.repos, di.Deps{Conf: env.conf, Logger: env.logger, Mail: mailSvc, Jobs: env.jobs})
	handlers := svcs.Reports.JobHandlers()

	res, err := handlers[job.KindDailyReminder](ctx, job.Job{Kind: job.KindDailyReminder})
	require.NoError(t, err)
	assert.Equal(t, "sent=1 failed=1", res)
	assert.Equal(t, []string{"zoe@test.cd"}, mailSvc.sentTo, "no reminder after today's attempt")
	assert.Contains(t, env.logger.Errors, fmt.Sprintf("report.runDailyReminder: user %d", joe.ID))

	_, err = env.svcs.Attempts.Submit(ctx, joe.ID, maths.Quiz.ID, map[int]string{})
	require.NoError(t, err)
	mailSvc.sentTo = nil

	res, err = handlers[job.KindMonthlyReport](ctx, job.Job{Kind: job.KindMonthlyReport})
	require.NoError(t, err)
	assert.Equal(t, "sent=1 failed=1", res)
	assert.Equal(t, []string{"ann@test.cd"}, mailSvc.sentTo)
	assert.Contains(t, env.logger.Errors, fmt.Sprintf("report.runMonthlyReport: user %d", joe.ID))
}

func Test_jobApi_notifications(t *testing.T) {
	env := setup(t)
	jane := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	joe := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	token := getToken(t, jane)

	require.NoError(t, env.svcs.Notifications.CreateMany(context.Background(),
		notification.Notification{UserID: jane.ID, Title: "New assignment", Message: "Essay due Friday", Type: "assignment"},
		notification.Notification{
			UserID: jane.ID, Title: "Old news", Message: "Expired", Type: "system",
			ExpiresAt: null.TimeFrom(time.Now().Add(-time.Hour)),
		},
	))

	unreadPath := fmt.Sprintf("/api/notifications/%d", jane.ID)
	runHttpTests(t, env, []httpTest{
		{name: "unread: other users", path: unreadPath, token: getToken(t, joe), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "mark read: unknown", method: http.MethodPost, path: "/api/notifications/404/read", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "notification not found"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, unreadPath, token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var ns []notification.Notification
	unmarshal(t, rec, &ns)
	require.Len(t, ns, 1, "expired notifications are hidden")
	assert.Equal(t, "New assignment", ns[0].Title)
	assert.Equal(t, notification.PriorityNormal, ns[0].Priority)

	readPath := fmt.Sprintf("/api/notifications/%d/read", ns[0].ID)
	runHttpTests(t, env, []httpTest{
		{name: "mark read: other users", method: http.MethodPost, path: readPath, token: getToken(t, joe), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "mark read", method: http.MethodPost, path: readPath, token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Notification marked as read"}),
		},
		{name: "unread after read", path: unreadPath, token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}
