package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/progress"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

var (
	questionSum = catalog.Question{
		Statement: "1+1", Option1: "1", Option2: "2", Option3: "3", Option4: "4", CorrectOption: "option2",
	}
	questionCapital = catalog.Question{
		Statement: "Capital of France", Option1: "Lyon", Option2: "Nice", Option3: "Paris", Option4: "Lille", CorrectOption: "Paris",
	}
)

func Test_studentApi_quizFlow(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths", questionSum, questionCapital)
	physics := env.createCatalog(t, "Physics")
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	outsider := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	token := getToken(t, student)

	quizPath := fmt.Sprintf("/api/user/quizzes/%d", maths.Quiz.ID)
	attemptPath := quizPath + "/attempt"

	runHttpTests(t, env, []httpTest{
		{name: "auth required", path: "/api/user/quizzes", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "students only", path: "/api/user/quizzes", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "not enrolled: no quizzes", path: "/api/user/quizzes", token: getToken(t, outsider), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "not enrolled: quiz hidden", path: quizPath, token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "not enrolled: attempt refused", method: http.MethodPost, path: attemptPath, token: getToken(t, outsider),
			body: []byte(`{"answers": {}}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "not enrolled: progress hidden", path: fmt.Sprintf("/api/user/progress/%d", maths.Subject.ID), token: getToken(t, outsider),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "unknown quiz", path: "/api/user/quizzes/404", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "quiz not found"})},
		{name: "malformed id", path: "/api/user/quizzes/abc", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "quizzes of other subjects filtered out", path: fmt.Sprintf("/api/user/quizzes?subject_id=%d", physics.Subject.ID),
			token: token, wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{name: "quizzes", path: "/api/user/quizzes", token: token, wantCode: http.StatusOK, wantData: marchallList(t, maths.Quiz)},
	})

	// answers are hidden from students
	req, rec := newAuthRequest(http.MethodGet, quizPath, token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail QuizDetail
	unmarshal(t, rec, &detail)
	assert.Equal(t, maths.Quiz.ID, detail.Quiz.ID)
	require.Len(t, detail.Questions, 2)
	assert.NotContains(t, rec.Body.String(), "correct_option")
	qSum, qCapital := detail.Questions[0], detail.Questions[1]

	submit := func(answers map[int]string) attempt.Result {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, attemptPath, token, marchallObj(t, attempt.Submission{Answers: answers}))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res attempt.Result
		unmarshal(t, rec, &res)
		return res
	}

	// option text and slot names both match, whatever the casing
	res := submit(map[int]string{qSum.ID: " 2 ", qCapital.ID: "OPTION3"})
	assert.Equal(t, 2, res.TotalScored)
	assert.Equal(t, 2, res.TotalQuestions)
	assert.Equal(t, 100.0, res.Percentage)

	// every attempt is kept, the latest one counts for progress
	res = submit(map[int]string{qSum.ID: "option2"})
	assert.Equal(t, 1, res.TotalScored)
	assert.Equal(t, 50.0, res.Percentage)

	req, rec = newAuthRequest(http.MethodGet, "/api/user/scores", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var scores []attempt.Score
	unmarshal(t, rec, &scores)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].TotalScored, "newest first")

	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/user/progress/%d", maths.Subject.ID), token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var sp progress.SubjectProgress
	unmarshal(t, rec, &sp)
	assert.Equal(t, 1, sp.TotalQuizzes)
	assert.Equal(t, 1, sp.AttemptedCount)
	assert.Equal(t, 50.0, sp.Progress)
	require.Len(t, sp.Quizzes, 1)
	assert.Equal(t, 1, sp.Quizzes[0].LatestScore)
}

func Test_studentApi_enrollments(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths", questionSum)
	physics := env.createCatalog(t, "Physics")
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	token := getToken(t, student)

	runHttpTests(t, env, []httpTest{
		{
			name: "enroll: unknown subject", method: http.MethodPost, path: "/api/user/enrollments/404", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "subject not found"}),
		},
		{name: "enroll: other branch", method: http.MethodPost, path: fmt.Sprintf("/api/user/enrollments/%d", physics.Subject.ID), token: token, wantCode: http.StatusCreated},
		{name: "enroll: twice", method: http.MethodPost, path: fmt.Sprintf("/api/user/enrollments/%d", physics.Subject.ID), token: token, wantCode: http.StatusCreated},
		{
			name: "subjects of the branch", path: "/api/user/subjects", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, SubjectItem{Subject: maths.Subject, IsEnrolled: true}),
		},
	})

	// the dashboard sticks to the student's branch
	req, rec := newAuthRequest(http.MethodGet, "/api/user/progress", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var dashboard []progress.SubjectProgress
	unmarshal(t, rec, &dashboard)
	require.Len(t, dashboard, 1)
	assert.Equal(t, maths.Subject.ID, dashboard[0].SubjectID)
	assert.Equal(t, 0.0, dashboard[0].Progress)

	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/api/user/quizzes/%d/attempt", maths.Quiz.ID), token, []byte(`{"answers": {}}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res attempt.Result
	unmarshal(t, rec, &res)

	runHttpTests(t, env, []httpTest{
		{name: "unenroll", method: http.MethodDelete, path: fmt.Sprintf("/api/user/enrollments/%d", maths.Subject.ID), token: token, wantCode: http.StatusNoContent},
		{
			name: "unenroll: twice", method: http.MethodDelete, path: fmt.Sprintf("/api/user/enrollments/%d", maths.Subject.ID), token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "enrollment not found"}),
		},
		{
			name: "unenrolled: quiz hidden", path: fmt.Sprintf("/api/user/quizzes/%d", maths.Quiz.ID), token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "unenrolled: empty dashboard", path: "/api/user/progress", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	// unenrolling keeps the attempt history
	req, rec = newAuthRequest(http.MethodGet, "/api/user/scores", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var scores []attempt.Score
	unmarshal(t, rec, &scores)
	require.Len(t, scores, 1)
	assert.Equal(t, res.ScoreID, scores[0].ID)
	assert.Equal(t, maths.Quiz.ID, scores[0].QuizID)

	runHttpTests(t, env, []httpTest{
		{name: "re-enroll", method: http.MethodPost, path: fmt.Sprintf("/api/user/enrollments/%d", maths.Subject.ID), token: token, wantCode: http.StatusCreated},
		{name: "re-enrolled: quiz back", path: fmt.Sprintf("/api/user/quizzes/%d", maths.Quiz.ID), token: token, wantCode: http.StatusOK},
	})
}

func Test_studentApi_exportScores(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	other := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	token := getToken(t, student)

	runHttpTests(t, env, []httpTest{
		{
			name: "unknown format", method: http.MethodPost, path: "/api/user/export_csv?format=pdf", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: report.ErrUnknownFormat.Error()}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/user/export_csv?format=xlsx", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp JobResponse
	unmarshal(t, rec, &resp)
	assert.Equal(t, job.StatusPending, resp.Status)
	require.NotEmpty(t, resp.JobID)

	jobPath := "/api/jobs/" + resp.JobID
	runHttpTests(t, env, []httpTest{
		{name: "job: other users", path: jobPath, token: getToken(t, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "job: admins", path: jobPath, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "job: not done yet", path: jobPath + "/download", token: token, wantCode: http.StatusNotFound},
	})

	req, rec = newAuthRequest(http.MethodGet, jobPath, token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var j job.Job
	unmarshal(t, rec, &j)
	assert.Equal(t, job.KindExportScores, j.Kind)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, student.ID, j.RequestedBy.Int)

	var payload job.ExportPayload
	require.NoError(t, j.Decode(&payload))
	assert.Equal(t, job.ExportPayload{UserID: student.ID, Format: report.FormatXLSX}, payload)
}
