package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/user"
)

func Test_courseworkApi(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	physics := env.createCatalog(t, "Physics")
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	env.assign(t, teacher, maths)
	colleague := env.createUser(t, "Tim", "tim@test.cd", user.RoleTeacher)
	env.assign(t, colleague, maths)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	outsider := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	teacherToken, studentToken := getToken(t, teacher), getToken(t, student)

	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	body := func(subjectID int, chapterID interface{}, deadline string) []byte {
		return marchallObj(t, map[string]interface{}{
			"title":           "Essay on fractions",
			"subject_id":      subjectID,
			"chapter_id":      chapterID,
			"deadline":        deadline,
			"assignment_type": "Essay",
		})
	}

	runHttpTests(t, env, []httpTest{
		{
			name: "create: students cannot", method: http.MethodPost, path: "/api/assignments", body: body(maths.Subject.ID, nil, deadline.Format(time.RFC3339)),
			token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: required fields", method: http.MethodPost, path: "/api/assignments", body: []byte("{}"),
			token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":      "this field is required",
				"subject_id": "this field is required",
				"deadline":   "this field is required",
			}),
		},
		{
			name: "create: bad deadline", method: http.MethodPost, path: "/api/assignments", body: body(maths.Subject.ID, nil, "next friday"),
			token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"deadline": "must be a date and time such as 2024-05-31T23:59"}),
		},
		{
			name: "create: unassigned subject", method: http.MethodPost, path: "/api/assignments", body: body(physics.Subject.ID, nil, deadline.Format(time.RFC3339)),
			token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: chapter of another subject", method: http.MethodPost, path: "/api/assignments",
			body:  body(maths.Subject.ID, physics.Chapter.ID, deadline.Format(time.RFC3339)),
			token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"chapter_id": "chapter does not belong to the subject"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/assignments", teacherToken, body(maths.Subject.ID, maths.Chapter.ID, deadline.Format(time.RFC3339)))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a coursework.Assignment
	unmarshal(t, rec, &a)
	assert.Equal(t, coursework.TypeEssay, a.AssignmentType)
	assert.Equal(t, 100, a.MaxPoints)
	assert.True(t, deadline.Equal(a.Deadline))
	assert.Equal(t, maths.Chapter.ID, a.ChapterID.Int)
	assert.Equal(t, teacher.ID, a.TeacherID)

	// enrolled students are told about it
	ns, err := env.svcs.Notifications.Unread(context.Background(), authz.Actor{ID: student.ID, Role: user.RoleStudent}, student.ID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "New Assignment: Essay on fractions", ns[0].Title)
	assert.Equal(t, notification.PriorityHigh, ns[0].Priority)
	assert.Equal(t, a.ID, ns[0].RelatedID.Int)

	submitPath := fmt.Sprintf("/api/assignments/%d/submit", a.ID)
	runHttpTests(t, env, []httpTest{
		{
			name: "submit: not enrolled", method: http.MethodPost, path: submitPath, body: []byte(`{"submission_text": "x"}`),
			token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "submit: teachers cannot", method: http.MethodPost, path: submitPath, body: []byte(`{"submission_text": "x"}`),
			token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "submit: unknown assignment", method: http.MethodPost, path: "/api/assignments/404/submit", body: []byte(`{"submission_text": "x"}`),
			token: studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name: "submit: empty", method: http.MethodPost, path: submitPath, body: []byte(`{"submission_text": "  "}`),
			token: studentToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: coursework.ErrContentRequired.Error()}),
		},
		{
			name: "submit", method: http.MethodPost, path: submitPath, body: []byte(`{"submission_text": "Fractions are parts of a whole."}`),
			token: studentToken, wantCode: http.StatusCreated,
		},
		{
			name: "submit: twice", method: http.MethodPost, path: submitPath, body: []byte(`{"submission_text": "again"}`),
			token: studentToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: coursework.ErrAlreadySubmitted.Error()}),
		},
	})

	// students see their own submission next to the assignment
	req, rec = newAuthRequest(http.MethodGet, "/api/assignments", studentToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []coursework.StudentAssignment
	unmarshal(t, rec, &list)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Submission)
	assert.False(t, list[0].Submission.IsLate)
	assert.False(t, list[0].Submission.Grade.Valid)

	subsPath := fmt.Sprintf("/api/assignments/%d/submissions", a.ID)
	runHttpTests(t, env, []httpTest{
		{name: "submissions: students cannot", path: subsPath, token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "submissions: unassigned teacher", path: subsPath, token: getToken(t, env.createUser(t, "Ann", "ann@test.cd", user.RoleTeacher)), wantCode: http.StatusForbidden},
	})

	req, rec = newAuthRequest(http.MethodGet, subsPath, teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []coursework.Submission
	unmarshal(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, "Jane", subs[0].StudentName)

	gradePath := fmt.Sprintf("/api/submissions/%d/grade", subs[0].ID)
	runHttpTests(t, env, []httpTest{
		{
			name: "grade: required", method: http.MethodPost, path: gradePath, body: []byte(`{"feedback": "ok"}`),
			token: teacherToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "this field is required"}),
		},
		{
			name: "grade: above max points", method: http.MethodPost, path: gradePath, body: []byte(`{"grade": 120}`),
			token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grade": "grade cannot exceed the assignment's max points"}),
		},
		{
			name: "grade: only the author", method: http.MethodPost, path: gradePath, body: []byte(`{"grade": 80}`),
			token: getToken(t, colleague), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "grade: unknown submission", method: http.MethodPost, path: "/api/submissions/404/grade", body: []byte(`{"grade": 80}`),
			token: teacherToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"}),
		},
	})

	req, rec = newAuthRequest(http.MethodPost, gradePath, teacherToken, []byte(`{"grade": 85.5, "feedback": " Well argued "}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var graded coursework.Submission
	unmarshal(t, rec, &graded)
	assert.Equal(t, 85.5, graded.Grade.Float64)
	assert.Equal(t, "Well argued", graded.Feedback.String)
	assert.True(t, graded.GradedAt.Valid)

	// teachers list the assignments they authored
	runHttpTests(t, env, []httpTest{
		{name: "teacher list: colleague", path: "/api/assignments", token: getToken(t, colleague), wantCode: http.StatusOK, wantData: marchallList(t)},
	})
	req, rec = newAuthRequest(http.MethodGet, "/api/assignments", teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var authored []coursework.Assignment
	unmarshal(t, rec, &authored)
	require.Len(t, authored, 1)
	assert.Equal(t, a.ID, authored[0].ID)
}

func Test_courseworkApi_lateSubmission(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	env.assign(t, teacher, maths)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)

	// datetime-local values, as sent by web forms
	past := time.Now().Add(-time.Hour).UTC().Format("2006-01-02T15:04")
	req, rec := newAuthRequest(http.MethodPost, "/api/assignments", getToken(t, teacher),
		[]byte(fmt.Sprintf(`{"title": "Homework 1", "subject_id": %d, "deadline": %q}`, maths.Subject.ID, past)))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a coursework.Assignment
	unmarshal(t, rec, &a)
	assert.Equal(t, coursework.TypeHomework, a.AssignmentType)

	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/api/assignments/%d/submit", a.ID), getToken(t, student), []byte(`{"submission_text": "sorry, late"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub coursework.Submission
	unmarshal(t, rec, &sub)
	assert.True(t, sub.IsLate)
}
