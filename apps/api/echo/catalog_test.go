package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/user"
)

func Test_catalogApi_branches(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	adminToken := getToken(t, admin)

	runHttpTests(t, env, []httpTest{
		{name: "list is public", path: "/api/branches", wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "create: auth required", method: http.MethodPost, path: "/api/branches", body: []byte(`{"name": "Science"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "create: admin required", method: http.MethodPost, path: "/api/branches", body: []byte(`{"name": "Science"}`),
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: name required", method: http.MethodPost, path: "/api/branches", body: []byte(`{"color": "#fff"}`),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "update: unknown", method: http.MethodPut, path: "/api/branches/404", body: []byte(`{"name": "Arts"}`),
			token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "branch not found"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/branches", adminToken, []byte(`{"name": " Science ", "short_name": "SCI"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b catalog.Branch
	unmarshal(t, rec, &b)
	assert.Equal(t, "Science", b.Name)
	assert.Equal(t, "SCI", b.ShortName)

	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/api/branches/%d", b.ID), adminToken, []byte(`{"description": "Hard sciences"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &b)
	assert.Equal(t, "Science", b.Name)
	assert.Equal(t, "Hard sciences", b.Description)

	// a branch holding subjects cannot be deleted
	req, rec = newAuthRequest(http.MethodPost, "/api/subjects", adminToken, []byte(fmt.Sprintf(`{"name": "Biology", "branch_id": %d}`, b.ID)))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s catalog.Subject
	unmarshal(t, rec, &s)

	runHttpTests(t, env, []httpTest{
		{
			name: "delete: in use", method: http.MethodDelete, path: fmt.Sprintf("/api/branches/%d", b.ID), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: catalog.ErrBranchInUse.Error()}),
		},
		{name: "delete subject", method: http.MethodDelete, path: fmt.Sprintf("/api/subjects/%d", s.ID), token: adminToken, wantCode: http.StatusNoContent},
		{name: "delete: free", method: http.MethodDelete, path: fmt.Sprintf("/api/branches/%d", b.ID), token: adminToken, wantCode: http.StatusNoContent},
		{name: "list after delete", path: "/api/branches", wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}

func Test_catalogApi_teacherScope(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths", catalog.Question{
		Statement: "1+1", Option1: "1", Option2: "2", Option3: "3", Option4: "4", CorrectOption: "option2",
	})
	physics := env.createCatalog(t, "Physics")
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	env.assign(t, teacher, maths)
	token := getToken(t, teacher)

	chapterBody := func(subjectID int) []byte {
		return []byte(fmt.Sprintf(`{"subject_id": %d, "name": "Algebra"}`, subjectID))
	}
	quizBody := func(chapterID int, date, duration string) []byte {
		return []byte(fmt.Sprintf(`{"chapter_id": %d, "name": "Quiz 2", "date_of_quiz": %q, "time_duration": %q}`, chapterID, date, duration))
	}

	runHttpTests(t, env, []httpTest{
		{
			name: "chapters: students cannot create", method: http.MethodPost, path: "/api/chapters", body: chapterBody(maths.Subject.ID),
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "chapters: unassigned subject", method: http.MethodPost, path: "/api/chapters", body: chapterBody(physics.Subject.ID),
			token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "chapters: unknown subject", method: http.MethodPost, path: "/api/chapters", body: chapterBody(404),
			token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "subject not found"}),
		},
		{
			name: "chapters: assigned subject", method: http.MethodPost, path: "/api/chapters", body: chapterBody(maths.Subject.ID),
			token: token, wantCode: http.StatusCreated,
		},
		{
			name: "chapters: scoped to assigned subjects", path: "/api/chapters", token: token,
			wantCode: http.StatusOK,
		},
		{
			name: "quizzes: bad date & duration", method: http.MethodPost, path: "/api/quizzes", body: quizBody(maths.Chapter.ID, "01/05/2024", "30min"),
			token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"date_of_quiz":  "must be a date formatted as YYYY-MM-DD",
				"time_duration": "must be a duration formatted as HH:MM",
			}),
		},
		{
			name: "quizzes: unassigned chapter", method: http.MethodPost, path: "/api/quizzes", body: quizBody(physics.Chapter.ID, "2024-05-01", "00:45"),
			token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "quizzes: assigned chapter", method: http.MethodPost, path: "/api/quizzes", body: quizBody(maths.Chapter.ID, "2024-05-01", "00:45"),
			token: token, wantCode: http.StatusCreated,
		},
		{
			name: "questions: update other subject", method: http.MethodPut, path: "/api/questions/1", body: []byte(`{"option1": "one"}`),
			token: getToken(t, env.createUser(t, "Other", "other@test.cd", user.RoleTeacher)), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "questions: unknown", method: http.MethodDelete, path: "/api/questions/404",
			token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "question not found"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/api/chapters", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var chapters []catalog.Chapter
	unmarshal(t, rec, &chapters)
	require.Len(t, chapters, 2)
	for _, ch := range chapters {
		assert.Equal(t, maths.Subject.ID, ch.SubjectID)
	}

	// questions keep their correct option for staff
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/questions?quiz_id=%d", maths.Quiz.ID), token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var questions []catalog.Question
	unmarshal(t, rec, &questions)
	require.Len(t, questions, 1)
	assert.Equal(t, "option2", questions[0].CorrectOption)

	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/api/questions/%d", questions[0].ID), token, []byte(`{"correct_option": "option3"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q catalog.Question
	unmarshal(t, rec, &q)
	assert.Equal(t, "option3", q.CorrectOption)
	assert.Equal(t, "1+1", q.Statement)
}

func Test_catalogApi_search(t *testing.T) {
	env := setup(t)
	env.createCatalog(t, "Maths")
	env.createCatalog(t, "Physics")
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)

	req, rec := newAuthRequest(http.MethodGet, "/api/search?q=math", getToken(t, student))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	var res catalog.SearchResult
	unmarshal(t, rec, &res)
	require.Len(t, res.Subjects, 1)
	assert.Equal(t, "Maths", res.Subjects[0].Name)
	require.Len(t, res.Chapters, 1)
	require.Len(t, res.Quizzes, 1)
}
