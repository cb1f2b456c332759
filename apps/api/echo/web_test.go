package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/core/user"
)

func findSessionCookie(rec interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func Test_web_login(t *testing.T) {
	env := setup(t)
	env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)

	req, rec := newPageRequest("/login", "")
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/login"`)

	// already logged in
	req, rec = newPageRequest("/login", getToken(t, admin))
	env.serve(req, rec)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	req, rec = newFormRequest("/login", "", url.Values{"email": {"jane@test.cd"}, "password": {"nope"}})
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.ErrAuthenticationFailed.Error())
	assert.Contains(t, rec.Body.String(), `value="jane@test.cd"`)
	assert.Nil(t, findSessionCookie(rec))

	// students without a branch pick one first
	req, rec = newFormRequest("/login", "", url.Values{"email": {"jane@test.cd"}, "password": {testPassword}})
	env.serve(req, rec)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/user/branch", rec.Header().Get("Location"))
	cookie := findSessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// the session opens the api too
	req, rec = newAuthRequest(http.MethodGet, "/api/profile", cookie.Value)
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newPageRequest("/logout", cookie.Value)
	env.serve(req, rec)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := findSessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func Test_web_register(t *testing.T) {
	env := setup(t)
	c := env.createCatalog(t, "Maths")

	req, rec := newPageRequest("/register", "")
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`<option value="%d">Maths branch</option>`, c.Branch.ID))

	form := url.Values{
		"email":            {"Jane@Test.cd"},
		"password":         {strongPassword},
		"password_confirm": {strongPassword},
		"full_name":        {""},
	}
	req, rec = newFormRequest("/register", "", form)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, "re-rendered with errors")
	assert.Contains(t, rec.Body.String(), "this field is required")
	assert.Contains(t, rec.Body.String(), `value="jane@test.cd"`)
	assert.NotContains(t, rec.Body.String(), strongPassword)

	form.Set("full_name", "Jane Doe")
	form.Set("branch_id", strconv.Itoa(c.Branch.ID))
	req, rec = newFormRequest("/register", "", form)
	env.serve(req, rec)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Location"), "/login?msg=")

	usr, err := env.svcs.Users.GetByEmail(context.Background(), "jane@test.cd")
	require.NoError(t, err)
	assert.Equal(t, c.Branch.ID, usr.BranchID.Int)
}

func Test_web_roles(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)

	tests := []struct {
		name, path, token, wantLocation string
	}{
		{"no session", "/admin", "", "/login"},
		{"bad session", "/teacher", "not-a-jwt", "/login"},
		{"student on admin pages", "/admin", getToken(t, student), "/user"},
		{"admin on student pages", "/user/courses", getToken(t, admin), "/admin"},
		{"student on teacher pages", "/teacher/students", getToken(t, student), "/user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newPageRequest(tt.path, tt.token)
			env.serve(req, rec)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}

	// sessions of deleted accounts are dropped
	for _, path := range []string{"/admin", "/teacher", "/user"} {
		role := map[string]string{"/admin": user.RoleAdmin, "/teacher": user.RoleTeacher, "/user": user.RoleStudent}[path]
		req, rec := newPageRequest(path, getToken(t, user.User{ID: 404, Email: "gone@test.cd", Role: role}))
		env.serve(req, rec)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
		cleared := findSessionCookie(rec)
		require.NotNil(t, cleared, path)
		assert.Empty(t, cleared.Value, path)
	}

	for path, token := range map[string]string{
		"/admin":   getToken(t, admin),
		"/teacher": getToken(t, teacher),
		"/user":    getToken(t, student),
	} {
		req, rec := newPageRequest(path, token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func Test_web_admin(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	token := getToken(t, admin)

	req, rec := newFormRequest("/admin/branches", token, url.Values{"name": {"Arts"}, "short_name": {"ART"}})
	env.serve(req, rec)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin?msg="+url.QueryEscape("Branch Arts created"), rec.Header().Get("Location"))

	// invalid forms come back as a message
	req, rec = newFormRequest("/admin/branches", token, url.Values{"short_name": {"X"}})
	env.serve(req, rec)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/admin?msg=")

	req, rec = newPageRequest("/admin", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Arts")
}

func Test_web_studentQuiz(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths", questionSum, questionCapital)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	outsider := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	token := getToken(t, student)
	quizPath := fmt.Sprintf("/user/quizzes/%d", maths.Quiz.ID)

	req, rec := newPageRequest(quizPath, token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Capital of France")

	questions, err := env.svcs.Catalog.QuizQuestions(context.Background(), maths.Quiz.ID)
	require.NoError(t, err)
	req, rec = newFormRequest(quizPath, token, url.Values{
		fmt.Sprintf("question_%d", questions[0].ID): {"option2"},
		fmt.Sprintf("question_%d", questions[1].ID): {"option3"},
	})
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "2 / 2")
	assert.Contains(t, rec.Body.String(), "100.0%")

	// the dashboard reflects the attempt
	req, rec = newPageRequest("/user", token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maths")

	// failures land on the home page with a message
	req, rec = newPageRequest(quizPath, getToken(t, outsider))
	env.serve(req, rec)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/user?msg="+url.QueryEscape("permission denied"), rec.Header().Get("Location"))
}
