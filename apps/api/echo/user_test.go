package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/core/user"
)

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	c := env.createCatalog(t, "Maths")
	env.createUser(t, "Taken", "taken@test.cd", user.RoleStudent)

	body := func(email, pwd, confirm string, branchID interface{}) []byte {
		return marchallObj(t, map[string]interface{}{
			"email":            email,
			"password":         pwd,
			"password_confirm": confirm,
			"full_name":        "Jane Doe",
			"branch_id":        branchID,
		})
	}

	runHttpTests(t, env, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/api/register", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":            "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
				"full_name":        "this field is required",
			}),
		},
		{
			name: "passwords mismatch", method: http.MethodPost, path: "/api/register", body: body("jane@test.cd", strongPassword, "Other$ecret9", nil),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/api/register", body: body("TAKEN@test.cd", strongPassword, strongPassword, nil),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "unknown branch", method: http.MethodPost, path: "/api/register", body: body("jane@test.cd", strongPassword, strongPassword, 404),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"branch_id": "unknown branch"}),
		},
	})

	req, rec := newRequest(http.MethodPost, "/api/register", body("Jane@Test.cd", strongPassword, strongPassword, c.Branch.ID))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, "jane@test.cd", usr.Email)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.IsActive)
	assert.Equal(t, c.Branch.ID, usr.BranchID.Int)
	assert.NotContains(t, rec.Body.String(), "password")
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	env.createUser(t, "Gone", "gone@test.cd", user.RoleStudent, false)

	login := func(email, pwd string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: pwd})
	}
	runHttpTests(t, env, []httpTest{
		{
			name: "missing credentials", method: http.MethodPost, path: "/api/login", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/login", body: login("who@test.cd", testPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrAuthenticationFailed.Error()}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/login", body: login("jane@test.cd", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrAuthenticationFailed.Error()}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/login", body: login("gone@test.cd", testPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
	})

	req, rec := newRequest(http.MethodPost, "/api/login", login(" JANE@test.cd ", testPassword))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "jane@test.cd", resp.User.Email)
	assert.True(t, resp.User.LastLogin.Valid)

	// the token opens the profile
	req, rec = newAuthRequest(http.MethodGet, "/api/profile", resp.Token)
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_profile(t *testing.T) {
	env := setup(t)
	c := env.createCatalog(t, "Physics")
	student := env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent)
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	token := getToken(t, student)

	runHttpTests(t, env, []httpTest{
		{name: "auth required", path: "/api/profile", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "profile", path: "/api/profile", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{
			name: "bad dob", method: http.MethodPut, path: "/api/profile", token: token, body: []byte(`{"dob": "31/12/2000"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"dob": "must be a date formatted as YYYY-MM-DD"}),
		},
		{
			name: "branch: students only", method: http.MethodPost, path: "/api/profile/branch", token: getToken(t, teacher),
			body: marchallObj(t, SelectBranchRequest{BranchID: c.Branch.ID}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "branch: unknown", method: http.MethodPost, path: "/api/profile/branch", token: token,
			body: marchallObj(t, SelectBranchRequest{BranchID: 404}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"branch_id": "unknown branch"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPut, "/api/profile", token, []byte(`{"full_name": " Jane Doe ", "address": "Kinshasa"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, "Jane Doe", usr.FullName)
	assert.Equal(t, "Kinshasa", usr.Address)

	req, rec = newAuthRequest(http.MethodPost, "/api/profile/branch", token, marchallObj(t, SelectBranchRequest{BranchID: c.Branch.ID}))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &usr)
	assert.Equal(t, c.Branch.ID, usr.BranchID.Int)
}

func Test_userApi_deletedUserToken(t *testing.T) {
	env := setup(t)
	ghost := user.User{ID: 999, Role: user.RoleStudent}

	runHttpTests(t, env, []httpTest{
		{
			name: "unknown user", path: "/api/profile", token: getToken(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	})
}
