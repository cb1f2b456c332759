package echoapi_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/user"
)

func Test_discussionApi(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	teacher := env.createUser(t, "Tom", "tom@test.cd", user.RoleTeacher)
	env.assign(t, teacher, maths)
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	outsider := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	token := getToken(t, student)

	path := fmt.Sprintf("/api/discussions/%d", maths.Subject.ID)
	runHttpTests(t, env, []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list: not enrolled", path: path, token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "post: not enrolled", method: http.MethodPost, path: path, body: []byte(`{"message": "hi"}`),
			token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "post: empty message", method: http.MethodPost, path: path, body: []byte(`{"message": "   "}`),
			token: token, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"message": "this field is required"}),
		},
		{name: "list: empty", path: path, token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	post := func(token, text string) discussion.Message {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, discussion.NewMessage{Message: text}))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m discussion.Message
		unmarshal(t, rec, &m)
		return m
	}

	question := post(token, " Is chapter 2 in the quiz? ")
	assert.Equal(t, "Is chapter 2 in the quiz?", question.Message)
	assert.Equal(t, "Jane", question.UserName)
	assert.Equal(t, user.RoleStudent, question.UserRole)
	answer := post(getToken(t, teacher), "Yes it is.")
	assert.Equal(t, user.RoleTeacher, answer.UserRole)

	req, rec := newAuthRequest(http.MethodGet, path, token)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []discussion.Message
	unmarshal(t, rec, &messages)
	require.Len(t, messages, 2)
	assert.Equal(t, question.ID, messages[0].ID, "oldest first")
	assert.Equal(t, answer.ID, messages[1].ID)

	editPath := fmt.Sprintf("/api/discussions/%d/edit", question.ID)
	deletePath := fmt.Sprintf("/api/discussions/%d/delete", answer.ID)
	runHttpTests(t, env, []httpTest{
		{
			name: "edit: not the author", method: http.MethodPut, path: editPath, body: []byte(`{"message": "hijacked"}`),
			token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "edit: unknown", method: http.MethodPut, path: "/api/discussions/404/edit", body: []byte(`{"message": "x"}`),
			token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "message not found"}),
		},
		{name: "delete: not the author", method: http.MethodDelete, path: deletePath, token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "delete", method: http.MethodDelete, path: deletePath, token: getToken(t, teacher), wantCode: http.StatusNoContent},
	})

	req, rec = newAuthRequest(http.MethodPut, editPath, token, []byte(`{"message": "Is chapter 3 in the quiz?"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited discussion.Message
	unmarshal(t, rec, &edited)
	assert.Equal(t, "Is chapter 3 in the quiz?", edited.Message)
	assert.False(t, edited.UpdatedAt.Before(edited.CreatedAt))
}

func Test_discussionApi_websocket(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	outsider := env.createUser(t, "Joe", "joe@test.cd", user.RoleStudent)
	token := getToken(t, student)

	srv := httptest.NewServer(env.app)
	t.Cleanup(srv.Close)
	wsURL := func(token string) string {
		return fmt.Sprintf("ws%s/api/discussions/%d/ws?token=%s", strings.TrimPrefix(srv.URL, "http"), maths.Subject.ID, token)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(getToken(t, outsider)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return env.hub.Subscribers(maths.Subject.ID) == 1 }, time.Second, 10*time.Millisecond)

	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/api/discussions/%d", maths.Subject.ID), token, []byte(`{"message": "hello"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev discussion.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, discussion.EventCreated, ev.Type)
	assert.Equal(t, "hello", ev.Message.Message)
	assert.Equal(t, "Jane", ev.Message.UserName)
}

func Test_discussionApi_wsTokenNotLogged(t *testing.T) {
	env := setup(t)
	maths := env.createCatalog(t, "Maths")
	student := env.enroll(t, env.createUser(t, "Jane", "jane@test.cd", user.RoleStudent), maths)
	token := getToken(t, student)

	var logs bytes.Buffer
	validate, translator := di.NewValidator()
	app := NewServer(&Options{
		Conf:         env.conf,
		Logger:       env.logger,
		Validate:     validate,
		Translator:   translator,
		Services:     env.svcs,
		Hub:          env.hub,
		ReqLogOutput: &logs,
	})

	path := fmt.Sprintf("/api/discussions/%d/ws", maths.Subject.ID)
	req := httptest.NewRequest(http.MethodGet, path+"?token="+token+"&since=1", nil)
	app.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, logs.String(), token)
	assert.Contains(t, logs.String(), fmt.Sprintf(`"uri":"%s?since=1"`, path))
}
