package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/user"
	emailsvc "github.com/trezcool/quizhub/services/email"
	"github.com/trezcool/quizhub/services/filestore"
	"github.com/trezcool/quizhub/services/queue"
	"github.com/trezcool/quizhub/services/realtime"
	dummydb "github.com/trezcool/quizhub/storage/database/dummy"
	testutil "github.com/trezcool/quizhub/tests"
)

const (
	testPassword   = "pwd"
	strongPassword = "Kin$hasa2024"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testEnv struct {
	app    Server
	conf   *core.Config
	repos  di.Repos
	svcs   *di.Services
	jobs   *queue.BoltStore
	hub    *realtime.Hub
	logger *testutil.Logger
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := core.NewTestConfig(t.TempDir())
	logger := new(testutil.Logger)

	db, err := dummydb.Open()
	require.NoError(t, err)
	repos := di.DummyRepos(db)

	jobs, err := queue.OpenBoltStore(conf.Queue.BoltPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Close() })

	files, err := filestore.NewLocalStore(conf.Storage.UploadDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	validate, translator := di.NewValidator()
	svcs := di.NewServices(repos, di.Deps{
		Conf:      conf,
		Logger:    logger,
		Mail:      emailsvc.NewConsoleServiceMock(conf, logger),
		Files:     files,
		Jobs:      jobs,
		Publisher: hub,
	})

	app := NewServer(&Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Services:       svcs,
		Hub:            hub,
		DisableReqLogs: true,
	})
	return &testEnv{app: app, conf: conf, repos: repos, svcs: svcs, jobs: jobs, hub: hub, logger: logger}
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
}

func (env *testEnv) createUser(t *testing.T, name, email, role string, isActive ...bool) user.User {
	active := true
	if len(isActive) > 0 {
		active = isActive[0]
	}
	return testutil.CreateUser(t, env.repos.Users, name, email, testPassword, role, active)
}

func (env *testEnv) createCatalog(t *testing.T, name string, questions ...catalog.Question) testutil.Catalog {
	return testutil.CreateCatalog(t, env.repos.Catalog, name, questions...)
}

// enroll puts a student in the catalog's branch and subject.
func (env *testEnv) enroll(t *testing.T, student user.User, c testutil.Catalog) user.User {
	ctx := context.Background()
	usr, err := env.svcs.Users.SelectBranch(ctx, student.ID, c.Branch.ID)
	require.NoError(t, err)
	_, err = env.svcs.Enrollments.Enroll(ctx, student.ID, c.Subject.ID)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) assign(t *testing.T, teacher user.User, c testutil.Catalog) {
	require.NoError(t, env.svcs.Catalog.Assign(context.Background(), teacher.ID, c.Subject.ID))
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newFormRequest posts a url-encoded form, authenticated by the session cookie when token is set.
func newFormRequest(path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}
	return req, httptest.NewRecorder()
}

func newPageRequest(path, token string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
