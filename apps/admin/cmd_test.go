package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/user"
	emailsvc "github.com/trezcool/quizhub/services/email"
	"github.com/trezcool/quizhub/services/filestore"
	"github.com/trezcool/quizhub/services/queue"
	dummydb "github.com/trezcool/quizhub/storage/database/dummy"
	testutil "github.com/trezcool/quizhub/tests"
)

type testEnv struct {
	cli   *commandLine
	out   *bytes.Buffer
	repos di.Repos
	jobs  *queue.BoltStore
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

	out := new(bytes.Buffer)
	cli := &commandLine{
		svcs: di.NewServices(repos, di.Deps{
			Conf:   conf,
			Logger: logger,
			Mail:   emailsvc.NewConsoleServiceMock(conf, logger),
			Files:  files,
			Jobs:   jobs,
		}),
		out: out,
	}
	return &testEnv{cli: cli, out: out, repos: repos, jobs: jobs}
}

// mockPassword makes the password prompt answer pwd.
func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCliTests(t *testing.T, env *testEnv, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := env.cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCliTests(t, env, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.repos.Users, "Jane", "jane@test.cd", "old-pwd", user.RoleStudent, true)

	runCliTests(t, env, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "jane@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "new-pwd", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "Jane@Test.cd"}, pwd: "new-pwd"},
	})

	refreshed, err := env.repos.Users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("new-pwd"))
	assert.Error(t, refreshed.CheckPassword("old-pwd"))
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)

	runCliTests(t, env, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no role", args: []string{"adduser", "-email", "root@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "root@test.cd", "-role", user.RoleAdmin}, wantErr: errHelp},
		{
			name: "invalid role", args: []string{"adduser", "-email", "root@test.cd", "-role", "root"}, pwd: "s3cret",
			wantErrStr: "role: invalid role",
		},
		{name: "create", args: []string{"adduser", "-email", "Root@Test.cd", "-role", user.RoleAdmin, "-name", "Root"}, pwd: "s3cret"},
		{name: "update", args: []string{"adduser", "-email", "root@test.cd", "-role", user.RoleTeacher}, pwd: "n3w-s3cret"},
	})

	usr, err := env.cli.svcs.Users.GetByEmail(context.Background(), "root@test.cd")
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, usr.Role)
	assert.Equal(t, "Root", usr.FullName, "an empty -name keeps the current one")
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("n3w-s3cret"))

	users, err := env.cli.svcs.Users.Query(context.Background(), user.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1, "updated, not duplicated")
}

func Test_commandLine_auditAnswers(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.cli.run([]string{"admin", "auditanswers"}))
	assert.Contains(t, env.out.String(), "every correct option resolves")

	c := testutil.CreateCatalog(t, env.repos.Catalog, "Maths",
		catalog.Question{Statement: "1+1", Option1: "1", Option2: "2", Option3: "3", Option4: "4", CorrectOption: "option2"},
		catalog.Question{Statement: "Capital of Italy", Option1: "Milan", Option2: "Turin", Option3: "Naples", Option4: "Genoa", CorrectOption: "Rome"},
	)

	env.out.Reset()
	require.NoError(t, env.cli.run([]string{"admin", "auditanswers"}))
	out := env.out.String()
	assert.Contains(t, out, "Capital of Italy")
	assert.Contains(t, out, `"Rome"`)
	assert.Contains(t, out, strconv.Itoa(c.Quiz.ID))
	assert.NotContains(t, out, "1+1")
	assert.Contains(t, out, "1 unresolvable question(s)")
}

func Test_commandLine_runJob(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.repos.Users, "Jane", "jane@test.cd", "pwd", user.RoleStudent, true)

	runCliTests(t, env, []cliTest{
		{name: "no kind", args: []string{"runjob"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"runjob", "-kind", "lol"}, wantErr: job.ErrUnknownKind},
		{name: "export without user", args: []string{"runjob", "-kind", job.KindExportScores}, wantErr: errUserRequired},
		{name: "export for unknown user", args: []string{"runjob", "-kind", job.KindExportScores, "-user", "404"}, wantErr: user.ErrNotFound},
	})

	enqueued := func(args ...string) job.Job {
		t.Helper()
		env.out.Reset()
		require.NoError(t, env.cli.run(append([]string{"admin", "runjob"}, args...)))
		fields := strings.Fields(env.out.String())
		require.Len(t, fields, 4, env.out.String())
		id, err := uuid.Parse(fields[2])
		require.NoError(t, err)
		j, err := env.jobs.Get(context.Background(), id)
		require.NoError(t, err)
		return j
	}

	j := enqueued("-kind", job.KindDailyReminder)
	assert.Equal(t, job.KindDailyReminder, j.Kind)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.False(t, j.RequestedBy.Valid)

	j = enqueued("-kind", job.KindExportScores, "-user", strconv.Itoa(usr.ID), "-format", "xlsx")
	assert.Equal(t, usr.ID, j.RequestedBy.Int)
	var p job.ExportPayload
	require.NoError(t, j.Decode(&p))
	assert.Equal(t, job.ExportPayload{UserID: usr.ID, Format: "xlsx"}, p)
}
