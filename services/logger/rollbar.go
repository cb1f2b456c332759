package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

// RollbarLogger writes through zap and forwards every entry to rollbar.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes zap and waits for rollbar's queue to drain.
func (l *RollbarLogger) Sync() {
	_ = l.zl.Sync()
	rollbar.Wait()
}

// expected fmt: msg | error, map[string]interface{}, user.User, core.Person
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var usrSet bool
	setPerson := func(id, name, email string) {
		if !usrSet { // only set one person
			rollbar.SetPerson(id, name, email)
			usrSet = true
		}
	}

	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			setPerson(fmt.Sprint(a.ID), a.FullName, a.Email)
			fields = append(fields, zap.Int("user_id", a.ID))
		case core.Person:
			setPerson(a.ID, "", a.Email)
			fields = append(fields, zap.String("user_id", a.ID))
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Any("extras", a))
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Any("arg", a))
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debug(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Info(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warn(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Error(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zl.Fatal(msg, fields...)
}
