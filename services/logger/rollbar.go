package logsvc

import (
	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/user"
)

// RollbarLogger writes structured logs with zap and reports them to Rollbar when a token is configured.
type RollbarLogger struct {
	zap       *zap.SugaredLogger
	reporting bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(conf *core.Config) (*RollbarLogger, error) {
	zcfg := zap.NewProductionConfig()
	if conf.Debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	zl, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}

	l := &RollbarLogger{zap: zl.Sugar(), reporting: conf.RollbarToken != ""}
	if l.reporting {
		rollbar.SetToken(conf.RollbarToken)
		rollbar.SetEnvironment(conf.Env)
		rollbar.SetServerHost(conf.Server.Host)
		rollbar.SetCodeVersion(conf.Build)
		rollbar.SetStackTracer(rollbarerrors.StackTracer)
	}
	return l, nil
}

// NewNopLogger discards everything; used by tests & tooling.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zap: zap.NewNop().Sugar()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.reporting = enabled
	rollbar.SetEnabled(enabled)
}

// Sync flushes buffered logs and pending Rollbar reports.
func (l *RollbarLogger) Sync() {
	_ = l.zap.Sync()
	if l.reporting {
		rollbar.Wait()
	}
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, kvs []interface{}) {
	var usrSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				if l.reporting {
					rollbar.SetPerson(a.ID, a.Name, a.Email)
				}
				kvs = append(kvs, "userId", a.ID)
				usrSet = true
			}
			continue
		case error:
			kvs = append(kvs, "error", a)
		case map[string]interface{}:
			for k, v := range a {
				kvs = append(kvs, k, v)
			}
		default:
			kvs = append(kvs, "arg", a)
		}
		rbArgs = append(rbArgs, arg)
	}
	if !usrSet && l.reporting {
		rollbar.ClearPerson()
	}
	return rbArgs, kvs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.reporting {
		rollbar.Debug(rbArgs...)
	}
	l.zap.Debugw(msg, kvs...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.reporting {
		rollbar.Info(rbArgs...)
	}
	l.zap.Infow(msg, kvs...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.reporting {
		rollbar.Warning(rbArgs...)
	}
	l.zap.Warnw(msg, kvs...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.reporting {
		rollbar.Error(rbArgs...)
	}
	l.zap.Errorw(msg, kvs...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.reporting {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.zap.Fatalw(msg, kvs...)
}
