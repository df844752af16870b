package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/studylab/core/user"
)

func newObservedLogger() (*RollbarLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &RollbarLogger{zap: zap.New(core).Sugar()}, logs
}

func TestRollbarLogger_Fields(t *testing.T) {
	l, logs := newObservedLogger()
	err := errors.New("boom")

	l.Warn("log_activity failed", err, map[string]interface{}{"enrollmentId": "e1"}, user.User{ID: "u1"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "log_activity failed", entries[0].Message)
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "e1", ctx["enrollmentId"])
		assert.Equal(t, "u1", ctx["userId"])
	}
}

func TestRollbarLogger_OnlyOneUser(t *testing.T) {
	l, _ := newObservedLogger()
	rbArgs, kvs := l.prepare("msg", []interface{}{user.User{ID: "u1"}, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg"}, rbArgs)
	assert.Equal(t, []interface{}{"userId", "u1"}, kvs)
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Info("hello", map[string]interface{}{"k": "v"})
		l.Error("oops", errors.New("x"))
		l.Sync()
	})
}
