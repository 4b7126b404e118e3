package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := migrateLogger{zap.New(core)}

	assert.True(t, l.Verbose())
	l.Printf("Start buffering %d/u %s\n", 2, "create_pending_payments")
	if assert.Equal(t, 1, logs.Len()) {
		assert.Equal(t, "Start buffering 2/u create_pending_payments", logs.All()[0].Message)
	}

	quiet, _ := observer.New(zapcore.InfoLevel)
	assert.False(t, migrateLogger{zap.New(quiet)}.Verbose())
}
