package log

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf)
	h.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }

	logger := &log.Logger{Handler: h, Level: log.DebugLevel}
	logger.WithFields(log.Fields{"user": "u1", "key": "user_avatar:u1"}).
		WithError(errors.New("denied")).
		Warn("warm attempt failed")

	assert.Equal(t,
		"2024-03-01 12:30:00 W warm attempt failed error=denied key=user_avatar:u1 user=u1\n",
		buf.String())
}

func TestInitLoggerLevel(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	InitLogger()
	assert.Equal(t, log.DebugLevel, log.Log.(*log.Logger).Level)

	t.Setenv(EnvLevel, "")
	InitLogger()
	assert.Equal(t, log.ErrorLevel, log.Log.(*log.Logger).Level)

	t.Setenv(EnvLevel, "chatty")
	InitLogger()
	assert.Equal(t, log.ErrorLevel, log.Log.(*log.Logger).Level)
}
