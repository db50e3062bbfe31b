package log_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	appLog "coursecal/internal/log"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() {
		appLog.SetOutput(os.Stderr)
		appLog.SetLevel(appLog.LevelInfo)
	})

	appLog.SetLevel(appLog.LevelWarn)
	appLog.Info("hidden")
	appLog.Warn("shown", "key", "value")
	appLog.Error("failed", errors.New("boom"), "id", 7, "dangling")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown key=value")
	assert.Contains(t, out, "err=boom id=7")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, appLog.LevelDebug, appLog.ParseLevel("debug"))
	assert.Equal(t, appLog.LevelWarn, appLog.ParseLevel(" Warn "))
	assert.Equal(t, appLog.LevelError, appLog.ParseLevel("ERROR"))
	assert.Equal(t, appLog.LevelInfo, appLog.ParseLevel("verbose"))
}
