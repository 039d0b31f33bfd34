package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatLine(t *testing.T) {
	ts := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	line := formatLine(ts, LevelWarn, "event skipped", "id", "abc", "day", 2, "dangling")
	assert.Equal(t, "2025-06-07T10:00:00Z [WARN] event skipped id=abc day=2", line)

	line = formatLine(ts, LevelError, "failed", "err", errors.New("boom"))
	assert.Equal(t, "2025-06-07T10:00:00Z [ERROR] failed err=boom", line)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warn "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestEnabled(t *testing.T) {
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	assert.False(t, enabled(LevelDebug))
	assert.False(t, enabled(LevelInfo))
	assert.True(t, enabled(LevelWarn))
	assert.True(t, enabled(LevelError))
}
