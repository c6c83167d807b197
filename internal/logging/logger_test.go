package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags, w := log.Flags(), log.Writer()
	log.SetFlags(0)
	log.SetOutput(&buf)
	now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		log.SetFlags(flags)
		log.SetOutput(w)
		now = time.Now
	})
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m))
	return m
}

func TestInfoWritesJSONLine(t *testing.T) {
	buf := capture(t)
	Info("combat started", Fields{"player": "p1"})
	m := decode(t, buf)
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "combat started", m["msg"])
	assert.Equal(t, "p1", m["player"])
	assert.Equal(t, "2026-03-01T12:00:00Z", m["ts"])
}

func TestErrorAddsErrorText(t *testing.T) {
	buf := capture(t)
	fields := Fields{"session_id": "s1"}
	Error("persist failed", errors.New("disk full"), fields)
	m := decode(t, buf)
	assert.Equal(t, "error", m["level"])
	assert.Equal(t, "disk full", m["error"])
	assert.NotContains(t, fields, "error", "caller's fields are not mutated")
}

func TestWarnWithNilFields(t *testing.T) {
	buf := capture(t)
	Warn("slow client", nil)
	assert.Equal(t, "warn", decode(t, buf)["level"])
}
