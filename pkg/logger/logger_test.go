package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("anchor", "test")
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Info("hidden %d", 1)
	l.Warn("shown %s", "warning")
	l.Error("failed: %v", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warning")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "anchor")
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("anchor", "test")
	l.SetOutput(&buf)

	l.WithFields(map[string]string{"b": "2", "a": "1"}).Info("connected")

	assert.Contains(t, buf.String(), "connected a=1 b=2")
}

func TestLogger_WithFieldsSharesOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("anchor", "test")
	child := l.WithFields(map[string]string{"connection_id": "main"})
	l.SetOutput(&buf)
	l.SetLevel(LevelError)

	child.Warn("dropped")
	child.WithFields(map[string]string{"op": "scan"}).Error("failed")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "failed connection_id=main op=scan")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
	assert.Equal(t, "UNKNOWN", Level(9).String())
}

func TestFormatServiceName(t *testing.T) {
	assert.Len(t, formatServiceName("anchor"), ServiceNameWidth)
	assert.Equal(t, "averyveryverylongse…", formatServiceName("averyveryverylongservicename"))
}
