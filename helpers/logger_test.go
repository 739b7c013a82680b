package helpers

import (
	"bytes"
	"errors"
	"testing"

	"sjsage522/marketsearch/logger"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")

	var buf bytes.Buffer
	logger.InitWithWriter(&buf)

	l := NewLogger("worker")

	// Log an error
	l.LogError("saopaulo:iphone", errors.New("test error"))

	out := buf.String()
	assert.Contains(t, out, "saopaulo:iphone")
	assert.Contains(t, out, "test error")
	assert.Contains(t, out, "worker")

	// Log an info message
	l.LogInfo("Test info message: %s", "hello")
	assert.Contains(t, buf.String(), "Test info message: hello")
}
