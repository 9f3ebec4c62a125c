package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "production")

	logger.Debug("hidden")
	logger.Info("user signed up", "user_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "user signed up", entry["msg"])
	assert.Equal(t, "abc", entry["user_id"])
	assert.Equal(t, "evently", entry["service"])
	assert.Equal(t, "production", entry["env"])
}

func TestNewLoggerTo_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "development")

	logger.Debug("query")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=query")
}

func TestNewLoggerTo_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "production")

	logger.Info("otp sent", "phone", "+2348011112222", "otp", "123456", "Token", "abcdef")

	out := buf.String()
	assert.NotContains(t, out, "123456")
	assert.NotContains(t, out, "abcdef")
	assert.Contains(t, out, "+2348011112222")
	assert.Contains(t, out, redacted)
}
