package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("pawnd", "test", WithWriter(&buf), WithLevel("debug"))
	logger.Debug("hello", "loan", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	require.Equal(t, "DEBUG", record["severity"])
	require.Equal(t, "hello", record["message"])
	require.Equal(t, "pawnd", record["service"])
	require.Equal(t, "test", record["env"])
	require.Equal(t, "abc", record["loan"])
	require.Contains(t, record, "timestamp")
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("pawnd", "", WithWriter(&buf), WithLevel("warn"))
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.Contains(t, buf.String(), "kept")
	require.NotContains(t, buf.String(), `"env"`)
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pawnd.log")
	var buf bytes.Buffer
	logger := Setup("pawnd", "test", WithWriter(&buf), WithFile(path, 1, 2))
	logger.Info("persisted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "persisted"))
	require.Contains(t, buf.String(), "persisted")
}

func TestMaskField(t *testing.T) {
	attr := MaskField("faucet_token", "s3cret")
	require.Equal(t, "faucet_token", attr.Key)
	require.Equal(t, RedactedValue, attr.Value.String())
	require.Equal(t, "  ", MaskField("otlp_headers", "  ").Value.String())
	require.Equal(t, "", MaskField("faucet_token", "").Value.String())
}
