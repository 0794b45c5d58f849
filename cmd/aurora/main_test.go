package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"aurora/pkg/config"
	"aurora/pkg/pixel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "extension", "rainbow")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"extension":"rainbow"`)

	buf.Reset()
	logger = newLogger("bogus", "text", &buf)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "/etc/aurora.yaml", "-log-level", "debug"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/etc/aurora.yaml", opts.configFile)
	assert.Equal(t, "debug", opts.logLevel)
	assert.Empty(t, opts.logFormat)

	_, err = parseFlags([]string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestOpenDriver(t *testing.T) {
	driver, err := openDriver(config.Settings{Output: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &pixel.MemoryDriver{}, driver)

	_, err = openDriver(config.Settings{Output: "device"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "strip")
	driver, err = openDriver(config.Settings{Output: "device", DevicePath: path})
	require.NoError(t, err)
	require.NoError(t, driver.Write([]byte{1, 2, 3}))
	require.NoError(t, driver.Close())
}
