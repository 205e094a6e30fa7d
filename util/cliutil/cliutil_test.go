package cliutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	db, err := SetupDatabase("sqlite://:memory:", 10, nil)
	require.NoError(t, err)
	var one int
	assert.NoError(db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(1, one)

	_, err = SetupDatabase("mysql://localhost/db", 10, nil)
	assert.Error(err)
}

func TestSetupSlog(t *testing.T) {
	assert := assert.New(t)
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, err := SetupSlog(&buf, LogOptions{LogLevel: "warn", LogFormat: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), `"msg":"shown"`)

	_, err = SetupSlog(&buf, LogOptions{LogLevel: "loud"})
	assert.Error(err)
	_, err = SetupSlog(&buf, LogOptions{LogFormat: "xml"})
	assert.Error(err)

	lvl, err := ParseLogLevel("DEBUG")
	assert.NoError(err)
	assert.Equal(slog.LevelDebug, lvl)
}
