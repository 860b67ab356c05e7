package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/logging"
)

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := logging.NewLogger(config.LogConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	logger.Info("console logger works")
	_ = logger.Sync()
}

func TestNewLogger_FileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLogger(config.LogConfig{
		Level:              "debug",
		Format:             "json",
		FileLoggingEnabled: true,
		Directory:          dir,
		Filename:           "app.log",
		MaxSize:            1,
		MaxBackups:         1,
		MaxAge:             1,
	})
	require.NoError(t, err)

	logger.Info("hello from the file core")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from the file core")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := logging.NewLogger(config.LogConfig{Level: "shouting", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewLogger_NoOutputsConfigured(t *testing.T) {
	_, err := logging.NewLogger(config.LogConfig{Level: "info", Format: "json"})
	require.Error(t, err)
}
