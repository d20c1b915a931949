package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")

	logger, closer, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	logger.WithField("command", "estado").Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "command=estado")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	logger, closer, err := New(Config{Level: "loud"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
