package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/config"
)

func TestConfigureJSON(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	require.NoError(t, Configure(logger, &buf, config.LogConfig{Level: "debug", Format: "json"}))
	logger.WithField("session", "abc").Debug("frame dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["session"])
	assert.Equal(t, "frame dropped", entry["msg"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestConfigureDefaultsAndErrors(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	require.NoError(t, Configure(logger, &buf, config.LogConfig{}))
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	assert.Error(t, Configure(logger, &buf, config.LogConfig{Level: "loud"}))
	assert.Error(t, Configure(logger, &buf, config.LogConfig{Format: "xml"}))
}
