package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "COACH_BACKEND_URL", "COACH_REQUEST_TIMEOUT", "COACH_LOCALE",
		"COACH_PREFERRED_VOICE", "COACH_FRAME_BUFFER", "COACH_ROLES_FILE",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED",
		"SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN", "SPEECH_API_KEY", "ARK_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Coach.BackendURL)
	assert.Zero(t, cfg.Coach.RequestTimeout)
	assert.Equal(t, "en-US", cfg.Coach.Locale)
	assert.Equal(t, 32, cfg.Coach.FrameBuffer)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, "en-US", cfg.Speech.ASRLanguage)
}

func TestLoadCoachOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("COACH_BACKEND_URL", "http://coach.local:8000/")
	t.Setenv("COACH_REQUEST_TIMEOUT", "15")
	t.Setenv("COACH_FRAME_BUFFER", "8")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "http://coach.local:8000", cfg.Coach.BackendURL)
	assert.Equal(t, 15*time.Second, cfg.Coach.RequestTimeout)
	assert.Equal(t, 8, cfg.Coach.FrameBuffer)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"COACH_REQUEST_TIMEOUT": "soon",
		"COACH_FRAME_BUFFER":    "0",
		"METRICS_ENABLED":       "maybe",
		"ARK_TEMPERATURE":       "hot",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}

	t.Run("PORT", func(t *testing.T) {
		t.Setenv("PORT", "80 80")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestSpeechConfigModel(t *testing.T) {
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "token")
	t.Setenv("SPEECH_ASR_CONCURRENT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Speech.Enabled)

	m := cfg.Speech.Model()
	assert.Equal(t, "app", m.AppID)
	assert.Equal(t, "token", m.AccessToken)
	assert.True(t, m.ConcurrentMode)
	assert.Equal(t, 30, m.Timeout)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{}.Enabled())
	assert.True(t, AIConfig{Model: "doubao", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "doubao", AccessKey: "ak", SecretKey: "sk"}.Enabled())
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
}
