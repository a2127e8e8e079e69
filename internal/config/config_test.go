package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/internal/config"
)

// clearEnv blanks the variables these tests depend on so the host
// environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "CARDSYNC_SERVER_PORT",
		"CARDSYNC_LLM_API_KEY", "OPENAI_API_KEY",
		"CARDSYNC_AIRTABLE_API_KEY", "AIRTABLE_API_KEY",
		"CARDSYNC_AIRTABLE_BASE_ID", "AIRTABLE_BASE_ID",
		"CARDSYNC_AIRTABLE_TABLE_NAME", "AIRTABLE_TABLE_NAME",
		"CARDSYNC_AIRTABLE_BATCH_SIZE", "CARDSYNC_AIRTABLE_PAGE_SIZE",
		"CARDSYNC_EMAIL_RECIPIENTS", "CARDSYNC_EXTRACTION_STRATEGY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 300*time.Second, cfg.Server.WriteTimeout)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "ocr", cfg.Extraction.Strategy)
	assert.True(t, cfg.Extraction.Preprocess)
	assert.Equal(t, "https://api.airtable.com/v0", cfg.Airtable.BaseURL)
	assert.Equal(t, 10, cfg.Airtable.BatchSize)
	assert.Equal(t, 100, cfg.Airtable.PageSize)
	assert.False(t, cfg.Airtable.Configured())
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Empty(t, cfg.Email.Recipients)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_LegacyEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("AIRTABLE_API_KEY", "pat-legacy")
	t.Setenv("AIRTABLE_BASE_ID", "appXYZ")
	t.Setenv("AIRTABLE_TABLE_NAME", "Contacts")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "sk-legacy", cfg.LLM.APIKey)
	assert.Equal(t, "pat-legacy", cfg.Airtable.APIKey)
	assert.Equal(t, "appXYZ", cfg.Airtable.BaseID)
	assert.Equal(t, "Contacts", cfg.Airtable.TableName)
	assert.True(t, cfg.Airtable.Configured())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("CARDSYNC_LLM_API_KEY", "sk-new")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "sk-new", cfg.LLM.APIKey)
}

func TestLoad_PlatformPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Port)
}

func TestLoad_Recipients(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARDSYNC_EMAIL_RECIPIENTS", " ops@example.com, ,sales@example.com ")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com", "sales@example.com"}, cfg.Email.Recipients)
}

func TestLoad_BatchSizeBounds(t *testing.T) {
	for _, v := range []string{"0", "11"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CARDSYNC_AIRTABLE_BATCH_SIZE", v)

			_, err := config.Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "airtable.batch_size")
		})
	}
}

func TestLoad_PageSizeBounds(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARDSYNC_AIRTABLE_PAGE_SIZE", "500")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "airtable.page_size")
}

func TestDBConfig_DSN(t *testing.T) {
	d := config.DBConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
