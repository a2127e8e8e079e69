package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Log        LogConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	Airtable   AirtableConfig
	S3         S3Config
	Email      EmailConfig
	Upload     UploadConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings for run history.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig holds settings for the structuring / vision model provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	TextModel   string  `mapstructure:"text_model"`
	VisionModel string  `mapstructure:"vision_model"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	MaxRetries  int     `mapstructure:"max_retries"`
	BaseURL     string  `mapstructure:"base_url"`

	// Optional secondary provider tried when the primary fails.
	FallbackProvider string `mapstructure:"fallback_provider"`
	FallbackAPIKey   string `mapstructure:"fallback_api_key"`
}

// FallbackConfig returns the config of the fallback provider, or nil when
// none is configured. Model names are left empty so the provider defaults apply.
func (c *LLMConfig) FallbackConfig() *LLMConfig {
	if c.FallbackProvider == "" || c.FallbackAPIKey == "" {
		return nil
	}
	return &LLMConfig{
		Provider:    c.FallbackProvider,
		APIKey:      c.FallbackAPIKey,
		Temperature: c.Temperature,
		TimeoutSecs: c.TimeoutSecs,
		MaxRetries:  c.MaxRetries,
	}
}

// ExtractionConfig selects the extraction strategy and tunes local OCR.
type ExtractionConfig struct {
	Strategy      string `mapstructure:"strategy"`
	TesseractPath string `mapstructure:"tesseract_path"`
	Language      string `mapstructure:"language"`
	PSM           int    `mapstructure:"psm"`
	TessdataDir   string `mapstructure:"tessdata_dir"`
	Preprocess    bool   `mapstructure:"preprocess"`
	MaxDimension  int    `mapstructure:"max_dimension"`
}

// AirtableConfig holds the remote store credentials and limits.
type AirtableConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseID      string `mapstructure:"base_id"`
	TableName   string `mapstructure:"table_name"`
	BaseURL     string `mapstructure:"base_url"`
	PageSize    int    `mapstructure:"page_size"`
	BatchSize   int    `mapstructure:"batch_size"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Configured reports whether all three store values are present.
func (a *AirtableConfig) Configured() bool {
	return a.APIKey != "" && a.BaseID != "" && a.TableName != ""
}

// S3Config holds settings for archiving run artifacts.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds run summary mail settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// UploadConfig limits image uploads.
type UploadConfig struct {
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	MaxFiles      int    `mapstructure:"max_files"`
	WorkDir       string `mapstructure:"work_dir"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the CARDSYNC_ prefix.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CARDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.environment", "development")

	// DB defaults (history is off unless enabled)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "cardsync")
	v.SetDefault("db.password", "cardsync_secret")
	v.SetDefault("db.name", "cardsync_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	// Empty model names let each provider pick its own text / vision default.
	v.SetDefault("llm.text_model", "")
	v.SetDefault("llm.vision_model", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.fallback_provider", "")
	v.SetDefault("llm.fallback_api_key", "")

	// Extraction defaults
	v.SetDefault("extraction.strategy", "ocr")
	v.SetDefault("extraction.tesseract_path", "tesseract")
	v.SetDefault("extraction.language", "eng")
	v.SetDefault("extraction.psm", 0)
	v.SetDefault("extraction.tessdata_dir", "")
	v.SetDefault("extraction.preprocess", true)
	v.SetDefault("extraction.max_dimension", 2000)

	// Airtable defaults
	v.SetDefault("airtable.api_key", "")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.table_name", "")
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.page_size", 100)
	v.SetDefault("airtable.batch_size", 10)
	v.SetDefault("airtable.timeout_secs", 30)

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "cardsync-artifacts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@cardsync.local")
	v.SetDefault("email.from_name", "cardsync")
	v.SetDefault("email.recipients", "")

	// Upload defaults
	v.SetDefault("upload.max_file_size_mb", 20)
	v.SetDefault("upload.max_files", 50)
	v.SetDefault("upload.work_dir", os.TempDir())

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys. The unprefixed
	// names are accepted as fallbacks for existing deployments.
	envBindings := map[string][]string{
		"server.port":               {"CARDSYNC_SERVER_PORT"},
		"server.read_timeout":       {"CARDSYNC_SERVER_READ_TIMEOUT"},
		"server.write_timeout":      {"CARDSYNC_SERVER_WRITE_TIMEOUT"},
		"server.environment":        {"CARDSYNC_SERVER_ENVIRONMENT"},
		"db.enabled":                {"CARDSYNC_DB_ENABLED"},
		"db.host":                   {"CARDSYNC_DB_HOST"},
		"db.port":                   {"CARDSYNC_DB_PORT"},
		"db.user":                   {"CARDSYNC_DB_USER"},
		"db.password":               {"CARDSYNC_DB_PASSWORD"},
		"db.name":                   {"CARDSYNC_DB_NAME"},
		"db.sslmode":                {"CARDSYNC_DB_SSLMODE"},
		"db.max_open":               {"CARDSYNC_DB_MAX_OPEN"},
		"db.max_idle":               {"CARDSYNC_DB_MAX_IDLE"},
		"log.level":                 {"CARDSYNC_LOG_LEVEL"},
		"log.format":                {"CARDSYNC_LOG_FORMAT"},
		"llm.provider":              {"CARDSYNC_LLM_PROVIDER"},
		"llm.api_key":               {"CARDSYNC_LLM_API_KEY", "OPENAI_API_KEY"},
		"llm.text_model":            {"CARDSYNC_LLM_TEXT_MODEL"},
		"llm.vision_model":          {"CARDSYNC_LLM_VISION_MODEL"},
		"llm.temperature":           {"CARDSYNC_LLM_TEMPERATURE"},
		"llm.timeout_secs":          {"CARDSYNC_LLM_TIMEOUT_SECS"},
		"llm.max_retries":           {"CARDSYNC_LLM_MAX_RETRIES"},
		"llm.base_url":              {"CARDSYNC_LLM_BASE_URL"},
		"llm.fallback_provider":     {"CARDSYNC_LLM_FALLBACK_PROVIDER"},
		"llm.fallback_api_key":      {"CARDSYNC_LLM_FALLBACK_API_KEY"},
		"extraction.strategy":       {"CARDSYNC_EXTRACTION_STRATEGY"},
		"extraction.tesseract_path": {"CARDSYNC_EXTRACTION_TESSERACT_PATH"},
		"extraction.language":       {"CARDSYNC_EXTRACTION_LANGUAGE"},
		"extraction.psm":            {"CARDSYNC_EXTRACTION_PSM"},
		"extraction.tessdata_dir":   {"CARDSYNC_EXTRACTION_TESSDATA_DIR"},
		"extraction.preprocess":     {"CARDSYNC_EXTRACTION_PREPROCESS"},
		"extraction.max_dimension":  {"CARDSYNC_EXTRACTION_MAX_DIMENSION"},
		"airtable.api_key":          {"CARDSYNC_AIRTABLE_API_KEY", "AIRTABLE_API_KEY"},
		"airtable.base_id":          {"CARDSYNC_AIRTABLE_BASE_ID", "AIRTABLE_BASE_ID"},
		"airtable.table_name":       {"CARDSYNC_AIRTABLE_TABLE_NAME", "AIRTABLE_TABLE_NAME"},
		"airtable.base_url":         {"CARDSYNC_AIRTABLE_BASE_URL"},
		"airtable.page_size":        {"CARDSYNC_AIRTABLE_PAGE_SIZE"},
		"airtable.batch_size":       {"CARDSYNC_AIRTABLE_BATCH_SIZE"},
		"airtable.timeout_secs":     {"CARDSYNC_AIRTABLE_TIMEOUT_SECS"},
		"s3.enabled":                {"CARDSYNC_S3_ENABLED"},
		"s3.region":                 {"CARDSYNC_S3_REGION"},
		"s3.bucket":                 {"CARDSYNC_S3_BUCKET"},
		"s3.endpoint":               {"CARDSYNC_S3_ENDPOINT"},
		"s3.access_key":             {"CARDSYNC_S3_ACCESS_KEY"},
		"s3.secret_key":             {"CARDSYNC_S3_SECRET_KEY"},
		"s3.presign_expiry":         {"CARDSYNC_S3_PRESIGN_EXPIRY"},
		"email.provider":            {"CARDSYNC_EMAIL_PROVIDER"},
		"email.region":              {"CARDSYNC_EMAIL_REGION"},
		"email.from_address":        {"CARDSYNC_EMAIL_FROM_ADDRESS"},
		"email.from_name":           {"CARDSYNC_EMAIL_FROM_NAME"},
		"email.recipients":          {"CARDSYNC_EMAIL_RECIPIENTS"},
		"upload.max_file_size_mb":   {"CARDSYNC_UPLOAD_MAX_FILE_SIZE_MB"},
		"upload.max_files":          {"CARDSYNC_UPLOAD_MAX_FILES"},
		"upload.work_dir":           {"CARDSYNC_UPLOAD_WORK_DIR"},
		"cors.allowed_origins":      {"CARDSYNC_CORS_ALLOWED_ORIGINS"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CARDSYNC_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CARDSYNC_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.LLM = LLMConfig{
		Provider:    v.GetString("llm.provider"),
		APIKey:      v.GetString("llm.api_key"),
		TextModel:   v.GetString("llm.text_model"),
		VisionModel: v.GetString("llm.vision_model"),
		Temperature: v.GetFloat64("llm.temperature"),
		TimeoutSecs: v.GetInt("llm.timeout_secs"),
		MaxRetries:  v.GetInt("llm.max_retries"),
		BaseURL:     v.GetString("llm.base_url"),

		FallbackProvider: v.GetString("llm.fallback_provider"),
		FallbackAPIKey:   v.GetString("llm.fallback_api_key"),
	}
	cfg.Extraction = ExtractionConfig{
		Strategy:      v.GetString("extraction.strategy"),
		TesseractPath: v.GetString("extraction.tesseract_path"),
		Language:      v.GetString("extraction.language"),
		PSM:           v.GetInt("extraction.psm"),
		TessdataDir:   v.GetString("extraction.tessdata_dir"),
		Preprocess:    v.GetBool("extraction.preprocess"),
		MaxDimension:  v.GetInt("extraction.max_dimension"),
	}
	cfg.Airtable = AirtableConfig{
		APIKey:      v.GetString("airtable.api_key"),
		BaseID:      v.GetString("airtable.base_id"),
		TableName:   v.GetString("airtable.table_name"),
		BaseURL:     v.GetString("airtable.base_url"),
		PageSize:    v.GetInt("airtable.page_size"),
		BatchSize:   v.GetInt("airtable.batch_size"),
		TimeoutSecs: v.GetInt("airtable.timeout_secs"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  splitList(v.GetString("email.recipients")),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
		MaxFiles:      v.GetInt("upload.max_files"),
		WorkDir:       v.GetString("upload.work_dir"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	if cfg.Airtable.BatchSize <= 0 || cfg.Airtable.BatchSize > 10 {
		return nil, fmt.Errorf("airtable.batch_size must be between 1 and 10, got %d", cfg.Airtable.BatchSize)
	}
	if cfg.Airtable.PageSize <= 0 || cfg.Airtable.PageSize > 100 {
		return nil, fmt.Errorf("airtable.page_size must be between 1 and 100, got %d", cfg.Airtable.PageSize)
	}

	return cfg, nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
