// Package app assembles the services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"cardsync/internal/airtable"
	"cardsync/internal/config"
	"cardsync/internal/domain"
	"cardsync/internal/email/noop"
	"cardsync/internal/email/ses"
	"cardsync/internal/extract"
	"cardsync/internal/llm"
	"cardsync/internal/logging"
	"cardsync/internal/ocr"
	"cardsync/internal/port"
	"cardsync/internal/reconcile"
	"cardsync/internal/repository/postgres"
	"cardsync/internal/service"
	s3storage "cardsync/internal/storage/s3"
	"cardsync/internal/structurer"

	// Register model providers.
	_ "cardsync/internal/llm/claude"
	_ "cardsync/internal/llm/gemini"
	_ "cardsync/internal/llm/openai"
)

// App holds the wired services.
type App struct {
	Config     *config.Config
	DB         *sqlx.DB
	Runs       service.RunService
	Keys       service.KeyService
	Reconciler *reconcile.Engine
	Extractors map[domain.Strategy]port.Extractor
	Storage    port.ObjectStorage
}

// New wires every component from cfg. The database, object storage and SES
// are only contacted when enabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	defaultStrategy := domain.Strategy(cfg.Extraction.Strategy)
	if !domain.ValidStrategies[defaultStrategy] {
		return nil, fmt.Errorf("app.New: %w: %q", domain.ErrInvalidStrategy, cfg.Extraction.Strategy)
	}

	logger = logging.OrNop(logger)
	a := &App{Config: cfg}

	model, err := llm.NewChatModelWithFallback(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	s := structurer.New(model, structurer.Options{
		TextModel:   cfg.LLM.TextModel,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	recognizer := ocr.NewTesseract(cfg.Extraction, ocr.ExecRunner{Logger: logger}, logger)

	a.Extractors = make(map[domain.Strategy]port.Extractor, len(domain.ValidStrategies))
	for strategy := range domain.ValidStrategies {
		ex, err := extract.New(strategy, recognizer, s, logger)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Extractors[strategy] = ex
	}

	a.Reconciler = reconcile.NewEngine(airtable.NewClient(&cfg.Airtable, logger), &cfg.Airtable, logger)
	if !a.Reconciler.Configured() {
		logger.Warn("app.New: Airtable credentials not configured; sync will report an error")
	}

	deps := service.RunServiceDeps{
		Extractors: a.Extractors,
		Reconciler: a.Reconciler,
	}

	if cfg.DB.Enabled {
		db, err := postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.DB = db
		deps.Repo = postgres.NewRunRepo(db)
		logger.Info("app.New: run history enabled", zap.String("db", cfg.DB.Name))
	}

	if cfg.S3.Enabled {
		client, err := s3storage.NewClient(ctx, &cfg.S3, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Storage = client
		deps.Storage = client
	}

	switch cfg.Email.Provider {
	case "ses":
		sender, err := ses.NewSESSender(ctx, cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		deps.Mailer = sender
	default:
		deps.Mailer = noop.NewNoopSender(logger)
	}

	a.Runs = service.NewRunService(deps, service.RunServiceConfig{
		DefaultStrategy: defaultStrategy,
		ModelConfigured: llm.ValidateKey(cfg.LLM.APIKey) == nil,
		MaxFileSize:     cfg.Upload.MaxFileSizeMB << 20,
		MaxFiles:        cfg.Upload.MaxFiles,
		WorkDir:         cfg.Upload.WorkDir,
		Bucket:          cfg.S3.Bucket,
		PresignExpiry:   cfg.S3.PresignExpiry,
		Recipients:      cfg.Email.Recipients,
	}, logger)
	a.Keys = service.NewKeyService(cfg.LLM, nil, logger)

	return a, nil
}

// Close releases the database pool when one was opened.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
