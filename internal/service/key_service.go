package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cardsync/internal/config"
	"cardsync/internal/llm"
	"cardsync/internal/logging"
)

// KeyService checks whether a model API key is accepted by the provider.
type KeyService interface {
	// Check tests key, or the configured key when key is empty.
	Check(ctx context.Context, key string) error
}

type keyService struct {
	cfg      config.LLMConfig
	newModel llm.ProviderFactory
	logger   *zap.Logger
}

// NewKeyService creates a KeyService. A nil factory uses the provider registry.
func NewKeyService(cfg config.LLMConfig, factory llm.ProviderFactory, logger *zap.Logger) KeyService {
	if factory == nil {
		factory = llm.NewChatModel
	}
	return &keyService{cfg: cfg, newModel: factory, logger: logging.OrNop(logger)}
}

func (s *keyService) Check(ctx context.Context, key string) error {
	if key == "" {
		key = s.cfg.APIKey
	}
	if err := llm.ValidateKey(key); err != nil {
		return err
	}

	cfg := s.cfg
	cfg.APIKey = key
	cfg.MaxRetries = 0
	model, err := s.newModel(&cfg)
	if err != nil {
		return fmt.Errorf("keyService.Check: %w", err)
	}

	if err := llm.CheckKey(ctx, model, key, cfg.TextModel); err != nil {
		s.logger.Info("keyService.Check: key rejected", zap.String("provider", cfg.Provider), zap.Error(err))
		return err
	}
	s.logger.Info("keyService.Check: key accepted", zap.String("provider", cfg.Provider))
	return nil
}
