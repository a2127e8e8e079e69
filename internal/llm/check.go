package llm

import (
	"context"
	"fmt"
	"strings"

	"cardsync/internal/domain"
	"cardsync/internal/port"
)

// PlaceholderKey is the hint text some forms leave in an empty key field.
const PlaceholderKey = "GPT Key"

// ValidateKey rejects keys that can never work without calling anyone.
func ValidateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || key == PlaceholderKey {
		return domain.ErrInvalidModelKey
	}
	return nil
}

// CheckKey sends a tiny chat request to confirm the key is accepted.
// The model must already be built with the key under test.
func CheckKey(ctx context.Context, model port.ChatModel, key, modelName string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := model.Complete(ctx, port.ChatInput{
		Model:     modelName,
		System:    "This is a test message.",
		Prompt:    "Test",
		MaxTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidModelKey, err)
	}
	return nil
}
