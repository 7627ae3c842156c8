package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/tec-more/odoo-plugins/internal/config"
)

// NewChatModel creates an OpenAI-compatible chat model from the [ai]
// config section. The API key is required.
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("ai api key is required (set ai.api_key or SCRUM_AI_API_KEY)")
	}
	temperature := float32(cfg.GetTemperature())

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.GetBaseURL(),
		Model:       cfg.GetModel(),
		Timeout:     cfg.GetTimeout(),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}
	return chatModel, nil
}
