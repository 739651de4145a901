package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
)

// Output limits applied to every suggestion
const (
	MaxMetaTitleLength       = 60
	MaxMetaDescriptionLength = 160
	MaxKeywords              = 10
	MaxOptimizedTags         = 15
)

// Confidence used when the model omits one; a response cut short is trusted less.
const (
	fallbackConfidenceComplete  = 0.85
	fallbackConfidenceTruncated = 0.75
)

// Config holds the OpenAI client settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SEOGenerator implements port.SEOGenerator with OpenAI chat completions
type SEOGenerator struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewSEOGenerator creates a new OpenAI SEO generator
func NewSEOGenerator(cfg Config, prompts *PromptConfig, logger *zap.Logger) *SEOGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &SEOGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type seoResponse struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	OptimizedTags   []string `json:"optimizedTags"`
	Confidence      *float64 `json:"confidence"`
}

// GenerateSEO asks the model for product search metadata
func (g *SEOGenerator) GenerateSEO(ctx context.Context, product port.ProductSnapshot) (*port.SEOSuggestion, error) {
	prompt, err := renderTemplate(g.prompts.SEO.UserTemplate, product)
	if err != nil {
		return nil, fmt.Errorf("failed to render SEO prompt: %w", err)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.prompts.SEO.Temperature,
		MaxTokens:   g.prompts.SEO.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.prompts.SEO.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		g.logger.Error("OpenAI API call failed", zap.Error(err), zap.String("product_id", product.ProductID))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}
	choice := resp.Choices[0]

	var result seoResponse
	if err := json.Unmarshal([]byte(choice.Message.Content), &result); err != nil {
		g.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", choice.Message.Content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if strings.TrimSpace(result.MetaTitle) == "" {
		return nil, fmt.Errorf("response has no metaTitle")
	}

	suggestion := &port.SEOSuggestion{
		MetaTitle:       truncateRunes(strings.TrimSpace(result.MetaTitle), MaxMetaTitleLength),
		MetaDescription: truncateRunes(strings.TrimSpace(result.MetaDescription), MaxMetaDescriptionLength),
		Keywords:        limit(result.Keywords, MaxKeywords),
		OptimizedTags:   limit(result.OptimizedTags, MaxOptimizedTags),
		Confidence:      confidenceOf(result.Confidence, choice.FinishReason),
	}

	g.logger.Info("SEO suggestion generated",
		zap.String("shop_id", product.ShopID),
		zap.String("product_id", product.ProductID),
		zap.Float64("confidence", suggestion.Confidence))

	return suggestion, nil
}

func confidenceOf(reported *float64, finish openai.FinishReason) float64 {
	if reported != nil && *reported >= 0 && *reported <= 1 {
		return *reported
	}
	if finish == openai.FinishReasonStop {
		return fallbackConfidenceComplete
	}
	return fallbackConfidenceTruncated
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func limit(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
