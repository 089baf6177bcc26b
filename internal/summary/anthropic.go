package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/pkg/message"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 512
)

// Interface guard.
var _ queue.Summarizer = (*Anthropic)(nil)

// Config holds settings for the Anthropic summarizer.
type Config struct {
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Model selects the model; empty uses a small default.
	Model string

	// MaxChars caps digest length. Non-positive uses the default.
	MaxChars int
}

// Anthropic condenses a buffered conversation through the Anthropic
// Messages API.
type Anthropic struct {
	client   *sdkanthropic.Client
	model    string
	maxChars int
	logger   *slog.Logger
}

// NewAnthropic creates the summarizer. The API key resolves from config
// first, then the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(cfg Config, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			apiKey = envKey
		}
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// A failed summarize falls back to eviction upstream, so retrying
	// here only delays the flush.
	opts = append(opts, option.WithMaxRetries(0))

	client := sdkanthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	return &Anthropic{
		client:   &client,
		model:    model,
		maxChars: maxChars,
		logger:   logger,
	}
}

// Summarize implements queue.Summarizer.
func (a *Anthropic) Summarize(ctx context.Context, msgs []*message.InboundMessage) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
		System: []sdkanthropic.TextBlockParam{
			{Text: systemPrompt(a.maxChars)},
		},
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(transcript(msgs))),
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("summary: anthropic request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if text != "" {
				text += "\n"
			}
			text += tb.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("summary: empty response")
	}

	a.logger.Debug("summary: condensed buffer",
		"messages", len(msgs),
		"chars", len(text),
	)
	return clip(text, a.maxChars), nil
}

func systemPrompt(maxChars int) string {
	return fmt.Sprintf(
		"You condense chat backlogs. Reply with a single digest of the "+
			"messages you are given, at most %d characters. Keep sender names "+
			"and concrete facts. No preamble or commentary.", maxChars)
}
