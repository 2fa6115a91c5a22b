// Package provider wraps the external AI and search APIs the bot
// relies on: OpenAI, Groq, Gemini, and Google Custom Search.
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

// ErrNoChoices indicates the model returned an empty choice list.
var ErrNoChoices = errors.New("no choices in completion response")

// personaPrompt keeps the bot in character for casual chat replies.
const personaPrompt = "你是一個名叫狗蛋的助手，盡量只使用繁體中文精簡跟朋友的語氣的幽默回答, 約莫20字內，限制不超過50字，除非當請求為翻譯時, 全部內容都需要完成翻譯不殘留原語言。"

// groqPersonaPrompt is the system prompt used for Groq-hosted models.
const groqPersonaPrompt = "你是一個名叫狗蛋的助手，跟使用者是朋友關係, 盡量只使用繁體中文方式進行幽默回答, 約莫20字內，限制不超過50字, 除非當請求為翻譯時, 全部內容都需要完成翻譯不殘留原語言。"

// Reasoning models wrap their chain of thought in think tags; strip it
// before relaying to the chat.
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Chat answers free-form messages. OpenAI-branded models go to the
// OpenAI API with the persona prompt; everything else goes to Groq.
type Chat struct {
	openai  openai.Client
	groq    openai.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewChat creates a chat adapter backed by the OpenAI and Groq APIs.
func NewChat(openaiKey, groqKey string, log *logger.Logger, m *metrics.Metrics) *Chat {
	return &Chat{
		openai:  openai.NewClient(option.WithAPIKey(openaiKey)),
		groq:    openai.NewClient(option.WithBaseURL(groqBaseURL), option.WithAPIKey(groqKey)),
		log:     log.WithModule("provider.chat"),
		metrics: m,
	}
}

// Reply generates a chat reply using the given model. Model names
// beginning with "gpt" are served by OpenAI as gpt-4o-mini; other
// names are passed to Groq lowercased.
func (c *Chat) Reply(ctx context.Context, model, userText string) (string, error) {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "gpt") {
		return c.openaiReply(ctx, userText)
	}
	return c.groqReply(ctx, lower, userText)
}

func (c *Chat) openaiReply(ctx context.Context, userText string) (string, error) {
	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(personaPrompt),
			openai.UserMessage(userText),
		},
	})
	c.metrics.RecordProvider("openai", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Chat) groqReply(ctx context.Context, model, userText string) (string, error) {
	start := time.Now()
	resp, err := c.groq.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(groqPersonaPrompt),
			openai.UserMessage(userText),
		},
	})
	c.metrics.RecordProvider("groq", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	return StripThink(content), nil
}

// StripThink removes reasoning-model think blocks from content and
// trims surrounding whitespace.
func StripThink(content string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(content, ""))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
