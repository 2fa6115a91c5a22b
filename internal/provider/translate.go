package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"
)

const (
	translateSystemPrompt = "你是一位專業的翻譯專家，請精準且自然地翻譯以下內容。"
	geminiTranslateModel  = "gemini-2.0-flash"
)

// Translator translates text between languages. The "gpt" method uses
// OpenAI gpt-3.5-turbo; the "google" method uses Gemini.
type Translator struct {
	openai  openai.Client
	gemini  *genai.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewTranslator creates a translation adapter. geminiKey may be empty,
// in which case the "google" method falls back to "gpt".
func NewTranslator(ctx context.Context, openaiKey, geminiKey string, log *logger.Logger, m *metrics.Metrics) (*Translator, error) {
	t := &Translator{
		openai:  openai.NewClient(option.WithAPIKey(openaiKey)),
		log:     log.WithModule("provider.translate"),
		metrics: m,
	}

	if geminiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: geminiKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		t.gemini = client
	}

	return t, nil
}

// Translate converts text from src to tgt using the given method.
func (t *Translator) Translate(ctx context.Context, method, text, src, tgt string) (string, error) {
	if method == "google" && t.gemini != nil {
		return t.translateWithGemini(ctx, text, src, tgt)
	}
	return t.translateWithGPT(ctx, text, src, tgt)
}

func (t *Translator) translateWithGPT(ctx context.Context, text, src, tgt string) (string, error) {
	prompt := fmt.Sprintf("請將下列文字從 %s 翻譯成 %s：\n%s", src, tgt, text)

	start := time.Now()
	resp, err := t.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT3_5Turbo,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(translateSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	t.metrics.RecordProvider("openai", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gpt translation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (t *Translator) translateWithGemini(ctx context.Context, text, src, tgt string) (string, error) {
	prompt := fmt.Sprintf("請將下列文字從 %s 翻譯成 %s，只輸出翻譯結果：\n%s", src, tgt, text)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	}

	start := time.Now()
	resp, err := t.gemini.Models.GenerateContent(ctx, geminiTranslateModel, genai.Text(prompt), config)
	t.metrics.RecordProvider("gemini", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gemini translation: %w", err)
	}

	result := strings.TrimSpace(resp.Text())
	if result == "" {
		return "", ErrNoChoices
	}
	return result, nil
}
