package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// imageStyleSuffix nudges the model toward the house style and away
// from distorted anatomy.
const imageStyleSuffix = " 請根據上述描述生成圖片。如果描述涉及人物，以可愛卡通風格呈現, 要求面部比例正確，不出現扭曲、畸形或額外肢體，且圖像需高解析度且細節豐富；如果描述涉及事件且未指定風格，請以可愛卡通風格呈現；如果描述涉及物品，請生成清晰且精美的物品圖像，同時避免出現讓人覺得噁心或反胃的效果。"

// ErrNoImage indicates the API returned no image data.
var ErrNoImage = errors.New("no image data in response")

// ImageGenerator generates images from text prompts via the OpenAI
// image API.
type ImageGenerator struct {
	client  openai.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewImageGenerator creates an image adapter backed by the OpenAI API.
func NewImageGenerator(apiKey string, log *logger.Logger, m *metrics.Metrics) *ImageGenerator {
	return &ImageGenerator{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		log:     log.WithModule("provider.image"),
		metrics: m,
	}
}

// Generate creates a single 512x512 image for prompt and returns its
// URL.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt + imageStyleSuffix,
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize512x512,
	})
	g.metrics.RecordProvider("openai_image", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrNoImage
	}

	g.log.WithContext(ctx).WithField("url", resp.Data[0].URL).Debug("Image generated")
	return resp.Data[0].URL, nil
}
