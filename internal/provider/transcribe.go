package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Audio messages are capped well below this; refuse anything larger.
const maxAudioBytes = 25 << 20

// audioPersonaPrompt answers transcribed speech in character.
const audioPersonaPrompt = "你是一個名叫狗蛋的智能助手，請使用繁體中文回答。"

// ErrEmptyTranscript indicates the audio produced no usable text.
var ErrEmptyTranscript = errors.New("transcription produced no text")

// Transcriber downloads LINE audio messages and converts them to text
// with Whisper, then answers the transcript with GPT-4o.
type Transcriber struct {
	blob    *messaging_api.MessagingApiBlobAPI
	openai  openai.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewTranscriber creates an audio adapter. channelToken authorizes the
// LINE content download; openaiKey is used for Whisper and the reply.
func NewTranscriber(channelToken, openaiKey string, log *logger.Logger, m *metrics.Metrics) (*Transcriber, error) {
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create blob API client: %w", err)
	}
	return &Transcriber{
		blob:    blob,
		openai:  openai.NewClient(option.WithAPIKey(openaiKey)),
		log:     log.WithModule("provider.transcribe"),
		metrics: m,
	}, nil
}

// Transcribe downloads the audio message and returns its Whisper
// transcript. Language is pinned to Chinese.
func (t *Transcriber) Transcribe(ctx context.Context, messageID string) (string, error) {
	resp, err := t.blob.GetMessageContent(messageID)
	if err != nil {
		return "", fmt.Errorf("download audio content: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return "", fmt.Errorf("read audio content: %w", err)
	}

	start := time.Now()
	transcription, err := t.openai.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModelWhisper1,
		File:     openai.File(bytes.NewReader(audio), messageID+".m4a", "audio/m4a"),
		Language: openai.String("zh"),
	})
	t.metrics.RecordProvider("whisper", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(transcription.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	t.log.WithContext(ctx).WithField("message_id", messageID).WithField("transcript_length", len(text)).Debug("Audio transcribed")
	return text, nil
}

// Answer generates an in-character reply to a transcript using GPT-4o.
func (t *Transcriber) Answer(ctx context.Context, transcript string) (string, error) {
	start := time.Now()
	resp, err := t.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4o,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(audioPersonaPrompt),
			openai.UserMessage(transcript),
		},
	})
	t.metrics.RecordProvider("openai", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("answer transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
