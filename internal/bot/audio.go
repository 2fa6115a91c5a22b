package bot

import (
	"context"
	"strings"

	"github.com/gordonsay/goudan-linebot-go/internal/lineutil"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	replyTranscribeFailed = "❌ 語音辨識失敗，請再試一次！"
	transcriptPrefix      = "🎙️ 轉錄內容："
)

// audioGuiltTripReplies is the smaller canned pool used for voice
// messages.
var audioGuiltTripReplies = []string{
	"🥱你看我有想告訴你嗎？",
	"😏我知道你在想什麼！",
	"🤔你確定嗎？",
	"😎好啦，不理你了！",
}

// routeAudio transcribes the voice message and handles the transcript.
// Transcription can outlive the reply token, so these responses carry
// the PreferPush hint set by the webhook layer.
func (r *Router) routeAudio(ctx context.Context, ev Event) (Action, error) {
	transcript, err := r.transcribe.Transcribe(ctx, ev.AudioID)
	if err != nil {
		r.log.WithError(err).WithField("message_id", ev.AudioID).Error("Transcription failed")
		return Action{Messages: textMessages(replyTranscribeFailed)}, nil
	}

	text := NormalizeText(transcript)
	r.log.WithField("chat_id", ev.ChatID()).WithField("transcript_length", len(transcript)).Info("Audio transcribed")

	// Voice image generation replaces the transcript response entirely.
	if strings.Contains(text, "狗蛋生成") {
		prompt := strings.TrimSpace(afterFirst(text, "狗蛋生成"))
		if prompt == "" {
			prompt = "一隻可愛的小狗"
		}
		url, err := r.images.Generate(ctx, prompt)
		if err != nil {
			r.log.WithError(err).WithField("chat_id", ev.ChatID()).Error("Image generation failed")
			return Action{Messages: textMessages(replyImageFailed)}, nil
		}
		return Action{Messages: []messaging_api.MessageInterface{
			lineutil.NewImageMessage(url, url),
			lineutil.NewTextMessage(replyImageDone),
		}}, nil
	}

	messages := textMessages(transcriptPrefix + transcript)

	switch {
	case containsAll(text, "狗蛋", "情勒"):
		messages = append(messages, lineutil.NewTextMessage(audioGuiltTripReplies[r.pick(len(audioGuiltTripReplies))]))
	case ev.InGroup() && !strings.Contains(text, "狗蛋"):
		// Group voice messages that never addressed the bot get the
		// transcript only.
	default:
		answer, err := r.transcribe.Answer(ctx, transcript)
		if err != nil {
			r.log.WithError(err).WithField("chat_id", ev.ChatID()).Error("Transcript answer failed")
			answer = replyNoResponse
		}
		messages = append(messages, lineutil.NewTextMessage(answer))
	}

	return Action{Messages: messages}, nil
}
