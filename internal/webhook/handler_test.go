package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gordonsay/goudan-linebot-go/internal/bot"
	"github.com/gordonsay/goudan-linebot-go/internal/config"
	"github.com/gordonsay/goudan-linebot-go/internal/line"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/session"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannelSecret = "test-channel-secret"

type fakeLineClient struct {
	mu      sync.Mutex
	replies []*messaging_api.ReplyMessageRequest
	pushes  []*messaging_api.PushMessageRequest
	loading []string
	left    []string
}

func (f *fakeLineClient) Reply(req *messaging_api.ReplyMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, req)
	return nil
}

func (f *fakeLineClient) Push(req *messaging_api.PushMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, req)
	return nil
}

func (f *fakeLineClient) Leave(groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, groupID)
	return nil
}

func (f *fakeLineClient) ShowLoading(req *messaging_api.ShowLoadingAnimationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = append(f.loading, req.ChatId)
	return nil
}

func (f *fakeLineClient) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

type fakeChat struct{}

func (fakeChat) Reply(_ context.Context, _, userText string) (string, error) {
	return "回覆：" + userText, nil
}

type fakeImages struct{}

func (fakeImages) Generate(context.Context, string) (string, error) {
	return "https://example.com/image.png", nil
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, _, text, _, _ string) (string, error) {
	return text, nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return "語音內容", nil
}

func (fakeTranscriber) Answer(context.Context, string) (string, error) {
	return "語音回覆", nil
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "https://bot.example.com",
		Bot: config.BotConfig{
			WebhookTimeout:        5 * time.Second,
			GlobalRateRPS:         100,
			ChatRateLimitBurst:    10,
			ChatRateLimitPerSec:   10,
			RateLimiterCleanupGap: time.Minute,
			QuotaNoticeRetries:    3,
			QuotaNoticeBaseDelay:  time.Millisecond,
			MaxMessagesPerReply:   5,
			MaxEventsPerWebhook:   100,
			MinReplyTokenLength:   10,
			MaxMessageLength:      20000,
			MaxPostbackDataSize:   300,
		},
	}
}

type fixture struct {
	handler *Handler
	client  *fakeLineClient
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewWithOptions("error", io.Discard, logger.Options{})
	client := &fakeLineClient{}

	router := bot.NewRouter(bot.RouterConfig{
		Store:      session.NewMemory(),
		Chat:       fakeChat{},
		Images:     fakeImages{},
		Translator: fakeTranslator{},
		Transcribe: fakeTranscriber{},
		Config:     cfg,
		Logger:     log,
	})

	deliverer := line.NewDeliverer(line.DelivererConfig{
		Client:              client,
		Logger:              log,
		GlobalRateRPS:       cfg.Bot.GlobalRateRPS,
		MaxMessagesPerReply: cfg.Bot.MaxMessagesPerReply,
		QuotaNoticeRetries:  cfg.Bot.QuotaNoticeRetries,
		QuotaNoticeDelay:    cfg.Bot.QuotaNoticeBaseDelay,
	})

	h := NewHandler(HandlerConfig{
		ChannelSecret: testChannelSecret,
		BotConfig:     &cfg.Bot,
		Router:        router,
		Deliverer:     deliverer,
		Logger:        log,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})

	return &fixture{handler: h, client: client}
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(f *fixture, body, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", signature)
	c.Request = req
	f.handler.Handle(c)
	c.Writer.WriteHeaderNow()
	return w
}

func textMessageBody(userID, text string) string {
	return fmt.Sprintf(`{
		"destination": "bot-destination",
		"events": [{
			"type": "message",
			"mode": "active",
			"timestamp": 1700000000000,
			"webhookEventId": "evt-0001",
			"deliveryContext": {"isRedelivery": false},
			"replyToken": "reply-token-0001",
			"source": {"type": "user", "userId": %q},
			"message": {"type": "text", "id": "msg-1", "text": %q}
		}]
	}`, userID, text)
}

func waitForReplies(t *testing.T, f *fixture, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for f.client.replyCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d replies, got %d", want, f.client.replyCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleInvalidSignature(t *testing.T) {
	f := newFixture(t, nil)

	w := postWebhook(f, textMessageBody("U1", "給我id"), "invalid_signature")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.client.replyCount())
}

func TestHandleValidSignatureRepliesAsync(t *testing.T) {
	f := newFixture(t, nil)
	body := textMessageBody("U1", "給我id")

	w := postWebhook(f, body, sign(body))

	assert.Equal(t, http.StatusOK, w.Code)
	waitForReplies(t, f, 1)

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	require.Len(t, f.client.replies, 1)
	assert.Equal(t, "reply-token-0001", f.client.replies[0].ReplyToken)
	text, ok := f.client.replies[0].Messages[0].(*messaging_api.TextMessage)
	require.True(t, ok)
	assert.Contains(t, text.Text, "U1")
}

func TestHandleShowsLoadingForPersonalChat(t *testing.T) {
	f := newFixture(t, nil)
	body := textMessageBody("U1", "狗蛋你好")

	postWebhook(f, body, sign(body))
	waitForReplies(t, f, 1)

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	assert.Equal(t, []string{"U1"}, f.client.loading)
}

func TestHandleSkipsLoadingForUnaddressedGroupText(t *testing.T) {
	f := newFixture(t, nil)
	body := `{
		"destination": "bot-destination",
		"events": [{
			"type": "message",
			"mode": "active",
			"timestamp": 1700000000000,
			"webhookEventId": "evt-0002",
			"deliveryContext": {"isRedelivery": false},
			"replyToken": "reply-token-0002",
			"source": {"type": "group", "groupId": "G1", "userId": "U1"},
			"message": {"type": "text", "id": "msg-2", "text": "閒聊"}
		}]
	}`

	w := postWebhook(f, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	assert.Empty(t, f.client.loading)
	assert.Empty(t, f.client.replies)
}

func TestHandleIgnoresOversizedMessage(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Bot.MaxMessageLength = 10
	})
	body := textMessageBody("U1", strings.Repeat("狗", 20))

	w := postWebhook(f, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))

	assert.Zero(t, f.client.replyCount())
}

func TestHandleDropsWhenChatRateLimited(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Bot.ChatRateLimitBurst = 1
		cfg.Bot.ChatRateLimitPerSec = 0.001
	})

	for i := 0; i < 3; i++ {
		body := textMessageBody("U1", "給我id")
		postWebhook(f, body, sign(body))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))

	assert.Equal(t, 1, f.client.replyCount())
}

func TestHandleSkipsInvalidReplyToken(t *testing.T) {
	f := newFixture(t, nil)
	body := `{
		"destination": "bot-destination",
		"events": [{
			"type": "message",
			"mode": "active",
			"timestamp": 1700000000000,
			"webhookEventId": "evt-0003",
			"deliveryContext": {"isRedelivery": false},
			"replyToken": "short",
			"source": {"type": "user", "userId": "U1"},
			"message": {"type": "text", "id": "msg-3", "text": "給我id"}
		}]
	}`

	w := postWebhook(f, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))

	assert.Zero(t, f.client.replyCount())
}

func TestHandleFollowEventGreets(t *testing.T) {
	f := newFixture(t, nil)
	body := `{
		"destination": "bot-destination",
		"events": [{
			"type": "follow",
			"mode": "active",
			"timestamp": 1700000000000,
			"webhookEventId": "evt-0004",
			"deliveryContext": {"isRedelivery": false},
			"replyToken": "reply-token-0004",
			"source": {"type": "user", "userId": "U2"}
		}]
	}`

	w := postWebhook(f, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)
	waitForReplies(t, f, 1)

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	require.Len(t, f.client.replies, 1)
	text, ok := f.client.replies[0].Messages[0].(*messaging_api.TextMessage)
	require.True(t, ok)
	assert.Contains(t, text.Text, "支援的指令")
}

func TestConvertEventSources(t *testing.T) {
	tests := []struct {
		name        string
		source      webhook.SourceInterface
		wantUserID  string
		wantGroupID string
	}{
		{"user", webhook.UserSource{UserId: "U1"}, "U1", ""},
		{"group", webhook.GroupSource{GroupId: "G1", UserId: "U1"}, "U1", "G1"},
		{"room", webhook.RoomSource{RoomId: "R1", UserId: "U1"}, "U1", "R1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, groupID := extractSource(tt.source)
			assert.Equal(t, tt.wantUserID, userID)
			assert.Equal(t, tt.wantGroupID, groupID)
		})
	}
}

func TestConvertEventAudioPrefersPush(t *testing.T) {
	ev, eventID, ok := convertEvent(webhook.MessageEvent{
		ReplyToken:     "reply-token-0005",
		WebhookEventId: "evt-0005",
		Source:         webhook.UserSource{UserId: "U1"},
		Message:        webhook.AudioMessageContent{Id: "audio-1"},
	})

	require.True(t, ok)
	assert.Equal(t, bot.KindAudio, ev.Kind)
	assert.Equal(t, "audio-1", ev.AudioID)
	assert.Equal(t, bot.PreferPush, ev.Hint)
	assert.Equal(t, "evt-0005", eventID)
}

func TestConvertEventIgnoresUnsupported(t *testing.T) {
	_, _, ok := convertEvent(webhook.UnfollowEvent{})
	assert.False(t, ok)

	_, _, ok = convertEvent(webhook.MessageEvent{
		Source:  webhook.UserSource{UserId: "U1"},
		Message: webhook.StickerMessageContent{Id: "sticker-1"},
	})
	assert.False(t, ok)
}
