// Package webhook receives LINE webhook callbacks, converts events to
// the router's form, and hands routed actions to the deliverer.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gordonsay/goudan-linebot-go/internal/bot"
	"github.com/gordonsay/goudan-linebot-go/internal/config"
	"github.com/gordonsay/goudan-linebot-go/internal/ctxutil"
	"github.com/gordonsay/goudan-linebot-go/internal/line"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/gordonsay/goudan-linebot-go/internal/ratelimit"
	"github.com/gordonsay/goudan-linebot-go/internal/sentry"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// Handler handles LINE webhook callbacks.
type Handler struct {
	channelSecret string
	router        *bot.Router
	deliverer     *line.Deliverer
	chatLimiter   *ratelimit.PerKeyLimiter
	metrics       *metrics.Metrics
	log           *logger.Logger
	wg            sync.WaitGroup

	webhookTimeout      time.Duration
	maxEventsPerWebhook int
	minReplyTokenLength int
	maxMessageLength    int
}

// HandlerConfig holds dependencies for creating a Handler.
type HandlerConfig struct {
	ChannelSecret string
	BotConfig     *config.BotConfig
	Router        *bot.Router
	Deliverer     *line.Deliverer
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		router:              cfg.Router,
		deliverer:           cfg.Deliverer,
		metrics:             cfg.Metrics,
		log:                 cfg.Logger.WithModule("webhook"),
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
		maxMessageLength:    cfg.BotConfig.MaxMessageLength,
	}

	h.chatLimiter = ratelimit.NewPerKey(
		cfg.BotConfig.ChatRateLimitBurst,
		cfg.BotConfig.ChatRateLimitPerSec,
		cfg.BotConfig.RateLimiterCleanupGap,
	)
	h.chatLimiter.OnDrop = func(string) {
		h.metrics.RecordRateLimiterDrop("chat")
	}

	return h
}

// Handle is the Gin handler for POST /callback. It validates the
// signature, acknowledges immediately, and processes events async.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn("Invalid webhook signature")
			c.Status(http.StatusBadRequest)
		} else {
			h.log.WithError(err).Error("Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)

	h.metrics.RecordWebhook("batch", "received", 0)
	if len(cb.Events) > h.maxEventsPerWebhook {
		h.log.Warnf("Webhook batch has %d events, processing first %d", len(cb.Events), h.maxEventsPerWebhook)
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}

	// Copy events so processing does not race the HTTP response.
	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	// Processing outlives the HTTP request, so detach from its
	// cancellation while keeping any tracing values.
	base := ctxutil.PreserveTracing(c.Request.Context())

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Errorf("Panic in async event processing: %v", r)
			}
		}()

		for _, event := range events {
			h.processEvent(base, event)
		}
	})
}

func (h *Handler) processEvent(ctx context.Context, raw webhook.EventInterface) {
	ev, eventID, ok := convertEvent(raw)
	if !ok {
		h.log.Debugf("Unsupported event type %T", raw)
		return
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	log := h.log.WithRequestID(eventID).WithField("chat_id", ev.ChatID())
	ctx = ctxutil.WithRequestID(ctx, eventID)
	ctx = ctxutil.WithUserID(ctx, ev.UserID)
	ctx = ctxutil.WithChatID(ctx, ev.ChatID())

	if ev.Kind == bot.KindText && len(ev.Text) > h.maxMessageLength {
		log.WithField("text_length", len(ev.Text)).Warn("Message exceeds length limit; ignoring")
		return
	}

	if !h.chatLimiter.Allow(ev.ChatID()) {
		log.Warn("Chat rate limit exceeded; dropping event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.webhookTimeout)
	defer cancel()

	if h.shouldShowLoading(ev) {
		h.deliverer.ShowLoading(ctx, ev.ChatID())
	}

	start := time.Now()
	action, err := h.router.Route(ctx, ev)
	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).Error("Failed to route event")
		sentry.CaptureExceptionWithContext(ctx, err)
	}
	h.metrics.RecordWebhook(kindLabel(ev.Kind), status, time.Since(start).Seconds())
	if err != nil || action.IsEmpty() {
		return
	}

	preferPush := ev.Hint == bot.PreferPush
	if !preferPush && len(ev.ReplyToken) < h.minReplyTokenLength {
		log.WithField("token_length", len(ev.ReplyToken)).Debug("Invalid reply token; skipping response")
		return
	}

	if err := h.deliverer.Deliver(ctx, line.Delivery{
		ReplyToken:   ev.ReplyToken,
		To:           ev.ChatID(),
		PreferPush:   preferPush,
		Messages:     action.Messages,
		PushMessages: action.PushMessages,
		LeaveGroup:   action.LeaveGroup,
	}); err != nil {
		if strings.Contains(err.Error(), "Invalid reply token") {
			log.WithError(err).Debug("Reply token already used or invalid")
		} else {
			log.WithError(err).Error("Failed to deliver response")
			sentry.CaptureExceptionWithContext(ctx, err)
		}
		h.metrics.RecordWebhook(kindLabel(ev.Kind), "delivery_error", time.Since(start).Seconds())
		return
	}

	log.WithField("event_type", kindLabel(ev.Kind)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Event processed")
}

// shouldShowLoading reports whether the chat gets a typing indicator.
// The loading animation API only works in one-on-one chats.
func (h *Handler) shouldShowLoading(ev bot.Event) bool {
	return ev.GroupID == ""
}

// convertEvent maps a webhook event to the router's form. The second
// return is the webhook event ID for tracing; ok is false for event
// types the bot ignores.
func convertEvent(raw webhook.EventInterface) (bot.Event, string, bool) {
	switch e := raw.(type) {
	case webhook.MessageEvent:
		userID, groupID := extractSource(e.Source)
		switch msg := e.Message.(type) {
		case webhook.TextMessageContent:
			return bot.Event{
				Kind:       bot.KindText,
				UserID:     userID,
				GroupID:    groupID,
				ReplyToken: e.ReplyToken,
				Text:       msg.Text,
			}, e.WebhookEventId, true
		case webhook.AudioMessageContent:
			// Transcription may outlive the reply token, so audio
			// responses are pushed.
			return bot.Event{
				Kind:       bot.KindAudio,
				UserID:     userID,
				GroupID:    groupID,
				ReplyToken: e.ReplyToken,
				AudioID:    msg.Id,
				Hint:       bot.PreferPush,
			}, e.WebhookEventId, true
		default:
			return bot.Event{}, "", false
		}
	case webhook.PostbackEvent:
		userID, groupID := extractSource(e.Source)
		return bot.Event{
			Kind:         bot.KindPostback,
			UserID:       userID,
			GroupID:      groupID,
			ReplyToken:   e.ReplyToken,
			PostbackData: e.Postback.Data,
		}, e.WebhookEventId, true
	case webhook.FollowEvent:
		userID, groupID := extractSource(e.Source)
		return bot.Event{
			Kind:       bot.KindFollow,
			UserID:     userID,
			GroupID:    groupID,
			ReplyToken: e.ReplyToken,
		}, e.WebhookEventId, true
	default:
		return bot.Event{}, "", false
	}
}

// extractSource pulls the user and chat identifiers from an event
// source. Rooms are treated like groups.
func extractSource(source webhook.SourceInterface) (userID, groupID string) {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId, ""
	case webhook.GroupSource:
		return s.UserId, s.GroupId
	case webhook.RoomSource:
		return s.UserId, s.RoomId
	default:
		return "", ""
	}
}

func kindLabel(kind bot.Kind) string {
	switch kind {
	case bot.KindText:
		return "text"
	case bot.KindAudio:
		return "audio"
	case bot.KindPostback:
		return "postback"
	case bot.KindFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// Shutdown waits for in-flight event processing to finish, or for ctx
// to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.chatLimiter.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
