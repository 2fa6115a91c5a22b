package line

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/lineutil"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/gordonsay/goudan-linebot-go/internal/ratelimit"
	"github.com/gordonsay/goudan-linebot-go/internal/retry"
	"github.com/gordonsay/goudan-linebot-go/internal/sentry"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// quotaNoticeText is pushed to the chat when the monthly message quota
// is exhausted.
const quotaNoticeText = "很抱歉，使用已達上限"

// Delivery describes one outbound response.
type Delivery struct {
	// ReplyToken is the one-shot token from the triggering event.
	ReplyToken string
	// To is the push target (group ID in groups, user ID otherwise).
	To string
	// PreferPush sends Messages via push instead of reply. Used for
	// flows whose processing may outlive the reply token.
	PreferPush bool
	// Messages is the primary response batch.
	Messages []messaging_api.MessageInterface
	// PushMessages are sent via push after the primary batch. Used by
	// wizard steps that reply and then push the next menu.
	PushMessages []messaging_api.MessageInterface
	// LeaveGroup, if non-empty, makes the bot leave that group after
	// the response is sent.
	LeaveGroup string
}

// Deliverer sends responses to LINE, pacing calls through a global
// rate limiter and degrading to a quota notice on 429 errors.
type Deliverer struct {
	client         Client
	limiter        *ratelimit.Limiter
	log            *logger.Logger
	metrics        *metrics.Metrics
	maxMessages    int
	quotaRetries   int
	quotaBaseDelay time.Duration
}

// DelivererConfig holds configuration for creating a Deliverer.
type DelivererConfig struct {
	Client              Client
	Logger              *logger.Logger
	Metrics             *metrics.Metrics
	GlobalRateRPS       float64
	MaxMessagesPerReply int
	QuotaNoticeRetries  int
	QuotaNoticeDelay    time.Duration
}

// NewDeliverer creates a Deliverer.
func NewDeliverer(cfg DelivererConfig) *Deliverer {
	return &Deliverer{
		client:         cfg.Client,
		limiter:        ratelimit.New(cfg.GlobalRateRPS, cfg.GlobalRateRPS),
		log:            cfg.Logger.WithModule("line.deliverer"),
		metrics:        cfg.Metrics,
		maxMessages:    cfg.MaxMessagesPerReply,
		quotaRetries:   cfg.QuotaNoticeRetries,
		quotaBaseDelay: cfg.QuotaNoticeDelay,
	}
}

// IsQuotaError reports whether err looks like LINE's monthly quota
// exhaustion (HTTP 429 or the "monthly limit" message).
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "monthly limit")
}

// Deliver sends a delivery. On quota exhaustion it swallows the error
// after notifying the chat; other send errors are returned.
func (d *Deliverer) Deliver(ctx context.Context, delivery Delivery) error {
	if len(delivery.Messages) > d.maxMessages {
		d.log.WithContext(ctx).WithField("message_count", len(delivery.Messages)).Warn("Message count exceeds reply limit; truncating")
		delivery.Messages = delivery.Messages[:d.maxMessages]
	}

	if len(delivery.Messages) > 0 {
		var err error
		if delivery.PreferPush && delivery.To != "" {
			err = d.push(ctx, delivery.To, delivery.Messages)
		} else {
			err = d.reply(ctx, delivery.ReplyToken, delivery.Messages)
		}
		if err != nil {
			if IsQuotaError(err) {
				d.log.WithContext(ctx).WithError(err).Warn("Message quota exhausted")
				d.notifyQuotaExhausted(ctx, delivery.To)
				return nil
			}
			return err
		}
	}

	if len(delivery.PushMessages) > 0 && delivery.To != "" {
		if err := d.push(ctx, delivery.To, delivery.PushMessages); err != nil {
			if IsQuotaError(err) {
				d.log.WithContext(ctx).WithError(err).Warn("Message quota exhausted on push")
				d.notifyQuotaExhausted(ctx, delivery.To)
				return nil
			}
			return err
		}
	}

	if delivery.LeaveGroup != "" {
		if err := d.client.Leave(delivery.LeaveGroup); err != nil {
			return err
		}
		d.log.WithField("group_id", delivery.LeaveGroup).Info("Left group")
	}

	return nil
}

// ShowLoading displays the typing indicator in the chat. Failures are
// logged, not returned, since the response itself is unaffected.
func (d *Deliverer) ShowLoading(ctx context.Context, chatID string) {
	if chatID == "" {
		return
	}
	d.waitForSlot(ctx)

	// LINE API: loadingSeconds must be 5-60, a multiple of 5.
	if err := d.client.ShowLoading(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: 60,
	}); err != nil {
		d.log.WithContext(ctx).WithError(err).Debug("Failed to show loading animation")
	}
}

func (d *Deliverer) reply(ctx context.Context, replyToken string, messages []messaging_api.MessageInterface) error {
	d.waitForSlot(ctx)

	err := d.client.Reply(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	d.metrics.RecordDelivery("reply", statusOf(err))
	return err
}

func (d *Deliverer) push(ctx context.Context, to string, messages []messaging_api.MessageInterface) error {
	d.waitForSlot(ctx)

	err := d.client.Push(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: messages,
	})
	d.metrics.RecordDelivery("push", statusOf(err))
	return err
}

// notifyQuotaExhausted pushes the quota notice, retrying with doubling
// backoff since the push itself may hit the same 429.
func (d *Deliverer) notifyQuotaExhausted(ctx context.Context, to string) {
	sentry.CaptureMessage("LINE message quota exhausted")
	if to == "" {
		d.metrics.RecordQuotaNotice("skipped")
		return
	}

	err := retry.Do(ctx, d.quotaRetries, d.quotaBaseDelay, IsQuotaError, func(ctx context.Context) error {
		return d.push(ctx, to, []messaging_api.MessageInterface{
			lineutil.NewTextMessage(quotaNoticeText),
		})
	})
	if err != nil {
		d.metrics.RecordQuotaNotice("failed")
		d.log.WithContext(ctx).WithError(err).Error("Failed to deliver quota notice")
		return
	}
	d.metrics.RecordQuotaNotice("delivered")
}

func (d *Deliverer) waitForSlot(ctx context.Context) {
	if d.limiter.Allow() {
		return
	}
	d.log.WithContext(ctx).Warn("Global rate limit exceeded; waiting")
	d.metrics.RecordRateLimiterDrop("global")
	if err := d.limiter.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		d.log.WithError(err).Warn("Rate limiter wait aborted")
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
