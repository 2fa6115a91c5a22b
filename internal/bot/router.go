package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gordonsay/goudan-linebot-go/internal/config"
	"github.com/gordonsay/goudan-linebot-go/internal/lineutil"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/provider"
	"github.com/gordonsay/goudan-linebot-go/internal/session"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Model names shown to users vs. sent to the chat providers. The
// default is Deepseek served by Groq.
const (
	defaultDispatchModel = "deepseek-r1-distill-llama-70b"
	defaultDisplayModel  = "Deepseek-R1"
)

// modelChoices maps postback data to the model recorded for the chat.
var modelChoices = map[string]string{
	"model_gpt4o":      "GPT-4o",
	"model_gpt4o_mini": "GPT_4o_Mini",
	"model_deepseek":   "deepseek-r1-distill-llama-70b",
	"model_llama3":     "llama3-8b-8192",
}

// Canned replies.
const (
	replyServerError      = "❌ 狗蛋伺服器錯誤，請稍後再試。"
	replyNoResponse       = "❌ 狗蛋無法回應，請稍後再試。"
	replyImageFailed      = "❌ 圖片生成失敗，請稍後再試！"
	replyImageDone        = "生成完成, 你瞧瞧🐧"
	replyGroupOnly        = "❌ 此指令僅限群組使用"
	replyFarewell         = "我也不想留, 掰"
	replySearchHint       = "請輸入要搜尋的內容，例如：狗蛋搜尋 OpenAI"
	replyNoSearchResults  = "❌ 找不到相關資料。"
	replyTranslateStopped = "翻譯功能已停止。"
	replyTranslateFailed  = "❌ 翻譯失敗，請稍後再試。"
	replyUserForbidden    = "❌ 你沒有權限使用 AI 服務"
	replyGroupForbidden   = "❌ 本群組沒有權限使用 AI 服務"
	replyUnknownPostback  = "未知選擇，請重試。"
)

// guiltTripReplies is the pool for the 情勒 command.
var guiltTripReplies = []string{
	"🥱你看我有想告訴你嗎？",
	"😏真假, 怎那麼棒你阿",
	"🤔上次我有說過了, 下次還要說對吧",
	"😎年輕人要多忍耐 我也是這樣過來的",
	"你以前都不會這樣的🤷‍♂️",
	"我這是為了你好🤥",
}

const commandListText = "📝 支援的指令：\n" +
	"1. 換模型: 更換 AI 語言模型 \n\t\t（預設為 Deepseek-R1）\n" +
	"2. 狗蛋出去: 機器人離開群組\n" +
	"3. 當前模型: 機器人現正使用的模型\n" +
	"4. 狗蛋生成: 生成圖片\n" +
	"5. 狗蛋情勒 狗蛋的超能力"

const followGreetingText = "📝 支援的指令：\n" +
	"1. 換模型: 更換 AI 語言模型 \n\t\t（預設為 Deepseek-R1）\n" +
	"2. 給我id: 顯示 LINE 個人 ID\n" +
	"3. 群組id: 顯示 LINE 群組 ID\n" +
	"4. 狗蛋出去: 機器人離開群組\n" +
	"5. 當前模型: 機器人現正使用的模型\n" +
	"6. 狗蛋生成: 生成圖片\n" +
	"7. 我要翻譯: 翻譯語言\n" +
	"8. 停止翻譯: 停止翻譯\n" +
	"9. 狗蛋情勒 狗蛋的超能力"

// ChatProvider answers free-form chat messages.
type ChatProvider interface {
	Reply(ctx context.Context, model, userText string) (string, error)
}

// ImageProvider generates an image and returns its URL.
type ImageProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SearchProvider runs a web search and summarizes the results.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]string, error)
	Summarize(ctx context.Context, results []string, query string) (string, error)
}

// TranslateProvider translates text between languages.
type TranslateProvider interface {
	Translate(ctx context.Context, method, text, src, tgt string) (string, error)
}

// TranscribeProvider converts audio to text and answers the transcript.
type TranscribeProvider interface {
	Transcribe(ctx context.Context, messageID string) (string, error)
	Answer(ctx context.Context, transcript string) (string, error)
}

// Router dispatches events to handlers through an ordered rule list.
// The first rule whose predicate matches wins.
type Router struct {
	store      session.Store
	chat       ChatProvider
	images     ImageProvider
	search     SearchProvider
	translator TranslateProvider
	transcribe TranscribeProvider
	cfg        *config.Config
	log        *logger.Logger
	pick       func(n int) int
	rules      []rule
}

// RouterConfig holds dependencies for creating a Router. Search may be
// nil when the search engine is not configured.
type RouterConfig struct {
	Store      session.Store
	Chat       ChatProvider
	Images     ImageProvider
	Search     SearchProvider
	Translator TranslateProvider
	Transcribe TranscribeProvider
	Config     *config.Config
	Logger     *logger.Logger
}

type rule struct {
	name   string
	match  func(r *Router, ev Event, text string) bool
	handle func(r *Router, ctx context.Context, ev Event, text string) (Action, error)
}

// NewRouter creates a Router with the command rules in match order.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		store:      cfg.Store,
		chat:       cfg.Chat,
		images:     cfg.Images,
		search:     cfg.Search,
		translator: cfg.Translator,
		transcribe: cfg.Transcribe,
		cfg:        cfg.Config,
		log:        cfg.Logger.WithModule("bot.router"),
		pick:       rand.IntN,
	}
	r.rules = textRules()
	return r
}

// textRules is the command table. Order matters: earlier rules win, and
// the chat fallback at the end only runs when nothing else matched.
func textRules() []rule {
	return []rule{
		{
			name:   "translate_stop",
			match:  matchAll("停", "翻譯"),
			handle: (*Router).handleTranslateStop,
		},
		{
			name:   "whoami",
			match:  matchAll("給我", "id"),
			handle: (*Router).handleWhoAmI,
		},
		{
			name: "group_id",
			match: func(_ *Router, ev Event, text string) bool {
				return ev.InGroup() && containsAll(text, "群組", "id")
			},
			handle: (*Router).handleGroupID,
		},
		{
			name: "group_id_outside_group",
			match: func(_ *Router, ev Event, text string) bool {
				return !ev.InGroup() && containsAll(text, "群組", "id")
			},
			handle: replyWith(replyGroupOnly),
		},
		{
			name:   "guilt_trip",
			match:  matchAll("狗蛋", "情勒"),
			handle: (*Router).handleGuiltTrip,
		},
		{
			name:   "command_list",
			match:  matchAll("指令", "狗蛋"),
			handle: replyWith(commandListText),
		},
		{
			name: "permission_denied",
			match: func(r *Router, ev Event, text string) bool {
				return r.isForbidden(ev, text)
			},
			handle: (*Router).handleForbidden,
		},
		{
			name: "leave_group",
			match: func(_ *Router, ev Event, text string) bool {
				return ev.InGroup() && containsAll(text, "狗蛋", "出去")
			},
			handle: (*Router).handleLeaveGroup,
		},
		{
			name:   "generate_image",
			match:  matchAll("狗蛋生成"),
			handle: (*Router).handleGenerateImage,
		},
		{
			name:   "current_model",
			match:  matchAll("模型", "當前"),
			handle: (*Router).handleCurrentModel,
		},
		{
			name:   "change_model",
			match:  matchAll("換", "模型"),
			handle: (*Router).handleChangeModel,
		},
		{
			name:   "translate_start",
			match:  matchAll("我要", "翻譯"),
			handle: (*Router).handleTranslateStart,
		},
		{
			name: "translate_intercept",
			match: func(r *Router, ev Event, _ string) bool {
				return r.store.Translation(ev.UserID).Enabled
			},
			handle: (*Router).handleTranslateIntercept,
		},
		{
			name: "search",
			match: func(_ *Router, _ Event, text string) bool {
				return strings.HasPrefix(text, "狗蛋搜尋")
			},
			handle: (*Router).handleSearch,
		},
		{
			name: "group_silence",
			match: func(_ *Router, ev Event, text string) bool {
				return ev.InGroup() && !strings.Contains(text, "狗蛋")
			},
			handle: func(_ *Router, _ context.Context, _ Event, _ string) (Action, error) {
				return Action{}, nil
			},
		},
		{
			name: "chat",
			match: func(_ *Router, _ Event, _ string) bool {
				return true
			},
			handle: (*Router).handleChat,
		},
	}
}

// Route dispatches one event and returns the resulting action.
func (r *Router) Route(ctx context.Context, ev Event) (Action, error) {
	switch ev.Kind {
	case KindText:
		return r.routeText(ctx, ev)
	case KindAudio:
		return r.routeAudio(ctx, ev)
	case KindPostback:
		return r.routePostback(ctx, ev)
	case KindFollow:
		return Action{Messages: textMessages(followGreetingText)}, nil
	default:
		return Action{}, fmt.Errorf("unsupported event kind %d", ev.Kind)
	}
}

func (r *Router) routeText(ctx context.Context, ev Event) (Action, error) {
	text := NormalizeText(ev.Text)
	if text == "" {
		return Action{}, nil
	}

	for _, rl := range r.rules {
		if rl.match(r, ev, text) {
			r.log.WithField("rule", rl.name).WithField("chat_id", ev.ChatID()).Debug("Rule matched")
			return rl.handle(r, ctx, ev, text)
		}
	}
	return Action{}, nil
}

func (r *Router) handleTranslateStop(_ context.Context, ev Event, _ string) (Action, error) {
	r.store.UpdateTranslation(ev.UserID, func(t *session.Translation) {
		t.Enabled = false
	})
	return Action{Messages: textMessages(replyTranslateStopped)}, nil
}

func (r *Router) handleWhoAmI(_ context.Context, ev Event, _ string) (Action, error) {
	reply := fmt.Sprintf("您的 User ID 是：\n%s", ev.UserID)
	if ev.InGroup() {
		reply += fmt.Sprintf("\n這個群組的 ID 是：\n%s", ev.GroupID)
	}
	return Action{Messages: textMessages(reply)}, nil
}

func (r *Router) handleGroupID(_ context.Context, ev Event, _ string) (Action, error) {
	return Action{Messages: textMessages(fmt.Sprintf("這個群組的 ID 是：\n%s", ev.GroupID))}, nil
}

func (r *Router) handleGuiltTrip(_ context.Context, _ Event, _ string) (Action, error) {
	return Action{Messages: textMessages(guiltTripReplies[r.pick(len(guiltTripReplies))])}, nil
}

// isForbidden gates the AI commands behind the allow-lists. Empty
// lists allow everyone, so this never matches by default.
func (r *Router) isForbidden(ev Event, text string) bool {
	if ev.InGroup() {
		if !r.cfg.IsGroupAllowed(ev.GroupID) {
			return true
		}
		return !r.cfg.IsUserAllowed(ev.UserID) && strings.Contains(text, "狗蛋")
	}
	return !r.cfg.IsUserAllowed(ev.UserID)
}

func (r *Router) handleForbidden(_ context.Context, ev Event, _ string) (Action, error) {
	if ev.InGroup() && !r.cfg.IsGroupAllowed(ev.GroupID) {
		return Action{Messages: textMessages(replyGroupForbidden)}, nil
	}
	return Action{Messages: textMessages(replyUserForbidden)}, nil
}

func (r *Router) handleLeaveGroup(_ context.Context, ev Event, _ string) (Action, error) {
	return Action{
		Messages:   textMessages(replyFarewell),
		LeaveGroup: ev.GroupID,
	}, nil
}

func (r *Router) handleGenerateImage(ctx context.Context, ev Event, text string) (Action, error) {
	prompt := strings.TrimSpace(afterFirst(text, "狗蛋生成"))
	if prompt == "" {
		prompt = "一個美麗的風景"
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

func (r *Router) handleCurrentModel(_ context.Context, ev Event, _ string) (Action, error) {
	model := r.store.Model(ev.ChatID())
	if model == "" {
		model = defaultDisplayModel
	}
	return Action{Messages: textMessages(fmt.Sprintf("🤖 現在使用的 AI 模型是：\n%s", model))}, nil
}

func (r *Router) handleChangeModel(_ context.Context, _ Event, _ string) (Action, error) {
	return Action{Messages: BuildModelMenu(r.cfg.BaseURL)}, nil
}

func (r *Router) handleTranslateStart(_ context.Context, _ Event, _ string) (Action, error) {
	return Action{Messages: BuildTranslationMethodMenu(r.cfg.BaseURL)}, nil
}

func (r *Router) handleTranslateIntercept(ctx context.Context, ev Event, _ string) (Action, error) {
	tr := r.store.Translation(ev.UserID)
	src := tr.Source
	if src == "" {
		src = "auto"
	}
	tgt := tr.Target
	if tgt == "" {
		tgt = "en"
	}

	translated, err := r.translator.Translate(ctx, tr.Method, ev.Text, src, tgt)
	if err != nil {
		r.log.WithError(err).WithField("chat_id", ev.ChatID()).Error("Translation failed")
		return Action{Messages: textMessages(replyTranslateFailed)}, nil
	}
	return Action{Messages: textMessages("翻譯結果：" + translated)}, nil
}

func (r *Router) handleSearch(ctx context.Context, ev Event, text string) (Action, error) {
	query := strings.TrimSpace(strings.Replace(text, "狗蛋搜尋", "", 1))
	if query == "" {
		return Action{Messages: textMessages(replySearchHint)}, nil
	}
	if r.search == nil {
		return Action{Messages: textMessages(replyNoSearchResults)}, nil
	}

	results, err := r.search.Search(ctx, query)
	if err != nil {
		r.log.WithError(err).WithField("query", query).Error("Search failed")
		return Action{Messages: textMessages(replyNoSearchResults)}, nil
	}
	if len(results) == 0 {
		return Action{Messages: textMessages(replyNoSearchResults)}, nil
	}

	summary, err := r.search.Summarize(ctx, results, query)
	if err != nil {
		r.log.WithError(err).WithField("query", query).Error("Summarize failed")
		return Action{Messages: textMessages(replyServerError)}, nil
	}
	return Action{Messages: textMessages(summary)}, nil
}

func (r *Router) handleChat(ctx context.Context, ev Event, text string) (Action, error) {
	model := r.store.Model(ev.ChatID())
	if model == "" {
		model = defaultDispatchModel
	}

	reply, err := r.chat.Reply(ctx, model, text)
	if err != nil {
		r.log.WithError(err).WithField("chat_id", ev.ChatID()).WithField("model", model).Error("Chat reply failed")
		if errors.Is(err, provider.ErrNoChoices) {
			return Action{Messages: textMessages(replyNoResponse)}, nil
		}
		return Action{Messages: textMessages(replyServerError)}, nil
	}
	return Action{Messages: textMessages(reply)}, nil
}

// matchAll builds a predicate requiring every substring to appear.
func matchAll(subs ...string) func(*Router, Event, string) bool {
	return func(_ *Router, _ Event, text string) bool {
		return containsAll(text, subs...)
	}
}

func containsAll(text string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(text, sub) {
			return false
		}
	}
	return true
}

// afterFirst returns the part of text after the first occurrence of
// sep, or "" when sep is absent.
func afterFirst(text, sep string) string {
	_, after, found := strings.Cut(text, sep)
	if !found {
		return ""
	}
	return after
}

func replyWith(reply string) func(*Router, context.Context, Event, string) (Action, error) {
	return func(_ *Router, _ context.Context, _ Event, _ string) (Action, error) {
		return Action{Messages: textMessages(reply)}, nil
	}
}

func textMessages(texts ...string) []messaging_api.MessageInterface {
	msgs := make([]messaging_api.MessageInterface, len(texts))
	for i, text := range texts {
		msgs[i] = lineutil.NewTextMessage(text)
	}
	return msgs
}
