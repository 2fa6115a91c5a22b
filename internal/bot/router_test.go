package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gordonsay/goudan-linebot-go/internal/config"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/provider"
	"github.com/gordonsay/goudan-linebot-go/internal/session"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply  string
	err    error
	models []string
	texts  []string
}

func (f *fakeChat) Reply(_ context.Context, model, text string) (string, error) {
	f.models = append(f.models, model)
	f.texts = append(f.texts, text)
	return f.reply, f.err
}

type fakeImages struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.url, f.err
}

type fakeSearch struct {
	results        []string
	searchErr      error
	summary        string
	summarizeErr   error
	searchCalls    []string
	summarizeCalls []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]string, error) {
	f.searchCalls = append(f.searchCalls, query)
	return f.results, f.searchErr
}

func (f *fakeSearch) Summarize(_ context.Context, _ []string, query string) (string, error) {
	f.summarizeCalls = append(f.summarizeCalls, query)
	return f.summary, f.summarizeErr
}

type fakeTranslator struct {
	result  string
	err     error
	methods []string
	srcs    []string
	tgts    []string
}

func (f *fakeTranslator) Translate(_ context.Context, method, _, src, tgt string) (string, error) {
	f.methods = append(f.methods, method)
	f.srcs = append(f.srcs, src)
	f.tgts = append(f.tgts, tgt)
	return f.result, f.err
}

type fakeTranscriber struct {
	transcript    string
	transcribeErr error
	answer        string
	answerErr     error
	answerCalls   int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return f.transcript, f.transcribeErr
}

func (f *fakeTranscriber) Answer(_ context.Context, _ string) (string, error) {
	f.answerCalls++
	return f.answer, f.answerErr
}

type routerFixture struct {
	router     *Router
	store      *session.MemoryStore
	chat       *fakeChat
	images     *fakeImages
	search     *fakeSearch
	translator *fakeTranslator
	transcribe *fakeTranscriber
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		store:      session.NewMemory(),
		chat:       &fakeChat{reply: "汪汪"},
		images:     &fakeImages{url: "https://img.example.com/1.png"},
		search:     &fakeSearch{summary: "摘要"},
		translator: &fakeTranslator{result: "translated"},
		transcribe: &fakeTranscriber{transcript: "你好狗蛋", answer: "汪"},
	}
	f.router = NewRouter(RouterConfig{
		Store:      f.store,
		Chat:       f.chat,
		Images:     f.images,
		Search:     f.search,
		Translator: f.translator,
		Transcribe: f.transcribe,
		Config: &config.Config{
			BaseURL: "https://bot.example.com",
			Bot:     config.BotConfig{MaxPostbackDataSize: 300},
		},
		Logger: logger.New("error"),
	})
	f.router.pick = func(int) int { return 0 }
	return f
}

func userEvent(text string) Event {
	return Event{Kind: KindText, UserID: "U123", ReplyToken: "token-1234567890", Text: text}
}

func groupEvent(text string) Event {
	ev := userEvent(text)
	ev.GroupID = "Cgroup"
	return ev
}

func textOf(t *testing.T, msg messaging_api.MessageInterface) string {
	t.Helper()
	textMsg, ok := msg.(*messaging_api.TextMessage)
	require.True(t, ok, "expected text message, got %T", msg)
	return textMsg.Text
}

func route(t *testing.T, f *routerFixture, ev Event) Action {
	t.Helper()
	action, err := f.router.Route(context.Background(), ev)
	require.NoError(t, err)
	return action
}

func TestWhoAmI(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("給我id"))
	require.Len(t, action.Messages, 1)
	assert.Equal(t, "您的 User ID 是：\nU123", textOf(t, action.Messages[0]))

	action = route(t, f, groupEvent("給我id"))
	assert.Equal(t, "您的 User ID 是：\nU123\n這個群組的 ID 是：\nCgroup", textOf(t, action.Messages[0]))
}

func TestWhoAmINeverReachesChat(t *testing.T) {
	f := newFixture(t)

	// Full-width and mixed-case variants still hit the ID rule.
	for _, text := range []string{"給我ID", "給我ｉｄ", "給我 Id"} {
		route(t, f, userEvent(text))
	}
	assert.Empty(t, f.chat.models)
}

func TestGroupIDInGroup(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, groupEvent("群組id"))
	assert.Equal(t, "這個群組的 ID 是：\nCgroup", textOf(t, action.Messages[0]))
}

func TestGroupIDOutsideGroup(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("群組id"))
	assert.Equal(t, "❌ 此指令僅限群組使用", textOf(t, action.Messages[0]))
	assert.Empty(t, f.chat.models)
}

func TestGuiltTrip(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("狗蛋情勒一下"))
	assert.Equal(t, "🥱你看我有想告訴你嗎？", textOf(t, action.Messages[0]))
}

func TestCommandList(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("狗蛋指令"))
	assert.Contains(t, textOf(t, action.Messages[0]), "📝 支援的指令：")
}

func TestLeaveGroup(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, groupEvent("狗蛋出去"))
	assert.Equal(t, "我也不想留, 掰", textOf(t, action.Messages[0]))
	assert.Equal(t, "Cgroup", action.LeaveGroup)
}

func TestLeaveGroupIgnoredOutsideGroup(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("狗蛋出去"))
	assert.Empty(t, action.LeaveGroup)
	// Falls through to chat since it addresses the bot.
	assert.Len(t, f.chat.models, 1)
}

func TestGenerateImage(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("狗蛋生成 一隻貓"))
	require.Len(t, action.Messages, 2)
	img, ok := action.Messages[0].(*messaging_api.ImageMessage)
	require.True(t, ok)
	assert.Equal(t, "https://img.example.com/1.png", img.OriginalContentUrl)
	assert.Equal(t, "生成完成, 你瞧瞧🐧", textOf(t, action.Messages[1]))
	assert.Equal(t, []string{"一隻貓"}, f.images.prompts)
}

func TestGenerateImageDefaultPrompt(t *testing.T) {
	f := newFixture(t)

	route(t, f, userEvent("狗蛋生成"))
	assert.Equal(t, []string{"一個美麗的風景"}, f.images.prompts)
}

func TestGenerateImageFailureIsSingleFixedMessage(t *testing.T) {
	f := newFixture(t)
	f.images.url = ""
	f.images.err = errors.New("image API down")

	action := route(t, f, userEvent("狗蛋生成 貓"))
	require.Len(t, action.Messages, 1)
	assert.Equal(t, "❌ 圖片生成失敗，請稍後再試！", textOf(t, action.Messages[0]))
}

func TestCurrentModelDefault(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("當前模型"))
	assert.Equal(t, "🤖 現在使用的 AI 模型是：\nDeepseek-R1", textOf(t, action.Messages[0]))
}

func TestChangeModelMenu(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("換模型"))
	require.Len(t, action.Messages, 2)
	assert.Equal(t, "你好，我是狗蛋🐶 ！\n請選擇 AI 模型後發問。", textOf(t, action.Messages[0]))
	_, ok := action.Messages[1].(*messaging_api.FlexMessage)
	assert.True(t, ok)
}

func TestModelSelectionRoundTrip(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, Event{Kind: KindPostback, UserID: "U123", PostbackData: "model_llama3"})
	assert.Equal(t, "已選擇語言模型: llama3-8b-8192！\n\n🔄 輸入「換模型」可重新選擇", textOf(t, action.Messages[0]))

	action = route(t, f, userEvent("當前模型"))
	assert.Equal(t, "🤖 現在使用的 AI 模型是：\nllama3-8b-8192", textOf(t, action.Messages[0]))

	route(t, f, userEvent("嗨狗蛋"))
	assert.Equal(t, []string{"llama3-8b-8192"}, f.chat.models)
}

func TestModelSelectionIsPerChat(t *testing.T) {
	f := newFixture(t)

	route(t, f, Event{Kind: KindPostback, UserID: "U123", GroupID: "Cgroup", PostbackData: "model_gpt4o"})

	route(t, f, userEvent("嗨"))
	assert.Equal(t, []string{defaultDispatchModel}, f.chat.models)

	route(t, f, groupEvent("狗蛋你好"))
	assert.Equal(t, "GPT-4o", f.chat.models[1])
}

func TestGroupSilenceWithoutBotName(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, groupEvent("大家午安"))
	assert.True(t, action.IsEmpty())
	assert.Empty(t, f.chat.models)
}

func TestChatFallback(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("今天天氣如何"))
	assert.Equal(t, "汪汪", textOf(t, action.Messages[0]))
	assert.Equal(t, []string{defaultDispatchModel}, f.chat.models)
}

func TestChatServerError(t *testing.T) {
	f := newFixture(t)
	f.chat.reply = ""
	f.chat.err = errors.New("boom")

	action := route(t, f, userEvent("嗨"))
	assert.Equal(t, "❌ 狗蛋伺服器錯誤，請稍後再試。", textOf(t, action.Messages[0]))
}

func TestChatNoChoices(t *testing.T) {
	f := newFixture(t)
	f.chat.reply = ""
	f.chat.err = provider.ErrNoChoices

	action := route(t, f, userEvent("嗨"))
	assert.Equal(t, "❌ 狗蛋無法回應，請稍後再試。", textOf(t, action.Messages[0]))
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.search.results = []string{"OpenAI - https://openai.com"}

	action := route(t, f, userEvent("狗蛋搜尋 openai"))
	assert.Equal(t, "摘要", textOf(t, action.Messages[0]))
	assert.Equal(t, []string{"openai"}, f.search.searchCalls)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, userEvent("狗蛋搜尋"))
	assert.Equal(t, "請輸入要搜尋的內容，例如：狗蛋搜尋 OpenAI", textOf(t, action.Messages[0]))
	assert.Empty(t, f.search.searchCalls)
}

func TestSearchNoResultsSkipsSummarizer(t *testing.T) {
	f := newFixture(t)
	f.search.results = nil

	action := route(t, f, userEvent("狗蛋搜尋 冷僻主題"))
	assert.Equal(t, "❌ 找不到相關資料。", textOf(t, action.Messages[0]))
	assert.Empty(t, f.search.summarizeCalls)
}

func TestFollowGreeting(t *testing.T) {
	f := newFixture(t)

	action := route(t, f, Event{Kind: KindFollow, UserID: "U123", ReplyToken: "token-1234567890"})
	text := textOf(t, action.Messages[0])
	assert.Contains(t, text, "7. 我要翻譯: 翻譯語言")
	assert.Contains(t, text, "9. 狗蛋情勒 狗蛋的超能力")
}

func TestAllowListBlocksUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.router.cfg.AllowedUsers = []string{"Uallowed"}

	action := route(t, f, userEvent("嗨"))
	assert.Equal(t, "❌ 你沒有權限使用 AI 服務", textOf(t, action.Messages[0]))
	assert.Empty(t, f.chat.models)
}

func TestAllowListBlocksUnknownGroup(t *testing.T) {
	f := newFixture(t)
	f.router.cfg.AllowedGroups = []string{"Callowed"}

	action := route(t, f, groupEvent("狗蛋嗨"))
	assert.Equal(t, "❌ 本群組沒有權限使用 AI 服務", textOf(t, action.Messages[0]))
}

func TestEmptyAllowListsPermitEveryone(t *testing.T) {
	f := newFixture(t)

	route(t, f, userEvent("嗨"))
	assert.Len(t, f.chat.models, 1)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "給我id", NormalizeText("給我ＩＤ"))
	assert.Equal(t, "hello", NormalizeText("  HELLO  "))
	assert.Equal(t, "狗蛋搜尋 go", NormalizeText("狗蛋搜尋 Go"))
}

func TestCommandListTexts(t *testing.T) {
	assert.Equal(t, 5, strings.Count(commandListText, "\n")-1)
	assert.Contains(t, followGreetingText, "8. 停止翻譯: 停止翻譯")
}
