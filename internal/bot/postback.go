package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/gordonsay/goudan-linebot-go/internal/session"
)

// routePostback handles menu selections: model choice and the three
// translation wizard steps. Wizard steps reply with a confirmation and
// push the next menu to the chat.
func (r *Router) routePostback(_ context.Context, ev Event) (Action, error) {
	data := ev.PostbackData
	if len(data) > r.cfg.Bot.MaxPostbackDataSize {
		r.log.WithField("data_size", len(data)).Warn("Postback data exceeds size limit")
		return Action{Messages: textMessages(replyUnknownPostback)}, nil
	}

	if model, ok := modelChoices[data]; ok {
		r.store.SetModel(ev.ChatID(), model)
		r.log.WithField("chat_id", ev.ChatID()).WithField("model", model).Info("Model selected")
		return Action{Messages: textMessages(
			fmt.Sprintf("已選擇語言模型: %s！\n\n🔄 輸入「換模型」可重新選擇", model),
		)}, nil
	}

	switch data {
	case "translate_gpt", "translate_google":
		method := "gpt"
		reply := "翻譯模型選擇：GPT"
		if data == "translate_google" {
			method = "google"
			reply = "翻譯模型選擇：Google"
		}
		r.store.UpdateTranslation(ev.UserID, func(t *session.Translation) {
			t.Method = method
		})
		return Action{
			Messages:     textMessages(reply),
			PushMessages: BuildSourceLanguageMenu(),
		}, nil
	}

	if lang, ok := strings.CutPrefix(data, "src_"); ok {
		r.store.UpdateTranslation(ev.UserID, func(t *session.Translation) {
			t.Source = lang
		})
		return Action{
			Messages: textMessages(
				fmt.Sprintf("來源語言已設定為 %s。\n請選擇翻譯目標語言：", lang),
			),
			PushMessages: BuildTargetLanguageMenu(),
		}, nil
	}

	if lang, ok := strings.CutPrefix(data, "tgt_"); ok {
		var src string
		r.store.UpdateTranslation(ev.UserID, func(t *session.Translation) {
			t.Target = lang
			t.Enabled = true
			src = t.Source
		})
		return Action{Messages: textMessages(
			fmt.Sprintf("翻譯設定完成：\n來源語言 %s -> 目標語言 %s\n請輸入欲翻譯內容:", src, lang),
		)}, nil
	}

	r.log.WithField("data", data).Debug("Unknown postback data")
	return Action{Messages: textMessages(replyUnknownPostback)}, nil
}
