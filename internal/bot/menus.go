package bot

import (
	"github.com/gordonsay/goudan-linebot-go/internal/lineutil"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const homepageURL = "https://gordonsay.github.io/gordonwu/personalpage/index_personal.html"

// modelMenuBubble builds one model card: hero image, tagline, and a
// postback button carrying the model selection.
func modelMenuBubble(imageURL, tagline, label, data string) messaging_api.FlexBubble {
	body := lineutil.NewFlexBox("vertical",
		lineutil.NewFlexText(tagline).WithWeight("bold").WithSize("xl").WithAlign("center").FlexText,
		lineutil.NewFlexButton(lineutil.NewPostbackAction(label, data)).WithStyle("primary").FlexButton,
	).WithJustifyContent("center")

	return *lineutil.NewFlexBubble(lineutil.NewHeroImage(imageURL), body, nil).FlexBubble
}

// BuildModelMenu returns the model selection response: a greeting and
// a carousel of model cards plus a link card to the author's homepage.
func BuildModelMenu(baseURL string) []messaging_api.MessageInterface {
	bubbles := []messaging_api.FlexBubble{
		modelMenuBubble(baseURL+"/static/openai.png", "輕量強大-支援語音輸入", "GPT-4o Mini", "model_gpt4o_mini"),
		modelMenuBubble(baseURL+"/static/deepseek.png", "語意檢索強", "Deepseek-R1", "model_deepseek"),
		modelMenuBubble(baseURL+"/static/meta.jpg", "長文本適配", "LLama3-8b", "model_llama3"),
	}

	linkBody := lineutil.NewFlexBox("vertical",
		lineutil.NewFlexText("高登基地").WithWeight("bold").WithSize("xl").WithAlign("center").FlexText,
		lineutil.NewFlexButton(lineutil.NewURIAction("開啟基地", homepageURL)).WithStyle("primary").FlexButton,
	).WithJustifyContent("center")
	bubbles = append(bubbles, *lineutil.NewFlexBubble(lineutil.NewHeroImage(baseURL+"/static/giticon.png"), linkBody, nil).FlexBubble)

	return []messaging_api.MessageInterface{
		lineutil.NewTextMessage("你好，我是狗蛋🐶 ！\n請選擇 AI 模型後發問。"),
		lineutil.NewFlexMessage("請選擇 AI 模型", lineutil.NewFlexCarousel(bubbles)),
	}
}

// translationMethodBubble builds one translation method card with the
// selection button in the footer.
func translationMethodBubble(imageURL, tagline, data string) messaging_api.FlexBubble {
	body := lineutil.NewFlexBox("vertical",
		lineutil.NewFlexText(tagline).WithWeight("bold").WithSize("xl").WithAlign("center").FlexText,
	).WithJustifyContent("center")
	footer := lineutil.NewFlexBox("vertical",
		lineutil.NewFlexButton(lineutil.NewPostbackAction("選擇此方案", data)).FlexButton,
	)

	return *lineutil.NewFlexBubble(lineutil.NewHeroImage(imageURL), body, footer).FlexBubble
}

// BuildTranslationMethodMenu returns the translation method chooser.
func BuildTranslationMethodMenu(baseURL string) []messaging_api.MessageInterface {
	bubbles := []messaging_api.FlexBubble{
		translationMethodBubble(baseURL+"/static/openai.png", "精準但較緩慢", "translate_gpt"),
		translationMethodBubble(baseURL+"/static/googletrans1.png", "快速直覺", "translate_google"),
	}

	return []messaging_api.MessageInterface{
		lineutil.NewTextMessage("請選擇翻譯方案："),
		lineutil.NewFlexMessage("請選擇翻譯方案", lineutil.NewFlexCarousel(bubbles)),
	}
}

// languageOptions are the supported translation languages, shown in
// two button rows.
var languageOptions = [][]struct {
	Label string
	Code  string
}{
	{
		{Label: "繁體中文", Code: "zh-TW"},
		{Label: "简体中文", Code: "zh-CN"},
	},
	{
		{Label: "日本語", Code: "ja"},
		{Label: "English", Code: "en"},
		{Label: "한국어", Code: "ko"},
	},
}

// languageMenuBubble builds a single bubble with one postback button
// per supported language.
func languageMenuBubble(title, dataPrefix string) *messaging_api.FlexBubble {
	contents := []messaging_api.FlexComponentInterface{
		lineutil.NewFlexText(title).WithWeight("bold").WithSize("xl").WithAlign("center").WithWrap(true).FlexText,
	}
	for _, row := range languageOptions {
		var buttons []messaging_api.FlexComponentInterface
		for _, lang := range row {
			buttons = append(buttons, lineutil.NewFlexButton(lineutil.NewPostbackAction(lang.Label, dataPrefix+lang.Code)).FlexButton)
		}
		contents = append(contents, lineutil.NewFlexBox("horizontal", buttons...).WithSpacing("sm").FlexBox)
	}

	return lineutil.NewFlexBubble(nil, lineutil.NewFlexBox("vertical", contents...).WithSpacing("md"), nil).FlexBubble
}

// BuildSourceLanguageMenu returns the source language chooser.
func BuildSourceLanguageMenu() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessage("請選擇翻譯來源語言："),
		lineutil.NewFlexMessage("請選擇翻譯來源語言", languageMenuBubble("請選擇翻譯來源語言：", "src_")),
	}
}

// BuildTargetLanguageMenu returns the target language chooser.
func BuildTargetLanguageMenu() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessage("請選擇翻譯目標語言："),
		lineutil.NewFlexMessage("請選擇翻譯目標語言", languageMenuBubble("請選擇翻譯目標語言：", "tgt_")),
	}
}
