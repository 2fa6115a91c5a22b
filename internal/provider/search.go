package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/singleflight"
)

const (
	customSearchURL = "https://www.googleapis.com/customsearch/v1"
	maxSearchItems  = 5
)

const summarizeSystemPrompt = "你是一個智慧助理，依照這些資料, 條列總結跟附上連結。"

// Searcher queries Google Custom Search and summarizes the results
// with OpenAI. Concurrent identical queries are deduplicated.
type Searcher struct {
	httpClient *http.Client
	openai     openai.Client
	searchKey  string
	cx         string
	baseURL    string
	group      singleflight.Group
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewSearcher creates a search adapter. searchKey and cx identify the
// Google Custom Search engine; openaiKey is used for summarization.
func NewSearcher(searchKey, cx, openaiKey string, log *logger.Logger, m *metrics.Metrics) *Searcher {
	return &Searcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		openai:     openai.NewClient(option.WithAPIKey(openaiKey)),
		searchKey:  searchKey,
		cx:         cx,
		baseURL:    customSearchURL,
		log:        log.WithModule("provider.search"),
		metrics:    m,
	}
}

type searchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

// Search returns up to 5 results formatted as "title - link". A nil
// slice with nil error means the query matched nothing.
func (s *Searcher) Search(ctx context.Context, query string) ([]string, error) {
	v, err, _ := s.group.Do(query, func() (any, error) {
		return s.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	results, _ := v.([]string)
	return results, nil
}

func (s *Searcher) search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", s.searchKey)
	params.Set("cx", s.cx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	s.metrics.RecordProvider("google_search", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("custom search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var results []string
	for i, item := range parsed.Items {
		if i >= maxSearchItems {
			break
		}
		results = append(results, fmt.Sprintf("%s - %s", item.Title, item.Link))
	}

	s.log.WithContext(ctx).WithField("query", query).WithField("result_count", len(results)).Debug("Search completed")
	return results, nil
}

// Summarize condenses search results into a short digest for the chat.
func (s *Searcher) Summarize(ctx context.Context, results []string, query string) (string, error) {
	prompt := fmt.Sprintf(`
    使用者查詢: %s

    以下是 Google 搜尋結果的標題與連結：
    %s

    根據這些結果提供簡單明瞭的摘要（100 字內）。
    **請忽略新聞網站首頁或過期新聞（如 2017 回顧新聞），僅總結最新的有效內容**。
    **若資料多為天氣內容, 請確認日期符合後簡述推論天氣可能有什麼變化**。
    **若資料多為財金股市內容, 請簡述在這些資料內可以知道什麼趨勢**
    **若資料多娛樂八卦內容, 請簡述在這些資料內可以猜測有什麼事情發生了**
    `, query, strings.Join(results, "\n"))

	start := time.Now()
	resp, err := s.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizeSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	s.metrics.RecordProvider("openai", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("summarize search results: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
