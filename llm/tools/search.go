package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"go.uber.org/zap"
)

// WebSearchConfig Google Custom Search 工具配置
type WebSearchConfig struct {
	APIKey   string
	EngineID string
	BaseURL  string
	Timeout  time.Duration
	Client   *http.Client
}

// DefaultWebSearchConfig 返回默认配置（密钥需调用方填充）
func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{
		BaseURL: "https://www.googleapis.com/customsearch/v1",
		Timeout: 10 * time.Second,
	}
}

// SearchWebKeywords search_web 的意图关键词
var SearchWebKeywords = []string{
	"search", "find", "look up", "google", "internet", "web", "current", "recent", "latest",
	"news", "what is", "who is", "where is", "when did", "how to", "price", "cost", "today", "current price",
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type googleSearchResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		DisplayLink string `json:"displayLink"`
	} `json:"items"`
}

// searchStatusError 非 200 响应
type searchStatusError struct {
	Status int
	Body   string
}

func (e *searchStatusError) Error() string {
	return fmt.Sprintf("google search returned status %d: %s", e.Status, e.Body)
}

// WebSearcher 调用 Google Custom Search 并把结果格式化为文本
type WebSearcher struct {
	cfg    WebSearchConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebSearcher 创建搜索客户端
func NewWebSearcher(cfg WebSearchConfig, logger *zap.Logger) *WebSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWebSearchConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	return &WebSearcher{cfg: cfg, client: client, logger: logger.With(zap.String("tool", "search_web"))}
}

// Configured 报告是否配置了 API 密钥与引擎 ID
func (s *WebSearcher) Configured() bool {
	return s.cfg.APIKey != "" && s.cfg.EngineID != ""
}

// Search 返回格式化后的搜索结果；所有失败都转成面向用户的说明文本
func (s *WebSearcher) Search(ctx context.Context, query string, maxResults int) string {
	if maxResults <= 0 {
		maxResults = 5
	}
	if !s.Configured() {
		return "Web search is not configured. Set GOOGLE_CUSTOM_SEARCH_API_KEY and GOOGLE_CUSTOM_SEARCH_ENGINE_ID to enable it."
	}

	s.logger.Debug("searching web", zap.String("query", query))
	resp, err := s.do(ctx, query, maxResults)
	if err != nil {
		return searchFailureText(err, s.logger)
	}

	if len(resp.Items) == 0 {
		return fmt.Sprintf("No search results found for '%s'. This might be a very specific or recent topic. Try using different keywords or rephrasing your query.", query)
	}

	items := resp.Items
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	results := make([]string, 0, len(items))
	for i, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "**Result %d: %s**\n", i+1, orDefault(item.Title, "No title"))
		fmt.Fprintf(&b, "Source: %s\n", orDefault(item.DisplayLink, "No domain"))
		fmt.Fprintf(&b, "Description: %s\n", orDefault(item.Snippet, "No description available"))
		fmt.Fprintf(&b, "URL: %s\n", orDefault(item.Link, "No link"))
		results = append(results, b.String())
	}
	s.logger.Debug("search completed", zap.Int("results", len(results)))
	return strings.Join(results, "\n")
}

func (s *WebSearcher) do(ctx context.Context, query string, maxResults int) (*googleSearchResponse, error) {
	params := url.Values{
		"key":    {s.cfg.APIKey},
		"cx":     {s.cfg.EngineID},
		"q":      {query},
		"num":    {strconv.Itoa(min(maxResults, 10))},
		"safe":   {"active"},
		"fields": {"items(title,link,snippet,displayLink)"},
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &searchStatusError{Status: resp.StatusCode, Body: providers.ReadErrorMessage(resp.Body)}
	}
	var out googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

func searchFailureText(err error, logger *zap.Logger) string {
	var statusErr *searchStatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		logger.Warn("google search error", zap.Int("status", statusErr.Status), zap.String("body", statusErr.Body))
		switch statusErr.Status {
		case http.StatusForbidden:
			return "Google Search API quota exceeded or access denied. Please try again later or contact administrator."
		case http.StatusBadRequest:
			return "Invalid search query. Please rephrase your search terms and try again."
		default:
			return fmt.Sprintf("Search service temporarily unavailable (Error %d). Please try again later.", statusErr.Status)
		}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		logger.Warn("google search timeout")
		return "Search request timed out. Please try again with a shorter query."
	case errors.As(err, &netErr):
		logger.Warn("network error during search", zap.Error(err))
		return "Network error occurred during search. Please check your internet connection and try again."
	default:
		logger.Error("unexpected search error", zap.Error(err))
		return "An unexpected error occurred during search. Please try again later."
	}
}

// NewWebSearchTool 构造 search_web 工具
func NewWebSearchTool(searcher *WebSearcher) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args webSearchArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.Query) == "" {
			return nil, errors.New("query is required")
		}
		return TextResult(searcher.Search(ctx, args.Query, args.MaxResults))
	}

	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "search_web",
			Description: "Search the web for current information, recent events, or topics not in my training data",
			Parameters: objectSchema(
				`"query":{"type":"string","description":"Search query"},`+
					`"max_results":{"type":"integer","description":"Maximum number of results (default 5)"}`,
				"query"),
		},
		Timeout:   searcher.cfg.Timeout + 5*time.Second,
		RateLimit: &RateLimitConfig{MaxCalls: 60, Window: time.Minute},
		Keywords:  SearchWebKeywords,
	}
	return fn, meta
}

// IsSearchSuccess 报告 search_web 的输出是否为真实结果（用于缓存过滤）
func IsSearchSuccess(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && strings.HasPrefix(s, "**Result 1:")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
