package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// DefaultNewsFeeds 各主题的免费 RSS/Atom 源
var DefaultNewsFeeds = map[string]string{
	"general":    "http://feeds.bbci.co.uk/news/rss.xml",
	"technology": "https://feeds.feedburner.com/oreilly/radar/atom",
	"science":    "https://www.sciencedaily.com/rss/all.xml",
	"world":      "http://feeds.bbci.co.uk/news/world/rss.xml",
	"business":   "http://feeds.bbci.co.uk/news/business/rss.xml",
}

// NewsKeywords get_latest_news 的意图关键词
var NewsKeywords = []string{
	"news", "headlines", "breaking", "latest", "current events", "happening", "today", "recent",
}

const (
	newsSummaryLimit = 200
	maxFeedBytes     = 5 << 20
)

// NewsConfig 新闻工具配置
type NewsConfig struct {
	Feeds   map[string]string
	Timeout time.Duration
	Client  *http.Client
}

// NewsItem 单条新闻
type NewsItem struct {
	Title     string
	Published string
	Summary   string
}

// NewsReader 读取并解析 RSS 2.0 / Atom 源
type NewsReader struct {
	feeds  map[string]string
	client *http.Client
	strip  *bluemonday.Policy
	logger *zap.Logger
}

// NewNewsReader 创建新闻读取器
func NewNewsReader(cfg NewsConfig, logger *zap.Logger) *NewsReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultNewsFeeds
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	return &NewsReader{
		feeds:  cfg.Feeds,
		client: client,
		strip:  bluemonday.StrictPolicy(),
		logger: logger.With(zap.String("tool", "get_latest_news")),
	}
}

// Latest 返回主题的最新新闻文本；未知主题回落到 general
func (n *NewsReader) Latest(ctx context.Context, topic string, maxItems int) string {
	if topic == "" {
		topic = "general"
	}
	if maxItems <= 0 {
		maxItems = 5
	}
	feedURL, ok := n.feeds[strings.ToLower(topic)]
	if !ok {
		feedURL = n.feeds["general"]
	}

	items, err := n.fetch(ctx, feedURL)
	if err != nil {
		n.logger.Warn("news fetch failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Sprintf("News service temporarily unavailable. Error: %v", err)
	}
	if len(items) == 0 {
		return fmt.Sprintf("No news found for topic '%s'. Please try: general, technology, science, world, business", topic)
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("[NEWS] %s\nPublished: %s\nSummary: %s\n", it.Title, it.Published, it.Summary))
	}
	return fmt.Sprintf("Latest %s news:\n\n", topic) + strings.Join(parts, "\n")
}

func (n *NewsReader) fetch(ctx context.Context, feedURL string) ([]NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "AI-Agent/1.0")
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	return n.ParseFeed(body)
}

type feedDoc struct {
	XMLName xml.Name
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			PubDate     string `xml:"pubDate"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
	Entries []struct {
		Title     string `xml:"title"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
	} `xml:"entry"`
}

// ParseFeed 解析 RSS 2.0 或 Atom 文档；非 UTF-8 编码经 x/net/html/charset 转换
func (n *NewsReader) ParseFeed(body []byte) ([]NewsItem, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	var doc feedDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []NewsItem
	for _, it := range doc.Channel.Items {
		items = append(items, NewsItem{
			Title:     strings.TrimSpace(it.Title),
			Published: orDefault(strings.TrimSpace(it.PubDate), "Unknown time"),
			Summary:   n.summary(it.Description),
		})
	}
	for _, e := range doc.Entries {
		published := strings.TrimSpace(e.Published)
		if published == "" {
			published = strings.TrimSpace(e.Updated)
		}
		summary := e.Summary
		if strings.TrimSpace(summary) == "" {
			summary = e.Content
		}
		items = append(items, NewsItem{
			Title:     strings.TrimSpace(e.Title),
			Published: orDefault(published, "Unknown time"),
			Summary:   n.summary(summary),
		})
	}
	return items, nil
}

func (n *NewsReader) summary(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "No summary available"
	}
	text := strings.TrimSpace(html.UnescapeString(n.strip.Sanitize(raw)))
	if r := []rune(text); len(r) > newsSummaryLimit {
		return string(r[:newsSummaryLimit]) + "..."
	}
	return text
}

type newsArgs struct {
	Topic    string `json:"topic"`
	MaxItems int    `json:"max_items"`
}

// NewNewsTool 构造 get_latest_news 工具
func NewNewsTool(reader *NewsReader) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args newsArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return TextResult(reader.Latest(ctx, args.Topic, args.MaxItems))
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "get_latest_news",
			Description: "Get latest news headlines from various topics",
			Parameters: objectSchema(
				`"topic":{"type":"string","description":"News topic: general, technology, science, world, business"},` +
					`"max_items":{"type":"integer","description":"Maximum number of news items (default 5)"}`),
		},
		Timeout:  20 * time.Second,
		Keywords: NewsKeywords,
	}
	return fn, meta
}

// IsNewsSuccess 报告 get_latest_news 的输出是否为真实新闻
func IsNewsSuccess(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && strings.HasPrefix(s, "Latest ")
}
