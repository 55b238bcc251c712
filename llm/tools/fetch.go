package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	fetchContentLimit = 3000
	maxPageBytes      = 5 << 20
	browserUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// FetchKeywords fetch_web_content 的意图关键词
var FetchKeywords = []string{"fetch", "read", "get content", "webpage", "url", "link", "article", "page"}

// PageFetcher 抓取网页并提取纯文本
type PageFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewPageFetcher 创建网页抓取器；client 为空时使用 15s 超时的安全客户端
func NewPageFetcher(client *http.Client, logger *zap.Logger) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(15 * time.Second)
	}
	return &PageFetcher{client: client, logger: logger.With(zap.String("tool", "fetch_web_content"))}
}

// Fetch 返回 "Content from <url>:\n\n<text>"；失败返回说明文本
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) string {
	text, err := f.text(ctx, rawURL)
	if err != nil {
		f.logger.Warn("content fetch failed", zap.String("url", rawURL), zap.Error(err))
		return fmt.Sprintf("Could not fetch content from %s. Error: %v", rawURL, err)
	}
	if r := []rune(text); len(r) > fetchContentLimit {
		text = string(r[:fetchContentLimit]) + "... [Content truncated]"
	}
	return fmt.Sprintf("Content from %s:\n\n%s", rawURL, text)
}

func (f *PageFetcher) text(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return ExtractText(io.LimitReader(resp.Body, maxPageBytes))
}

// ExtractText 去掉 script/style 后提取 HTML 文本并折叠空白
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

type fetchArgs struct {
	URL string `json:"url"`
}

// NewFetchTool 构造 fetch_web_content 工具
func NewFetchTool(fetcher *PageFetcher) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args fetchArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.URL) == "" {
			return nil, fmt.Errorf("url is required")
		}
		return TextResult(fetcher.Fetch(ctx, args.URL))
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "fetch_web_content",
			Description: "Fetch and read content from a specific web page or URL",
			Parameters:  objectSchema(`"url":{"type":"string","description":"URL of the web page to fetch"}`, "url"),
		},
		Timeout:  20 * time.Second,
		Keywords: FetchKeywords,
	}
	return fn, meta
}
