package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm/retry"
	"go.uber.org/zap"
)

// PaperSearcher 论文检索接口
type PaperSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]ArxivPaper, error)
}

// ArxivConfig 配置 arXiv 数据源
type ArxivConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	MaxResults int           `json:"max_results" yaml:"max_results"`
	SortBy     string        `json:"sort_by" yaml:"sort_by"`       // relevance, lastUpdatedDate, submittedDate
	SortOrder  string        `json:"sort_order" yaml:"sort_order"` // ascending, descending
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	RetryCount int           `json:"retry_count" yaml:"retry_count"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
	Categories []string      `json:"categories" yaml:"categories"` // e.g. cs.AI, cs.CL
}

// DefaultArxivConfig 返回默认配置
func DefaultArxivConfig() ArxivConfig {
	return ArxivConfig{
		BaseURL:    "http://export.arxiv.org/api/query",
		MaxResults: 5,
		SortBy:     "relevance",
		SortOrder:  "descending",
		Timeout:    30 * time.Second,
		RetryCount: 3,
		RetryDelay: 2 * time.Second,
	}
}

// ArxivPaper 表示一篇 arXiv 论文
type ArxivPaper struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Authors     []string  `json:"authors"`
	Categories  []string  `json:"categories"`
	Published   time.Time `json:"published"`
	Updated     time.Time `json:"updated"`
	PDFURL      string    `json:"pdf_url"`
	AbstractURL string    `json:"abstract_url"`
	DOI         string    `json:"doi,omitempty"`
	Comment     string    `json:"comment,omitempty"`
}

// ArxivSource 访问 arXiv Atom API
type ArxivSource struct {
	config  ArxivConfig
	client  *http.Client
	retryer *retry.BackoffRetryer
	logger  *zap.Logger
}

// NewArxivSource 创建 arXiv 数据源
func NewArxivSource(config ArxivConfig, logger *zap.Logger) *ArxivSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultArxivConfig().BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 2 * time.Second
	}
	logger = logger.With(zap.String("component", "arxiv"))
	return &ArxivSource{
		config: config,
		client: tlsutil.SecureHTTPClient(config.Timeout),
		retryer: retry.NewBackoffRetryer(&retry.RetryPolicy{
			MaxRetries:   config.RetryCount,
			InitialDelay: config.RetryDelay,
			MaxDelay:     config.RetryDelay * 4,
			Multiplier:   2,
		}, logger),
		logger: logger,
	}
}

func (a *ArxivSource) Name() string { return "arxiv" }

// Search 检索与 query 匹配的论文
func (a *ArxivSource) Search(ctx context.Context, query string, maxResults int) ([]ArxivPaper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("arxiv: empty query")
	}
	if maxResults <= 0 {
		maxResults = a.config.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{
		"search_query": {a.buildQuery(query)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
	}
	if a.config.SortBy != "" {
		params.Set("sortBy", a.config.SortBy)
	}
	if a.config.SortOrder != "" {
		params.Set("sortOrder", a.config.SortOrder)
	}
	requestURL := a.config.BaseURL + "?" + params.Encode()

	a.logger.Info("querying arXiv", zap.String("query", query), zap.Int("max_results", maxResults))

	body, err := retry.DoWithResult(ctx, a.retryer, func() ([]byte, error) {
		b, err := a.doRequest(ctx, requestURL)
		if err != nil && ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("arXiv query failed: %w", err)
	}

	papers, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arXiv response: %w", err)
	}
	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}

	a.logger.Info("arXiv search completed", zap.String("query", query), zap.Int("results", len(papers)))
	return papers, nil
}

func (a *ArxivSource) buildQuery(query string) string {
	parts := []string{"all:" + query}
	if len(a.config.Categories) > 0 {
		cats := make([]string, len(a.config.Categories))
		for i, cat := range a.config.Categories {
			cats[i] = "cat:" + cat
		}
		parts = append(parts, "("+strings.Join(cats, " OR ")+")")
	}
	return strings.Join(parts, " AND ")
}

func (a *ArxivSource) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("arXiv API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Updated    string          `xml:"updated"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
	DOI        string          `xml:"doi"`
	Comment    string          `xml:"comment"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func parseFeed(body []byte) ([]ArxivPaper, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("XML parse error: %w", err)
	}

	papers := make([]ArxivPaper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		// arXiv 查询出错时返回一个 title 为 "Error" 的条目
		if strings.TrimSpace(entry.Title) == "Error" {
			continue
		}
		paper := ArxivPaper{
			ID:      strings.TrimSpace(entry.ID),
			Title:   collapseSpace(entry.Title),
			Summary: collapseSpace(entry.Summary),
			DOI:     strings.TrimSpace(entry.DOI),
			Comment: collapseSpace(entry.Comment),
		}
		for _, author := range entry.Authors {
			paper.Authors = append(paper.Authors, strings.TrimSpace(author.Name))
		}
		for _, cat := range entry.Categories {
			paper.Categories = append(paper.Categories, cat.Term)
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
			paper.Published = t
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Updated)); err == nil {
			paper.Updated = t
		}
		for _, link := range entry.Links {
			switch {
			case link.Type == "application/pdf" || link.Title == "pdf":
				paper.PDFURL = link.Href
			case link.Rel == "alternate":
				paper.AbstractURL = link.Href
			}
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ToJSON 把论文列表序列化为缩进 JSON
func ToJSON(papers []ArxivPaper) (string, error) {
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
