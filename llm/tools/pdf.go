package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"github.com/BaSui01/agentlab/llm/retry"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PDFConfig PDF 读取限制
type PDFConfig struct {
	MaxBytes     int64         // 下载上限
	MaxPages     int           // 只解析前 N 页
	MaxTextBytes int           // 文本累计上限
	MinTextChars int           // 少于该字符数视为无可读文本
	Attempts     int           // 下载尝试次数
	Timeout      time.Duration // 单次下载超时
	Client       *http.Client
}

// DefaultPDFConfig 返回默认限制：10MiB / 50 页 / 500KB 文本
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		MaxBytes:     10 << 20,
		MaxPages:     50,
		MaxTextBytes: 500_000,
		MinTextChars: 100,
		Attempts:     3,
		Timeout:      120 * time.Second,
	}
}

// ErrPDFNoText PDF 没有可读文本
var ErrPDFNoText = errors.New("PDF appears to contain no readable text or is corrupted")

// PDFReader 下载 PDF 并提取文本
type PDFReader struct {
	cfg     PDFConfig
	client  *http.Client
	retryer *retry.BackoffRetryer
	logger  *zap.Logger
}

// NewPDFReader 创建 PDF 读取器
func NewPDFReader(cfg PDFConfig, logger *zap.Logger) *PDFReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultPDFConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = def.MaxTextBytes
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	client := cfg.Client
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	logger = logger.With(zap.String("tool", "read_pdf"))
	return &PDFReader{
		cfg:    cfg,
		client: client,
		retryer: retry.NewBackoffRetryer(&retry.RetryPolicy{
			MaxRetries:   cfg.Attempts - 1,
			InitialDelay: time.Second,
			MaxDelay:     4 * time.Second,
			Multiplier:   2,
		}, logger),
		logger: logger,
	}
}

// Read 下载并提取 PDF 文本
func (p *PDFReader) Read(ctx context.Context, url string) (string, error) {
	data, err := retry.DoWithResult(ctx, p.retryer, func() ([]byte, error) {
		return p.download(ctx, url)
	})
	if err != nil {
		return "", fmt.Errorf("network error downloading PDF: %w", err)
	}
	p.logger.Debug("downloaded pdf", zap.String("url", url), zap.Int("bytes", len(data)))

	text, err := p.Extract(data)
	if err != nil {
		return "", fmt.Errorf("error reading PDF: %w", err)
	}
	return text, nil
}

func (p *PDFReader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > p.cfg.MaxBytes {
			return nil, retry.Permanent(fmt.Errorf("PDF too large: %.1fMB (max %.1fMB)",
				float64(n)/1024/1024, float64(p.cfg.MaxBytes)/1024/1024))
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.cfg.MaxBytes {
		return nil, retry.Permanent(fmt.Errorf("PDF too large: exceeded %d byte limit", p.cfg.MaxBytes))
	}
	return data, nil
}

// Extract 从 PDF 字节中提取前 MaxPages 页的文本
func (p *PDFReader) Extract(data []byte) (text string, err error) {
	// 损坏的 PDF 可能让解析器 panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := reader.NumPage()
	if pages > p.cfg.MaxPages {
		p.logger.Warn("limiting PDF pages", zap.Int("pages", pages), zap.Int("max_pages", p.cfg.MaxPages))
		pages = p.cfg.MaxPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Debug("failed to extract page", zap.Int("page", i), zap.Error(err))
			continue
		}
		b.WriteString(content)
		b.WriteByte('\n')
		if b.Len() > p.cfg.MaxTextBytes {
			p.logger.Warn("text extraction stopped at limit", zap.Int("limit", p.cfg.MaxTextBytes))
			break
		}
	}

	out := strings.TrimSpace(b.String())
	if len([]rune(out)) < p.cfg.MinTextChars {
		return "", ErrPDFNoText
	}
	return out, nil
}

type pdfArgs struct {
	URL string `json:"url"`
}

// NewReadPDFTool 构造 read_pdf 工具
func NewReadPDFTool(reader *PDFReader) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args pdfArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.URL) == "" {
			return nil, errors.New("url is required")
		}
		text, err := reader.Read(ctx, args.URL)
		if err != nil {
			return nil, err
		}
		return TextResult(text)
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "read_pdf",
			Description: "Read and extract text from a PDF file given its URL",
			Parameters:  objectSchema(`"url":{"type":"string","description":"The URL of the PDF file to read"}`, "url"),
		},
		Timeout: time.Duration(reader.cfg.Attempts)*reader.cfg.Timeout + 10*time.Second,
	}
	return fn, meta
}
