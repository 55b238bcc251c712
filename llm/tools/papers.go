package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/sources"
)

// PaperSummary search_papers 输出中的单篇论文
type PaperSummary struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
	PDFURL    string   `json:"pdf_url"`
	ArxivURL  string   `json:"arxiv_url"`
}

// PaperSearchResult search_papers 的输出
type PaperSearchResult struct {
	Topic       string         `json:"topic"`
	PapersFound int            `json:"papers_found"`
	Papers      []PaperSummary `json:"papers"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
}

const paperSummaryLimit = 300

// SummarizePapers 把论文压缩为 search_papers 输出格式
func SummarizePapers(topic string, papers []sources.ArxivPaper) PaperSearchResult {
	out := PaperSearchResult{Topic: topic, Status: "success", Papers: make([]PaperSummary, 0, len(papers))}
	for _, p := range papers {
		summary := p.Summary
		if r := []rune(summary); len(r) > paperSummaryLimit {
			summary = string(r[:paperSummaryLimit]) + "..."
		}
		published := ""
		if !p.Published.IsZero() {
			published = p.Published.Format(time.RFC3339)
		}
		title := p.Title
		if title == "" {
			title = "Unknown"
		}
		out.Papers = append(out.Papers, PaperSummary{
			Title:     title,
			Authors:   p.Authors,
			Summary:   summary,
			Published: published,
			PDFURL:    p.PDFURL,
			ArxivURL:  p.AbstractURL,
		})
	}
	out.PapersFound = len(out.Papers)
	return out
}

type paperArgs struct {
	Topic     string `json:"topic"`
	MaxPapers int    `json:"max_papers"`
}

// NewSearchPapersTool 构造 search_papers 工具；检索失败以 status=failed 的 JSON 返回
func NewSearchPapersTool(searcher sources.PaperSearcher) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args paperArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.Topic) == "" {
			return nil, errors.New("topic is required")
		}
		if args.MaxPapers <= 0 {
			args.MaxPapers = 5
		}
		papers, err := searcher.Search(ctx, args.Topic, args.MaxPapers)
		if err != nil {
			return json.MarshalIndent(PaperSearchResult{
				Topic:  args.Topic,
				Status: "failed",
				Error:  "Paper search failed: " + err.Error(),
			}, "", "  ")
		}
		if len(papers) > args.MaxPapers {
			papers = papers[:args.MaxPapers]
		}
		return json.MarshalIndent(SummarizePapers(args.Topic, papers), "", "  ")
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "search_papers",
			Description: "Search for academic papers on arXiv related to a specific topic",
			Parameters: objectSchema(
				`"topic":{"type":"string","description":"Research topic to search for"},`+
					`"max_papers":{"type":"integer","description":"Maximum number of papers to return (default: 5)"}`,
				"topic"),
		},
		Timeout:  90 * time.Second,
		Keywords: []string{"paper", "papers", "arxiv", "literature", "publications"},
	}
	return fn, meta
}
