package tools

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/sources"
	"go.uber.org/zap"
)

// Builtins 内置工具共享的外部服务客户端
type Builtins struct {
	Search   *WebSearcher
	Weather  *WeatherService
	News     *NewsReader
	Fetcher  *PageFetcher
	PDF      *PDFReader
	Papers   sources.PaperSearcher
	Now      func() time.Time
	Cache    ResultCache // 可选
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewBuiltins 按配置创建内置工具依赖；cache 可以为 nil
func NewBuiltins(cfg config.SearchConfig, papers sources.PaperSearcher, cache ResultCache, logger *zap.Logger) *Builtins {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builtins{
		Search: NewWebSearcher(WebSearchConfig{
			APIKey:   cfg.GoogleAPIKey,
			EngineID: cfg.GoogleEngineID,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
		}, logger),
		Weather:  NewWeatherService(DefaultWeatherConfig(), logger),
		News:     NewNewsReader(NewsConfig{}, logger),
		Fetcher:  NewPageFetcher(nil, logger),
		PDF:      NewPDFReader(DefaultPDFConfig(), logger),
		Papers:   papers,
		Now:      time.Now,
		Cache:    cache,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
	}
}

func (b *Builtins) cached(name string, fn ToolFunc, keep func(json.RawMessage) bool) ToolFunc {
	if b.Cache == nil {
		return fn
	}
	return CachedTool(name, fn, b.Cache, b.CacheTTL, WithCacheFilter(keep), WithCacheLogger(b.Logger))
}

// RegisterWebTools 注册 search_web、get_weather、get_latest_news、fetch_web_content、get_current_datetime
func (b *Builtins) RegisterWebTools(reg ToolRegistry) error {
	fn, meta := NewWebSearchTool(b.Search)
	if err := reg.Register(meta.Schema.Name, b.cached(meta.Schema.Name, fn, IsSearchSuccess), meta); err != nil {
		return err
	}
	fn, meta = NewWeatherTool(b.Weather)
	if err := reg.Register(meta.Schema.Name, b.cached(meta.Schema.Name, fn, IsWeatherSuccess), meta); err != nil {
		return err
	}
	fn, meta = NewNewsTool(b.News)
	if err := reg.Register(meta.Schema.Name, b.cached(meta.Schema.Name, fn, IsNewsSuccess), meta); err != nil {
		return err
	}
	fn, meta = NewFetchTool(b.Fetcher)
	if err := reg.Register(meta.Schema.Name, fn, meta); err != nil {
		return err
	}
	fn, meta = NewDateTimeTool(b.Now)
	return reg.Register(meta.Schema.Name, fn, meta)
}

// RegisterResearchTools 注册 search_papers 与 read_pdf（对应依赖为 nil 时跳过）
func (b *Builtins) RegisterResearchTools(reg ToolRegistry) error {
	if b.Papers != nil {
		fn, meta := NewSearchPapersTool(b.Papers)
		keep := func(raw json.RawMessage) bool {
			var r PaperSearchResult
			return json.Unmarshal(raw, &r) == nil && r.Status == "success"
		}
		if err := reg.Register(meta.Schema.Name, b.cached(meta.Schema.Name, fn, keep), meta); err != nil {
			return err
		}
	}
	if b.PDF == nil {
		return nil
	}
	fn, meta := NewReadPDFTool(b.PDF)
	return reg.Register(meta.Schema.Name, fn, meta)
}
