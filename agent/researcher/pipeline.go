package researcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/telemetry"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/retry"
	"github.com/BaSui01/agentlab/sources"
	"github.com/BaSui01/agentlab/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// 阶段名称，同时用作 span 名后缀与指标标签
const (
	StageSearch   = "search_papers"
	StageAnalyze  = "analyze_papers"
	StageGaps     = "identify_gaps"
	StageGenerate = "generate_paper"
	StageRender   = "create_pdf"
)

const minLaTeXChars = 100

var (
	ErrShortLaTeX      = errors.New("generated latex is empty or too short")
	ErrIncompleteLaTeX = errors.New("generated latex is missing \\end{document}")
)

// PDFSource 下载并提取论文全文
type PDFSource interface {
	Read(ctx context.Context, url string) (string, error)
}

// StageObserver 接收阶段完成与外部调用计数
type StageObserver interface {
	RecordResearchStage(stage string, ok bool)
	RecordResearchAPICall()
}

// PipelineOptions Pipeline 的依赖
type PipelineOptions struct {
	Papers   sources.PaperSearcher
	PDF      PDFSource
	Provider llm.Provider
	Renderer Renderer // 为空时输出到 Config.OutputDir
	Config   config.ResearchConfig
	Observer StageObserver // 可选
	Now      func() time.Time
}

// Pipeline 五阶段研究流水线：检索 → 分析 → 缺口识别 → 生成 LaTeX → 渲染
type Pipeline struct {
	papers   sources.PaperSearcher
	pdf      PDFSource
	provider llm.Provider
	renderer Renderer
	cfg      config.ResearchConfig
	observer StageObserver
	now      func() time.Time

	chain    *workflow.ChainWorkflow
	retryer  *retry.BackoffRetryer
	apiCalls metric.Int64Counter
	logger   *zap.Logger
}

// NewPipeline 创建流水线，未设置的配置项取默认值
func NewPipeline(opts PipelineOptions, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case opts.Papers == nil:
		return nil, errors.New("research pipeline requires a paper searcher")
	case opts.PDF == nil:
		return nil, errors.New("research pipeline requires a pdf reader")
	case opts.Provider == nil:
		return nil, errors.New("research pipeline requires an llm provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "research_pipeline"))

	cfg := withDefaults(opts.Config)
	if opts.Renderer == nil {
		opts.Renderer = NewLaTeXRenderer(cfg.OutputDir, logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Pipeline{
		papers:   opts.Papers,
		pdf:      opts.PDF,
		provider: opts.Provider,
		renderer: opts.Renderer,
		cfg:      cfg,
		observer: opts.Observer,
		now:      opts.Now,
		logger:   logger,
	}
	p.retryer = retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   cfg.MaxRetries - 1,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
		ShouldRetry: func(err error) bool {
			return llm.IsRetryable(err) || llm.IsQuotaError(err)
		},
	}, logger)

	counter, err := otel.Meter("github.com/BaSui01/agentlab/agent/researcher").Int64Counter(
		"agentlab.research.api_calls",
		metric.WithDescription("External calls made by the research pipeline"),
	)
	if err != nil {
		logger.Warn("failed to create api call counter", zap.Error(err))
	}
	p.apiCalls = counter

	p.chain = workflow.NewChainWorkflow("research", "arXiv research to LaTeX paper",
		p.stage(StageSearch, 1, p.search),
		p.stage(StageAnalyze, 2, p.analyze),
		p.stage(StageGaps, 3, p.identifyGaps),
		p.stage(StageGenerate, 4, p.generate),
		p.stage(StageRender, 5, p.render),
	)
	return p, nil
}

func withDefaults(cfg config.ResearchConfig) config.ResearchConfig {
	def := config.DefaultResearchConfig()
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = def.MaxPapers
	}
	if cfg.MaxAPICalls <= 0 {
		cfg.MaxAPICalls = def.MaxAPICalls
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.AnalysisChars <= 0 {
		cfg.AnalysisChars = def.AnalysisChars
	}
	return cfg
}

// Config 返回补全默认值后的配置
func (p *Pipeline) Config() config.ResearchConfig { return p.cfg }

// Research 对 topic 运行完整流水线。各阶段失败时降级继续，只有 ctx 取消会中断。
func (p *Pipeline) Research(ctx context.Context, topic string) Result {
	st := newState(topic, p.cfg.MaxAPICalls)
	p.logger.Info("research started", zap.String("topic", topic))

	_, err := p.chain.Execute(ctx, st)
	res := st.result()
	if err != nil {
		res.Error = err.Error()
		res.WorkflowCompleted = false
		p.logger.Warn("research aborted", zap.String("topic", topic), zap.Error(err))
		return res
	}
	p.logger.Info("research finished",
		zap.String("topic", topic),
		zap.Int("papers_found", res.PapersFound),
		zap.Int("papers_analyzed", res.PapersAnalyzed),
		zap.String("final_pdf_path", res.FinalPDFPath),
		zap.Int("api_calls_made", res.APICallsMade))
	return res
}

type stageFunc func(ctx context.Context, st *State) error

// stage 把阶段函数包装为 workflow.Step：阶段返回的错误只表示降级，不会中断链路
func (p *Pipeline) stage(name string, n int, fn stageFunc) workflow.Step {
	return workflow.NewFuncStep(name, func(ctx context.Context, input any) (any, error) {
		st, ok := input.(*State)
		if !ok {
			return nil, fmt.Errorf("unexpected research state %T", input)
		}
		ctx, span := telemetry.StartSpan(ctx, "research."+name,
			attribute.String("research.topic", st.Topic),
			attribute.Int("research.step", n))
		workflow.EmitWorkflowEvent(ctx, workflow.WorkflowStreamEvent{
			Type: workflow.WorkflowEventNodeStart, NodeID: name, NodeName: name,
		})

		err := fn(ctx, st)
		if cerr := ctx.Err(); cerr != nil {
			telemetry.EndSpan(span, cerr)
			workflow.EmitWorkflowEvent(ctx, workflow.WorkflowStreamEvent{
				Type: workflow.WorkflowEventNodeError, NodeID: name, NodeName: name, Error: cerr,
			})
			return nil, cerr
		}

		st.StepCount = n
		st.APICallCount = st.budget.Used()
		if p.observer != nil {
			p.observer.RecordResearchStage(name, err == nil)
		}
		span.SetAttributes(attribute.Int("research.api_calls", st.APICallCount))
		telemetry.EndSpan(span, err)

		if err != nil {
			p.logger.Warn("stage degraded", zap.String("stage", name), zap.Error(err))
		}
		workflow.EmitWorkflowEvent(ctx, workflow.WorkflowStreamEvent{
			Type:     workflow.WorkflowEventNodeComplete,
			NodeID:   name,
			NodeName: name,
			Data: map[string]any{
				"step_count":     st.StepCount,
				"current_step":   st.CurrentStep,
				"api_call_count": st.APICallCount,
				"degraded":       err != nil,
			},
		})
		return st, nil
	})
}

// callWithBudget 每次尝试前占用一次调用额度；额度用尽立即失败，限流/配额错误按退避重试
func callWithBudget[T any](ctx context.Context, p *Pipeline, st *State, stage string, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoWithResult(ctx, p.retryer, func() (T, error) {
		if err := st.budget.Acquire(); err != nil {
			var zero T
			return zero, retry.Permanent(err)
		}
		st.APICallCount = st.budget.Used()
		if p.observer != nil {
			p.observer.RecordResearchAPICall()
		}
		if p.apiCalls != nil {
			p.apiCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("research.stage", stage)))
		}
		return fn(ctx)
	})
}

func (p *Pipeline) ask(ctx context.Context, st *State, stage, prompt string) (string, error) {
	return callWithBudget(ctx, p, st, stage, func(ctx context.Context) (string, error) {
		resp, err := p.provider.Completion(ctx, &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage(prompt)},
		})
		if err != nil {
			return "", err
		}
		return llm.FirstContent(resp), nil
	})
}

func (p *Pipeline) search(ctx context.Context, st *State) error {
	papers, err := callWithBudget(ctx, p, st, StageSearch, func(ctx context.Context) ([]sources.ArxivPaper, error) {
		return p.papers.Search(ctx, st.Topic, p.cfg.MaxPapers)
	})
	if err != nil {
		st.Papers = nil
		st.note("Error searching papers: " + err.Error())
		return err
	}
	if len(papers) > p.cfg.MaxPapers {
		papers = papers[:p.cfg.MaxPapers]
	}
	st.Papers = papers
	st.CurrentStep = StepSearched
	st.note(fmt.Sprintf("Successfully found %d research papers on %s", len(papers), st.Topic))
	p.logger.Debug("papers found", zap.Int("count", len(papers)))
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, st *State) error {
	var errs []error
	analyses := make([]PaperAnalysis, 0, len(st.Papers))
	for i, paper := range st.Papers {
		if ctx.Err() != nil {
			break
		}
		title := paper.Title
		if title == "" {
			title = "Unknown"
		}
		if paper.PDFURL == "" {
			p.logger.Debug("paper has no pdf url", zap.Int("paper", i+1), zap.String("title", title))
			continue
		}

		text, err := callWithBudget(ctx, p, st, StageAnalyze, func(ctx context.Context) (string, error) {
			return p.pdf.Read(ctx, paper.PDFURL)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("paper %d: %w", i+1, err))
			continue
		}
		analysis, err := p.ask(ctx, st, StageAnalyze, analysisPrompt(title, paper.Authors, prefix(text, p.cfg.AnalysisChars)))
		if err != nil {
			errs = append(errs, fmt.Errorf("paper %d: %w", i+1, err))
			continue
		}
		analyses = append(analyses, PaperAnalysis{
			PaperTitle: title,
			Authors:    paper.Authors,
			Summary:    paper.Summary,
			Analysis:   analysis,
			PDFURL:     paper.PDFURL,
		})
	}
	st.PaperAnalyses = analyses
	st.CurrentStep = StepAnalyzed
	st.note(fmt.Sprintf("Successfully analyzed %d papers", len(analyses)))
	return errors.Join(errs...)
}

func (p *Pipeline) identifyGaps(ctx context.Context, st *State) error {
	if len(st.PaperAnalyses) == 0 {
		st.IdentifiedGaps = noAnalysesGaps
		st.CurrentStep = StepGaps
		st.note("No papers analyzed, using default gap analysis")
		return nil
	}
	gaps, err := p.ask(ctx, st, StageGaps, gapPrompt(st.Topic, st.PaperAnalyses))
	if err != nil {
		st.IdentifiedGaps = gapErrorGaps
		st.note("Error in gap analysis: " + err.Error())
		return err
	}
	st.IdentifiedGaps = gaps
	st.CurrentStep = StepGaps
	st.note("Successfully identified research gaps and improvement opportunities")
	return nil
}

func (p *Pipeline) generate(ctx context.Context, st *State) error {
	prompt := paperPrompt(st.Topic, st.IdentifiedGaps)
	template := func() string { return DefaultTemplate(st.Topic, st.IdentifiedGaps, p.now()) }

	text, err := p.ask(ctx, st, StageGenerate, prompt)
	if err != nil {
		st.ResearchProposal = template()
		st.CurrentStep = StepGenerated
		st.note("Error generating paper: " + err.Error() + ". Using default template")
		return err
	}

	var degraded error
	switch {
	case len(strings.TrimSpace(text)) < minLaTeXChars:
		degraded = ErrShortLaTeX
		st.ResearchProposal = template()
	case !strings.Contains(text, `\end{document}`):
		p.logger.Debug("generated latex incomplete, retrying once")
		again, err := p.ask(ctx, st, StageGenerate, prompt)
		if err == nil && strings.Contains(again, `\end{document}`) {
			st.ResearchProposal = CleanLaTeX(again)
		} else {
			degraded = ErrIncompleteLaTeX
			st.ResearchProposal = template()
		}
	default:
		st.ResearchProposal = CleanLaTeX(text)
	}
	st.CurrentStep = StepGenerated
	st.note("Successfully generated research paper proposal")
	return degraded
}

func (p *Pipeline) render(ctx context.Context, st *State) error {
	latex := st.ResearchProposal
	switch {
	case strings.TrimSpace(latex) == "", !strings.Contains(latex, `\documentclass`):
		latex = DefaultTemplate(st.Topic, st.IdentifiedGaps, p.now())
	case !strings.Contains(latex, `\end{document}`):
		latex += "\n\\end{document}\n"
	}

	path, err := p.renderer.Render(ctx, latex)
	if err != nil {
		st.FinalPDFPath = ""
		st.CurrentStep = StepRenderError
		st.note("Error creating PDF: " + err.Error())
		return err
	}
	st.FinalPDFPath = path
	st.CurrentStep = StepCompleted
	st.note("Successfully created PDF at: " + path)
	return nil
}
