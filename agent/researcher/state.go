package researcher

import (
	"github.com/BaSui01/agentlab/llm/retry"
	"github.com/BaSui01/agentlab/sources"
)

// 各阶段完成后的 current_step 取值
const (
	StepInitialized = "initialized"
	StepSearched    = "search_completed"
	StepAnalyzed    = "analysis_completed"
	StepGaps        = "gaps_identified"
	StepGenerated   = "paper_generated"
	StepCompleted   = "completed"
	StepRenderError = "render_failed"
)

// PaperAnalysis 单篇论文的分析结果
type PaperAnalysis struct {
	PaperTitle string   `json:"paper_title"`
	Authors    []string `json:"authors"`
	Summary    string   `json:"summary"`
	Analysis   string   `json:"analysis"`
	PDFURL     string   `json:"pdf_url"`
}

// State 一次 Research 调用在五个阶段间传递的状态
type State struct {
	Topic            string
	Papers           []sources.ArxivPaper
	PaperAnalyses    []PaperAnalysis
	IdentifiedGaps   string
	ResearchProposal string
	FinalPDFPath     string
	Messages         []string
	StepCount        int
	CurrentStep      string
	APICallCount     int

	budget *retry.Budget
}

func newState(topic string, maxCalls int) *State {
	return &State{
		Topic:       topic,
		Messages:    []string{"Research topic: " + topic},
		CurrentStep: StepInitialized,
		budget:      retry.NewBudget(maxCalls),
	}
}

func (s *State) note(msg string) {
	s.Messages = append(s.Messages, msg)
}

// Result Research 的汇总输出
type Result struct {
	Topic             string `json:"topic"`
	PapersFound       int    `json:"papers_found"`
	PapersAnalyzed    int    `json:"papers_analyzed"`
	FinalPDFPath      string `json:"final_pdf_path"`
	WorkflowCompleted bool   `json:"workflow_completed"`
	IdentifiedGaps    string `json:"identified_gaps"`
	StepsCompleted    int    `json:"steps_completed"`
	APICallsMade      int    `json:"api_calls_made"`
	Error             string `json:"error,omitempty"`
}

func (s *State) result() Result {
	return Result{
		Topic:             s.Topic,
		PapersFound:       len(s.Papers),
		PapersAnalyzed:    len(s.PaperAnalyses),
		FinalPDFPath:      s.FinalPDFPath,
		WorkflowCompleted: s.CurrentStep == StepCompleted,
		IdentifiedGaps:    s.IdentifiedGaps,
		StepsCompleted:    s.StepCount,
		APICallsMade:      s.budget.Used(),
	}
}
