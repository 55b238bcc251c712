package blog

import (
	"strings"

	"go.uber.org/zap"
)

var seedCategories = []CategoryCreate{
	{Name: "Tutorial", Description: "Step-by-step guides for building AI agents", Color: "#3B82F6"},
	{Name: "Advanced", Description: "Deep dives into advanced agent techniques", Color: "#8B5CF6"},
	{Name: "Case Study", Description: "Real-world agent implementations", Color: "#10B981"},
	{Name: "Tips & Tricks", Description: "Practical tips for agent development", Color: "#F59E0B"},
}

var seedTags = []TagCreate{
	{Name: "AI", Color: "#3B82F6"},
	{Name: "Tutorial", Color: "#10B981"},
	{Name: "Python", Color: "#F59E0B"},
	{Name: "Groq", Color: "#EF4444"},
	{Name: "APIs", Color: "#8B5CF6"},
	{Name: "Advanced", Color: "#EC4899"},
	{Name: "Getting Started", Color: "#06B6D4"},
	{Name: "Architecture", Color: "#6366F1"},
	{Name: "Planning", Color: "#14B8A6"},
	{Name: "Decision Making", Color: "#F97316"},
}

var seedPosts = []PostCreate{
	{
		Title:     "Building Your First Math Agent",
		Slug:      "building-your-first-math-agent",
		Category:  "Tutorial",
		Tags:      "AI,Tutorial,Getting Started",
		AgentType: "math",
		Featured:  true,
		Content: strings.Join([]string{
			"# Building Your First Math Agent",
			"",
			"A math agent pairs a language model with a small set of calculator tools.",
			"The model decides which tool to call and the agent feeds the result back.",
			"",
			"## Tools",
			"",
			"- `add`, `subtract`, `multiply`, `divide`",
			"- `power` and `sqrt`",
			"",
			"Ask it *what is 12 times 7* and watch the `multiply` tool run.",
		}, "\n"),
	},
	{
		Title:     "Intelligent Agents with Live Web Tools",
		Slug:      "intelligent-agents-with-live-web-tools",
		Category:  "Tips & Tricks",
		Tags:      "AI,APIs",
		AgentType: "intelligent",
		Content: strings.Join([]string{
			"# Intelligent Agents with Live Web Tools",
			"",
			"An intelligent agent decides when a question needs fresh data.",
			"Weather, news and web search tools are only called when the message asks for them.",
			"",
			"Everything else is answered directly by the model.",
		}, "\n"),
	},
	{
		Title:     "Planning and Reflection in Autonomous Agents",
		Slug:      "planning-and-reflection-in-autonomous-agents",
		Category:  "Advanced",
		Tags:      "AI,Advanced,Planning,Decision Making",
		AgentType: "autonomous",
		Content: strings.Join([]string{
			"# Planning and Reflection in Autonomous Agents",
			"",
			"Autonomous agents break a goal into steps, run tools for each step",
			"and reflect on the results before deciding what to do next.",
			"",
			"## The loop",
			"",
			"1. Plan",
			"2. Act",
			"3. Reflect",
		}, "\n"),
	},
	{
		Title:     "From arXiv to PDF: A Research Agent Pipeline",
		Slug:      "from-arxiv-to-pdf-a-research-agent-pipeline",
		Category:  "Case Study",
		Tags:      "AI,Architecture",
		AgentType: "researcher",
		Content: strings.Join([]string{
			"# From arXiv to PDF: A Research Agent Pipeline",
			"",
			"The research agent searches arXiv, reads the top papers,",
			"identifies gaps and drafts a LaTeX proposal that is compiled to PDF.",
			"",
			"Each stage is tracked so partial results survive a failure.",
		}, "\n"),
	},
}

// Seed 写入示例分类、标签与文章；已有数据时跳过
func Seed(s *Store, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Stats().TotalBlogs > 0 {
		return nil
	}
	for _, c := range seedCategories {
		if _, err := s.CreateCategory(c); err != nil {
			return err
		}
	}
	for _, t := range seedTags {
		if _, err := s.CreateTag(t); err != nil {
			return err
		}
	}
	for _, p := range seedPosts {
		p.Published = true
		if _, err := s.CreatePost(p); err != nil {
			return err
		}
	}
	logger.Info("blog seeded",
		zap.Int("categories", len(seedCategories)),
		zap.Int("tags", len(seedTags)),
		zap.Int("posts", len(seedPosts)))
	return nil
}
