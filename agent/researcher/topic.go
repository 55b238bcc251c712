package researcher

import (
	"regexp"
	"strings"
)

var researchKeywords = []string{
	"research", "paper", "study", "analyze", "investigation", "academic",
	"literature", "survey", "review", "arxiv", "publication", "scholar",
	"thesis", "dissertation", "journal", "conference", "methodology",
	"experiment", "findings", "results", "conclusion", "hypothesis",
	"gap analysis", "state of the art", "related work", "bibliography",
}

var researchActions = []string{
	"find papers", "search literature", "conduct research", "analyze papers",
	"write paper", "generate pdf", "create proposal", "identify gaps",
	"literature review", "research proposal", "academic writing",
}

var researchPatterns = []string{
	"what is the current state of",
	"what are the latest developments in",
	"what research has been done on",
	"help me research",
	"find information about",
	"write a paper on",
	"generate a research proposal",
}

// 触发完整流水线 / 仅论文检索的短语
var (
	fullResearchPhrases = []string{"full research", "conduct research", "complete analysis", "write paper", "generate pdf", "research proposal"}
	paperSearchPhrases  = []string{"search papers", "find papers", "literature search", "arxiv search"}
)

// ShouldResearch 报告消息是否与学术研究相关
func ShouldResearch(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, researchKeywords) ||
		containsAny(lower, researchActions) ||
		containsAny(lower, researchPatterns)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// 长短语在前，避免 "research" 先于 "help me research" 被删除
var topicFillers = compileWords(
	"what are the latest developments in", "generate a research proposal on", "what is the current state of",
	"write a research proposal on", "what research has been done on", "search papers about",
	"complete analysis of", "literature review on", "research proposal on", "conduct research on",
	"find papers about", "information about", "help me research", "full research on", "write a paper on",
	"search papers on", "conduct research", "find papers on", "write paper on", "search papers",
	"papers about", "find papers", "investigate", "research", "analyze", "study",
)

var topicStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true, "about": true,
}

func compileWords(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(phrases))
	for i, p := range phrases {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return out
}

// ExtractTopic 去掉指令性短语与停用词后得到研究主题；结果不在 2..100 个字符内时返回空串
func ExtractTopic(text string) string {
	topic := strings.ToLower(strings.TrimSpace(text))
	topic = strings.TrimRight(topic, "?.!")
	for _, re := range topicFillers {
		topic = strings.TrimSpace(re.ReplaceAllString(topic, " "))
	}

	words := strings.Fields(topic)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !topicStopWords[w] || len(words) <= 2 {
			kept = append(kept, w)
		}
	}
	topic = strings.Join(kept, " ")

	if n := len([]rune(topic)); n < 2 || n > 100 {
		return ""
	}
	return topic
}

var greetingRe = regexp.MustCompile(`\b(hello|hi|hey|good morning|good afternoon|good evening)\b`)

// cannedReply 非研究类消息的固定回复
func cannedReply(text string) string {
	lower := strings.ToLower(text)
	switch {
	case greetingRe.MatchString(lower):
		return greetingReply
	case containsAny(lower, []string{"what can you do", "your capabilities", "help me", "how do you work"}):
		return capabilitiesReply
	case containsAny(lower, []string{"how does research work", "research process", "workflow"}):
		return workflowReply
	case containsAny(lower, []string{"error", "not working"}):
		return troubleshootingReply
	default:
		return defaultReply
	}
}
