package intelligent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// 寒暄类输入按单词边界匹配，避免 "hi" 命中 "Chicago"
var conversationalPatterns = wordPatterns(
	"how are you", "how do you feel", "tell me a joke", "hello", "hi", "good morning",
	"good evening", "goodbye", "bye", "thank you", "thanks", "please", "sorry",
	"what are your hobbies", "do you like", "can you help me", "who are you",
	"what can you do", "how can you help", "nice to meet you", "how's your day",
)

var toolIndicators = []string{
	// factual
	"what is the", "who is the", "where is the", "when did", "how to",
	"tell me about the", "information about", "facts about",
	// current
	"latest news", "recent developments", "current price", "today's weather", "weather today",
	"what happened today", "recent updates", "breaking news",
	// price
	"price of", "cost of", "how much does", "rate of", "petrol price", "gas price",
	// weather
	"weather in", "weather of", "weather at", "weather for",
	"temperature in", "temperature of", "climate in", "forecast for",
	"current weather", "today weather", "tomorrow weather",
	"this year's updates", "recently discovered", "just announced",
}

var topicKeywords = []string{
	"ai developments", "technology updates", "stock market", "cryptocurrency",
	"political news", "scientific discoveries", "medical breakthroughs",
}

var (
	recencyWords      = []string{"latest", "recent", "current"}
	personalWords     = []string{"you", "feeling", "doing", "day"}
	weatherWords      = []string{"weather", "temperature", "climate", "forecast"}
	locationHints     = []string{"in", "at", "for", "of", "today", "tomorrow", "now"}
	searchPhrases     = []string{"what is", "who is", "where is", "when did", "how to", "tell me about", "information about", "recent", "latest", "current", "update", "happening", "price", "cost", "rate"}
	searchPriceWords  = []string{"price", "cost", "rate", "petrol", "gas", "fuel", "today", "current"}
	weatherScoreWords = []string{"weather", "temperature", "rain", "snow", "sunny", "cold", "hot", "climate"}
	newsScoreWords    = []string{"news", "headlines", "breaking", "happening", "events", "today"}
	timeScorePhrases  = []string{"what time", "current time", "what date", "today", "now"}
)

func wordPatterns(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsConversational 报告输入是否是寒暄/个人问题
func IsConversational(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range conversationalPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// ShouldUseTools 判断输入是否需要外部工具。now 用于 "<year> developments" 指示词
func ShouldUseTools(text string, now time.Time) bool {
	lower := strings.ToLower(text)
	if IsConversational(lower) {
		return false
	}
	if containsAny(lower, toolIndicators) || strings.Contains(lower, strconv.Itoa(now.Year())+" developments") {
		return true
	}
	if containsAny(lower, topicKeywords) {
		return true
	}
	if containsAny(lower, recencyWords) && !containsAny(lower, personalWords) {
		return true
	}
	return containsAny(lower, weatherWords) && containsAny(lower, locationHints)
}

// ToolKeywords 参与意图打分的工具及其关键词
type ToolKeywords struct {
	Name     string
	Keywords []string
}

type scored struct {
	name  string
	score int
}

// AnalyzeIntent 为每个工具打分（关键词 +2，上下文加分），
// 返回得分 ≥1 的前 3 个工具，同分保持 candidates 的顺序
func AnalyzeIntent(text string, candidates []ToolKeywords, now time.Time) []string {
	lower := strings.ToLower(text)
	year := now.Year()

	var hits []scored
	for _, c := range candidates {
		score := 0
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}

		switch c.Name {
		case toolSearch:
			if containsAny(lower, searchPhrases) {
				score++
			}
			if containsAny(lower, searchPriceWords) {
				score += 3
			}
			if strings.Contains(text, strconv.Itoa(year)) || strings.Contains(text, strconv.Itoa(year-1)) {
				score += 2
			}
		case toolWeather:
			if containsAny(lower, weatherScoreWords) {
				score += 3
			}
		case toolNews:
			if containsAny(lower, newsScoreWords) {
				score += 3
			}
		case toolDateTime:
			if containsAny(lower, timeScorePhrases) {
				score += 3
			}
		}

		if score >= 1 {
			hits = append(hits, scored{name: c.Name, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > 3 {
		hits = hits[:3]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// =============================================================================
// 强制工具路径
// =============================================================================

type route int

const (
	routeFunctionCalling route = iota
	routeWeather
	routePrice
	routeDateTime
	routeNews
	routeInformation
)

func (r route) String() string {
	switch r {
	case routeWeather:
		return "weather"
	case routePrice:
		return "price"
	case routeDateTime:
		return "datetime"
	case routeNews:
		return "news"
	case routeInformation:
		return "information"
	default:
		return "function_calling"
	}
}

var (
	routeWeatherWords   = []string{"weather", "temperature", "climate", "forecast", "humidity", "wind"}
	routePriceWords     = []string{"price", "cost", "rate", "petrol", "gas", "fuel"}
	routeTimePhrases    = []string{"what time is it", "current time", "what date", "today's date"}
	routeTimeWords      = []string{"time", "date", "datetime", "timestamp"}
	routeTimeExclusions = []string{"weather", "news"}
	routeNewsWords      = []string{"latest", "recent", "happening", "news", "breaking"}
	routeNewsExclusions = []string{"weather", "temperature", "climate"}
	routeTodayWords     = []string{"today", "current"}
	routeTodayExclusion = []string{"weather", "temperature", "climate", "time", "date"}
	routeInfoPhrases    = []string{"what is", "who is", "where is", "tell me about"}
)

// classify 按 weather → price → datetime → news → information 的顺序选择直接工具路径
func classify(text string) route {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, routeWeatherWords):
		return routeWeather
	case containsAny(lower, routePriceWords):
		return routePrice
	case containsAny(lower, routeTimePhrases),
		containsAny(lower, routeTimeWords) && !containsAny(lower, routeTimeExclusions):
		return routeDateTime
	case containsAny(lower, routeNewsWords) && !containsAny(lower, routeNewsExclusions),
		containsAny(lower, routeTodayWords) && !containsAny(lower, routeTodayExclusion):
		return routeNews
	case containsAny(lower, routeInfoPhrases):
		return routeInformation
	}
	return routeFunctionCalling
}
