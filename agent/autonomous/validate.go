package autonomous

import (
	"regexp"
	"strings"

	"github.com/BaSui01/agentlab/agent"
)

const (
	toolSearchWeb    = "search_web"
	toolGetWeather   = "get_weather"
	toolAnalyze      = "analyze_weather"
	toolAirQuality   = "check_air_quality"
	toolGetTime      = "get_time"
	toolSearchNews   = "search_news"
	defaultLocation  = "New York"
	defaultAQISource = "current location"
)

var (
	weatherGoalWords = []string{"weather", "temperature", "climate", "forecast", "rain", "snow", "wind", "humid"}
	airQualityWords  = []string{"air quality", "pollution", "aqi", "smog"}
	timeGoalWords    = []string{"time", "clock", "what time", "current time"}
	correctWeather   = []string{"weather", "temperature", "climate", "forecast"}
	correctNewsWords = []string{"news", "headlines", "current events", "today news", "latest news"}
	detailWords      = []string{"detailed", "detail", "comprehensive", "explain", "explaining"}
	questionWordsRe  = regexp.MustCompile(`(?i)\b(what|where|when|how|why|is|are|can|should|tell me|search for)\b`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isSearch(action string) bool {
	return action == toolSearchWeb || action == toolSearchNews
}

// ValidateAction 检查 LLM 选择的动作是否适合该目标；
// analyze_weather 只能在 get_weather 之后使用
func ValidateAction(action, goal string, steps []agent.Step) bool {
	lower := strings.ToLower(goal)
	switch action {
	case toolGetWeather:
		return containsAny(lower, weatherGoalWords)
	case toolAnalyze:
		if !containsAny(lower, weatherGoalWords) {
			return false
		}
		for _, s := range steps {
			if s.Action == toolGetWeather {
				return true
			}
		}
		return false
	case toolAirQuality:
		return containsAny(lower, airQualityWords)
	case toolGetTime:
		return containsAny(lower, timeGoalWords)
	}
	return true
}

// CorrectAction 按关键词为目标挑选动作，默认 search_web
func CorrectAction(goal string) string {
	lower := strings.ToLower(goal)
	switch {
	case containsAny(lower, correctWeather):
		return toolGetWeather
	case containsAny(lower, correctNewsWords):
		return toolSearchNews
	case containsAny(lower, timeGoalWords):
		return toolGetTime
	case containsAny(lower, airQualityWords):
		return toolAirQuality
	}
	return toolSearchWeb
}

// SearchQuery 去掉疑问词后的搜索词；去完为空时使用原文
func SearchQuery(goal string) string {
	q := strings.TrimSpace(whitespaceRe.ReplaceAllString(questionWordsRe.ReplaceAllString(goal, ""), " "))
	if q == "" {
		return goal
	}
	return q
}

func wantsDetail(goal string) bool {
	return containsAny(strings.ToLower(goal), detailWords)
}
