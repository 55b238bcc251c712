package intelligent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// 按顺序尝试；第 4 条依赖大写城市名，不加 (?i)
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bin\s+([A-Za-z\s]+?)(?:\s+today|\s+now|\?|$)`),
	regexp.MustCompile(`(?i)\bat\s+([A-Za-z\s]+?)(?:\s+today|\s+now|\?|$)`),
	regexp.MustCompile(`(?i)\bfor\s+([A-Za-z\s]+?)(?:\s+today|\s+now|\?|$)`),
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?i:weather|temperature|forecast)`),
	regexp.MustCompile(`(?i)(?:weather|temperature|forecast)\s+(?:in|at|for)\s+([A-Za-z\s]+?)(?:\s+today|\s+now|\?|$)`),
	regexp.MustCompile(`(?i)what'?s\s+the\s+weather\s+(?:like\s+)?(?:in|at|for)\s+([A-Za-z\s]+?)(?:\s+today|\s+now|\?|$)`),
}

var locationNoise = regexp.MustCompile(`(?i)\b(today|now|weather|temperature|forecast|like)\b`)

var knownCities = []string{
	"karachi", "lahore", "islamabad", "rawalpindi", "faisalabad",
	"paris", "london", "tokyo", "sydney", "dubai", "mumbai", "delhi",
	"bangkok", "singapore", "berlin", "madrid", "rome", "amsterdam",
	"moscow", "beijing", "seoul", "cairo", "istanbul", "new york",
	"los angeles", "chicago", "houston", "toronto", "vancouver",
}

var titleCaser = cases.Title(language.English)

// ExtractLocation 从天气类问题中提取地点；找不到时返回 ""
func ExtractLocation(query string) string {
	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		loc := strings.TrimSpace(locationNoise.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		loc = strings.Join(strings.Fields(loc), " ")
		if len(loc) > 1 {
			return loc
		}
	}

	lower := strings.ToLower(query)
	for _, city := range knownCities {
		if strings.Contains(lower, city) {
			return titleCaser.String(city)
		}
	}
	return ""
}
