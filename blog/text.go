package blog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/agentlab/security"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const (
	excerptLength  = 300
	wordsPerMinute = 200
)

var (
	slugInvalid   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSeparator = regexp.MustCompile(`[-\s]+`)
	markdownMarks = regexp.MustCompile("[#*`\\[\\]()]")
	dangerousTags = regexp.MustCompile(`(?is)<(script|iframe|object|embed|link|meta)\b.*?>`)
)

// Slugify 转小写，去掉标点，空白与连字符合并为单个 "-"
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(s), "")
	slug = slugSeparator.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Excerpt 去掉 Markdown 标记后截取摘要：超过 300 个字符时，
// 若后半段有句末标点则截到该处，否则在最后一个空格处截断并加 "..."
func Excerpt(content string) string {
	clean := markdownMarks.ReplaceAllString(content, "")
	runes := []rune(clean)
	if len(runes) <= excerptLength {
		return strings.TrimSpace(clean)
	}

	cut := string(runes[:excerptLength])
	end := max(strings.LastIndex(cut, "."), strings.LastIndex(cut, "!"), strings.LastIndex(cut, "?"))
	if end >= 0 && utf8.RuneCountInString(cut[:end]) > excerptLength/2 {
		return strings.TrimSpace(cut[:end+1])
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut + "...")
}

// ReadTime 按每分钟 200 词估算阅读分钟数，至少 1
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	n := (words + wordsPerMinute - 1) / wordsPerMinute
	if n < 1 {
		return 1
	}
	return n
}

// StripDangerousTags 移除 script、iframe、object、embed、link、meta 标签，Markdown 正文保持原样
func StripDangerousTags(content string) string {
	return dangerousTags.ReplaceAllString(content, "")
}

// RenderMarkdown 渲染 Markdown 并按白名单清洗 HTML
func RenderMarkdown(content string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(p.Parse([]byte(content)), r)
	return security.SanitizeHTML(string(out))
}

// SplitTags 拆分逗号分隔的标签
func SplitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
