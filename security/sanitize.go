package security

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 富文本允许的标签
var allowedTags = []string{
	"p", "br", "strong", "em", "u", "s", "a", "ul", "ol", "li",
	"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "code", "pre",
}

var (
	richPolicy   = newRichPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowStandardURLs()
	p.AllowAttrs("class").Globally()
	return p
}

// SanitizeHTML 只保留白名单标签与属性
func SanitizeHTML(s string) string {
	return richPolicy.Sanitize(s)
}

// StripHTML 去掉全部标签（script/style 连同内容），返回纯文本
func StripHTML(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// SanitizeInput 截断到 maxLen 个字符，移除 NUL 与全部标签后去掉首尾空白；maxLen <= 0 表示不截断
func SanitizeInput(s string, maxLen int) string {
	s = strings.ReplaceAll(truncateRunes(s, maxLen), "\x00", "")
	return strings.TrimSpace(StripHTML(s))
}

// SanitizeRichInput 与 SanitizeInput 相同，但保留白名单 HTML
func SanitizeRichInput(s string, maxLen int) string {
	s = strings.ReplaceAll(truncateRunes(s, maxLen), "\x00", "")
	return strings.TrimSpace(SanitizeHTML(s))
}

var (
	filenameTraversal = regexp.MustCompile(`\.\.`)
	filenameSeparator = regexp.MustCompile(`[/\\:]`)
	filenameUnsafe    = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// SanitizeFilename 去掉路径穿越与非法字符，最长 255 字节
func SanitizeFilename(name string) string {
	name = filenameTraversal.ReplaceAllString(name, "")
	name = filenameSeparator.ReplaceAllString(name, "")
	name = filenameUnsafe.ReplaceAllString(name, "")
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

var rateKeyUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// RateLimitKey 把任意标识转换为可用作缓存键的字符串
func RateLimitKey(identifier string) string {
	return rateKeyUnsafe.ReplaceAllString(identifier, "_")
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
