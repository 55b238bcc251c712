package tokenizer

import "unicode/utf8"

// EstimatorCounter 是基于字符数的 Token 估算器，区分 CJK 与 ASCII
type EstimatorCounter struct{}

// NewEstimatorCounter creates a generic estimator.
func NewEstimatorCounter() *EstimatorCounter { return &EstimatorCounter{} }

// CountTokens: CJK ~1.5 chars/token, others ~4 chars/token, minimum 1 for non-empty text.
func (EstimatorCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func (EstimatorCounter) Name() string { return "estimator" }

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
