package security

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BaSui01/agentlab/types"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]+$`)
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// ValidEmail 报告邮箱格式是否合法
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// ValidUsername 3-50 位字母、数字、- 或 _
func ValidUsername(s string) bool { return usernamePattern.MatchString(s) }

// ValidSlug 小写字母、数字与 -
func ValidSlug(s string) bool { return slugPattern.MatchString(s) }

// ValidHexColor #RRGGBB
func ValidHexColor(s string) bool { return hexColorPattern.MatchString(s) }

// ValidateEmail 校验邮箱
func ValidateEmail(s string) error {
	if !ValidEmail(s) {
		return types.NewValidationError("Invalid email address")
	}
	return nil
}

// ValidateUsername 校验用户名
func ValidateUsername(s string) error {
	if !ValidUsername(s) {
		return types.NewValidationError("Username must be 3-50 characters and can only contain letters, numbers, hyphens, and underscores")
	}
	return nil
}

// ValidateSlug 校验 slug
func ValidateSlug(s string) error {
	if !ValidSlug(s) {
		return types.NewValidationError("Slug can only contain lowercase letters, numbers, and hyphens")
	}
	return nil
}

// ValidateHexColor 校验颜色；空串视为未设置
func ValidateHexColor(s string) error {
	if s != "" && !ValidHexColor(s) {
		return types.NewValidationError("Color must be a hex value like #1A2B3C")
	}
	return nil
}

// ValidatePassword 8-100 个字符，至少一个大写字母、一个小写字母和一个数字
func ValidatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < 8 {
		return types.NewValidationError("Password must be at least 8 characters long")
	}
	if n > 100 {
		return types.NewValidationError("Password must be at most 100 characters long")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return types.NewValidationError("Password must contain at least one uppercase letter")
	case !lower:
		return types.NewValidationError("Password must contain at least one lowercase letter")
	case !digit:
		return types.NewValidationError("Password must contain at least one digit")
	}
	return nil
}

// ValidateChatMessage 检查长度并返回清洗后的消息
func ValidateChatMessage(msg string, maxLen int) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", types.NewValidationError("Message cannot be empty")
	}
	if maxLen > 0 && utf8.RuneCountInString(msg) > maxLen {
		return "", types.NewValidationError("Message is too long").
			WithDetails(map[string]int{"max_length": maxLen})
	}
	clean := SanitizeInput(msg, maxLen)
	if clean == "" {
		return "", types.NewValidationError("Message cannot be empty")
	}
	return clean, nil
}

// ValidateLength 检查 trim 后的长度在 [min, max] 内；max <= 0 表示不限
func ValidateLength(field, s string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < min {
		if min == 1 {
			return types.NewValidationError(field + " is required")
		}
		return types.NewValidationError(field + " is too short")
	}
	if max > 0 && n > max {
		return types.NewValidationError(field + " is too long")
	}
	return nil
}
