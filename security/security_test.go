package security

import (
	"strings"
	"testing"

	"github.com/BaSui01/agentlab/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHTML(t *testing.T) {
	out := SanitizeHTML(`<p onclick="steal()">Hi <a href="https://example.com" target="_blank">link</a>` +
		`<img src="x.png"><script>alert(1)</script></p>`)
	assert.Contains(t, out, "<p>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "target")

	assert.NotContains(t, SanitizeHTML(`<a href="javascript:alert(1)">x</a>`), "javascript")
}

func TestStripHTML(t *testing.T) {
	out := StripHTML(`<b>Tom &amp; Jerry</b><script>alert(1)</script><style>p{}</style>`)
	assert.Equal(t, "Tom & Jerry", out)
	assert.Equal(t, "it's fine", StripHTML("it's fine"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("  <i>hello</i>\x00  ", 0))
	assert.Equal(t, "héllo", SanitizeInput("héllo wörld", 5))
	assert.Equal(t, "<strong>ok</strong>", SanitizeRichInput(" <strong>ok</strong><iframe></iframe> ", 0))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "etcpasswd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "myfile_-1.pdf", SanitizeFilename("my file?_-1.pdf"))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 255)
	assert.Equal(t, "user_example_com", RateLimitKey("user@example.com"))
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidEmail("a.b+c@example.co"))
	assert.False(t, ValidEmail("nope@"))
	assert.True(t, ValidUsername("user_01"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("bad name"))
	assert.True(t, ValidSlug("hello-world-2"))
	assert.False(t, ValidSlug("Hello"))
	assert.True(t, ValidHexColor("#1a2B3c"))
	assert.False(t, ValidHexColor("#123"))

	assert.NoError(t, ValidateHexColor(""))
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(ValidateEmail("x")))
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(ValidateUsername("x")))
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(ValidateSlug("A")))
}

func TestValidatePassword(t *testing.T) {
	cases := []struct{ pw, msg string }{
		{"Short1", "Password must be at least 8 characters long"},
		{"alllower1", "Password must contain at least one uppercase letter"},
		{"ALLUPPER1", "Password must contain at least one lowercase letter"},
		{"NoDigitsHere", "Password must contain at least one digit"},
		{strings.Repeat("Aa1", 34), "Password must be at most 100 characters long"},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.pw)
		require.Error(t, err, tc.pw)
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, tc.msg, e.Message)
	}
	assert.NoError(t, ValidatePassword("Secret123"))
}

func TestValidateChatMessage(t *testing.T) {
	msg, err := ValidateChatMessage("  <b>What is 2+2?</b> ", 100)
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", msg)

	_, err = ValidateChatMessage("   ", 100)
	assert.Error(t, err)
	_, err = ValidateChatMessage("<script>x</script>", 100)
	assert.Error(t, err)
	_, err = ValidateChatMessage(strings.Repeat("a", 11), 10)
	assert.Error(t, err)
}

func TestValidateLength(t *testing.T) {
	assert.EqualError(t, ValidateLength("Title", " ", 1, 10), "[VALIDATION_ERROR] Title is required")
	assert.Error(t, ValidateLength("Title", strings.Repeat("x", 11), 1, 10))
	assert.NoError(t, ValidateLength("Title", "ok", 1, 0))
}

func TestSanitizeHTML_NeverEmitsScript(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("script tags never survive", prop.ForAll(
		func(prefix, body string) bool {
			out := strings.ToLower(SanitizeHTML(prefix + "<script>" + body + "</script>"))
			return !strings.Contains(out, "<script")
		},
		gen.AlphaString(),
		gen.AnyString(),
	))
	properties.Property("stripped text has no tags", prop.ForAll(
		func(tag, text string) bool {
			out := StripHTML("<" + tag + ">" + text + "</" + tag + ">")
			return !strings.Contains(out, "<"+tag+">")
		},
		gen.OneConstOf("b", "p", "div", "span", "em"),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}
