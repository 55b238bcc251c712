package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, code string, imports ...string) error {
	t.Helper()
	chunk, err := ParseChunk("test", code)
	if err != nil {
		return err
	}
	return ValidateChunk(chunk, imports)
}

func TestValidateChunk_Accepts(t *testing.T) {
	cases := map[string]string{
		"math":      "function f(x) return math.floor(x) + math.max(1, 2) end",
		"string":    `function f(s) return s:upper() .. string.rep("-", 3) end`,
		"table":     "function f(t) table.insert(t, 1) table.sort(t) return t end",
		"local fn":  "local function helper(n) if n <= 1 then return 1 end return n * helper(n - 1) end\nfunction f(n) return helper(n) end",
		"globals":   "counter = 0\nfunction f() counter = counter + 1 return counter end",
		"builtins":  "function f(v) return tostring(tonumber(v)) .. type(v) end",
		"loops":     "function f(t) local s = 0 for i = 1, #t do s = s + t[i] end for k, v in pairs(t) do s = s + 0 end return s end",
		"pcall":     `function f() local ok, err = pcall(error, "x") return ok end`,
		"anonymous": "function f(t) local g = function(a) return a * 2 end return g(t) end",
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, validate(t, code))
		})
	}
}

func TestValidateChunk_Rejects(t *testing.T) {
	cases := []struct {
		name string
		code string
		want string
	}{
		{"python import", "import os\ndef f():\n    return 1", "Invalid syntax"},
		{"os module", `function f() return os.execute("ls") end`, "'os' not allowed"},
		{"io module", `function f() return io.open("/etc/passwd") end`, "'io' not allowed"},
		{"eval", `function f() return eval("1") end`, "Function call 'eval' not allowed"},
		{"open", `function f() return open("/etc/passwd") end`, "Function call 'open' not allowed"},
		{"loadstring", `function f() return loadstring("return 1")() end`, "Function call 'loadstring' not allowed"},
		{"unknown call", `function f() return fetch("x") end`, "Function call 'fetch' not allowed"},
		{"unknown module", `function f() return utf8.char(72) end`, "Module 'utf8' not in allowed imports"},
		{"_G", `function f() return _G end`, "'_G' not allowed"},
		{"setmetatable", `function f(t) return setmetatable(t, {}) end`, "not allowed"},
		{"method call", `function f(s) return s:dump() end`, "method call ':dump' not allowed"},
		{"method def", "t = {}\nfunction t:m() return 1 end", "method definitions not allowed"},
		{"modify module", `function f() string.upper = nil end`, "cannot modify module 'string'"},
		{"redefine builtin", "function print() end", "cannot redefine 'print'"},
		{"assign forbidden", "function f() os = {} end", "cannot assign to 'os'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(t, tc.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateChunk_LocalShadowing(t *testing.T) {
	// 参数名与模块同名时按局部变量处理
	assert.NoError(t, validate(t, "function f(utf8) return utf8.value end"))
}

func TestValidateMetadata(t *testing.T) {
	ok := "function f() end"
	assert.NoError(t, ValidateMetadata("my_tool", "desc", ok, []string{"math"}))

	tests := []struct {
		name, desc, code string
		imports          []string
		want             string
	}{
		{"", "d", ok, nil, "name must be"},
		{strings.Repeat("a", 51), "d", ok, nil, "name must be"},
		{"1bad", "d", ok, nil, "must match"},
		{"has-dash", "d", ok, nil, "must match"},
		{"eval", "d", ok, nil, "Tool name 'eval' is not allowed"},
		{"LoadString", "d", ok, nil, "is not allowed"},
		{"t", "", ok, nil, "description"},
		{"t", strings.Repeat("d", 501), ok, nil, "description"},
		{"t", "d", "", nil, "code"},
		{"t", "d", strings.Repeat("x", 10001), nil, "code"},
		{"t", "d", ok, []string{"os"}, "Import 'os' not allowed"},
		{"t", "d", ok, make([]string, 11), "at most 10"},
	}
	for _, tt := range tests {
		err := ValidateMetadata(tt.name, tt.desc, tt.code, tt.imports)
		require.Error(t, err, tt.name)
		assert.Contains(t, err.Error(), tt.want)
	}
}
