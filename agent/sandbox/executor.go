package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ExecutorConfig 执行限制
type ExecutorConfig struct {
	Timeout         time.Duration `json:"timeout"`
	MaxOutputBytes  int           `json:"max_output_bytes"`
	MaxStringBytes  int           `json:"max_string_bytes"`
	CallStackSize   int           `json:"call_stack_size"`
	RegistryMaxSize int           `json:"registry_max_size"`
	MaxResultDepth  int           `json:"max_result_depth"`
}

// DefaultExecutorConfig 返回默认限制
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:         5 * time.Second,
		MaxOutputBytes:  64 * 1024,
		MaxStringBytes:  1 << 20,
		CallStackSize:   128,
		RegistryMaxSize: 256 * 1024,
		MaxResultDepth:  32,
	}
}

// ExecutorStats 执行统计
type ExecutorStats struct {
	TotalExecutions   int64         `json:"total_executions"`
	SuccessExecutions int64         `json:"success_executions"`
	FailedExecutions  int64         `json:"failed_executions"`
	TimeoutExecutions int64         `json:"timeout_executions"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// ExecutionResult 一次调用的结果
type ExecutionResult struct {
	Value     json.RawMessage `json:"value"`
	Output    string          `json:"output,omitempty"`
	Duration  time.Duration   `json:"duration"`
	Truncated bool            `json:"truncated,omitempty"`
}

// ErrExecutionTimeout 执行超过截止时间
var ErrExecutionTimeout = errors.New("sandbox execution timed out")

// 移除的基础函数：可以加载代码、访问环境或绕过元表
var removedBaseFuncs = []string{
	"dofile", "loadfile", "load", "loadstring", "getfenv", "setfenv",
	"rawget", "rawset", "rawequal", "setmetatable", "getmetatable",
	"collectgarbage", "module", "require", "newproxy", "_printregs", "_G",
}

// Executor 在受限 LState 中执行已编译的工具
type Executor struct {
	config ExecutorConfig
	logger *zap.Logger
	mu     sync.RWMutex
	stats  ExecutorStats
}

// NewExecutor 创建执行器
func NewExecutor(config ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultExecutorConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = def.MaxOutputBytes
	}
	if config.MaxStringBytes <= 0 {
		config.MaxStringBytes = def.MaxStringBytes
	}
	if config.CallStackSize <= 0 {
		config.CallStackSize = def.CallStackSize
	}
	if config.RegistryMaxSize <= 0 {
		config.RegistryMaxSize = def.RegistryMaxSize
	}
	if config.MaxResultDepth <= 0 {
		config.MaxResultDepth = def.MaxResultDepth
	}
	return &Executor{config: config, logger: logger}
}

// newState 创建只含 base/table/string/math 的 LState
func (e *Executor) newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       e.config.CallStackSize,
		RegistrySize:        1024,
		RegistryMaxSize:     e.config.RegistryMaxSize,
		MinimizeStackMemory: true,
	})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range removedBaseFuncs {
		L.SetGlobal(name, lua.LNil)
	}

	// string.rep 限制结果大小
	maxBytes := e.config.MaxStringBytes
	if strTable, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable); ok {
		rep := strTable.RawGetString("rep")
		strTable.RawSetString("rep", L.NewFunction(func(L *lua.LState) int {
			s := L.CheckString(1)
			n := L.CheckInt(2)
			if n > 0 && len(s)*n > maxBytes {
				L.RaiseError("string.rep result exceeds %d bytes", maxBytes)
				return 0
			}
			L.Push(rep)
			L.Push(lua.LString(s))
			L.Push(lua.LNumber(n))
			L.Call(2, 1)
			return 1
		}))
	}
	return L
}

// Run 执行 tool：加载编译结果，按参数名依次传入 args
func (e *Executor) Run(ctx context.Context, tool *UserTool, args map[string]any) (*ExecutionResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	result, err := e.run(ctx, tool, args)

	e.mu.Lock()
	e.stats.TotalExecutions++
	e.stats.TotalDuration += time.Since(start)
	switch {
	case err == nil:
		e.stats.SuccessExecutions++
	case errors.Is(err, ErrExecutionTimeout):
		e.stats.FailedExecutions++
		e.stats.TimeoutExecutions++
	default:
		e.stats.FailedExecutions++
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Debug("sandbox execution failed", zap.String("tool", tool.Name), zap.Error(err))
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) run(ctx context.Context, tool *UserTool, args map[string]any) (*ExecutionResult, error) {
	L := e.newState()
	defer L.Close()
	L.SetContext(ctx)

	var out strings.Builder
	truncated := false
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		line := strings.Join(parts, "\t") + "\n"
		if out.Len()+len(line) > e.config.MaxOutputBytes {
			truncated = true
			return 0
		}
		out.WriteString(line)
		return 0
	}))

	L.Push(L.NewFunctionFromProto(tool.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return nil, e.wrapErr(ctx, err)
	}

	fn, ok := L.GetGlobal(tool.Name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("function '%s' not defined", tool.Name)
	}

	params := make([]lua.LValue, 0, len(tool.Params))
	for _, p := range tool.Params {
		v, err := toLua(L, args[p], 0)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", p, err)
		}
		params = append(params, v)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, params...); err != nil {
		return nil, e.wrapErr(ctx, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	value, err := fromLua(ret, 0, e.config.MaxResultDepth)
	if err != nil {
		return nil, err
	}
	// 没有返回值时把打印输出作为结果
	if value == nil && out.Len() > 0 {
		value = strings.TrimRight(out.String(), "\n")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &ExecutionResult{Value: raw, Output: out.String(), Truncated: truncated}, nil
}

func (e *Executor) wrapErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, e.config.Timeout)
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return fmt.Errorf("lua error: %s", apiErr.Object.String())
	}
	return fmt.Errorf("lua error: %w", err)
}

// Stats 返回执行统计
func (e *Executor) Stats() ExecutorStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// toLua JSON 值 -> Lua 值
func toLua(L *lua.LState, v any, depth int) (lua.LValue, error) {
	if depth > 32 {
		return lua.LNil, errors.New("argument nested too deeply")
	}
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(x), nil
	case float64:
		return lua.LNumber(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return lua.LNil, err
		}
		return lua.LNumber(f), nil
	case string:
		return lua.LString(x), nil
	case []any:
		t := L.NewTable()
		for i, item := range x {
			lv, err := toLua(L, item, depth+1)
			if err != nil {
				return lua.LNil, err
			}
			t.RawSetInt(i+1, lv)
		}
		return t, nil
	case map[string]any:
		t := L.NewTable()
		for k, item := range x {
			lv, err := toLua(L, item, depth+1)
			if err != nil {
				return lua.LNil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	default:
		return lua.LNil, fmt.Errorf("unsupported argument type %T", v)
	}
}

// fromLua Lua 值 -> JSON 值；序列表转数组，其余表转对象
func fromLua(v lua.LValue, depth, maxDepth int) (any, error) {
	if depth > maxDepth {
		return nil, errors.New("result nested too deeply")
	}
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New("result is not a finite number")
		}
		return f, nil
	case lua.LString:
		return string(x), nil
	case *lua.LTable:
		if n := x.Len(); n > 0 && isSequence(x, n) {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				item, err := fromLua(x.RawGetInt(i), depth+1, maxDepth)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			return arr, nil
		}
		obj := map[string]any{}
		var ferr error
		x.ForEach(func(k, val lua.LValue) {
			if ferr != nil {
				return
			}
			item, err := fromLua(val, depth+1, maxDepth)
			if err != nil {
				ferr = err
				return
			}
			obj[luaKey(k)] = item
		})
		if ferr != nil {
			return nil, ferr
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type().String())
	}
}

func isSequence(t *lua.LTable, n int) bool {
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	return count == n
}

func luaKey(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		f := float64(n)
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return k.String()
}

// sortedKeys 稳定输出
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
