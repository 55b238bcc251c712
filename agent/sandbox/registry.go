package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"github.com/BaSui01/agentlab/types"
	"github.com/google/jsonschema-go/jsonschema"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ToolSpec 用户提交的工具定义
type ToolSpec struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Parameters     json.RawMessage `json:"params_schema"`
	Code           string          `json:"code"`
	AllowedImports []string        `json:"allowed_imports,omitempty"`
}

// UserTool 已通过校验并编译的用户工具
type UserTool struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Parameters     json.RawMessage `json:"parameters"`
	Code           string          `json:"code"`
	AllowedImports []string        `json:"allowed_imports"`
	Params         []string        `json:"params"`
	CreatedAt      time.Time       `json:"created_at"`

	proto    *lua.FunctionProto
	resolved *jsonschema.Resolved
}

// FunctionSchema 返回 {"type":"function","function":{...}} 形式的描述
func (t *UserTool) FunctionSchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		},
	}
}

// Registry 用户工具注册表
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*UserTool
	executor *Executor
	logger   *zap.Logger
}

// NewRegistry 创建注册表
func NewRegistry(config ExecutorConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "sandbox_registry"))
	return &Registry{
		tools:    make(map[string]*UserTool),
		executor: NewExecutor(config, logger),
		logger:   logger,
	}
}

func registrationError(err error) error {
	return types.NewError(types.ErrToolValidation, "Tool registration failed: "+err.Error()).
		WithHTTPStatus(400).WithCause(err)
}

// Register 校验并编译工具；失败时返回 400 的 TOOL_VALIDATION 错误
func (r *Registry) Register(spec ToolSpec) (*UserTool, error) {
	tool, err := r.compile(spec)
	if err != nil {
		r.logger.Warn("tool registration rejected", zap.String("name", spec.Name), zap.Error(err))
		return nil, registrationError(err)
	}

	r.mu.Lock()
	if _, exists := r.tools[tool.Name]; exists {
		r.mu.Unlock()
		return nil, registrationError(fmt.Errorf("tool '%s' already registered", tool.Name))
	}
	r.tools[tool.Name] = tool
	r.mu.Unlock()

	r.logger.Info("tool registered", zap.String("name", tool.Name), zap.Strings("params", tool.Params))
	return tool, nil
}

func (r *Registry) compile(spec ToolSpec) (*UserTool, error) {
	if err := ValidateMetadata(spec.Name, spec.Description, spec.Code, spec.AllowedImports); err != nil {
		return nil, err
	}

	schema, resolved, err := resolveSchema(spec.Parameters)
	if err != nil {
		return nil, err
	}

	chunk, err := ParseChunk(spec.Name, spec.Code)
	if err != nil {
		return nil, err
	}
	if err := ValidateChunk(chunk, spec.AllowedImports); err != nil {
		return nil, err
	}

	fn := findFunction(chunk, spec.Name)
	if fn == nil {
		return nil, fmt.Errorf("Function '%s' not found in provided code", spec.Name)
	}
	var params []string
	if fn.ParList != nil {
		params = fn.ParList.Names
	}
	if err := validateSignature(params, schema, additionalAllowed(spec.Parameters)); err != nil {
		return nil, err
	}

	proto, err := lua.Compile(chunk, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	imports := spec.AllowedImports
	if imports == nil {
		imports = []string{}
	}
	return &UserTool{
		Name:           spec.Name,
		Description:    spec.Description,
		Parameters:     spec.Parameters,
		Code:           spec.Code,
		AllowedImports: imports,
		Params:         append([]string(nil), params...),
		CreatedAt:      time.Now(),
		proto:          proto,
		resolved:       resolved,
	}, nil
}

// resolveSchema 解析参数 Schema，要求 type=object
func resolveSchema(raw json.RawMessage) (*jsonschema.Schema, *jsonschema.Resolved, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("parameters schema is required")
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, nil, fmt.Errorf("invalid parameters schema: %w", err)
	}
	if schema.Type != "object" {
		return nil, nil, fmt.Errorf("parameters schema must have type 'object'")
	}
	// 只按 2020-12 校验
	schema.Schema = ""
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid parameters schema: %w", err)
	}
	return &schema, resolved, nil
}

// additionalAllowed 报告 schema 是否显式允许额外属性
func additionalAllowed(raw json.RawMessage) bool {
	var probe struct {
		AdditionalProperties json.RawMessage `json:"additionalProperties"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	ap := bytes.TrimSpace(probe.AdditionalProperties)
	return len(ap) > 0 && !bytes.Equal(ap, []byte("false"))
}

// validateSignature 参数列表必须覆盖 required，且不得出现 schema 之外的参数
func validateSignature(params []string, schema *jsonschema.Schema, allowExtra bool) error {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p] = true
		if _, ok := schema.Properties[p]; !ok && !allowExtra {
			return fmt.Errorf("Parameter '%s' not defined in schema", p)
		}
	}
	for _, req := range schema.Required {
		if !declared[req] {
			return fmt.Errorf("Required parameter '%s' not found in function", req)
		}
	}
	return nil
}

// Get 返回工具
func (r *Registry) Get(name string) (*UserTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 返回排序后的工具名
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tools)
}

// Remove 删除工具；不存在时返回 false
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	r.logger.Info("tool removed", zap.String("name", name))
	return true
}

// Invoke 校验参数后执行工具，返回 JSON 结果
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, types.NewError(types.ErrToolNotFound, fmt.Sprintf("tool %s not found", name)).WithHTTPStatus(404)
	}

	input := map[string]any{}
	if s := bytes.TrimSpace(args); len(s) > 0 && !bytes.Equal(s, []byte("null")) {
		if err := json.Unmarshal(args, &input); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if err := tool.resolved.Validate(input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	res, err := r.executor.Run(ctx, tool, input)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Tool 把用户工具适配为 tools.ToolFunc 与元数据，供 Agent 注册
func (r *Registry) Tool(name string) (tools.ToolFunc, tools.ToolMetadata, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, tools.ToolMetadata{}, types.NewError(types.ErrToolNotFound, fmt.Sprintf("tool %s not found", name)).
			WithHTTPStatus(404)
	}
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return r.Invoke(ctx, name, args)
	}
	meta := tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		},
		Timeout: r.executor.config.Timeout + time.Second,
	}
	return fn, meta, nil
}

// Stats 返回执行统计
func (r *Registry) Stats() ExecutorStats {
	return r.executor.Stats()
}
