package sandbox

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// 限制
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 500
	MaxCodeLength        = 10000
	MaxAllowedImports    = 10
)

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var forbiddenToolNames = map[string]bool{
	"exec": true, "eval": true, "compile": true, "__import__": true, "open": true, "file": true,
	"require": true, "load": true, "loadstring": true, "dofile": true, "loadfile": true,
}

// AllowedModules 可出现在 allowed_imports 中、也可直接访问的模块
var AllowedModules = map[string]bool{"math": true, "string": true, "table": true}

// AllowedBuiltins 可直接调用的全局函数
var AllowedBuiltins = map[string]bool{
	"tostring": true, "tonumber": true, "type": true, "pairs": true, "ipairs": true,
	"select": true, "next": true, "error": true, "assert": true, "pcall": true,
	"print": true, "unpack": true,
}

// ForbiddenGlobals 任何位置都不允许引用的全局名
var ForbiddenGlobals = map[string]bool{
	"os": true, "io": true, "debug": true, "package": true, "require": true,
	"load": true, "loadstring": true, "dofile": true, "loadfile": true,
	"getfenv": true, "setfenv": true, "rawget": true, "rawset": true, "rawequal": true,
	"setmetatable": true, "getmetatable": true, "collectgarbage": true, "module": true,
	"newproxy": true, "coroutine": true, "channel": true, "_G": true,
	"eval": true, "exec": true, "open": true, "compile": true, "__import__": true,
}

// 允许以 s:method() 形式调用的字符串方法
var stringMethods = map[string]bool{
	"byte": true, "find": true, "format": true, "gmatch": true, "gsub": true, "len": true,
	"lower": true, "match": true, "rep": true, "reverse": true, "sub": true, "upper": true,
}

// ValidateMetadata 校验名称、描述、代码长度与 allowed_imports
func ValidateMetadata(name, description, code string, allowedImports []string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name must be 1-%d characters", MaxNameLength)
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("name %q must match %s", name, toolNamePattern.String())
	}
	if forbiddenToolNames[strings.ToLower(name)] {
		return fmt.Errorf("Tool name '%s' is not allowed", name)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(description)); n == 0 || n > MaxDescriptionLength {
		return fmt.Errorf("description must be 1-%d characters", MaxDescriptionLength)
	}
	if strings.TrimSpace(code) == "" || len(code) > MaxCodeLength {
		return fmt.Errorf("code must be 1-%d characters", MaxCodeLength)
	}
	if len(allowedImports) > MaxAllowedImports {
		return fmt.Errorf("at most %d allowed imports", MaxAllowedImports)
	}
	for _, m := range allowedImports {
		if !AllowedModules[m] {
			return fmt.Errorf("Import '%s' not allowed", m)
		}
	}
	return nil
}

// ParseChunk 解析 Lua 源码；语法错误（包括其他语言的代码）直接拒绝
func ParseChunk(name, code string) ([]ast.Stmt, error) {
	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("Invalid syntax: %v", err)
	}
	return chunk, nil
}

// validator AST 白名单遍历
type validator struct {
	modules     map[string]bool
	userGlobals map[string]bool
	scopes      []map[string]bool
}

// ValidateChunk 遍历 AST，拒绝白名单之外的构造
func ValidateChunk(chunk []ast.Stmt, allowedImports []string) error {
	v := &validator{
		modules:     map[string]bool{},
		userGlobals: map[string]bool{},
	}
	for m := range AllowedModules {
		v.modules[m] = true
	}
	for _, m := range allowedImports {
		v.modules[m] = true
	}
	collectGlobals(chunk, v.userGlobals)

	v.push()
	defer v.pop()
	return v.block(chunk)
}

// collectGlobals 预先收集代码中定义的全局函数与全局变量
func collectGlobals(stmts []ast.Stmt, out map[string]bool) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.FuncDefStmt:
			if st.Name != nil && st.Name.Receiver == nil {
				if id, ok := st.Name.Func.(*ast.IdentExpr); ok {
					out[id.Value] = true
				}
			}
			if st.Func != nil {
				collectGlobals(st.Func.Stmts, out)
			}
		case *ast.AssignStmt:
			for _, lhs := range st.Lhs {
				if id, ok := lhs.(*ast.IdentExpr); ok {
					out[id.Value] = true
				}
			}
		case *ast.DoBlockStmt:
			collectGlobals(st.Stmts, out)
		case *ast.WhileStmt:
			collectGlobals(st.Stmts, out)
		case *ast.RepeatStmt:
			collectGlobals(st.Stmts, out)
		case *ast.IfStmt:
			collectGlobals(st.Then, out)
			collectGlobals(st.Else, out)
		case *ast.NumberForStmt:
			collectGlobals(st.Stmts, out)
		case *ast.GenericForStmt:
			collectGlobals(st.Stmts, out)
		}
	}
}

func (v *validator) push() { v.scopes = append(v.scopes, map[string]bool{}) }
func (v *validator) pop()  { v.scopes = v.scopes[:len(v.scopes)-1] }

func (v *validator) declare(names ...string) {
	top := v.scopes[len(v.scopes)-1]
	for _, n := range names {
		top[n] = true
	}
}

func (v *validator) isLocal(name string) bool {
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if v.scopes[i][name] {
			return true
		}
	}
	return false
}

func (v *validator) block(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := v.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) scopedBlock(stmts []ast.Stmt, names ...string) error {
	v.push()
	defer v.pop()
	v.declare(names...)
	return v.block(stmts)
}

func (v *validator) stmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.LocalAssignStmt:
		// local function f() 在函数体内可见 f
		if len(st.Names) == 1 && len(st.Exprs) == 1 {
			if _, ok := st.Exprs[0].(*ast.FunctionExpr); ok {
				v.declare(st.Names[0])
			}
		}
		if err := v.exprs(st.Exprs); err != nil {
			return err
		}
		v.declare(st.Names...)
		return nil

	case *ast.AssignStmt:
		for _, lhs := range st.Lhs {
			if err := v.assignTarget(lhs); err != nil {
				return err
			}
		}
		return v.exprs(st.Rhs)

	case *ast.FuncCallStmt:
		return v.expr(st.Expr)

	case *ast.DoBlockStmt:
		return v.scopedBlock(st.Stmts)

	case *ast.WhileStmt:
		if err := v.expr(st.Condition); err != nil {
			return err
		}
		return v.scopedBlock(st.Stmts)

	case *ast.RepeatStmt:
		v.push()
		defer v.pop()
		if err := v.block(st.Stmts); err != nil {
			return err
		}
		return v.expr(st.Condition)

	case *ast.IfStmt:
		if err := v.expr(st.Condition); err != nil {
			return err
		}
		if err := v.scopedBlock(st.Then); err != nil {
			return err
		}
		return v.scopedBlock(st.Else)

	case *ast.NumberForStmt:
		if err := v.exprs([]ast.Expr{st.Init, st.Limit, st.Step}); err != nil {
			return err
		}
		return v.scopedBlock(st.Stmts, st.Name)

	case *ast.GenericForStmt:
		if err := v.exprs(st.Exprs); err != nil {
			return err
		}
		return v.scopedBlock(st.Stmts, st.Names...)

	case *ast.FuncDefStmt:
		if st.Name == nil || st.Name.Receiver != nil || st.Name.Method != "" {
			return fmt.Errorf("method definitions not allowed")
		}
		id, ok := st.Name.Func.(*ast.IdentExpr)
		if !ok {
			return fmt.Errorf("only plain function definitions are allowed")
		}
		if ForbiddenGlobals[id.Value] || AllowedBuiltins[id.Value] {
			return fmt.Errorf("cannot redefine '%s'", id.Value)
		}
		return v.function(st.Func)

	case *ast.ReturnStmt:
		return v.exprs(st.Exprs)

	case *ast.BreakStmt:
		return nil

	case *ast.GotoStmt, *ast.LabelStmt:
		return fmt.Errorf("goto and labels not allowed")

	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

func (v *validator) assignTarget(e ast.Expr) error {
	switch t := e.(type) {
	case *ast.IdentExpr:
		if !v.isLocal(t.Value) && (ForbiddenGlobals[t.Value] || AllowedBuiltins[t.Value] || v.modules[t.Value]) {
			return fmt.Errorf("cannot assign to '%s'", t.Value)
		}
		return nil
	case *ast.AttrGetExpr:
		if id, ok := t.Object.(*ast.IdentExpr); ok && !v.isLocal(id.Value) && v.modules[id.Value] {
			return fmt.Errorf("cannot modify module '%s'", id.Value)
		}
		if err := v.expr(t.Object); err != nil {
			return err
		}
		return v.expr(t.Key)
	default:
		return v.expr(e)
	}
}

func (v *validator) function(fn *ast.FunctionExpr) error {
	var params []string
	if fn.ParList != nil {
		params = fn.ParList.Names
	}
	return v.scopedBlock(fn.Stmts, params...)
}

func (v *validator) exprs(es []ast.Expr) error {
	for _, e := range es {
		if e == nil {
			continue
		}
		if err := v.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) expr(e ast.Expr) error {
	switch ex := e.(type) {
	case nil:
		return nil

	case *ast.TrueExpr, *ast.FalseExpr, *ast.NilExpr, *ast.NumberExpr, *ast.StringExpr, *ast.Comma3Expr:
		return nil

	case *ast.IdentExpr:
		if !v.isLocal(ex.Value) && ForbiddenGlobals[ex.Value] {
			return fmt.Errorf("access to '%s' not allowed", ex.Value)
		}
		return nil

	case *ast.AttrGetExpr:
		if id, ok := ex.Object.(*ast.IdentExpr); ok && !v.isLocal(id.Value) && !v.userGlobals[id.Value] {
			if ForbiddenGlobals[id.Value] {
				return fmt.Errorf("access to '%s' not allowed", id.Value)
			}
			if !v.modules[id.Value] {
				return fmt.Errorf("Module '%s' not in allowed imports", id.Value)
			}
		}
		if err := v.expr(ex.Object); err != nil {
			return err
		}
		return v.expr(ex.Key)

	case *ast.TableExpr:
		for _, f := range ex.Fields {
			if err := v.exprs([]ast.Expr{f.Key, f.Value}); err != nil {
				return err
			}
		}
		return nil

	case *ast.FuncCallExpr:
		if err := v.call(ex); err != nil {
			return err
		}
		return v.exprs(ex.Args)

	case *ast.LogicalOpExpr:
		return v.exprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.RelationalOpExpr:
		return v.exprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.StringConcatOpExpr:
		return v.exprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.ArithmeticOpExpr:
		return v.exprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.UnaryMinusOpExpr:
		return v.expr(ex.Expr)
	case *ast.UnaryNotOpExpr:
		return v.expr(ex.Expr)
	case *ast.UnaryLenOpExpr:
		return v.expr(ex.Expr)

	case *ast.FunctionExpr:
		return v.function(ex)

	default:
		return fmt.Errorf("unsupported expression %T", e)
	}
}

func (v *validator) call(c *ast.FuncCallExpr) error {
	if c.Receiver != nil {
		if !stringMethods[c.Method] {
			return fmt.Errorf("method call ':%s' not allowed", c.Method)
		}
		return v.expr(c.Receiver)
	}

	if id, ok := c.Func.(*ast.IdentExpr); ok {
		name := id.Value
		if v.isLocal(name) {
			return nil
		}
		if !ForbiddenGlobals[name] && (v.userGlobals[name] || AllowedBuiltins[name]) {
			return nil
		}
		return fmt.Errorf("Function call '%s' not allowed", name)
	}
	return v.expr(c.Func)
}

// findFunction 返回顶层定义的同名全局函数
func findFunction(chunk []ast.Stmt, name string) *ast.FunctionExpr {
	for _, s := range chunk {
		st, ok := s.(*ast.FuncDefStmt)
		if !ok || st.Name == nil || st.Name.Receiver != nil {
			continue
		}
		if id, ok := st.Name.Func.(*ast.IdentExpr); ok && id.Value == name {
			return st.Func
		}
	}
	return nil
}
