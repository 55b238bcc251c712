// Copyright 2025-2026 AgentFlow Authors. All rights reserved.

/*
Package sandbox 实现用户自定义工具的受限注册与执行。

用户以 Lua 源码提交工具实现。注册时经过三道检查：

  - 元数据校验：名称、描述、代码长度、allowed_imports；
  - 参数 Schema 必须是 type=object 的 JSON Schema（jsonschema-go 解析）；
  - AST 白名单遍历：禁止的全局名、未授权的函数调用与模块访问、goto 等。

通过后源码被编译为 FunctionProto 缓存；每次调用都在新的 LState 中执行，
只打开 base/table/string/math，并移除可以加载代码或绕过元表的基础函数，
执行时间由 context 截止时间约束。
*/
package sandbox
