// Package tokenizer 提供 Token 计数与对话历史裁剪，
// tiktoken 不可用（如编码表无法下载）时自动回退到字符估算器。
package tokenizer
