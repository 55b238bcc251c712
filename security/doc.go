// Package security 提供输入清洗与格式校验：HTML 白名单过滤、纯文本提取、
// 用户名/邮箱/slug/密码/颜色校验以及聊天消息长度检查。
package security
