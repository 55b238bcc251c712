// Package tlsutil 提供出站 HTTP 客户端的集中式 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 以及为外部 API（Nominatim、新闻源、网页抓取）设置默认 User-Agent 的传输层。
package tlsutil
