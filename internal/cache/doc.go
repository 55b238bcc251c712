/*
包 cache 提供基于 Redis 的缓存管理，供工具结果缓存（网页搜索、天气、
新闻、arXiv）使用。

Manager 负责连接池、键前缀、JSON 序列化与后台健康检查；命中与未命中
通过 Observer 上报给 metrics。Redis 未配置时调用方直接跳过缓存。
*/
package cache
