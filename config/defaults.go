// =============================================================================
// 📦 agentlab 默认配置
// =============================================================================
// 提供所有配置项的合理默认值（开发环境可直接启动）
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Auth:      DefaultAuthConfig(),
		LLM:       DefaultLLMConfig(),
		Search:    DefaultSearchConfig(),
		Research:  DefaultResearchConfig(),
		Content:   DefaultContentConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "0.0.0.0",
		HTTPPort:           8002,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       10 * time.Minute,
		ShutdownTimeout:    15 * time.Second,
		CORSAllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"*"},
		RateLimitRequests:  100,
		RateLimitWindow:    60 * time.Second,
		StreamChunkDelay:   50 * time.Millisecond,
	}
}

// DefaultAuthConfig 返回默认 JWT 配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Algorithm:         "HS256",
		AccessTokenExpire: 30 * time.Minute,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Groq: GroqConfig{
			BaseURL:         "https://api.groq.com/openai",
			Model:           "llama-3.3-70b-versatile",
			AutonomousModel: "llama3-8b-8192",
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.5-pro",
			Temperature:     0.1,
			MaxOutputTokens: 65536,
		},
		Timeout:          60 * time.Second,
		MaxHistoryTokens: 6000,
	}
}

// DefaultSearchConfig 返回默认搜索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:  "https://www.googleapis.com/customsearch/v1",
		Timeout:  10 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}

// DefaultResearchConfig 返回默认研究流水线配置
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		MaxPapers:     2,
		MaxAPICalls:   10,
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      60 * time.Second,
		OutputDir:     "output",
		AnalysisChars: 4000,
	}
}

// DefaultContentConfig 返回默认内容限制
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		MaxBlogContentLength: 100000,
		MaxChatMessageLength: 4000,
		MaxUploadSize:        10 * 1024 * 1024,
		BlogBaseURL:          "http://localhost:3000",
		SeedBlog:             true,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "./database/dev.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置（默认关闭）
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   10 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentlab",
		SampleRate:   0.1,
	}
}
