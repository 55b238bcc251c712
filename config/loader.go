// =============================================================================
// 📦 agentlab 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → .env → AGENTLAB_* 环境变量 → 部署约定变量
// (GROQ_API_KEY、DATABASE_URL、ALLOWED_ORIGINS ...)
// =============================================================================
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 agentlab 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Auth JWT 认证配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Search Google Custom Search 配置
	Search SearchConfig `yaml:"search" env:"SEARCH"`

	// Research 研究型 Agent 配置
	Research ResearchConfig `yaml:"research" env:"RESEARCH"`

	// Content 内容长度限制
	Content ContentConfig `yaml:"content" env:"CONTENT"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// 监听地址
	Host string `yaml:"host" env:"HOST"`
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（研究流水线可能运行数分钟）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 调试模式（关闭生产环境校验）
	Debug bool `yaml:"debug" env:"DEBUG"`
	// CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	CORSAllowedMethods []string `yaml:"cors_allowed_methods" env:"CORS_ALLOWED_METHODS"`
	CORSAllowedHeaders []string `yaml:"cors_allowed_headers" env:"CORS_ALLOWED_HEADERS"`
	// 每个客户端 IP 在窗口期内允许的请求数
	RateLimitRequests int           `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
	// SSE 分块之间的延迟
	StreamChunkDelay time.Duration `yaml:"stream_chunk_delay" env:"STREAM_CHUNK_DELAY"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	SecretKey         string        `yaml:"secret_key" env:"SECRET_KEY"`
	Algorithm         string        `yaml:"algorithm" env:"ALGORITHM"`
	AccessTokenExpire time.Duration `yaml:"access_token_expire" env:"ACCESS_TOKEN_EXPIRE"`

	secretGenerated bool
}

// SecretGenerated reports whether SecretKey was generated at load time.
func (a AuthConfig) SecretGenerated() bool { return a.secretGenerated }

// LLMConfig LLM 配置
type LLMConfig struct {
	Groq   GroqConfig   `yaml:"groq" env:"GROQ"`
	Gemini GeminiConfig `yaml:"gemini" env:"GEMINI"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 对话历史的 token 上限（0 表示不裁剪）
	MaxHistoryTokens int `yaml:"max_history_tokens" env:"MAX_HISTORY_TOKENS"`
}

// GroqConfig Groq（OpenAI 兼容）配置
type GroqConfig struct {
	APIKey          string `yaml:"api_key" env:"API_KEY"`
	BaseURL         string `yaml:"base_url" env:"BASE_URL"`
	Model           string `yaml:"model" env:"MODEL"`
	AutonomousModel string `yaml:"autonomous_model" env:"AUTONOMOUS_MODEL"`
}

// GeminiConfig Gemini 配置（研究型 Agent 使用）
type GeminiConfig struct {
	APIKey          string  `yaml:"api_key" env:"API_KEY"`
	BaseURL         string  `yaml:"base_url" env:"BASE_URL"`
	Model           string  `yaml:"model" env:"MODEL"`
	Temperature     float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxOutputTokens int     `yaml:"max_output_tokens" env:"MAX_OUTPUT_TOKENS"`
}

// SearchConfig Google Custom Search 配置
type SearchConfig struct {
	GoogleAPIKey   string        `yaml:"google_api_key" env:"GOOGLE_API_KEY"`
	GoogleEngineID string        `yaml:"google_engine_id" env:"GOOGLE_ENGINE_ID"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 工具结果缓存 TTL（需要 Redis）
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// ResearchConfig 研究流水线配置
type ResearchConfig struct {
	MaxPapers    int           `yaml:"max_papers" env:"MAX_PAPERS"`
	MaxAPICalls  int           `yaml:"max_api_calls" env:"MAX_API_CALLS"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	OutputDir    string        `yaml:"output_dir" env:"OUTPUT_DIR"`
	// 单篇论文送入分析提示词的最大字符数
	AnalysisChars int `yaml:"analysis_chars" env:"ANALYSIS_CHARS"`
}

// ContentConfig 内容长度限制
type ContentConfig struct {
	MaxBlogContentLength int    `yaml:"max_blog_content_length" env:"MAX_BLOG_CONTENT_LENGTH"`
	MaxChatMessageLength int    `yaml:"max_chat_message_length" env:"MAX_CHAT_MESSAGE_LENGTH"`
	MaxUploadSize        int64  `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE"`
	BlogBaseURL          string `yaml:"blog_base_url" env:"BLOG_BASE_URL"`
	SeedBlog             bool   `yaml:"seed_blog" env:"SEED_BLOG"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名；sqlite 时为文件路径
	Name    string `yaml:"name" env:"NAME"`
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 连接池
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时执行 gorm AutoMigrate
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DefaultTTL   time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	dotEnvPath string
	envPrefix  string
	validators []func(*Config) error
	lookupEnv  func(string) (string, bool)
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTLAB",
		validators: make([]func(*Config) error, 0),
		lookupEnv:  os.LookupEnv,
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDotEnv 设置 .env 文件路径（不存在时忽略，不覆盖已有环境变量）
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotEnvPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if l.dotEnvPath != "" {
		if err := godotenv.Load(l.dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := l.loadWellKnownEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = randomSecret()
		cfg.Auth.secretGenerated = true
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从带前缀的环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// wellKnownEnv 部署约定的无前缀环境变量
var wellKnownEnv = []struct {
	name  string
	apply func(cfg *Config, value string) error
}{
	{"GROQ_API_KEY", func(c *Config, v string) error { c.LLM.Groq.APIKey = v; return nil }},
	{"GROQ_MODEL", func(c *Config, v string) error { c.LLM.Groq.Model = v; return nil }},
	{"GOOGLE_API_KEY", func(c *Config, v string) error { c.LLM.Gemini.APIKey = v; return nil }},
	{"MODEL_NAME", func(c *Config, v string) error { c.LLM.Gemini.Model = v; return nil }},
	{"TEMPERATURE", func(c *Config, v string) error { return parseFloatInto(&c.LLM.Gemini.Temperature, v) }},
	{"GOOGLE_CUSTOM_SEARCH_API_KEY", func(c *Config, v string) error { c.Search.GoogleAPIKey = v; return nil }},
	{"GOOGLE_CUSTOM_SEARCH_ENGINE_ID", func(c *Config, v string) error { c.Search.GoogleEngineID = v; return nil }},
	{"DATABASE_URL", func(c *Config, v string) error { return c.Database.ApplyURL(v) }},
	{"REDIS_URL", func(c *Config, v string) error { return c.Redis.ApplyURL(v) }},
	{"SECRET_KEY", func(c *Config, v string) error { c.Auth.SecretKey = v; return nil }},
	{"JWT_ALGORITHM", func(c *Config, v string) error { c.Auth.Algorithm = strings.ToUpper(v); return nil }},
	{"ACCESS_TOKEN_EXPIRE_MINUTES", func(c *Config, v string) error {
		m, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Auth.AccessTokenExpire = time.Duration(m) * time.Minute
		return nil
	}},
	{"ALLOWED_ORIGINS", func(c *Config, v string) error { c.Server.CORSAllowedOrigins = splitList(v); return nil }},
	{"ALLOWED_METHODS", func(c *Config, v string) error { c.Server.CORSAllowedMethods = splitList(v); return nil }},
	{"ALLOWED_HEADERS", func(c *Config, v string) error { c.Server.CORSAllowedHeaders = splitList(v); return nil }},
	{"HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"PORT", func(c *Config, v string) error { return parseIntInto(&c.Server.HTTPPort, v) }},
	{"DEBUG", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Server.Debug = b
		return nil
	}},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = strings.ToLower(v); return nil }},
	{"LOG_FILE", func(c *Config, v string) error { c.Log.OutputPaths = append(c.Log.OutputPaths, v); return nil }},
	{"RATE_LIMIT_REQUESTS", func(c *Config, v string) error { return parseIntInto(&c.Server.RateLimitRequests, v) }},
	{"RATE_LIMIT_WINDOW", func(c *Config, v string) error {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Server.RateLimitWindow = time.Duration(secs) * time.Second
		return nil
	}},
	{"MAX_BLOG_CONTENT_LENGTH", func(c *Config, v string) error { return parseIntInto(&c.Content.MaxBlogContentLength, v) }},
	{"MAX_CHAT_MESSAGE_LENGTH", func(c *Config, v string) error { return parseIntInto(&c.Content.MaxChatMessageLength, v) }},
	{"MAX_UPLOAD_SIZE", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Content.MaxUploadSize = n
		return nil
	}},
}

// loadWellKnownEnv 读取部署约定的环境变量
func (l *Loader) loadWellKnownEnv(cfg *Config) error {
	for _, e := range wellKnownEnv {
		v, ok := l.lookupEnv(e.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := e.apply(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("failed to set %s: %w", e.name, err)
		}
	}
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(splitList(value)))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.RateLimitRequests <= 0 || c.Server.RateLimitWindow <= 0 {
		errs = append(errs, "rate limit requests and window must be positive")
	}

	key := c.LLM.Groq.APIKey
	switch {
	case key == "":
		errs = append(errs, "GROQ_API_KEY is required")
	case !strings.HasPrefix(key, "gsk_"):
		errs = append(errs, "GROQ_API_KEY must start with 'gsk_'")
	case len(key) < 32:
		errs = append(errs, "GROQ_API_KEY is too short")
	}

	hasWildcard := false
	for _, o := range c.Server.CORSAllowedOrigins {
		if o == "*" {
			hasWildcard = true
		}
	}
	if hasWildcard && len(c.Server.CORSAllowedOrigins) > 1 {
		errs = append(errs, "wildcard origin cannot be combined with specific origins")
	}

	if c.Auth.AccessTokenExpire <= 0 || c.Auth.AccessTokenExpire > 7*24*time.Hour {
		errs = append(errs, "access token expiry must be between 1 minute and 7 days")
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Sprintf("unsupported JWT algorithm %q", c.Auth.Algorithm))
	}

	if c.Research.MaxAPICalls <= 0 {
		errs = append(errs, "research max_api_calls must be positive")
	}

	if !c.Server.Debug {
		if hasWildcard {
			errs = append(errs, "wildcard CORS origins are not allowed in production")
		}
		if c.Auth.secretGenerated {
			errs = append(errs, "SECRET_KEY must be set in production")
		}
		if c.Search.GoogleAPIKey == "" {
			errs = append(errs, "GOOGLE_CUSTOM_SEARCH_API_KEY is required in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Addr 返回 HTTP 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntInto(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloatInto(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("agentlab-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
