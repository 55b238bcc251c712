// =============================================================================
// agentlab 主入口
// =============================================================================
// HTTP 服务（Agent、对话、工具、博客、认证）、健康检查、Prometheus 指标与数据库迁移
//
// 使用方法:
//
//	agentlab serve                        # 启动服务
//	agentlab serve --config config.yaml   # 指定配置文件
//	agentlab serve --env-file .env        # 指定 .env 文件
//	agentlab version                      # 显示版本信息
//	agentlab health                       # 健康检查
//	agentlab migrate up                   # 运行数据库迁移
//	agentlab migrate status               # 查看迁移状态
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/cache"
	"github.com/BaSui01/agentlab/internal/database"
	"github.com/BaSui01/agentlab/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "migrate":
		runMigrate(args)
	case "version":
		printVersion()
	case "health":
		runHealthCheck(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting agentlab",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("debug", cfg.Server.Debug),
	)
	if cfg.Auth.SecretGenerated() {
		logger.Warn("SECRET_KEY not set, using a generated key; issued tokens will not survive a restart")
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	pool, err := openDatabase(cfg.Database, logger)
	if err != nil {
		logger.Warn("Database not available, persistence and /auth disabled", zap.Error(err))
	}

	cacheMgr := openCache(cfg.Redis, logger)

	srv := NewServer(cfg, logger, otelProviders, pool, cacheMgr)
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()
	logger.Info("agentlab stopped")
}

// loadConfig 加载配置：默认值 → YAML → .env → 环境变量
func loadConfig(configPath, envFile string) (*config.Config, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	if envFile != "" {
		loader = loader.WithDotEnv(envFile)
	}
	return loader.Load()
}

// openDatabase 打开数据库、按配置执行 AutoMigrate 并创建连接池管理器
func openDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*database.PoolManager, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return database.NewPoolManager(db, database.PoolConfigFromDatabase(cfg), logger)
}

// openCache 连接 Redis；未启用或连接失败时返回 nil
func openCache(cfg config.RedisConfig, logger *zap.Logger) *cache.Manager {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	m, err := cache.NewManager(cache.ConfigFromRedis(cfg), logger)
	if err != nil {
		logger.Warn("Redis not available, tool result cache disabled", zap.Error(err))
		return nil
	}
	return m
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8002", "Server address")
	_ = fs.Parse(args)

	if err := checkHealth(context.Background(), &http.Client{Timeout: 5 * time.Second}, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func checkHealth(ctx context.Context, client *http.Client, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("agentlab %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentlab - AI agents API

Usage:
  agentlab [command] [options]

Commands:
  serve     Start the API server (default)
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>     Path to configuration file (YAML)
  --env-file <path>   Path to .env file (default: .env)

Examples:
  agentlab serve --config /etc/agentlab/config.yaml
  agentlab migrate up
  agentlab migrate status
  agentlab health --addr http://localhost:8002
  agentlab version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
