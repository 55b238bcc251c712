package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// runMigrate 解析全局参数后把子命令交给 migration.CLI
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	dbType := fs.String("db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	dbURL := fs.String("db-url", "", "Database connection URL (default: from config)")
	fs.Usage = printMigrateUsage

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		os.Exit(1)
	}
	if len(positional) == 0 || positional[0] == "help" {
		printMigrateUsage()
		if len(positional) == 0 {
			os.Exit(1)
		}
		return
	}

	dc, err := migrateDatabaseConfig(*configPath, *envFile, *dbType, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	migrator, err := migration.NewMigratorFromDatabaseConfig(dc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}

	runErr := migration.NewCLI(migrator).Run(context.Background(), positional)
	_ = migrator.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", runErr)
		os.Exit(1)
	}
}

// migrateDatabaseConfig 从配置文件/环境变量加载数据库配置，再应用命令行覆盖
func migrateDatabaseConfig(configPath, envFile, dbType, dbURL string) (config.DatabaseConfig, error) {
	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	dc := cfg.Database
	if dbURL != "" {
		if err := dc.ApplyURL(dbURL); err != nil {
			return config.DatabaseConfig{}, fmt.Errorf("invalid --db-url: %w", err)
		}
	}
	if dbType != "" {
		dc.Driver = dbType
	}
	return dc, nil
}

// parseInterspersed 允许参数与位置参数交替出现，例如 "goto 3 --config x.yaml"
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func printMigrateUsage() {
	fmt.Print(migration.Usage)
	fmt.Println(`
Options:
  --config <path>     Path to configuration file (YAML)
  --env-file <path>   Path to .env file (default: .env)
  --db-type <type>    Database type: postgres, mysql, sqlite
  --db-url <url>      Database connection URL

Negative step counts must follow "--", e.g. agentlab migrate steps -- -1

Examples:
  agentlab migrate up
  agentlab migrate up --config /etc/agentlab/config.yaml
  agentlab migrate status --db-url sqlite:///data/agentlab.db
  agentlab migrate goto 1
  agentlab migrate force 0`)
}
