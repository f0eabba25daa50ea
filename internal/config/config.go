// Package config は環境変数 (.env を含む) からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// サポートするデータベースドライバ
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config はアプリケーション全体の設定を保持します。
type Config struct {
	Port    int
	GinMode string

	DBDriver   string
	DBUser     string
	DBPass     string
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string

	// true の場合、マイグレーション失敗をログに残して起動を続行します。
	MigrationsNonFatal bool

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	CORSAllowedOrigins []string

	LogLevel  string
	LogPretty bool
}

// Load は .env を読み込んだ上で環境変数から Config を構築します。
// .env が存在しない場合は環境変数のみを使用します。
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, errors.New("JWT_TTL must be positive")
	}

	cost, err := strconv.Atoi(getEnv("BCRYPT_COST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", DriverMySQL))
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable not set")
	}

	return &Config{
		Port:               port,
		GinMode:            getEnv("GIN_MODE", "release"),
		DBDriver:           driver,
		DBUser:             os.Getenv("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             getEnv("DB_HOST", "127.0.0.1"),
		DBPort:             getEnv("DB_PORT", "3306"),
		DBName:             os.Getenv("DB_NAME"),
		SQLitePath:         getEnv("SQLITE_PATH", "./todo.db"),
		MigrationsNonFatal: getBool("DB_MIGRATIONS_NON_FATAL", false),
		JWTSecret:          secret,
		JWTTTL:             ttl,
		BcryptCost:         cost,
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getBool("LOG_PRETTY", false),
	}, nil
}

// MySQLDSN は MySQL 接続文字列 (DSN) を返します。
// 例: user:pass@tcp(db:3306)/dbname?parseTime=true
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// DataSource は選択されたドライバに対応する接続先を返します。
func (c *Config) DataSource() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
