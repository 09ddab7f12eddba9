package db

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	priceadapters "stock_pipeline/internal/feature/prices/adapters"
)

const (
	defaultPort         = "5432"
	defaultSSLMode      = "prefer"
	defaultQueryTimeout = 10 * time.Second
	connectTimeout      = 60 * time.Second
	retryInterval       = 3 * time.Second
)

// ErrMissingConfig は必須の接続パラメータが設定されていない場合に返されます。
var ErrMissingConfig = errors.New("missing database configuration")

// Config はPostgreSQLへの接続設定です。認証情報にデフォルト値はありません。
type Config struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	QueryTimeout time.Duration
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Host:         os.Getenv("POSTGRES_HOST"),
		Port:         os.Getenv("POSTGRES_PORT"),
		Name:         os.Getenv("POSTGRES_DB"),
		User:         os.Getenv("POSTGRES_USER"),
		Password:     os.Getenv("POSTGRES_PASSWORD"),
		SSLMode:      os.Getenv("POSTGRES_SSLMODE"),
		QueryTimeout: defaultQueryTimeout,
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = defaultSSLMode
	}
	if v := os.Getenv("POSTGRES_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QueryTimeout = d
		} else {
			slog.Warn("ignoring invalid POSTGRES_QUERY_TIMEOUT", "value", v)
		}
	}
	return cfg
}

// Validate は必須パラメータの欠落を報告します。
func (c Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Name == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if c.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// BuildDSN は接続URLを生成します。ユーザー名とパスワードはエスケープされます。
func BuildDSN(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// Opener はDSNからgorm.DBを開く関数です。テストで差し替えます。
type Opener func(dsn string) (*gorm.DB, error)

func openPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

// ConnectWithRetry は timeout に達するまで一定間隔で接続を再試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("db connect failed after %s (%d attempts): %w", timeout, attempt, err)
		}
		slog.Warn("db connect failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(min(retryInterval, remaining))
	}
}

// OpenDB は設定を検証してPostgreSQLに接続します。
// RUN_MIGRATIONS=true の場合はテーブルを作成・更新します。
func OpenDB(cfg Config) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), connectTimeout, openPostgres)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established", "host", cfg.Host, "port", cfg.Port, "db", cfg.Name)

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate は stock_prices テーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&priceadapters.PriceModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
