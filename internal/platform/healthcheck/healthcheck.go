// Package healthcheck はパイプライン実行前の接続確認を提供します。
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotConfigured は確認対象が設定されていない場合に返されます。
var ErrNotConfigured = errors.New("connectivity check not configured")

// Pinger は外部APIへの到達確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// APICheck は株価APIの接続確認です。
type APICheck struct {
	api     Pinger
	timeout time.Duration
}

// NewAPICheck は APICheck を作成します。timeout が 0 の場合は30秒です。
func NewAPICheck(api Pinger, timeout time.Duration) *APICheck {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APICheck{api: api, timeout: timeout}
}

// Check はAPIに到達できない場合にエラーを返します。
func (c *APICheck) Check(ctx context.Context) error {
	if c.api == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.api.Ping(ctx); err != nil {
		slog.Error("API connection test failed", "error", err)
		return fmt.Errorf("api connection: %w", err)
	}
	slog.Info("API connection test successful")
	return nil
}

// Conn は DatabaseCheck が使うDB接続の最小インターフェースです（*pgx.Conn が満たします）。
type Conn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Dialer はDSNから接続を開きます。
type Dialer func(ctx context.Context, dsn string) (Conn, error)

// PgxDialer は pgx.Connect を使う Dialer です。
func PgxDialer(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

const countQuery = "SELECT COUNT(*) FROM stock_prices"

// DatabaseCheck はデータベースに接続し stock_prices の件数を数えます。
type DatabaseCheck struct {
	dsn     string
	dial    Dialer
	timeout time.Duration
}

// NewDatabaseCheck は DatabaseCheck を作成します。dial が nil の場合は PgxDialer を使います。
func NewDatabaseCheck(dsn string, dial Dialer, timeout time.Duration) *DatabaseCheck {
	if dial == nil {
		dial = PgxDialer
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DatabaseCheck{dsn: dsn, dial: dial, timeout: timeout}
}

// Check は接続とテーブルの読み取りができない場合にエラーを返します。
func (c *DatabaseCheck) Check(ctx context.Context) error {
	if c.dsn == "" {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx, c.dsn)
	if err != nil {
		slog.Error("Database connection test failed", "error", err)
		return fmt.Errorf("database connection: %w", err)
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to close database connection", "error", err)
		}
	}()

	var count int64
	if err := conn.QueryRow(ctx, countQuery).Scan(&count); err != nil {
		slog.Error("Database connection test failed", "error", err)
		return fmt.Errorf("count stock_prices: %w", err)
	}
	slog.Info("Database connection test successful", "records", count)
	return nil
}
