// Package ratelimiter は外部API呼び出しの間隔を制御します。
package ratelimiter

import (
	"context"
	"log/slog"
	"time"
)

// Pacer は、API呼び出しなどの操作の間に一定の待機を挟むインターフェースです。
type Pacer interface {
	Pause(ctx context.Context) error
}

// FixedDelay は呼び出しのたびに固定時間だけ待機します。
// 容量1のトークンバケットを interval ごとに補充するのと同じ振る舞いです。
type FixedDelay struct {
	interval time.Duration
}

// NewFixedDelay は新しい FixedDelay を生成します。interval が0以下なら待機しません。
func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval}
}

// Interval は待機時間を返します。
func (fd *FixedDelay) Interval() time.Duration {
	return fd.interval
}

// Pause は interval だけ待機します。ctx がキャンセルされた場合は待機を打ち切りエラーを返します。
func (fd *FixedDelay) Pause(ctx context.Context) error {
	if fd.interval <= 0 {
		return ctx.Err()
	}
	slog.Debug("pacing before next api call", "interval", fd.interval)

	timer := time.NewTimer(fd.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Noop は待機しない Pacer です。
type Noop struct{}

// Pause は ctx の状態だけを返します。
func (Noop) Pause(ctx context.Context) error {
	return ctx.Err()
}
