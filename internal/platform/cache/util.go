package cache

import (
	"time"
)

// Schedule は次回実行時刻を計算できるスケジュールです（cron.Schedule を満たします）。
type Schedule interface {
	Next(time.Time) time.Time
}

// TimeUntilNextRun は now から次回のスケジュール実行までの期間を返します。
// 次回が存在しない場合は 0 を返します。
func TimeUntilNextRun(s Schedule, now time.Time) time.Duration {
	next := s.Next(now)
	if next.IsZero() || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}
