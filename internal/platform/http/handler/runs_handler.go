package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_pipeline/internal/platform/dag"
)

// RunHistory は直近のDAG実行結果を提供します（*dag.History が満たします）。
type RunHistory interface {
	Latest() (dag.RunResult, bool)
}

// LatestRun は直近のDAG実行の各タスクの状態を返します。
// まだ一度も実行されていない場合は404を返します。
func LatestRun(h RunHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		run, ok := h.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}
