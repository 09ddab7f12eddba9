package dag

import "errors"

var (
	ErrDuplicateTask     = errors.New("duplicate task id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycle             = errors.New("dependency cycle")
	// ErrUpstreamFailed はタスクが上流の失敗により実行されなかったことを示します。
	ErrUpstreamFailed = errors.New("upstream task failed")
)
