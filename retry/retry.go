// retry/retry.go
package retry

import (
	"context"
	"time"
)

type RetryManager struct {
	Policy RetryPolicy
	// 判断错误是否可以重试，nil 表示全部可重试
	Retryable func(error) bool
}

func NewRetryManager(policy RetryPolicy, retryable func(error) bool) *RetryManager {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &RetryManager{Policy: policy, Retryable: retryable}
}

func (rm *RetryManager) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if rm.Retryable != nil && !rm.Retryable(err) {
		return 0, false
	}
	return rm.Policy.NextRetry(attempt)
}

// Do 执行 fn，失败时按策略等待后重试，返回最后一次的错误
func (rm *RetryManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		delay, retry := rm.ShouldRetry(attempt, err)
		if !retry {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
