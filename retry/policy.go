// retry/policy.go
package retry

import (
	"time"
)

// 重试策略接口，attempt 从0开始计数
type RetryPolicy interface {
	NextRetry(attempt int) (time.Duration, bool)
}

// 指数退避策略
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

func (p *ExponentialBackoff) NextRetry(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := p.InitialDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}

// 固定间隔策略
type FixedInterval struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p *FixedInterval) NextRetry(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Interval, true
}

// 不重试
type Never struct{}

func (Never) NextRetry(int) (time.Duration, bool) {
	return 0, false
}

// DefaultPolicy 版本冲突时的默认退避
func DefaultPolicy() RetryPolicy {
	return &ExponentialBackoff{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		MaxAttempts:  5,
	}
}
