package retry

import (
	"errors"
	"sync/atomic"
)

// ErrBudgetExhausted 表示调用次数已达上限
var ErrBudgetExhausted = errors.New("api call budget exhausted")

// Budget 是并发安全的外部调用计数器，保证已发起的调用数不超过 max
type Budget struct {
	max  int64
	used atomic.Int64
}

// NewBudget 创建上限为 max 的预算；max <= 0 表示不允许任何调用
func NewBudget(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: int64(max)}
}

// Acquire 占用一次调用额度，额度用尽时返回 ErrBudgetExhausted
func (b *Budget) Acquire() error {
	for {
		cur := b.used.Load()
		if cur >= b.max {
			return ErrBudgetExhausted
		}
		if b.used.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

func (b *Budget) Used() int      { return int(b.used.Load()) }
func (b *Budget) Max() int       { return int(b.max) }
func (b *Budget) Remaining() int { return int(b.max - b.used.Load()) }

// Exhausted 报告额度是否已用尽
func (b *Budget) Exhausted() bool { return b.used.Load() >= b.max }

// Metered 返回在每次尝试前占用一次额度的函数；额度耗尽时以 Permanent 终止重试
func (b *Budget) Metered(fn func() error) func() error {
	return func() error {
		if err := b.Acquire(); err != nil {
			return Permanent(err)
		}
		return fn()
	}
}
