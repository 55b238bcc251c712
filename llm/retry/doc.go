// Package retry 提供指数退避重试与外部调用配额。
//
// BackoffRetryer 负责等待与重试判定，Budget 负责限制一次流程内
// 对外部服务的调用总数，两者通过 Budget.Metered 组合使用：
//
//	budget := retry.NewBudget(10)
//	err := retryer.Do(ctx, budget.Metered(func() error {
//	    return callUpstream(ctx)
//	}))
package retry
