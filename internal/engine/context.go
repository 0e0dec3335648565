package engine

import "context"

type loopKey struct{}

// WithLoop 标记 ctx 当前运行在哪个 loop 上
func WithLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, loopKey{}, l)
}

// LoopFromContext 不在任何 loop 上时返回 nil
func LoopFromContext(ctx context.Context) *Loop {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(loopKey{}).(*Loop)
	return l
}

// WorkerIDFromContext 不在 loop 上时返回 MasterSlot
func WorkerIDFromContext(ctx context.Context) int {
	if l := LoopFromContext(ctx); l != nil {
		return l.ID()
	}
	return MasterSlot
}
