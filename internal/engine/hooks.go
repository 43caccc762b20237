package engine

import (
	"context"
	"log/slog"
)

// HookPayload is the data handed to lifecycle hooks.
type HookPayload struct {
	WorkflowID  string
	ExecutionID string
	StepID      string
	Attempt     int
	Data        map[string]any
	Err         error
}

// HookSink receives lifecycle hook invocations (workflow:before, step:after,
// tool:error and friends). Implementations must not block for long; the
// runner calls them inline.
type HookSink interface {
	Invoke(ctx context.Context, hook string, payload HookPayload)
}

// NopHookSink ignores every hook.
type NopHookSink struct{}

func (NopHookSink) Invoke(context.Context, string, HookPayload) {}

// HookFunc adapts a function to the HookSink interface.
type HookFunc func(ctx context.Context, hook string, payload HookPayload)

func (f HookFunc) Invoke(ctx context.Context, hook string, payload HookPayload) {
	f(ctx, hook, payload)
}

// isolatedSink wraps a HookSink so that a panicking hook cannot take down the
// execution. Panics are logged and swallowed.
type isolatedSink struct {
	inner  HookSink
	logger *slog.Logger
}

// IsolateHooks wraps sink with panic recovery. A nil sink yields NopHookSink.
func IsolateHooks(sink HookSink, logger *slog.Logger) HookSink {
	if sink == nil {
		return NopHookSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &isolatedSink{inner: sink, logger: logger}
}

func (s *isolatedSink) Invoke(ctx context.Context, hook string, payload HookPayload) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "hook panicked",
				slog.String("hook", hook),
				slog.Any("panic", r),
			)
		}
	}()
	s.inner.Invoke(ctx, hook, payload)
}
