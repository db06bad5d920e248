// Package notify delivers short user-facing messages about run outcomes.
//
// Delivery is best-effort: a sink failure is logged and never propagates into
// the run that produced the message.
package notify

import (
	"context"

	logx "kanbard/pkg/logx"
)

// Notifier delivers one informational or error message.
type Notifier interface {
	Info(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// Fanout delivers to every configured sink.
type Fanout []Notifier

func (f Fanout) Info(ctx context.Context, msg string) {
	for _, n := range f {
		n.Info(ctx, msg)
	}
}

func (f Fanout) Error(ctx context.Context, msg string) {
	for _, n := range f {
		n.Error(ctx, msg)
	}
}

// LogSink writes notifications to the daemon log. Always present, so a
// headless deployment with no other sink still records outcomes.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Info(ctx context.Context, msg string) {
	_ = ctx
	s.Log.Info("notify", logx.String("msg", msg))
}

func (s LogSink) Error(ctx context.Context, msg string) {
	_ = ctx
	s.Log.Error("notify", logx.String("msg", msg))
}
