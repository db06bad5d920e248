package notify

import (
	"context"

	logx "kanbard/pkg/logx"
)

// Pusher is the content store's notification surface. *siyuan.Client
// implements it.
type Pusher interface {
	PushMsg(ctx context.Context, msg string) error
	PushErrMsg(ctx context.Context, msg string) error
}

// StoreSink surfaces messages in the content store UI, where users watching
// their boards actually see them.
type StoreSink struct {
	Client Pusher
	Log    logx.Logger
}

func (s StoreSink) Info(ctx context.Context, msg string) {
	if err := s.Client.PushMsg(ctx, msg); err != nil {
		s.Log.Debug("store notification failed", logx.Err(err))
	}
}

func (s StoreSink) Error(ctx context.Context, msg string) {
	if err := s.Client.PushErrMsg(ctx, msg); err != nil {
		s.Log.Debug("store notification failed", logx.Err(err))
	}
}
