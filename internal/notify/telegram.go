package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"kanbard/internal/config"
	logx "kanbard/pkg/logx"
)

// TelegramSink forwards run outcomes to a Telegram chat. Meant for headless
// deployments where nobody is watching the content store UI.
type TelegramSink struct {
	bot     *tele.Bot
	chat    tele.Recipient
	limiter *rate.Limiter
	log     logx.Logger
}

// NewTelegram builds the sink. The bot is send-only; no update polling is
// started.
func NewTelegram(cfg config.TelegramNotifyConfig, log logx.Logger) (*TelegramSink, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TelegramSink{
		bot:     bot,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		log:     log,
	}, nil
}

func (s *TelegramSink) Info(ctx context.Context, msg string) {
	s.send(ctx, msg)
}

func (s *TelegramSink) Error(ctx context.Context, msg string) {
	s.send(ctx, "⚠️ "+msg)
}

func (s *TelegramSink) send(ctx context.Context, msg string) {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.limiter.Wait(wctx); err != nil {
		return
	}
	if _, err := s.bot.Send(s.chat, msg); err != nil {
		s.log.Debug("telegram notification failed", logx.Err(err))
	}
}
