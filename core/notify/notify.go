package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"GuildFM/model"
)

// TelegramPrefix 以此前缀开头的通知目标投递到 Telegram 会话
const TelegramPrefix = "tg:"

var (
	ErrNoBackend     = errors.New("no notification backend for target")
	ErrInvalidTarget = errors.New("invalid notification target")
)

// Notifier delivers a notification to a notify target (a text channel id, or "tg:<chatID>").
type Notifier interface {
	Notify(ctx context.Context, target string, n model.Notification) error
}

// Func 函数适配器
type Func func(ctx context.Context, target string, n model.Notification) error

func (f Func) Notify(ctx context.Context, target string, n model.Notification) error {
	return f(ctx, target, n)
}

// Router 根据目标前缀选择投递后端
type Router struct {
	telegram Notifier
	fallback Notifier
}

// NewRouter telegram 可为 nil，此时 tg: 目标投递失败
func NewRouter(fallback, telegram Notifier) *Router {
	return &Router{telegram: telegram, fallback: fallback}
}

func (r *Router) Notify(ctx context.Context, target string, n model.Notification) error {
	backend := r.fallback
	if strings.HasPrefix(target, TelegramPrefix) {
		backend = r.telegram
	}
	if backend == nil {
		return fmt.Errorf("%w: %q", ErrNoBackend, target)
	}
	return backend.Notify(ctx, target, n)
}
