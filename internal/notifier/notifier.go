// Package notifier delivers rendered alert text to the external messaging channels.
package notifier

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/utils"
)

// LarkPrefix recipients starting with it are delivered through Lark
const LarkPrefix = "lark:"

var ErrNotConfigured = errors.New("channel not configured")

// Messenger send-message-to-recipient
type Messenger interface {
	Send(ctx context.Context, recipient, text string) error
}

// Router picks the channel by recipient id: "lark:" or "lark:<webhook url>" goes to Lark,
// everything else is a Telegram chat id
type Router struct {
	telegram *TelegramClient
	lark     *LarkClient
}

func NewRouter(telegram *TelegramClient, lark *LarkClient) *Router {
	return &Router{telegram: telegram, lark: lark}
}

func (r *Router) Send(ctx context.Context, recipient, text string) error {
	if strings.HasPrefix(recipient, LarkPrefix) {
		if r.lark == nil {
			return ErrNotConfigured
		}
		webhook := strings.TrimPrefix(recipient, LarkPrefix)
		if !strings.HasPrefix(webhook, "http://") && !strings.HasPrefix(webhook, "https://") {
			webhook = ""
		}
		return r.lark.Send(ctx, webhook, text)
	}
	if r.telegram == nil {
		return ErrNotConfigured
	}
	return r.telegram.Send(ctx, recipient, text)
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 10 * time.Second
	}
	return timeout
}

func retryOptions(attempts int) utils.RetryOptions {
	opts := utils.DefaultRetry
	if attempts > 0 {
		opts.Attempts = attempts
	}
	return opts
}
