package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramClient Bot API sendMessage to a chat id
type TelegramClient struct {
	baseURL  string
	botToken string
	client   *http.Client
	retry    utils.RetryOptions
}

func NewTelegramClient(baseURL, botToken string, timeout time.Duration, attempts int) *TelegramClient {
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	return &TelegramClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   &http.Client{Timeout: orDefault(timeout)},
		retry:    retryOptions(attempts),
	}
}

func (c *TelegramClient) Configured() bool {
	return c.botToken != ""
}

func (c *TelegramClient) Send(ctx context.Context, chatID, text string) error {
	if !c.Configured() {
		return errors.Wrap(ErrNotConfigured, "telegram bot token is empty")
	}

	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return errors.Wrap(err, "marshal telegram payload")
	}

	err = utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.sendOnce(ctx, body)
	})
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("telegram", "error").Inc()
		return err
	}
	metrics.ExternalCalls.WithLabelValues("telegram", "ok").Inc()
	return nil
}

func (c *TelegramClient) sendOnce(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send telegram message")
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&tgResp)
	if resp.StatusCode != http.StatusOK || !tgResp.OK {
		return errors.Errorf("telegram status %d: %s", resp.StatusCode, tgResp.Description)
	}
	return nil
}
