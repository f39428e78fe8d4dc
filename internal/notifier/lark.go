package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// larkTextMessageContent text body of a Lark bot message
type larkTextMessageContent struct {
	Text string `json:"text"`
}

type larkMessage struct {
	MsgType string                 `json:"msg_type"`
	Content larkTextMessageContent `json:"content"`
}

// larkResponse webhook reply, code 0 means accepted
type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// LarkClient posts text messages to a Lark custom bot webhook
type LarkClient struct {
	webhookURL string
	client     *http.Client
	retry      utils.RetryOptions
}

func NewLarkClient(webhookURL string, timeout time.Duration, attempts int) *LarkClient {
	return &LarkClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: orDefault(timeout)},
		retry:      retryOptions(attempts),
	}
}

// Send posts text to webhookURL, or to the client default when empty
func (c *LarkClient) Send(ctx context.Context, webhookURL, text string) error {
	if webhookURL == "" {
		webhookURL = c.webhookURL
	}
	if webhookURL == "" {
		return errors.Wrap(ErrNotConfigured, "lark webhook url is empty")
	}
	if text == "" {
		logger.Warn("⚠️ skipping empty lark message")
		return nil
	}

	payload, err := json.Marshal(larkMessage{
		MsgType: "text",
		Content: larkTextMessageContent{Text: text},
	})
	if err != nil {
		return errors.Wrap(err, "marshal lark message")
	}

	err = utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.post(ctx, webhookURL, payload)
	})
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("lark", "error").Inc()
		return err
	}
	metrics.ExternalCalls.WithLabelValues("lark", "ok").Inc()
	return nil
}

func (c *LarkClient) post(ctx context.Context, webhookURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build lark request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send lark message")
	}
	defer resp.Body.Close()

	var larkResp larkResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&larkResp)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil {
			return errors.Errorf("lark status %d, code %d: %s", resp.StatusCode, larkResp.Code, larkResp.Msg)
		}
		return errors.Errorf("lark status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		// a 200 with an unreadable body was still delivered
		logger.Warn("⚠️ lark reply not parseable", logger.FieldErr(decodeErr))
		return nil
	}
	if larkResp.Code != 0 {
		return errors.Errorf("lark code %d: %s", larkResp.Code, larkResp.Msg)
	}
	return nil
}
