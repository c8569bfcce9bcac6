package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// WebhookPayload 推送到 webhook 的 JSON 内容
type WebhookPayload struct {
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// WebhookSender 把通知 POST 到固定的 webhook 地址，由下游负责最终投递
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender 创建 webhook 发送器
func NewWebhookSender(url string, client *http.Client) domain.Sender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{url: url, client: client}
}

// Send 推送通知，非 2xx 视为失败
func (s *WebhookSender) Send(ctx context.Context, target, subject, content string) error {
	body, err := json.Marshal(WebhookPayload{Target: target, Subject: subject, Content: content})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	logger.Debug(ctx, "Webhook triggered", "target", target, "status", resp.StatusCode)
	return nil
}
