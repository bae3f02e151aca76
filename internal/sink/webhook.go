package sink

import (
	"context"
	"fmt"
	"time"

	"senior-connect/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookSink 告警以 JSON POST 到照护人 webhook
type WebhookSink struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookSink 创建 webhook sink
func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookSink{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Notify 发送告警
func (s *WebhookSink) Notify(ctx context.Context, alert models.Alert) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.IsError() {
		s.logger.Warn("Webhook rejected alert",
			zap.String("alert_id", alert.ID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	return nil
}
