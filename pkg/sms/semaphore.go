package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bantay-backend/internal/config"
)

var ErrEmptyRecipient = errors.New("sms: empty recipient number")

// SemaphoreClient sends single messages through the Semaphore REST API.
type SemaphoreClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	senderName string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type semaphoreMessage struct {
	MessageID int    `json:"message_id"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
}

func NewSemaphoreClient(cfg config.SMSConfig, logger *zap.Logger) *SemaphoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = 120
	}

	return &SemaphoreClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		senderName: cfg.SenderName,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:     logger,
	}
}

// Send delivers one message. It waits on the limiter, so ctx bounds the total time.
func (c *SemaphoreClient) Send(ctx context.Context, number, message string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return ErrEmptyRecipient
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms: rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("number", number)
	form.Set("message", message)
	if c.senderName != "" {
		form.Set("sendername", c.senderName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var messages []semaphoreMessage
	if err := json.Unmarshal(body, &messages); err == nil {
		for _, m := range messages {
			if strings.EqualFold(m.Status, "failed") {
				return fmt.Errorf("sms: provider rejected message %d", m.MessageID)
			}
		}
	}

	c.logger.Debug("sms sent", zap.String("number", number))
	return nil
}

// FormatAlert renders the SMS body for an emergency alert.
func FormatAlert(title, message string) string {
	return fmt.Sprintf("ALERT: %s - %s. Stay safe!", title, message)
}
