package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// EmailClient — клиент для взаимодействия с контактной конечной точкой
// бэкенда, отправляющей транскрипт на почту. Тело ответа не разбирается:
// значим только успех или неуспех вызова.
type EmailClient struct {
	endpointURL string
	authToken   string
	httpClient  *http.Client
}

// EmailClientOption — функциональная опция для настройки EmailClient.
type EmailClientOption func(*EmailClient)

// WithAuthToken устанавливает токен авторизации для запросов к бэкенду.
func WithAuthToken(token string) EmailClientOption {
	return func(c *EmailClient) {
		c.authToken = token
	}
}

// WithTimeout устанавливает общий таймаут HTTP-запросов.
func WithTimeout(d time.Duration) EmailClientOption {
	return func(c *EmailClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewEmailClient создает новый экземпляр EmailClient.
func NewEmailClient(endpointURL string, opts ...EmailClientOption) *EmailClient {
	c := &EmailClient{
		endpointURL: endpointURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Общий таймаут для запросов
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ ports.EmailGateway = (*EmailClient)(nil)

// SendTranscript отправляет транскрипт на контактную конечную точку бэкенда.
func (c *EmailClient) SendTranscript(ctx context.Context, emailReq domain.EmailRequest) error {
	body, err := json.Marshal(emailReq)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
