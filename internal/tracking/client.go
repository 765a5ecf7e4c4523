// Package tracking предоставляет клиент для внешней системы отслеживания перевозчика.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Статусы отправления в системе перевозчика.
const (
	ShipmentStatusRegistered = "REGISTERED"
	ShipmentStatusInTransit  = "IN_TRANSIT"
	ShipmentStatusDelivered  = "DELIVERED"
)

// Client инкапсулирует HTTP-взаимодействие с системой отслеживания перевозчика.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Shipment описывает ответ системы перевозчика по одному отправлению.
type Shipment struct {
	Number string `json:"number"`
	Status string `json:"status"`
}

// NewClient создаёт HTTP-клиент для обращения к системе перевозчика по указанному адресу.
// Временные сетевые сбои ретраятся внутри клиента.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil
	// 429 обрабатывает вызывающая сторона по Retry-After, внутри не ретраим.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// GetShipment запрашивает состояние отправления по трек-номеру.
// Возвращает состояние, HTTP-код ответа и паузу из Retry-After при коде 429.
func (c *Client) GetShipment(ctx context.Context, number string) (*Shipment, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("tracking client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/shipments/%s", base, number)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, resp.StatusCode, 0, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Shipment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
