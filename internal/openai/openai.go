// Package openai provides a thin client for the image-generation API
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/UnendingLoop/ImageVariations/internal/model"
)

const defaultBaseURL = "https://api.openai.com"

// billingLimitCode - стабильный код апстрима; текст оставлен как запасной
// признак для старых ответов без кода
const (
	billingLimitCode = "billing_hard_limit_reached"
	billingLimitText = "Billing hard limit has been reached"
)

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate запрашивает n вариаций и возвращает их URL в порядке ответа апстрима.
// Биллинг-лимит классифицируется здесь, на границе адаптера, и отдается
// как model.ErrBillingLimit - выше по стеку текст ошибки никто не парсит.
func (c *Client) Generate(ctx context.Context, prompt string, n int, size string) ([]string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, N: n, Size: size})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Println("Failed to close generation response body:", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", model.ErrUpstreamFailed, err)
	}

	urls := make([]string, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		urls = append(urls, d.URL)
	}
	return urls, nil
}

func classifyAPIError(status int, raw []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return fmt.Errorf("%w: status %d", model.ErrUpstreamFailed, status)
	}

	if apiErr.Error.Code == billingLimitCode || strings.Contains(apiErr.Error.Message, billingLimitText) {
		return fmt.Errorf("%w: %s", model.ErrBillingLimit, apiErr.Error.Message)
	}

	return fmt.Errorf("%w: %s", model.ErrUpstreamFailed, apiErr.Error.Message)
}
