package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"supplyaudit/internal/config"
)

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

var _ Provider = (*Client)(nil)

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.EmbedTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.EmbedRateLimitRPS),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(c.cfg.EmbedAPIToken) == "" {
		return nil, errors.New("missing EMBED_API_TOKEN")
	}

	payload, err := json.Marshal(embedRequest{Model: c.cfg.EmbedModel, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.cfg.EmbedAPIBaseURL, "/") + "/embeddings"

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.EmbedAPIToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("embeddings status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("embeddings api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var parsed embedResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
			return nil, errors.New("embeddings response empty")
		}
		return parsed.Data[0].Embedding, nil
	}

	if lastErr == nil {
		lastErr = errors.New("embeddings request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
