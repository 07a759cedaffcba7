package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"supplyaudit/internal/config"
)

const extractPrompt = `Extract product attributes from this office-supply line item description.
Respond with a JSON object with keys brand, type, model, color, size. Use "" for unknown fields.
Description: `

// AIClient implements Extractor against an OpenAI-compatible chat
// completions endpoint.
type AIClient struct {
	cfg        config.Config
	httpClient *http.Client
}

var _ Extractor = (*AIClient)(nil)

func NewAIClient(cfg config.Config) *AIClient {
	return &AIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *AIClient) ExtractAttributes(ctx context.Context, description string) (Attributes, error) {
	if strings.TrimSpace(c.cfg.AIAPIToken) == "" {
		return Attributes{}, errors.New("missing AI_API_TOKEN")
	}

	payload, err := json.Marshal(chatRequest{
		Model: "gpt-4o-mini",
		Messages: []chatMessage{
			{Role: "user", Content: extractPrompt + description},
		},
	})
	if err != nil {
		return Attributes{}, err
	}

	url := strings.TrimRight(c.cfg.AIAPIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Attributes{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AIAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Attributes{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Attributes{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Attributes{}, fmt.Errorf("ai api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Attributes{}, err
	}
	if len(parsed.Choices) == 0 {
		return Attributes{}, errors.New("ai response empty")
	}

	content := parsed.Choices[0].Message.Content
	// Models sometimes wrap the JSON in a code fence.
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}

	var attrs Attributes
	if err := json.Unmarshal([]byte(content), &attrs); err != nil {
		return Attributes{}, fmt.Errorf("ai response not parseable: %w", err)
	}
	return attrs, nil
}
