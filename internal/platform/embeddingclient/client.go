// Package embeddingclient talks to the outgoing semantic-embedding
// provider: a single POST /embeddings endpoint that accepts a batch of
// input texts and returns one vector per input, reordered by the
// provider's own index so the caller must realign results before writing
// them back.
package embeddingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haloestate/leadpipe/pkg/pipelineerr"
)

// MaxBatchTexts is the hard ceiling the provider accepts per request.
const MaxBatchTexts = 2048

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data []embedDatum `json:"data"`
}

// Embed sends up to MaxBatchTexts inputs in a single request and returns
// one vector per input, realigned to match the order of texts regardless
// of the order the provider returned them in.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatchTexts {
		return nil, pipelineerr.Validation(fmt.Sprintf("batch of %d texts exceeds provider limit %d", len(texts), MaxBatchTexts))
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipelineerr.TransientInfra("embedding provider request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipelineerr.TransientInfra("reading embedding provider response", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, pipelineerr.TransientInfra(fmt.Sprintf("embedding provider returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, pipelineerr.PermanentInfra(fmt.Sprintf("embedding provider returned %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, pipelineerr.PermanentInfra("malformed embedding provider response", err)
	}

	out := make([][]float32, len(texts))
	for _, datum := range parsed.Data {
		if datum.Index < 0 || datum.Index >= len(out) {
			return nil, pipelineerr.PermanentInfra(fmt.Sprintf("embedding provider returned out-of-range index %d", datum.Index), nil)
		}
		out[datum.Index] = datum.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return nil, pipelineerr.PermanentInfra(fmt.Sprintf("embedding provider omitted result for input %d", i), nil)
		}
	}

	return out, nil
}
