package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrEmptyEmbedding = errors.New("embedding missing in response")

// Embed returns the embedding vector for text. Every call is one request.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}

	reqBody := map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": text,
	}
	resp, err := c.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return parsed.Data[0].Embedding, nil
}
