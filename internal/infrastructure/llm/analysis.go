package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"PerspectiveEngine/internal/domain"
)

const entityPrompt = `You extract named entities from news text.
Answer with a JSON object with exactly these keys: "persons", "organizations", "locations", "events".
Each value is an array of strings as written in the text. Use empty arrays when nothing is found.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// ExtractEntities asks the chat model for persons, organizations, locations and events.
func (c *Client) ExtractEntities(ctx context.Context, text string) (domain.ExtractedEntities, error) {
	var entities domain.ExtractedEntities
	err := c.post(ctx, "entities", "/chat/completions", chatRequest{
		Model:          c.entityModel,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: entityPrompt},
			{Role: "user", Content: text},
		},
	}, func(raw []byte) error {
		var resp chatResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("%w: decode chat response: %v", ErrMalformedResponse, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices", ErrMalformedResponse)
		}

		var decoded domain.ExtractedEntities
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if err := json.Unmarshal([]byte(content), &decoded); err != nil {
			return fmt.Errorf("%w: decode entities: %v", ErrMalformedResponse, err)
		}
		entities = decoded
		return nil
	})
	if err != nil {
		return domain.ExtractedEntities{}, fmt.Errorf("extract entities: %w", err)
	}

	return domain.ExtractedEntities{
		Persons:       clean(entities.Persons),
		Organizations: clean(entities.Organizations),
		Locations:     clean(entities.Locations),
		Events:        clean(entities.Events),
	}, nil
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := c.post(ctx, "embeddings", "/embeddings", embeddingRequest{
		Model: c.embeddingModel,
		Input: text,
	}, func(raw []byte) error {
		var resp embeddingResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("%w: decode embedding response: %v", ErrMalformedResponse, err)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return fmt.Errorf("%w: no embedding returned", ErrMalformedResponse)
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	return vector, nil
}

// clean trims members and drops empty and case-insensitive duplicates.
func clean(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
