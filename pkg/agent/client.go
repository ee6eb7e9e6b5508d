package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/prowlhq/prowl/pkg/config"
)

// ModelClient is the model invocation boundary. Stream delivers partial
// output through onChunk in production order and returns the full text;
// Complete is the single-result form.
type ModelClient interface {
	Stream(ctx context.Context, req Request, onChunk ChunkFunc) (string, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIClient implements ModelClient over the OpenAI-compatible chat
// completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client from configuration. BaseURL may point at
// any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg config.ModelConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("model api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Stream invokes the model with streaming enabled, forwarding each delta to
// onChunk. Returns the accumulated text. Honors ctx: cancelling the request
// context stops consumption mid-stream.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onChunk ChunkFunc) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: buildMessages(req),
	})
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onChunk != nil {
			onChunk(Chunk{Text: delta})
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), fmt.Errorf("model stream: %w", err)
	}
	return b.String(), nil
}

// Complete invokes the model for a single awaited result.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: buildMessages(req),
	})
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	return msgs
}
