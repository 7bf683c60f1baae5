package llm

import (
	"context"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"arox/internal/chat"
)

// GeminiClient implements CompletionClient over the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client, logger: logger}, nil
}

// Complete sends the assembled transcript to Gemini. System-role
// messages become the system instruction; tagged blocks ride along as
// ordinary user content, which is exactly what the assembly algorithm
// intends.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case chat.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	applyParams(cfg, req.Params)

	if req.Stream {
		seq := c.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg)
		return &Response{Stream: newGenaiStream(seq)}, nil
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}
	return &Response{Text: resp.Text()}, nil
}

// applyParams maps the generic model_params config onto the genai
// request config. Unknown keys are ignored.
func applyParams(cfg *genai.GenerateContentConfig, params map[string]any) {
	for key, val := range params {
		switch key {
		case "temperature":
			if f, ok := toFloat(val); ok {
				cfg.Temperature = genai.Ptr(float32(f))
			}
		case "top_p":
			if f, ok := toFloat(val); ok {
				cfg.TopP = genai.Ptr(float32(f))
			}
		case "max_output_tokens", "max_tokens":
			if f, ok := toFloat(val); ok {
				cfg.MaxOutputTokens = int32(f)
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// genaiStream adapts the SDK's push iterator to the pull-based Stream
// the agent consumes fragment by fragment.
type genaiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
}

func newGenaiStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *genaiStream {
	next, stop := iter.Pull2(seq)
	return &genaiStream{next: next, stop: stop}
}

func (s *genaiStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	resp, err, ok := s.next()
	if !ok {
		s.done = true
		s.stop()
		return "", io.EOF
	}
	if err != nil {
		s.done = true
		s.stop()
		return "", fmt.Errorf("gemini stream failed: %w", err)
	}
	return resp.Text(), nil
}
