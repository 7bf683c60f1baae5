// Package llm defines the completion and tool-execution interfaces the
// conversation engine consumes, plus the Gemini-backed client. The state
// engine never talks to a provider directly; it hands an assembled
// message list to a CompletionClient and feeds the result back in.
package llm

import (
	"context"

	"arox/internal/chat"
)

// Request carries an assembled transcript to the completion client.
type Request struct {
	Model    string
	Messages []chat.Message
	Params   map[string]any
	Stream   bool
}

// Stream yields response content fragments as they arrive. Next returns
// io.EOF when the stream is exhausted.
type Stream interface {
	Next() (string, error)
}

// Response is the outcome of one completion round. For streaming
// requests Stream is non-nil and must be drained by the caller; Text
// carries the full response otherwise. A client may internally perform
// tool-call sub-rounds before returning.
type Response struct {
	Text   string
	Stream Stream
}

// CompletionClient accepts an assembled message list plus model
// parameters and produces a response, streamed or final.
type CompletionClient interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
