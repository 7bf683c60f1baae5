// Package termio defines the IO channel abstraction the agent reads
// user lines from and writes output to, plus a plain-text implementation
// over an io.Reader/io.Writer pair. The terminal itself is out of scope;
// anything that can supply lines and accept text can drive a session.
package termio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Kind classifies a sub-channel so typed output can be routed
// separately, e.g. streamed assistant content vs. command echo.
type Kind string

const (
	KindDefault   Kind = "default"
	KindAssistant Kind = "assistant"
	KindPrompt    Kind = "prompt"
)

// Channel is the session's IO surface.
type Channel interface {
	// ReadLine blocks for the next user-submitted line. io.EOF signals
	// end of input and terminates the turn loop cleanly.
	ReadLine(ctx context.Context) (string, error)
	// Write delivers content to the user.
	Write(ctx context.Context, content string) error
	// Sub creates a typed sub-channel sharing this channel's output.
	Sub(kind Kind, title string) Channel
}

// TextChannel implements Channel over a reader/writer pair. Assistant
// sub-channels write fragments through unmodified so streamed content
// renders incrementally; every other kind writes whole lines.
type TextChannel struct {
	mu   *sync.Mutex
	r    *bufio.Reader
	w    io.Writer
	kind Kind
}

// NewTextChannel creates a root text channel.
func NewTextChannel(r io.Reader, w io.Writer) *TextChannel {
	return &TextChannel{
		mu:   &sync.Mutex{},
		r:    bufio.NewReader(r),
		w:    w,
		kind: KindDefault,
	}
}

// ReadLine returns the next line without its trailing newline. A final
// unterminated line is returned first; the subsequent call yields io.EOF.
func (c *TextChannel) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *TextChannel) Write(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == KindAssistant {
		_, err := io.WriteString(c.w, content)
		return err
	}
	_, err := fmt.Fprintln(c.w, content)
	return err
}

// Sub returns a channel of the given kind sharing this channel's
// underlying reader and writer. A non-empty title is announced once.
func (c *TextChannel) Sub(kind Kind, title string) Channel {
	sub := &TextChannel{mu: c.mu, r: c.r, w: c.w, kind: kind}
	if title != "" {
		c.mu.Lock()
		fmt.Fprintf(c.w, "--- %s ---\n", title)
		c.mu.Unlock()
	}
	return sub
}
