// Package agent wires the conversation state, command layer, and
// completion client into the interactive turn loop: read a line, try it
// as a command, otherwise assemble and run completion rounds until the
// state produces nothing new.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arox/internal/chat"
	"arox/internal/command"
	"arox/internal/llm"
	"arox/internal/store"
	"arox/internal/termio"
)

// defaultMaxRounds bounds completion rounds per turn so a state that
// keeps producing pending content cannot loop forever.
const defaultMaxRounds = 8

// Options configures an Agent.
type Options struct {
	Name        string
	Workspace   string
	ModelParams map[string]any
	MaxRounds   int

	Channel termio.Channel
	State   *chat.State
	Client  llm.CompletionClient
	Tools   llm.ToolRunner
	History *store.HistoryStore
	Logger  *zap.Logger
}

// Agent drives one interactive session. It exclusively owns its state
// and file set; concurrent sessions are simply independent Agents.
type Agent struct {
	id          string
	name        string
	workspace   string
	modelParams map[string]any
	maxRounds   int

	state    *chat.State
	registry *command.Registry
	channel  termio.Channel
	client   llm.CompletionClient
	tools    llm.ToolRunner
	history  *store.HistoryStore
	logger   *zap.Logger
}

// New creates an Agent and registers the built-in commands.
func New(opts Options) (*Agent, error) {
	if opts.State == nil {
		return nil, errors.New("agent requires a conversation state")
	}
	if opts.Channel == nil {
		return nil, errors.New("agent requires an IO channel")
	}
	if opts.Client == nil {
		return nil, errors.New("agent requires a completion client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	a := &Agent{
		id:          uuid.NewString(),
		name:        opts.Name,
		workspace:   opts.Workspace,
		modelParams: opts.ModelParams,
		maxRounds:   maxRounds,
		state:       opts.State,
		channel:     opts.Channel,
		client:      opts.Client,
		tools:       opts.Tools,
		history:     opts.History,
		logger:      logger,
	}
	a.registry = command.NewRegistry(a.channel, logger)
	a.registry.Register(
		command.NewFileCommand(a),
		command.NewModelCommand(a),
		command.NewSaveCommand(a),
		command.NewResetCommand(a),
		command.NewInfoCommand(a),
		command.NewInvokeToolCommand(a, logger),
		command.NewListToolsCommand(a),
		command.NewSessionsCommand(a),
	)
	return a, nil
}

// ID returns the agent's session identifier.
func (a *Agent) ID() string {
	return a.id
}

// Registry exposes the command registry, e.g. for completion wiring.
func (a *Agent) Registry() *command.Registry {
	return a.registry
}

// Start runs the turn loop until the IO channel reports end of input or
// ctx is cancelled. Blank lines are skipped; slash lines go to the
// dispatcher; everything else becomes a model turn. Turn failures are
// reported to the user, they never end the loop.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("agent started",
		zap.String("agent", a.name), zap.String("session", a.id),
		zap.String("model", a.state.ModelRef()))
	for {
		line, err := a.channel.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			a.logger.Info("input closed, agent stopping", zap.String("session", a.id))
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if a.registry.TryExecute(ctx, line) {
			continue
		}
		if err := a.Step(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("turn failed", zap.String("session", a.id), zap.Error(err))
			a.channel.Write(ctx, fmt.Sprintf("Error: %v", err))
		}
	}
}

// Step runs one user turn: assemble, complete, reconcile; repeat while
// reconciliation reports new content (pending files, model switches
// performed by tools) up to the round bound. Reconciliation appends the
// assistant response in a single atomic step, so a cancellation
// mid-completion never leaves a half-reconciled transcript.
func (a *Agent) Step(ctx context.Context, input string) error {
	hasNew := a.state.AddUserInput(input)
	for round := 0; hasNew && round < a.maxRounds; round++ {
		text, err := a.complete(ctx)
		if err != nil {
			return err
		}
		hasNew = a.state.Reconcile(text)
		a.snapshot()
	}
	return nil
}

// complete runs one completion call, writing streamed fragments through
// to an assistant sub-channel while accumulating the full response.
func (a *Agent) complete(ctx context.Context) (string, error) {
	req := llm.Request{
		Model:    a.state.ModelRef(),
		Messages: a.state.Transcript().Messages(),
		Params:   a.modelParams,
		Stream:   true,
	}
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	sub := a.channel.Sub(termio.KindAssistant, "")
	if resp.Stream == nil {
		sub.Write(ctx, resp.Text)
		sub.Write(ctx, "\n")
		return resp.Text, nil
	}

	var full strings.Builder
	for {
		frag, err := resp.Stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("response stream failed: %w", err)
		}
		if frag == "" {
			continue
		}
		full.WriteString(frag)
		sub.Write(ctx, frag)
	}
	sub.Write(ctx, "\n")
	return full.String(), nil
}

// snapshot persists the current transcript. Best-effort: a failing
// history store must not break the conversation.
func (a *Agent) snapshot() {
	if a.history == nil {
		return
	}
	if err := a.history.SaveSnapshot(a.id, a.name, a.state.Transcript().Messages()); err != nil {
		a.logger.Warn("failed to save session snapshot", zap.Error(err))
	}
}

// The methods below implement command.Session.

func (a *Agent) Name() string                { return a.name }
func (a *Agent) Workspace() string           { return a.workspace }
func (a *Agent) Channel() termio.Channel     { return a.channel }
func (a *Agent) Files() *chat.FileSet        { return a.state.Files() }
func (a *Agent) ModelRef() string            { return a.state.ModelRef() }
func (a *Agent) SetModel(ref string)         { a.state.SetModelRef(ref) }
func (a *Agent) Reset()                      { a.state.Reset() }
func (a *Agent) LastMessage() string         { return a.state.LastMessage() }
func (a *Agent) Tools() llm.ToolRunner       { return a.tools }
func (a *Agent) History() *store.HistoryStore { return a.history }
