package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"arox/internal/chat"
	"arox/internal/llm"
	"arox/internal/store"
	"arox/internal/termio"
)

// Session is the surface the built-in commands mutate. The agent
// implements it; tests substitute lightweight fakes.
type Session interface {
	Name() string
	Workspace() string
	Channel() termio.Channel
	Files() *chat.FileSet
	ModelRef() string
	SetModel(ref string)
	Reset()
	LastMessage() string
	Tools() llm.ToolRunner
	History() *store.HistoryStore
}

// FileCommand adds or drops context files. One handler, two aliases.
type FileCommand struct {
	s Session
}

func NewFileCommand(s Session) *FileCommand {
	return &FileCommand{s: s}
}

func (c *FileCommand) Aliases() []string {
	return []string{"add", "drop"}
}

func (c *FileCommand) Description() string {
	return "Add/Drop files to context - /add <file1> [file2...]; /drop <file1> [file2...]"
}

func (c *FileCommand) Execute(ctx context.Context, name, arg string) error {
	paths := strings.Fields(arg)
	if len(paths) == 0 {
		return errors.New("please specify files")
	}
	files := c.s.Files()
	if name == "add" {
		res := files.AddMany(paths)
		for _, f := range res.NotFound {
			c.s.Channel().Write(ctx, fmt.Sprintf("%s doesn't exist, ignoring.", f))
		}
		return nil
	}
	for _, f := range paths {
		if !files.Remove(files.Normalize(f)) {
			c.s.Channel().Write(ctx, fmt.Sprintf("%s is not in the context file list, ignoring.", f))
		}
	}
	return nil
}

func (c *FileCommand) Completions(name, args string) []Completion {
	var candidates []string
	switch name {
	case "add":
		candidates = c.s.Files().Candidates()
	case "drop":
		candidates = c.s.Files().List()
	}
	return FilterCandidates(candidates, args)
}

// ModelCommand switches the active model reference.
type ModelCommand struct {
	s Session
}

func NewModelCommand(s Session) *ModelCommand {
	return &ModelCommand{s: s}
}

func (c *ModelCommand) Aliases() []string {
	return []string{"model"}
}

func (c *ModelCommand) Description() string {
	return "Switch LLM model - /model <model_name>"
}

func (c *ModelCommand) Execute(ctx context.Context, name, arg string) error {
	ref := strings.TrimSpace(arg)
	if ref == "" {
		return errors.New("please specify a model name")
	}
	c.s.SetModel(ref)
	return nil
}

func (c *ModelCommand) Completions(name, args string) []Completion {
	return nil
}

// SaveCommand writes the last assistant message to a file under the
// workspace, optionally stripped to the inner text of a named tag.
type SaveCommand struct {
	s           Session
	tagName     string
	defaultFile string
}

func NewSaveCommand(s Session) *SaveCommand {
	return &SaveCommand{
		s:           s,
		tagName:     s.Name() + "_content",
		defaultFile: s.Name() + "_output.md",
	}
}

func (c *SaveCommand) Aliases() []string {
	return []string{"save"}
}

func (c *SaveCommand) Description() string {
	return fmt.Sprintf("Save last response - /save [filename] (default: %s)", c.defaultFile)
}

func (c *SaveCommand) Execute(ctx context.Context, name, arg string) error {
	outFile := strings.TrimSpace(arg)
	if outFile == "" {
		outFile = c.defaultFile
	}
	content := extractTagged(c.s.LastMessage(), c.tagName)
	outPath := outFile
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(c.s.Workspace(), outPath)
	}
	c.s.Channel().Write(ctx, fmt.Sprintf("Saving content to %s", outPath))
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	c.s.Channel().Write(ctx, fmt.Sprintf("Saved to %s!", outFile))
	return nil
}

func (c *SaveCommand) Completions(name, args string) []Completion {
	return nil
}

// extractTagged returns the inner text of the first <tag>...</tag>
// occurrence, matching across newlines; absent tags fall back to the
// raw message.
func extractTagged(msg, tag string) string {
	q := regexp.QuoteMeta(tag)
	re, err := regexp.Compile(fmt.Sprintf(`(?s)<%s>(.*?)</%s>`, q, q))
	if err != nil {
		return msg
	}
	if m := re.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return msg
}

// ResetCommand clears the transcript, meta flags, and file set together.
type ResetCommand struct {
	s Session
}

func NewResetCommand(s Session) *ResetCommand {
	return &ResetCommand{s: s}
}

func (c *ResetCommand) Aliases() []string {
	return []string{"reset"}
}

func (c *ResetCommand) Description() string {
	return "Reset chat history and context files - /reset"
}

func (c *ResetCommand) Execute(ctx context.Context, name, arg string) error {
	c.s.Reset()
	c.s.Channel().Write(ctx, "Reset complete.")
	return nil
}

func (c *ResetCommand) Completions(name, args string) []Completion {
	return nil
}

// InfoCommand reports the active model and the committed file list.
type InfoCommand struct {
	s Session
}

func NewInfoCommand(s Session) *InfoCommand {
	return &InfoCommand{s: s}
}

func (c *InfoCommand) Aliases() []string {
	return []string{"info"}
}

func (c *InfoCommand) Description() string {
	return "Show current context files and model in use - /info"
}

func (c *InfoCommand) Execute(ctx context.Context, name, arg string) error {
	ch := c.s.Channel()
	ch.Write(ctx, fmt.Sprintf("Current model: %s", c.s.ModelRef()))
	files := c.s.Files().List()
	if len(files) == 0 {
		ch.Write(ctx, "No context files currently loaded.")
		return nil
	}
	ch.Write(ctx, fmt.Sprintf("Context files (%d):", len(files)))
	for _, f := range files {
		ch.Write(ctx, fmt.Sprintf("  - %s", f))
	}
	return nil
}

func (c *InfoCommand) Completions(name, args string) []Completion {
	return nil
}

// InvokeToolCommand invokes a registered tool directly, bypassing the
// model. Argument errors, connectivity errors, and unexpected errors
// are surfaced distinctly; only the last category is a fault worth a
// full log entry.
type InvokeToolCommand struct {
	s      Session
	logger *zap.Logger
}

func NewInvokeToolCommand(s Session, logger *zap.Logger) *InvokeToolCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvokeToolCommand{s: s, logger: logger}
}

func (c *InvokeToolCommand) Aliases() []string {
	return []string{"invoke-tool"}
}

func (c *InvokeToolCommand) Description() string {
	return "Invoke a registered tool - /invoke-tool <function_name> [json_args]"
}

func (c *InvokeToolCommand) Execute(ctx context.Context, name, arg string) error {
	ch := c.s.Channel()
	fn, rest, _ := strings.Cut(strings.TrimSpace(arg), " ")
	if fn == "" {
		ch.Write(ctx, "Usage: /invoke-tool <function_name> [json_args]")
		return nil
	}
	argsJSON := strings.TrimSpace(rest)
	if argsJSON == "" {
		argsJSON = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			ch.Write(ctx, "Error: arguments must be a JSON object.")
		} else {
			ch.Write(ctx, fmt.Sprintf("Error: invalid JSON arguments: %v", err))
		}
		return nil
	}

	runner := c.s.Tools()
	if runner == nil {
		ch.Write(ctx, "No tool runner configured.")
		return nil
	}

	call := llm.NewToolCall(fn, args)
	ch.Write(ctx, fmt.Sprintf("Invoking tool '%s' with args: %s", fn, argsJSON))
	result, err := runner.Invoke(ctx, call)

	var argErr *llm.ArgumentError
	var connErr *llm.ConnectionError
	switch {
	case err == nil:
		ch.Write(ctx, fmt.Sprintf("Tool '%s' executed successfully.", fn))
		ch.Write(ctx, "Result:")
		ch.Write(ctx, result)
	case errors.As(err, &argErr):
		ch.Write(ctx, fmt.Sprintf("Error invoking tool '%s': %v", fn, err))
	case errors.As(err, &connErr):
		ch.Write(ctx, fmt.Sprintf("Error connecting to backend for tool '%s': %v", fn, err))
	default:
		c.logger.Error("unexpected tool invocation failure",
			zap.String("tool", fn), zap.String("call_id", call.ID), zap.Error(err))
		ch.Write(ctx, fmt.Sprintf("An unexpected error occurred: %v", err))
	}
	return nil
}

func (c *InvokeToolCommand) Completions(name, args string) []Completion {
	runner := c.s.Tools()
	if runner == nil {
		return nil
	}
	var names []string
	for _, spec := range runner.Specs() {
		names = append(names, spec.Name)
	}
	return FilterCandidates(names, args)
}

// ListToolsCommand renders the registered tool specs as YAML.
type ListToolsCommand struct {
	s Session
}

func NewListToolsCommand(s Session) *ListToolsCommand {
	return &ListToolsCommand{s: s}
}

func (c *ListToolsCommand) Aliases() []string {
	return []string{"list-tools"}
}

func (c *ListToolsCommand) Description() string {
	return "List all registered tools - /list-tools"
}

func (c *ListToolsCommand) Execute(ctx context.Context, name, arg string) error {
	ch := c.s.Channel()
	runner := c.s.Tools()
	if runner == nil || len(runner.Specs()) == 0 {
		ch.Write(ctx, "No tools registered.")
		return nil
	}
	out, err := yaml.Marshal(runner.Specs())
	if err != nil {
		return fmt.Errorf("failed to render tool specs: %w", err)
	}
	ch.Write(ctx, "Registered tools:")
	ch.Write(ctx, string(out))
	return nil
}

func (c *ListToolsCommand) Completions(name, args string) []Completion {
	return nil
}

// SessionsCommand lists saved history snapshots.
type SessionsCommand struct {
	s Session
}

func NewSessionsCommand(s Session) *SessionsCommand {
	return &SessionsCommand{s: s}
}

func (c *SessionsCommand) Aliases() []string {
	return []string{"sessions"}
}

func (c *SessionsCommand) Description() string {
	return "List saved session histories - /sessions"
}

func (c *SessionsCommand) Execute(ctx context.Context, name, arg string) error {
	ch := c.s.Channel()
	history := c.s.History()
	if history == nil {
		ch.Write(ctx, "Session history is not enabled.")
		return nil
	}
	sessions, err := history.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		ch.Write(ctx, "No saved sessions found.")
		return nil
	}
	for _, info := range sessions {
		ch.Write(ctx, fmt.Sprintf("%s  agent=%s  messages=%d  started=%s",
			info.ID, info.Agent, info.Messages, info.StartedAt.Format("2006-01-02 15:04:05")))
	}
	return nil
}

func (c *SessionsCommand) Completions(name, args string) []Completion {
	return nil
}
