// Package command implements the slash-command layer: parsing /name arg
// input, resolving it through a multi-alias registry, executing handlers
// against the session, and supplying completion candidates.
package command

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"arox/internal/termio"
)

// Prefix marks a line as a command attempt.
const Prefix = "/"

// Parse splits a slash-prefixed line into the command name (text up to
// the first space after the prefix) and the argument remainder. ok is
// false when the line is not a command attempt at all.
func Parse(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, Prefix) {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, Prefix), " ")
	return name, arg, true
}

// Completion is one completion candidate. Start is the (negative)
// offset from the cursor at which Text replaces the partial token.
type Completion struct {
	Text    string
	Display string
	Start   int
}

// Command is a named handler with one or more invocation aliases.
type Command interface {
	// Aliases lists the slash names that invoke this command.
	Aliases() []string
	// Description is the one-line human-readable summary.
	Description() string
	// Execute runs the command; name is the alias it was invoked under.
	// Returned errors are user-input problems, surfaced on the channel.
	Execute(ctx context.Context, name, arg string) error
	// Completions filters the command's own candidate domain against
	// the partial argument text.
	Completions(name, args string) []Completion
}

// Registry resolves slash input to registered commands.
type Registry struct {
	byAlias map[string]Command
	aliases []string // registration order, for completion listing
	channel termio.Channel
	logger  *zap.Logger
}

// NewRegistry creates an empty registry writing notices to channel.
func NewRegistry(channel termio.Channel, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byAlias: make(map[string]Command),
		channel: channel,
		logger:  logger,
	}
}

// Register maps every alias of each command to it. Registering a
// duplicate alias silently overwrites the earlier handler; last
// registration wins. Commands are never removed during a session.
func (r *Registry) Register(cmds ...Command) {
	for _, c := range cmds {
		for _, alias := range c.Aliases() {
			if _, exists := r.byAlias[alias]; !exists {
				r.aliases = append(r.aliases, alias)
			}
			r.byAlias[alias] = c
		}
	}
}

// Aliases returns all registered alias names in registration order.
func (r *Registry) Aliases() []string {
	out := make([]string, len(r.aliases))
	copy(out, r.aliases)
	return out
}

// TryExecute dispatches line as a slash command. It returns false only
// for lines that are not command attempts. Any slash-prefixed line is
// consumed, recognized or not: an unknown name produces a notice rather
// than silently falling through to become model input.
func (r *Registry) TryExecute(ctx context.Context, line string) bool {
	name, arg, ok := Parse(line)
	if !ok {
		return false
	}
	cmd, found := r.byAlias[name]
	if !found {
		r.notify(ctx, fmt.Sprintf("Unknown command: /%s", name))
		return true
	}
	if err := cmd.Execute(ctx, name, arg); err != nil {
		r.notify(ctx, fmt.Sprintf("/%s: %v", name, err))
	}
	return true
}

// Completions produces candidates for a partial input line. Before the
// first space the registered alias names are filtered by substring
// containment; past it the resolved command completes its own argument
// domain.
func (r *Registry) Completions(line string) []Completion {
	name, args, ok := Parse(line)
	if !ok {
		return nil
	}
	if !strings.Contains(line, " ") {
		var out []Completion
		for _, alias := range r.aliases {
			if strings.Contains(alias, name) {
				out = append(out, Completion{Text: alias, Display: alias, Start: -len(name)})
			}
		}
		return out
	}
	cmd, found := r.byAlias[name]
	if !found {
		return nil
	}
	return cmd.Completions(name, args)
}

// FilterCandidates filters a candidate domain by substring match against
// the last whitespace-delimited token of args.
func FilterCandidates(candidates []string, args string) []Completion {
	current := ""
	if args != "" && !strings.HasSuffix(args, " ") {
		parts := strings.Fields(args)
		if len(parts) > 0 {
			current = parts[len(parts)-1]
		}
	}
	var out []Completion
	for _, c := range candidates {
		if strings.Contains(c, current) {
			out = append(out, Completion{Text: c, Display: c, Start: -len(current)})
		}
	}
	return out
}

func (r *Registry) notify(ctx context.Context, msg string) {
	if err := r.channel.Write(ctx, msg); err != nil {
		r.logger.Warn("failed to write command notice", zap.Error(err))
	}
}
