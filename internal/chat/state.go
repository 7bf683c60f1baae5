package chat

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// ModelPrompt pairs a prompt with the model-identifier pattern that
// selects it. Pairs are evaluated in declared order; the first pattern
// that matches the active model reference wins.
type ModelPrompt struct {
	Prompt  string
	Pattern string
}

// item is one candidate content block computed for a turn.
type item struct {
	tag     string
	content string
}

// Params configures a State.
type Params struct {
	Workspace    string
	SystemPrompt string
	ModelRef     string
	ModelPrompts []ModelPrompt
	Logger       *zap.Logger
}

// State owns the transcript and the per-turn assembly algorithm. It is
// exclusively owned by one session; the meta flags and model-prompt list
// are instance fields reset together with the transcript.
type State struct {
	transcript   Transcript
	meta         map[string]bool
	files        *FileSet
	systemPrompt string
	modelRef     string
	modelPrompts []ModelPrompt
	logger       *zap.Logger

	// itemsFn computes the candidate items for a turn. Specialized
	// states such as CoderState override it to splice in extra blocks.
	itemsFn func(userInput string) []item
}

// NewState creates a conversation state bound to a workspace root.
func NewState(p Params) *State {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &State{
		meta:         make(map[string]bool),
		files:        NewFileSet(p.Workspace, logger),
		systemPrompt: p.SystemPrompt,
		modelRef:     p.ModelRef,
		modelPrompts: p.ModelPrompts,
		logger:       logger,
	}
	s.itemsFn = s.defaultItems
	return s
}

// Files returns the context file set owned by this state.
func (s *State) Files() *FileSet {
	return s.files
}

// Transcript returns the transcript owned by this state.
func (s *State) Transcript() *Transcript {
	return &s.transcript
}

// ModelRef returns the active model identifier.
func (s *State) ModelRef() string {
	return s.modelRef
}

// SetModelRef switches the active model. The model-specific prompt is
// re-evaluated on the next assembly, so no manual cleanup is needed.
func (s *State) SetModelRef(ref string) {
	s.modelRef = ref
}

// LastMessage returns the content of the most recent assistant message.
func (s *State) LastMessage() string {
	return s.transcript.LastAssistant()
}

// AddUserInput assembles the prompt for a new user turn. It reports
// whether any candidate item was injected.
func (s *State) AddUserInput(input string) bool {
	return s.Assemble(input)
}

// Assemble computes the candidate items for this turn and injects them
// into the transcript. An empty userInput means "re-assemble without new
// user text", used after a completed response round: only pending state
// changes produce content then.
//
// Injection policies: the system prompt is appended once per session as
// a system-role message; user instructions are always appended verbatim;
// every other item replaces any prior message carrying its tag. Assembly
// never fails: absent configuration and empty content degrade to nothing
// injected.
func (s *State) Assemble(userInput string) bool {
	items := s.itemsFn(userInput)
	for _, it := range items {
		switch it.tag {
		case tagSystem:
			s.transcript.Append(Message{Role: RoleSystem, Content: it.content})
		case tagUserInstruction:
			if c := xmlWrap(it.tag, it.content); c != "" {
				s.transcript.Append(Message{Role: RoleUser, Content: c})
			}
		default:
			s.transcript.ReplaceByTag(it.tag, xmlWrap(it.tag, it.content))
		}
	}
	s.injectModelPrompt()
	return len(items) > 0
}

// Reconcile feeds a completed assistant response back into the state as
// a single atomic append, then re-assembles with no user input. The
// return value reports whether re-assembly produced new content, meaning
// the caller should run another completion round.
func (s *State) Reconcile(assistantText string) bool {
	if assistantText != "" {
		s.transcript.Append(Message{Role: RoleAssistant, Content: assistantText})
	}
	return s.Assemble("")
}

// Reset reinitializes the transcript, the once-only flags, and the
// context file set together.
func (s *State) Reset() {
	s.transcript.Reset()
	s.meta = make(map[string]bool)
	s.files.Clear()
}

// defaultItems computes the base candidate list: the once-only system
// prompt, the context-files block, and the user instruction. Any new
// user turn forces a files block even when nothing is pending; a
// post-response re-assembly includes it only when something is pending.
func (s *State) defaultItems(userInput string) []item {
	var items []item
	if !s.meta[tagSystem] && s.systemPrompt != "" {
		items = append(items, item{tagSystem, s.systemPrompt})
		s.meta[tagSystem] = true
	}
	if s.files.HasPending() || userInput != "" {
		content, _ := s.files.ReadAll()
		items = append(items, item{tagFiles, content})
	}
	if userInput != "" {
		items = append(items, item{tagUserInstruction, userInput})
	}
	return items
}

// injectModelPrompt runs the model-specific prompt lookup: the first
// configured pattern matching the active model ref is injected via
// replace-by-tag, so at most one model prompt is live at a time. No
// match leaves any previously injected prompt in place.
func (s *State) injectModelPrompt() {
	for _, mp := range s.modelPrompts {
		re, err := regexp.Compile(mp.Pattern)
		if err != nil {
			s.logger.Warn("invalid model prompt pattern, skipping",
				zap.String("pattern", mp.Pattern), zap.Error(err))
			continue
		}
		if re.MatchString(s.modelRef) {
			s.transcript.ReplaceByTag(tagModelPrompt, mp.Prompt)
			return
		}
	}
}

// xmlWrap encloses content in a <tag> element, the delimiter convention
// for injected blocks. Empty content yields an empty string so that
// replace-by-tag degrades to pure removal.
func xmlWrap(tag, content string) string {
	if content == "" {
		return ""
	}
	return fmt.Sprintf("<%s>\n%s\n</%s>", tag, content, tag)
}
