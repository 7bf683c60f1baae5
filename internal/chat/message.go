// Package chat implements the conversation state engine: the ordered
// transcript, the context file set, and the per-turn assembly algorithm
// that decides which content blocks to inject before each model call.
package chat

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Semantic tags used for replace-by-tag injection.
const (
	tagSystem          = "system"
	tagFiles           = "files"
	tagUserInstruction = "user_instruction"
	tagModelPrompt     = "model_prompt"
	tagRepoMap         = "repo_map"
	tagFileList        = "file_list"
)

// Message is a single transcript entry. Messages are immutable records;
// Tag carries the semantic type used for replace-by-tag injection and is
// empty for plain conversation turns.
type Message struct {
	Role    Role
	Content string
	Tag     string
}

// Transcript is the ordered message history forming the model's input
// context. Ordering is significant: the transcript is append-only except
// for tag-based replacement.
type Transcript struct {
	msgs []Message
}

// Append adds a message at the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.msgs = append(t.msgs, m)
}

// ReplaceByTag removes every message carrying tag and, when content is
// non-empty, appends a fresh user message with that tag. This keeps at
// most one live copy of each tagged block in the transcript, and that
// copy is always the most recently appended one. Empty content turns the
// operation into pure removal.
func (t *Transcript) ReplaceByTag(tag, content string) {
	kept := t.msgs[:0]
	for _, m := range t.msgs {
		if m.Tag != tag {
			kept = append(kept, m)
		}
	}
	t.msgs = kept
	if content != "" {
		t.msgs = append(t.msgs, Message{Role: RoleUser, Content: content, Tag: tag})
	}
}

// ByTag returns the messages carrying tag, in transcript order.
func (t *Transcript) ByTag(tag string) []Message {
	var out []Message
	for _, m := range t.msgs {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}

// LastAssistant returns the content of the most recent assistant
// message, or "" when no assistant turn exists yet.
func (t *Transcript) LastAssistant() string {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == RoleAssistant {
			return t.msgs[i].Content
		}
	}
	return ""
}

// Messages returns a copy of the transcript contents.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len reports the number of messages in the transcript.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Reset discards all messages.
func (t *Transcript) Reset() {
	t.msgs = nil
}
