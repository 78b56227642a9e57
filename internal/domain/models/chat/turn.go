package chat

import (
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Turn is a single message within a conversation. Turns are append-only:
// once persisted they are never mutated, only followed by newer turns.
// Part ordering within a turn is significant and preserved verbatim.
type Turn struct {
	ID             string       `json:"id" db:"id"`
	ConversationID string       `json:"chat_id" db:"conversation_id"`
	Role           string       `json:"role" db:"role"`
	Parts          []Part       `json:"parts" db:"parts"`
	Attachments    []Attachment `json:"attachments,omitempty" db:"attachments"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// Attachment is a file reference carried alongside a turn's parts.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// TextContent returns the concatenated text of the turn's text parts,
// skipping reasoning, tool, and file parts.
func (t *Turn) TextContent() string {
	var out string
	for _, p := range t.Parts {
		if p.Type == PartText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}
