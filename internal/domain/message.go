package domain

import (
	"strings"
	"time"
)

// Role constants for message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BlockKind discriminates ContentBlock variants.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolCall   BlockKind = "tool_call"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is a typed unit of message content. Exactly one variant's
// fields are set, selected by Kind.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Content string `json:"content,omitempty"`

	// BlockToolCall
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Args string `json:"args,omitempty"`

	// BlockToolResult
	ForCallID string `json:"for_call_id,omitempty"`
	Output    string `json:"output,omitempty"`
}

// TextBlock builds a text ContentBlock.
func TextBlock(content string) ContentBlock {
	return ContentBlock{Kind: BlockText, Content: content}
}

// ToolCallBlock builds a tool_call ContentBlock.
func ToolCallBlock(id, name, args string) ContentBlock {
	return ContentBlock{Kind: BlockToolCall, ID: id, Name: name, Args: args}
}

// ToolResultBlock builds a tool_result ContentBlock.
func ToolResultBlock(forCallID, output string) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ForCallID: forCallID, Output: output}
}

// Message is one entry in the conversation log. Content holds the flattened
// text; Blocks holds the finalized rich form when the turn produced tool
// activity. Once appended to a transcript a Message is never mutated;
// regenerate replaces the last assistant message with a fresh one.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UserMessage builds a user message stamped now.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Timestamp: time.Now()}
}

// AssistantMessage builds an assistant message stamped now.
func AssistantMessage(text string, blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: text, Blocks: blocks, Timestamp: time.Now()}
}

// FlattenBlocks converts a block sequence into the single text representation
// that gets persisted. Text blocks contribute their content; tool calls
// contribute a short marker line so the log records that work happened.
// Tool results are rendered live but not flattened.
func FlattenBlocks(blocks []ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Kind {
		case BlockText:
			if b.Content == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Content)
		case BlockToolCall:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("[tool: " + b.Name + "]")
		}
	}
	return strings.TrimSpace(sb.String())
}

// Conversation references one open conversation. A transient, unsaved
// conversation has an empty ID until first persistence assigns one.
type Conversation struct {
	ID          string    `json:"id,omitempty"`
	Messages    []Message `json:"messages"`
	ModeContext Mode      `json:"mode_context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
