package transport

import (
	"encoding/json"
	"time"

	"grumpstudio/internal/domain"
)

// turnRequest is the POST body for one streaming turn.
type turnRequest struct {
	Messages      []wireMessage          `json:"messages"`
	Mode          string                 `json:"mode"`
	SessionType   string                 `json:"session_type,omitempty"`
	WorkspaceRoot string                 `json:"workspace_root,omitempty"`
	Provider      string                 `json:"provider,omitempty"`
	ModelID       string                 `json:"model_id,omitempty"`
	Image         *wireAttachment        `json:"image,omitempty"`
	SkillIDs      []string               `json:"enabled_skill_ids,omitempty"`
	MemoryContext []domain.MemorySnippet `json:"memory_context,omitempty"`
}

type wireMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type wireAttachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"` // base64 via encoding/json
}

// wireEvent is one SSE data record from the backend.
type wireEvent struct {
	Event  string      `json:"event"`
	Blocks []wireBlock `json:"blocks,omitempty"`
	Delta  string      `json:"delta,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Output    string          `json:"output,omitempty"`
}

func buildRequest(outgoing []domain.Message, opts domain.TurnOptions) turnRequest {
	msgs := make([]wireMessage, 0, len(outgoing))
	for _, m := range outgoing {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	req := turnRequest{
		Messages:      msgs,
		Mode:          string(opts.Mode),
		SessionType:   opts.SessionType,
		WorkspaceRoot: opts.WorkspaceRoot,
		Provider:      opts.Provider,
		ModelID:       opts.ModelID,
		SkillIDs:      opts.SkillIDs,
		MemoryContext: opts.MemoryContext,
	}
	if opts.Image != nil {
		req.Image = &wireAttachment{
			Name:     opts.Image.Name,
			MimeType: opts.Image.MimeType,
			Data:     opts.Image.Data,
		}
	}
	return req
}

// toStreamEvent converts a wire record into a domain event. Unknown event
// names return ok=false and are skipped.
func toStreamEvent(we wireEvent) (domain.StreamEvent, bool) {
	switch we.Event {
	case "text", "tool_call", "tool_result":
		return domain.StreamEvent{
			Kind:   domain.StreamEventKind(we.Event),
			Blocks: toBlocks(we.Blocks),
		}, true
	case "thinking":
		return domain.StreamEvent{Kind: domain.StreamThinking, Delta: we.Delta}, true
	case "error":
		return domain.StreamEvent{Kind: domain.StreamError, Err: we.Error}, true
	default:
		return domain.StreamEvent{}, false
	}
}

func toBlocks(wire []wireBlock) []domain.ContentBlock {
	blocks := make([]domain.ContentBlock, 0, len(wire))
	for _, wb := range wire {
		switch wb.Type {
		case "text":
			blocks = append(blocks, domain.TextBlock(wb.Content))
		case "tool_call":
			blocks = append(blocks, domain.ToolCallBlock(wb.ID, wb.Name, string(wb.Args)))
		case "tool_result":
			blocks = append(blocks, domain.ToolResultBlock(wb.ToolUseID, wb.Output))
		}
	}
	return blocks
}
