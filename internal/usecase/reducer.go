package usecase

import (
	"strings"

	"grumpstudio/internal/domain"
)

// DefaultBlockCap bounds how many live blocks are retained during long
// agentic runs. The exact value is a render-cost mitigation, configurable
// rather than load-bearing.
const DefaultBlockCap = 200

// Fold consumes one stream event and returns the next turn state. Pure
// function of (state, event); it performs no I/O and triggers no rendering.
//
// Block-carrying events replace LiveBlocks wholesale: each event carries the
// full sequence so far, not a delta, and the renderer does no diffing.
// Thinking events accumulate; an empty delta resets the accumulator.
// Error events set the status label but preserve partial blocks for
// inspection.
func Fold(ev domain.StreamEvent, state TurnState, blockCap int) TurnState {
	if blockCap <= 0 {
		blockCap = DefaultBlockCap
	}

	switch ev.Kind {
	case domain.StreamText, domain.StreamToolCall, domain.StreamToolResult:
		blocks := ev.Blocks
		if len(blocks) > blockCap {
			// Drop oldest, keep newest.
			blocks = blocks[len(blocks)-blockCap:]
		}
		state.LiveBlocks = append([]domain.ContentBlock(nil), blocks...)
		state.LiveToolNames = pendingToolNames(state.LiveBlocks)
		if len(state.LiveToolNames) > 0 {
			state.Status = statusRunning + strings.Join(state.LiveToolNames, ", ")
		} else {
			state.Status = StatusThinking
		}

	case domain.StreamThinking:
		if ev.Delta == "" {
			state.LiveThinking = ""
		} else {
			state.LiveThinking += ev.Delta
		}

	case domain.StreamError:
		state.Status = StatusError
	}

	return state
}

// pendingToolNames returns the names of tool_call blocks lacking a later
// tool_result for the same call ID, in first-seen order.
func pendingToolNames(blocks []domain.ContentBlock) []string {
	resolved := make(map[string]bool)
	for _, b := range blocks {
		if b.Kind == domain.BlockToolResult && b.ForCallID != "" {
			resolved[b.ForCallID] = true
		}
	}

	var names []string
	seen := make(map[string]bool)
	for _, b := range blocks {
		if b.Kind != domain.BlockToolCall || resolved[b.ID] {
			continue
		}
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		names = append(names, b.Name)
	}
	return names
}
