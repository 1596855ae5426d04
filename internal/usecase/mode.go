package usecase

import (
	"strings"

	"grumpstudio/internal/domain"
)

// recentWindow is how many trailing messages the build-context heuristic
// scans.
const recentWindow = 4

// buildKeywords are phrases that indicate an in-progress code-build context.
// Any hit in the recent messages resolves ModeNormal to ModeCode.
var buildKeywords = []string{
	"create files",
	"implement",
	"write the code",
	"build this",
	"running tool",
	"tool call",
	"edit the file",
	"scaffold",
}

// ResolveMode maps the UI mode selection plus conversation heuristics to the
// wire-level mode sent to the backend.
//
// Precedence is last-write-wins and deliberately heuristic: a per-turn
// override is used verbatim (sub-workflows like "build this section" pass
// one); an argument conversation stays in argument; a non-normal UI mode is
// used directly; otherwise recent messages are scanned for build keywords
// and the result is code or normal. Deterministic given the same inputs,
// nothing more.
func ResolveMode(override, convMode, uiMode domain.Mode, recent []domain.Message) domain.Mode {
	if override != "" {
		return override
	}
	if convMode == domain.ModeArgument {
		return domain.ModeArgument
	}
	if uiMode != "" && uiMode != domain.ModeNormal {
		return uiMode
	}

	start := len(recent) - recentWindow
	if start < 0 {
		start = 0
	}
	for _, msg := range recent[start:] {
		text := strings.ToLower(msg.Content)
		for _, kw := range buildKeywords {
			if strings.Contains(text, kw) {
				return domain.ModeCode
			}
		}
	}
	return domain.ModeNormal
}
