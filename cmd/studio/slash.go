package main

import (
	"context"
	"fmt"
	"strings"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/usecase"
)

// builtinSlash is the default slash-command middleware. It short-circuits a
// turn entirely: when a command matches, the injected assistant message is
// the whole response and no network call happens.
type builtinSlash struct {
	controller *usecase.Controller
}

const helpText = `Available commands:
/help          show this help
/mode <name>   switch mode (normal, code, design, plan, spec, ship, argument)`

// TryHandle implements domain.SlashHandler.
func (s *builtinSlash) TryHandle(_ context.Context, text string, inject func(domain.Message)) (bool, error) {
	if !strings.HasPrefix(text, "/") {
		return false, nil
	}
	fields := strings.Fields(text)
	switch fields[0] {
	case "/help":
		inject(domain.AssistantMessage(helpText, nil))
		return true, nil
	case "/mode":
		if len(fields) < 2 {
			inject(domain.AssistantMessage("Usage: /mode <name>", nil))
			return true, nil
		}
		mode := domain.ParseMode(fields[1])
		s.controller.SetUIMode(mode)
		inject(domain.AssistantMessage(fmt.Sprintf("Mode switched to %s.", mode), nil))
		return true, nil
	default:
		// Unknown slash commands fall through to the backend unchanged.
		return false, nil
	}
}

var _ domain.SlashHandler = (*builtinSlash)(nil)
