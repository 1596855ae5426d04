package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/usecase"
)

// Run starts the chat surface and blocks until it exits. It bridges the
// controller's state holder and the event bus into the Bubble Tea message
// loop; all unsubscriptions happen on return.
func Run(ctrl *usecase.Controller, bus domain.EventBus, logger *slog.Logger, modelName string) error {
	p := tea.NewProgram(NewModel(ModelDeps{
		Controller: ctrl,
		Logger:     logger,
		ModelName:  modelName,
	}), tea.WithAltScreen())

	unsubState := ctrl.State().Subscribe(func(s usecase.TurnState) {
		p.Send(StateChangedMsg{State: s})
	})
	defer unsubState()

	unsubs := []func(){
		bus.Subscribe(domain.EventScrollRequested, func(context.Context, domain.Event) {
			p.Send(ScrollMsg{})
		}),
		bus.Subscribe(domain.EventTurnFailed, func(_ context.Context, ev domain.Event) {
			var payload domain.TurnFailedPayload
			if err := json.Unmarshal(ev.Payload, &payload); err == nil {
				p.Send(TurnFailedMsg{Payload: payload})
			}
		}),
		bus.Subscribe(domain.EventToastShown, func(_ context.Context, ev domain.Event) {
			var payload domain.ToastPayload
			if err := json.Unmarshal(ev.Payload, &payload); err == nil {
				p.Send(ToastMsg{Payload: payload})
			}
		}),
		bus.Subscribe(domain.EventDiagramApprovalReq, func(_ context.Context, ev domain.Event) {
			var payload domain.DiagramApprovalPayload
			if err := json.Unmarshal(ev.Payload, &payload); err == nil {
				p.Send(DiagramPromptMsg{Source: payload.Source})
			}
		}),
		bus.Subscribe(domain.EventClarificationReq, func(_ context.Context, ev domain.Event) {
			var payload domain.ClarificationPayload
			if err := json.Unmarshal(ev.Payload, &payload); err == nil {
				p.Send(ClarifyPromptMsg{Payload: payload})
			}
		}),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	_, err := p.Run()
	return err
}
