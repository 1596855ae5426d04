package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/infra/tracer"
)

// Phase is the turn controller's state machine position.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseFinalizing
)

// String returns the phase label.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// EmptyResponsePlaceholder is persisted in place of a truly empty assistant
// reply so the conversation log is never silently missing a turn.
const EmptyResponsePlaceholder = "(The model returned an empty response. This can happen on timeouts. Try sending your message again.)"

// diagramTriggerDelay lets the chat surface render the finalized text before
// the approval workflow opens.
const diagramTriggerDelay = 300 * time.Millisecond

// defaultMemoryTimeout bounds the advisory memory-context fetch. On expiry
// the turn proceeds with empty context rather than blocking.
const defaultMemoryTimeout = 1500 * time.Millisecond

// ControllerDeps holds injected dependencies for a turn controller. Only
// Transport is required; every other collaborator degrades to a no-op when
// nil, and collaborator failures never abort a turn.
type ControllerDeps struct {
	Transport domain.Transport
	Store     domain.SessionStore
	Slash     domain.SlashHandler
	Memory    domain.MemoryProvider
	Telemetry domain.Telemetry
	Notifier  domain.Notifier
	Bus       domain.EventBus
	Logger    *slog.Logger
	Workspace domain.WorkspaceContext

	BlockCap      int           // 0 = DefaultBlockCap
	MemoryTimeout time.Duration // 0 = defaultMemoryTimeout
	FrameInterval time.Duration // 0 = one 60Hz frame
}

// SendRequest is one user submission.
type SendRequest struct {
	Text  string
	Image *domain.Attachment

	// ModeOverride is used verbatim by sub-workflows such as "build this
	// section". Empty means resolve normally.
	ModeOverride domain.Mode

	// Outgoing, when non-nil, replaces the transcript snapshot as the
	// message list sent to the transport.
	Outgoing []domain.Message

	// SkipDetectors opts this turn out of post-turn protocol detection.
	SkipDetectors bool
}

// Controller orchestrates one conversation view's turns: it appends the
// user message, resolves the mode, drives the stream through the reducer,
// finalizes the assistant message, and hands final text to the detectors.
// At most one turn is active at a time; a Send during an active turn is
// rejected outright, never queued.
type Controller struct {
	deps       ControllerDeps
	transcript *Transcript
	state      *StateHolder
	guard      *LifecycleGuard
	scroll     *ScrollScheduler
	classifier *ErrorClassifier

	phase atomic.Int32

	mu           sync.Mutex
	uiMode       domain.Mode
	convMode     domain.Mode
	lastUserText string
}

// NewController creates a controller for one open conversation view.
func NewController(deps ControllerDeps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BlockCap <= 0 {
		deps.BlockCap = DefaultBlockCap
	}
	if deps.MemoryTimeout <= 0 {
		deps.MemoryTimeout = defaultMemoryTimeout
	}

	c := &Controller{
		deps:       deps,
		transcript: NewTranscript(deps.Store, deps.Logger),
		state:      NewStateHolder(),
		guard:      NewLifecycleGuard(),
		classifier: NewErrorClassifier(),
		uiMode:     domain.ModeNormal,
	}
	c.scroll = NewScrollScheduler(deps.FrameInterval, func() {
		c.publish(domain.EventScrollRequested, nil)
	})
	return c
}

// Transcript exposes the conversation log for the rendering layer.
func (c *Controller) Transcript() *Transcript { return c.transcript }

// State exposes the observable live turn state.
func (c *Controller) State() *StateHolder { return c.state }

// Phase returns the current state machine position.
func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

// LastUserText returns the text preserved for one-click retry.
func (c *Controller) LastUserText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUserText
}

// SetUIMode records the user's high-level mode selection.
func (c *Controller) SetUIMode(m domain.Mode) {
	c.mu.Lock()
	c.uiMode = m
	c.mu.Unlock()
	c.publish(domain.EventModeSwitched, map[string]string{"mode": string(m)})
}

// SetConversationMode records the conversation-level workflow mode, which
// persists across turns until explicitly changed.
func (c *Controller) SetConversationMode(m domain.Mode) {
	c.mu.Lock()
	c.convMode = m
	c.mu.Unlock()
}

// SetSlashHandler replaces the slash-command middleware. Used by shells
// whose middleware needs a reference back to the controller.
func (c *Controller) SetSlashHandler(h domain.SlashHandler) {
	c.deps.Slash = h
}

// Send runs one full turn. It blocks until the turn reaches idle again;
// callers that need a live UI run it on their own goroutine, exactly one at
// a time. An empty submission with no image is a silent no-op. A Send while
// a turn is active returns ErrTurnActive without queueing.
func (c *Controller) Send(ctx context.Context, req SendRequest) error {
	if strings.TrimSpace(req.Text) == "" && req.Image == nil {
		return nil
	}
	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseSending)) {
		return domain.NewDomainError("Controller.Send", domain.ErrTurnActive, "")
	}
	defer c.phase.Store(int32(PhaseIdle))

	ctx, span := tracer.StartSpan(ctx, "controller.send",
		trace.WithAttributes(tracer.IntAttr("text.length", len(req.Text))),
	)
	defer span.End()

	c.mu.Lock()
	c.lastUserText = req.Text
	c.mu.Unlock()

	c.track(func(t domain.Telemetry) { t.TrackMessageSent(len(req.Text)) })

	c.transcript.SetDeferring(true)
	c.transcript.Append(ctx, domain.UserMessage(req.Text))

	// Slash-command middleware gets first right of refusal, before any
	// network call. A handling middleware fully short-circuits the turn.
	if handled := c.trySlash(ctx, req.Text); handled {
		c.transcript.SetDeferring(false)
		c.transcript.Flush(ctx)
		return nil
	}

	return c.runTurn(ctx, req)
}

// Retry re-invokes Send with the preserved last user text.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	text := c.lastUserText
	c.mu.Unlock()
	if text == "" {
		return nil
	}

	// The failed attempt already appended this user message; drop it so
	// the retried turn does not duplicate it.
	c.transcript.DropLast(domain.RoleUser)
	return c.Send(ctx, SendRequest{Text: text})
}

// Regenerate removes the last assistant message and runs a fresh turn over
// the same outgoing list. The old message is replaced by the new turn's
// result, never mutated.
func (c *Controller) Regenerate(ctx context.Context) error {
	if _, ok := c.transcript.DropLast(domain.RoleAssistant); !ok {
		return nil
	}
	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseSending)) {
		return domain.NewDomainError("Controller.Regenerate", domain.ErrTurnActive, "")
	}
	defer c.phase.Store(int32(PhaseIdle))

	c.transcript.SetDeferring(true)
	return c.runTurn(ctx, SendRequest{})
}

// Cancel aborts the in-flight turn. Safe to call when idle and safe to call
// repeatedly. No state mutation happens after cancellation and no partial
// assistant message is persisted.
func (c *Controller) Cancel() {
	c.guard.Cancel()
}

// Close tears the controller down: cancels any in-flight turn and suppresses
// every later callback. Used on view unmount.
func (c *Controller) Close() {
	c.guard.Close()
	c.scroll.Stop()
}

// runTurn drives the transport stream through the reducer and finalizes.
// Callers have already placed the state machine in PhaseSending and enabled
// deferred persistence.
func (c *Controller) runTurn(ctx context.Context, req SendRequest) error {
	// A torn-down view refuses the turn before touching live state or the
	// network.
	if !c.guard.Mounted() {
		c.transcript.SetDeferring(false)
		return nil
	}

	outgoing := req.Outgoing
	if outgoing == nil {
		outgoing = c.transcript.Snapshot()
	}

	c.mu.Lock()
	uiMode, convMode := c.uiMode, c.convMode
	c.mu.Unlock()
	mode := ResolveMode(req.ModeOverride, convMode, uiMode, outgoing)

	opts := domain.TurnOptions{
		Mode:          mode,
		SessionType:   c.deps.Workspace.SessionType,
		WorkspaceRoot: c.deps.Workspace.WorkspaceRoot,
		Provider:      c.deps.Workspace.Provider,
		ModelID:       c.deps.Workspace.ModelID,
		Image:         req.Image,
		SkillIDs:      c.deps.Workspace.SkillIDs,
		MemoryContext: c.fetchMemoryContext(ctx, req.Text),
	}

	c.state.Set(TurnState{Status: StatusThinking})
	c.publish(domain.EventTurnStarted, map[string]string{"mode": string(mode)})

	events, abort, err := c.deps.Transport.StartTurn(ctx, outgoing, opts)
	if err != nil {
		c.failTurn(ctx, mode, err)
		return nil
	}

	gen, ok := c.guard.Begin(abort)
	if !ok {
		// View tore down between Send and stream start.
		abort.Cancel()
		return nil
	}
	defer c.guard.End(gen)

	c.phase.Store(int32(PhaseStreaming))

	state := c.state.Get()
	var streamErr string
	for ev := range events {
		if !c.guard.Alive(gen) {
			c.cancelTurn()
			return nil
		}
		state = Fold(ev, state, c.deps.BlockCap)
		if ev.Kind == domain.StreamError {
			streamErr = ev.Err
		}
		c.state.Set(state)
		c.scroll.Request()
	}

	if !c.guard.Alive(gen) {
		c.cancelTurn()
		return nil
	}
	if streamErr != "" {
		c.failTurn(ctx, mode, domain.NewDomainError("Transport.Stream", domain.ErrTransport, streamErr))
		return nil
	}
	if err := ctx.Err(); err != nil {
		c.cancelTurn()
		return nil
	}

	c.finalizeTurn(ctx, state, req.SkipDetectors)
	return nil
}

// finalizeTurn flattens the live blocks into the persisted assistant
// message, flushes the transcript, clears live state, and runs the
// detectors.
func (c *Controller) finalizeTurn(ctx context.Context, state TurnState, skipDetectors bool) {
	c.phase.Store(int32(PhaseFinalizing))

	_, span := tracer.StartSpan(ctx, "controller.finalize")
	defer span.End()

	text := domain.FlattenBlocks(state.LiveBlocks)
	if text == "" {
		// Never persist true emptiness.
		text = EmptyResponsePlaceholder
	}
	c.transcript.Append(ctx, domain.AssistantMessage(text, state.LiveBlocks))
	c.transcript.SetDeferring(false)
	c.transcript.Flush(ctx)

	c.state.Reset()
	c.publish(domain.EventTurnFinalized, nil)

	if !skipDetectors {
		c.runDetectors(text)
	}
}

// runDetectors checks the finalized text for embedded sub-protocols.
// Diagram first; questions only when no diagram matched.
func (c *Controller) runDetectors(text string) {
	if source, ok := DetectDiagram(text); ok {
		time.AfterFunc(diagramTriggerDelay, func() {
			if !c.guard.Mounted() {
				return
			}
			c.publish(domain.EventDiagramApprovalReq, domain.DiagramApprovalPayload{Source: source})
		})
		return
	}
	if q, ok := DetectNumberedQuestions(text); ok {
		c.publish(domain.EventClarificationReq, domain.ClarificationPayload{
			Intro:     q.Intro,
			Questions: q.Questions,
			Outro:     q.Outro,
		})
	}
}

// failTurn classifies the error, surfaces a toast, reports telemetry, and
// returns to idle keeping the last user text for retry. The transcript is
// not flushed: a failed turn leaves the persisted log unchanged.
func (c *Controller) failTurn(ctx context.Context, mode domain.Mode, err error) {
	_, span := tracer.StartSpan(ctx, "controller.fail",
		trace.WithAttributes(tracer.StringAttr("mode", string(mode))),
	)
	defer span.End()
	tracer.RecordError(span, err)

	cls := c.classifier.Classify(err)

	st := c.state.Get()
	st.Status = StatusError
	c.state.Set(st)

	c.deps.Logger.Error("turn failed",
		"mode", string(mode),
		"retryable", cls.Retryable,
		"error", err,
	)
	c.track(func(t domain.Telemetry) {
		t.TrackError("turn", err.Error())
		t.LogError("turn_failed", map[string]string{"mode": string(mode)})
	})

	level := domain.ToastError
	if cls.Retryable {
		level = domain.ToastInfo
	}
	if c.deps.Notifier != nil {
		c.deps.Notifier.ShowToast(cls.UserMessage, level, 6*time.Second)
	}

	c.publish(domain.EventTurnFailed, domain.TurnFailedPayload{
		Message:   cls.UserMessage,
		Retryable: cls.Retryable,
		Mode:      mode,
	})

	// Live blocks are NOT cleared here: partial output stays visible for
	// inspection until the next turn starts.
	c.transcript.SetDeferring(false)
}

// cancelTurn clears live state after an explicit cancel or teardown.
// Nothing is persisted and, when the view is unmounted, nothing further is
// published.
func (c *Controller) cancelTurn() {
	c.transcript.SetDeferring(false)
	if !c.guard.Mounted() {
		return
	}
	c.state.Reset()
	c.publish(domain.EventTurnCancelled, nil)
}

// trySlash offers the submission to the slash-command middleware. Panics
// and errors are swallowed; a broken middleware never aborts a turn.
func (c *Controller) trySlash(ctx context.Context, text string) (handled bool) {
	if c.deps.Slash == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.deps.Logger.Warn("slash middleware panicked", "panic", r)
			handled = false
		}
	}()

	handled, err := c.deps.Slash.TryHandle(ctx, text, func(msg domain.Message) {
		c.transcript.Append(ctx, msg)
	})
	if err != nil {
		c.deps.Logger.Warn("slash middleware error", "error", err)
		return false
	}
	return handled
}

// fetchMemoryContext retrieves advisory snippets under a hard timeout.
// Timeout or failure yields empty context; the turn never blocks on memory.
func (c *Controller) fetchMemoryContext(ctx context.Context, query string) []domain.MemorySnippet {
	if c.deps.Memory == nil {
		return nil
	}
	mctx, cancel := context.WithTimeout(ctx, c.deps.MemoryTimeout)
	defer cancel()

	snippets, err := c.deps.Memory.ListMemories(mctx, query, 8)
	if err != nil {
		c.deps.Logger.Debug("memory fetch skipped", "error", err)
		return nil
	}
	return snippets
}

// publish sends an event on the bus, JSON-encoding the payload. No-op
// without a bus.
func (c *Controller) publish(t domain.EventType, payload any) {
	if c.deps.Bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.deps.Logger.Warn("event payload marshal failed", "type", string(t), "error", err)
		} else {
			raw = b
		}
	}
	c.deps.Bus.Publish(context.Background(), domain.Event{
		Type:           t,
		Timestamp:      time.Now(),
		ConversationID: c.transcript.SessionID(),
		Payload:        raw,
	})
}

// track invokes a telemetry call, recovering panics so telemetry can never
// throw into the engine's control flow.
func (c *Controller) track(fn func(domain.Telemetry)) {
	if c.deps.Telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.deps.Logger.Warn("telemetry panicked", "panic", r)
		}
	}()
	fn(c.deps.Telemetry)
}
