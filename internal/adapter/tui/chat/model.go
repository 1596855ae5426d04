package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/usecase"
)

// ModelDeps are dependencies injected into the chat model.
type ModelDeps struct {
	Controller *usecase.Controller
	Logger     *slog.Logger
	ModelName  string
}

// Model is the root Bubble Tea model for the chat surface.
type Model struct {
	deps ModelDeps

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	mdRenderer *glamour.TermRenderer
	mdWidth    int

	live    usecase.TurnState
	waiting bool
	failed  bool
	gen     uint64

	toast      string
	toastLevel domain.ToastLevel

	diagramPrompt string
	clarify       *domain.ClarificationPayload

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates the root chat model.
func NewModel(deps ModelDeps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	input := textarea.New()
	input.Placeholder = "Describe what to build, or /help"
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	return Model{
		deps:    deps,
		input:   input,
		spinner: s,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// sendCmd runs one turn on a background goroutine, reporting completion
// with the generation that started it.
func sendCmd(ctrl *usecase.Controller, text string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Send(context.Background(), usecase.SendRequest{Text: text})
		return TurnDoneMsg{Err: err, Gen: gen}
	}
}

// retryCmd re-sends the preserved last submission on a background goroutine.
func retryCmd(ctrl *usecase.Controller, gen uint64) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Retry(context.Background())
		return TurnDoneMsg{Err: err, Gen: gen}
	}
}

// regenerateCmd replaces the last assistant reply with a fresh turn.
func regenerateCmd(ctrl *usecase.Controller, gen uint64) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Regenerate(context.Background())
		return TurnDoneMsg{Err: err, Gen: gen}
	}
}

// toastExpireCmd clears the toast after the requested duration.
func toastExpireCmd(d time.Duration) tea.Cmd {
	if d <= 0 {
		d = 5 * time.Second
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return ToastExpiredMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refreshViewport(true)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.deps.Controller.Close()
			return m, tea.Quit
		case "esc":
			if m.diagramPrompt != "" || m.clarify != nil {
				m.diagramPrompt = ""
				m.clarify = nil
				return m, nil
			}
			m.deps.Controller.Cancel()
			return m, nil
		case "ctrl+r":
			if m.failed && !m.waiting {
				m.failed = false
				m.waiting = true
				m.gen++
				return m, retryCmd(m.deps.Controller, m.gen)
			}
		case "ctrl+g":
			if !m.waiting {
				m.waiting = true
				m.gen++
				return m, regenerateCmd(m.deps.Controller, m.gen)
			}
		case "enter":
			if m.diagramPrompt != "" {
				// Approve the diagram: the next turn carries the approval.
				source := m.diagramPrompt
				m.diagramPrompt = ""
				return m.startTurn("Approved. Continue with this diagram:\n```mermaid\n" + source + "\n```")
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m.startTurn(text)
		}

	case StateChangedMsg:
		m.live = msg.State
		m.refreshViewport(false)

	case ScrollMsg:
		m.viewport.GotoBottom()

	case TurnDoneMsg:
		if msg.Gen != m.gen {
			// Stale completion from a cancelled request.
			return m, nil
		}
		m.waiting = false
		if msg.Err != nil && !errors.Is(msg.Err, domain.ErrTurnActive) {
			m.deps.Logger.Warn("turn rejected", "error", msg.Err)
		}
		m.live = usecase.TurnState{}
		m.refreshViewport(true)

	case TurnFailedMsg:
		m.failed = true

	case ToastMsg:
		m.toast = msg.Payload.Message
		m.toastLevel = msg.Payload.Level
		cmds = append(cmds, toastExpireCmd(time.Duration(msg.Payload.DurationMS)*time.Millisecond))

	case ToastExpiredMsg:
		m.toast = ""

	case DiagramPromptMsg:
		m.diagramPrompt = msg.Source

	case ClarifyPromptMsg:
		payload := msg.Payload
		m.clarify = &payload

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// startTurn kicks off a Send for the given text with a fresh generation.
func (m Model) startTurn(text string) (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	m.waiting = true
	m.failed = false
	m.gen++
	m.clarify = nil
	return m, sendCmd(m.deps.Controller, text, m.gen)
}

func (m *Model) layout() {
	inputHeight := 5
	vpHeight := m.height - inputHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(m.width - 2)
}

// refreshViewport re-renders the transcript plus live state into the
// viewport. goBottom forces a scroll even outside the coalesced schedule.
func (m *Model) refreshViewport(goBottom bool) {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, msg := range m.deps.Controller.Transcript().Snapshot() {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n\n")
	}
	if live := m.renderLive(m.live); live != "" {
		sb.WriteString(live)
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(sb.String()))
	if goBottom {
		m.viewport.GotoBottom()
	}
}

// renderMarkdown renders assistant content through glamour, rebuilding the
// renderer when the viewport width changes. Falls back to the raw text when
// rendering fails.
func (m *Model) renderMarkdown(content string) string {
	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}
	if m.mdRenderer == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		m.mdRenderer = r
		m.mdWidth = width
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (m *Model) renderMessage(msg domain.Message) string {
	switch msg.Role {
	case domain.RoleUser:
		return userStyle.Render("you") + "  " + msg.Content
	default:
		return assistantStyle.Render("grump") + "\n" + m.renderMarkdown(msg.Content)
	}
}

// renderLive draws the in-progress assistant reply: thinking text, then
// blocks, then the status line.
func (m *Model) renderLive(s usecase.TurnState) string {
	if s.Status == "" && len(s.LiveBlocks) == 0 && s.LiveThinking == "" {
		return ""
	}
	var sb strings.Builder
	if s.LiveThinking != "" {
		sb.WriteString(thinkingStyle.Render(s.LiveThinking))
		sb.WriteString("\n")
	}
	for _, b := range s.LiveBlocks {
		switch b.Kind {
		case domain.BlockText:
			sb.WriteString(m.renderMarkdown(b.Content))
			sb.WriteString("\n")
		case domain.BlockToolCall:
			sb.WriteString(toolStyle.Render("⚙ " + b.Name))
			sb.WriteString("\n")
		case domain.BlockToolResult:
			sb.WriteString(toolStyle.Render("✓ done"))
			sb.WriteString("\n")
		}
	}
	if s.Status != "" {
		sb.WriteString(statusStyle.Render(s.Status))
	}
	return sb.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	var footer strings.Builder
	if m.waiting {
		footer.WriteString(m.spinner.View() + " ")
	}
	if m.toast != "" {
		style := toastInfoStyle
		if m.toastLevel == domain.ToastError {
			style = toastErrorStyle
		}
		footer.WriteString(style.Render(m.toast))
	} else if m.failed && !m.waiting {
		footer.WriteString(statusStyle.Render("ctrl+r retry"))
	} else if !m.waiting && m.deps.ModelName != "" {
		footer.WriteString(thinkingStyle.Render(m.deps.ModelName))
	}

	body := m.viewport.View()
	if m.diagramPrompt != "" {
		body = promptStyle.Render(
			"Diagram proposed:\n\n"+m.diagramPrompt+
				"\n\nenter approve · esc dismiss") + "\n" + body
	} else if m.clarify != nil {
		var qs strings.Builder
		for i, q := range m.clarify.Questions {
			fmt.Fprintf(&qs, "%d. %s\n", i+1, q)
		}
		body = promptStyle.Render(
			m.clarify.Intro+"\n\n"+qs.String()+
				"\nAnswer in the input below · esc dismiss") + "\n" + body
	}

	return body + "\n" + footer.String() + "\n" + m.input.View()
}
