// Interactive chat interface using bubbletea.
package main

import (
	"fmt"
	"strings"
	"time"

	"finsight/cmd/finsight/ui"
	"finsight/internal/types"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	kind    types.ResultKind
	time    time.Time
}

// Messages for tea updates
type (
	responseMsg types.ActionResult
	errorMsg    error
)

// chatModel is the main model for the interactive chat interface.
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	// Backend
	app   *app
	user  types.User
	users []types.User
}

func initChat(a *app) (chatModel, error) {
	users := a.data.Users()
	if len(users) == 0 {
		return chatModel{}, fmt.Errorf("no users in dataset")
	}
	user := users[0]
	if userID != "" {
		u, ok := a.data.UserByID(userID)
		if !ok {
			return chatModel{}, fmt.Errorf("unknown user %q", userID)
		}
		user = u
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about invoices... (Enter to send, Tab to switch user, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "| "
	ti.CharLimit = 1024
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	m := chatModel{
		textinput: ti,
		spinner:   sp,
		styles:    ui.DefaultStyles(),
		renderer:  renderer,
		app:       a,
		user:      user,
		users:     users,
	}
	m.history = append(m.history, chatMessage{
		role:    "assistant",
		content: a.assistant.Welcome(user),
		kind:    types.ResultOK,
		time:    time.Now(),
	})
	return m, nil
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyTab:
			// Cycle through the demo users; each keeps their own session.
			m = m.switchUser()
			m.refreshViewport()
			return m, nil

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textinput.Value())
			if input == "" || m.isLoading {
				return m, nil
			}
			if input == "/quit" || input == "/exit" {
				return m, tea.Quit
			}
			m.history = append(m.history, chatMessage{role: "user", content: input, time: time.Now()})
			m.textinput.Reset()
			m.isLoading = true
			m.refreshViewport()
			return m, tea.Batch(m.processTurn(input), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 3
		footerHeight := 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.textinput.Width = msg.Width - 4
		m.refreshViewport()

	case responseMsg:
		m.isLoading = false
		result := types.ActionResult(msg)
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: result.Response,
			kind:    result.Kind,
			time:    time.Now(),
		})
		m.refreshViewport()

	case errorMsg:
		m.isLoading = false
		m.err = msg

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) processTurn(input string) tea.Cmd {
	user := m.user
	return func() tea.Msg {
		return responseMsg(m.app.assistant.ProcessTurn(user, input))
	}
}

func (m chatModel) switchUser() chatModel {
	for i, u := range m.users {
		if u.ID == m.user.ID {
			m.user = m.users[(i+1)%len(m.users)]
			break
		}
	}
	m.history = append(m.history, chatMessage{
		role:    "assistant",
		content: m.app.assistant.Welcome(m.user),
		kind:    types.ResultOK,
		time:    time.Now(),
	})
	return m
}

func (m *chatModel) refreshViewport() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.history {
		if msg.role == "user" {
			b.WriteString(m.styles.UserLabel.Render("You: "))
			b.WriteString(msg.content)
		} else {
			b.WriteString(m.styles.BotLabel.Render("finsight: "))
			b.WriteString(m.renderResponse(msg))
		}
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *chatModel) renderResponse(msg chatMessage) string {
	content := msg.content
	switch msg.kind {
	case types.ResultDenied:
		return m.styles.Denied.Render(content)
	case types.ResultInvalid, types.ResultUnrecognized:
		return m.styles.Invalid.Render(content)
	}
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return strings.TrimSpace(rendered)
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := m.styles.Title.Render("finsight") +
		m.styles.ContextLine.Render(fmt.Sprintf("  %s (%s)", m.user.Name, m.user.Role))

	status := m.styles.ContextLine.Render(m.app.assistant.ContextSummary(m.user))
	if m.isLoading {
		status = m.spinner.View() + " thinking..."
	}

	help := m.styles.HelpBar.Render("Enter send - Tab switch user - Ctrl+C quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		title,
		m.styles.Viewport.Render(m.viewport.View()),
		status,
		m.textinput.View(),
		help,
	)
}

// runChat boots the pipeline and runs the interactive UI.
func runChat() error {
	a, err := boot()
	if err != nil {
		return err
	}
	defer a.close()

	model, err := initChat(a)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
