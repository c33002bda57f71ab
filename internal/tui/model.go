// Package tui is the terminal front end: a token screen and a
// guild / channel / message screen driven by the orchestrator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/api"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/client"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

const (
	guildPaneWidth   = 22
	channelPaneWidth = 26
)

type screen int

const (
	screenLoading screen = iota
	screenToken
	screenMain
)

type focus int

const (
	focusGuilds focus = iota
	focusChannels
	focusComposer
)

// Orchestrator is the navigation state the model drives
type Orchestrator interface {
	Snapshot() client.State
	Mount(ctx context.Context) error
	Login(ctx context.Context, token string) error
	Logout() error
	SelectGuild(ctx context.Context, guildID string) error
	SelectChannel(ctx context.Context, channelID string) error
	LoadOlder(ctx context.Context) error
	SendMessage(ctx context.Context, content string) (*types.Message, error)
}

// opDoneMsg reports the completion of an orchestrator call
type opDoneMsg struct {
	op  string
	err error
}

type sentMsg struct {
	err error
}

// Run starts the terminal UI and blocks until the user quits
func Run(ctx context.Context, orch Orchestrator, logger zerolog.Logger) error {
	program := tea.NewProgram(NewModel(ctx, orch, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Model implements the terminal UI
type Model struct {
	ctx    context.Context
	orch   Orchestrator
	logger zerolog.Logger
	now    func() time.Time

	screen   screen
	focus    focus
	token    textinput.Model
	composer textinput.Model
	viewport viewport.Model

	state         client.State
	guildCursor   int
	channelCursor int
	shownChannel  string
	shownFirst    string
	shownCount    int

	pending int
	sending bool
	status  string
	width   int
	height  int
}

// NewModel creates the UI model; Init mounts the stored session
func NewModel(ctx context.Context, orch Orchestrator, logger zerolog.Logger) *Model {
	token := textinput.New()
	token.Placeholder = "Bot token"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'
	token.Width = 60

	composer := textinput.New()
	composer.Prompt = "› "
	composer.CharLimit = 2000

	return &Model{
		ctx:      ctx,
		orch:     orch,
		logger:   logger.With().Str("component", "tui").Logger(),
		now:      time.Now,
		token:    token,
		composer: composer,
		viewport: viewport.New(0, 0),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.run("mount", m.orch.Mount), textinput.Blink)
}

// run executes an orchestrator call off the UI goroutine
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.pending++
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(m.ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenToken:
			return m.updateToken(msg)
		case screenMain:
			return m.updateMain(msg)
		}
		return m, nil
	case opDoneMsg:
		m.pending--
		m.handleResult(msg.op, msg.err)
		return m, m.refresh()
	case sentMsg:
		m.pending--
		m.sending = false
		if msg.err != nil {
			m.status = describeError("send", msg.err)
		} else {
			m.composer.Reset()
			m.status = ""
		}
		return m, m.refresh()
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenToken:
		m.token, cmd = m.token.Update(msg)
	case screenMain:
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateToken(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.pending > 0 {
			return m, nil
		}
		value := strings.TrimSpace(m.token.Value())
		if value == "" {
			m.status = "Please enter a bot token"
			return m, nil
		}
		m.status = ""
		return m, m.run("login", func(ctx context.Context) error {
			return m.orch.Login(ctx, value)
		})
	case tea.KeyCtrlT:
		if m.token.EchoMode == textinput.EchoPassword {
			m.token.EchoMode = textinput.EchoNormal
		} else {
			m.token.EchoMode = textinput.EchoPassword
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.token, cmd = m.token.Update(msg)
	return m, cmd
}

func (m *Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		m.setFocus((m.focus + 1) % 3)
		return m, nil
	case tea.KeyShiftTab:
		m.setFocus((m.focus + 2) % 3)
		return m, nil
	case tea.KeyCtrlL:
		if err := m.orch.Logout(); err != nil {
			m.status = describeError("logout", err)
		}
		m.composer.Reset()
		return m, m.refresh()
	case tea.KeyCtrlO:
		return m, m.run("older", m.orch.LoadOlder)
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch m.focus {
	case focusGuilds:
		return m, m.updateGuildPane(msg)
	case focusChannels:
		return m, m.updateChannelPane(msg)
	}

	if msg.Type == tea.KeyEnter {
		return m, m.send()
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) updateGuildPane(msg tea.KeyMsg) tea.Cmd {
	guilds := m.state.Guilds
	switch msg.String() {
	case "up", "k":
		m.guildCursor = clamp(m.guildCursor-1, len(guilds))
	case "down", "j":
		m.guildCursor = clamp(m.guildCursor+1, len(guilds))
	case "enter":
		if len(guilds) == 0 {
			return nil
		}
		id := guilds[m.guildCursor].ID
		return m.run("select guild", func(ctx context.Context) error {
			return m.orch.SelectGuild(ctx, id)
		})
	}
	return nil
}

func (m *Model) updateChannelPane(msg tea.KeyMsg) tea.Cmd {
	channels := orderedChannels(m.state.Channels)
	switch msg.String() {
	case "up", "k":
		m.channelCursor = clamp(m.channelCursor-1, len(channels))
	case "down", "j":
		m.channelCursor = clamp(m.channelCursor+1, len(channels))
	case "enter":
		if len(channels) == 0 {
			return nil
		}
		ch := channels[m.channelCursor]
		if ch.Type != types.ChannelTypeText {
			m.status = "Voice channels have no text chat here"
			return nil
		}
		m.setFocus(focusComposer)
		return m.run("select channel", func(ctx context.Context) error {
			return m.orch.SelectChannel(ctx, ch.ID)
		})
	}
	return nil
}

// send keeps the composer text until the message is confirmed
func (m *Model) send() tea.Cmd {
	content := strings.TrimSpace(m.composer.Value())
	if content == "" || m.sending {
		return nil
	}
	m.sending = true
	m.pending++
	return func() tea.Msg {
		_, err := m.orch.SendMessage(m.ctx, content)
		return sentMsg{err: err}
	}
}

func (m *Model) handleResult(op string, err error) {
	switch {
	case err == nil:
		if op != "older" {
			m.status = ""
		}
	case errors.Is(err, client.ErrSuperseded):
		m.logger.Debug().Str("op", op).Msg("Result superseded")
	case op == "login":
		m.status = describeLoginError(err)
	default:
		m.status = describeError(op, err)
	}
	if err != nil && !errors.Is(err, client.ErrSuperseded) {
		m.logger.Warn().Err(err).Str("op", op).Msg("Operation failed")
	}
}

// refresh pulls a new snapshot and switches screens accordingly
func (m *Model) refresh() tea.Cmd {
	m.state = m.orch.Snapshot()

	var cmd tea.Cmd
	switch {
	case !m.state.Authenticated && (m.pending == 0 || m.screen == screenMain):
		if m.screen != screenToken {
			m.screen = screenToken
			m.token.Reset()
			m.composer.Blur()
			cmd = m.token.Focus()
		}
	case m.state.Authenticated && m.screen != screenMain:
		m.screen = screenMain
		m.token.Reset()
		m.token.Blur()
		m.setFocus(focusComposer)
		cmd = m.composer.Focus()
	}

	m.syncCursors()
	m.syncViewport()
	return cmd
}

func (m *Model) syncCursors() {
	for i, g := range m.state.Guilds {
		if g.ID == m.state.SelectedGuild {
			m.guildCursor = i
		}
	}
	m.guildCursor = clamp(m.guildCursor, len(m.state.Guilds))

	channels := orderedChannels(m.state.Channels)
	for i, ch := range channels {
		if ch.ID == m.state.SelectedChannel {
			m.channelCursor = i
		}
	}
	m.channelCursor = clamp(m.channelCursor, len(channels))
}

// syncViewport re-renders messages, staying at the top after older
// messages were prepended and at the bottom otherwise
func (m *Model) syncViewport() {
	messages := m.state.Messages
	m.viewport.SetContent(renderMessages(messages, m.viewport.Width, m.now()))

	first := ""
	if len(messages) > 0 {
		first = messages[0].ID
	}
	prepended := m.state.SelectedChannel == m.shownChannel && first != m.shownFirst && len(messages) > m.shownCount
	switch {
	case prepended:
		m.viewport.GotoTop()
	case m.state.SelectedChannel != m.shownChannel || len(messages) != m.shownCount:
		m.viewport.GotoBottom()
	}

	m.shownChannel = m.state.SelectedChannel
	m.shownFirst = first
	m.shownCount = len(messages)
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusComposer {
		m.composer.Focus()
	} else {
		m.composer.Blur()
	}
}

func (m *Model) resize() {
	mainWidth := m.width - guildPaneWidth - channelPaneWidth - 2
	if mainWidth < 20 {
		mainWidth = 20
	}
	height := m.height - 4
	if height < 3 {
		height = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = height
	m.composer.Width = mainWidth - 3
	m.viewport.SetContent(renderMessages(m.state.Messages, mainWidth, m.now()))
}

func (m *Model) View() string {
	switch m.screen {
	case screenToken:
		return m.viewToken()
	case screenMain:
		return m.viewMain()
	}
	return "Loading..."
}

func (m *Model) viewToken() string {
	title := authorStyle.Render("Discord Bot Client")
	lines := []string{
		title,
		metaStyle.Render("Enter your Discord bot token to get started"),
		"",
		m.token.View(),
		"",
	}
	if m.pending > 0 {
		lines = append(lines, metaStyle.Render("Validating..."))
	} else if m.status != "" {
		lines = append(lines, errorStyle.Render(m.status))
	}
	lines = append(lines, "", metaStyle.Render("enter validate · ctrl+t show/hide · ctrl+c quit"))

	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(blurple).Padding(1, 2)
	content := box.Render(strings.Join(lines, "\n"))
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) viewMain() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.channelHeader(),
		m.viewport.View(),
		m.composer.View(),
		m.statusLine(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderGuilds(), m.renderChannels(), main)
}

func (m *Model) paneStyle(width int, focused bool) lipgloss.Style {
	style := lipgloss.NewStyle().Width(width).Height(max(m.height-2, 1)).
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(dimColor)
	if focused {
		style = style.BorderForeground(blurple)
	}
	return style
}

func (m *Model) renderGuilds() string {
	lines := []string{sectionStyle.Render("SERVERS")}
	for i, g := range m.state.Guilds {
		label := fmt.Sprintf("[%s] %s", guildInitials(g.Name), g.Name)
		lines = append(lines, m.itemLine(label, i == m.guildCursor, g.ID == m.state.SelectedGuild, m.focus == focusGuilds))
	}
	if m.state.Identity != nil {
		lines = append(lines, "", metaStyle.Render("@"+m.state.Identity.BotUsername))
	}
	return m.paneStyle(guildPaneWidth, m.focus == focusGuilds).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderChannels() string {
	text, voice := splitChannels(m.state.Channels)
	var lines []string
	index := 0
	section := func(title, prefix string, channels []types.Channel) {
		if len(channels) == 0 {
			return
		}
		lines = append(lines, sectionStyle.Render(title))
		for _, ch := range channels {
			lines = append(lines, m.itemLine(prefix+ch.Name, index == m.channelCursor, ch.ID == m.state.SelectedChannel, m.focus == focusChannels))
			index++
		}
		lines = append(lines, "")
	}
	section("TEXT CHANNELS", "# ", text)
	section("VOICE CHANNELS", "🔊 ", voice)
	if len(lines) == 0 {
		lines = []string{metaStyle.Render("No channels")}
	}
	return m.paneStyle(channelPaneWidth, m.focus == focusChannels).Render(strings.Join(lines, "\n"))
}

func (m *Model) itemLine(label string, cursor, selected, focused bool) string {
	style := metaStyle
	if selected {
		style = authorStyle
	}
	prefix := "  "
	if cursor && focused {
		prefix = "› "
	}
	return style.Render(prefix + label)
}

func (m *Model) channelHeader() string {
	for _, ch := range m.state.Channels {
		if ch.ID == m.state.SelectedChannel {
			header := authorStyle.Render("# " + ch.Name)
			if ch.Topic != "" {
				header += metaStyle.Render(" | " + ch.Topic)
			}
			return header
		}
	}
	return metaStyle.Render("Select a channel to start viewing messages")
}

func (m *Model) statusLine() string {
	if m.status != "" {
		return errorStyle.Render(m.status)
	}
	hints := "tab focus · enter select/send · ctrl+o older · ctrl+l logout · ctrl+c quit"
	if m.pending > 0 {
		hints = "loading... · " + hints
	}
	return metaStyle.Render(hints)
}

func describeLoginError(err error) string {
	switch {
	case errors.Is(err, client.ErrEmptyToken):
		return "Please enter a bot token"
	case errors.Is(err, api.ErrNotBot):
		return "This token is not a bot token. Only bot accounts are supported."
	case errors.Is(err, api.ErrInvalidToken), errors.Is(err, api.ErrUnauthorized):
		return "Invalid bot token. Please check your token and try again."
	}
	return "Failed to validate token. Please try again."
}

func describeError(op string, err error) string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr) && errors.Is(err, api.ErrRateLimited):
		if apiErr.RetryAfter > 0 {
			return fmt.Sprintf("Rate limited, retry in %s", apiErr.RetryAfter.Round(time.Second))
		}
		return "Rate limited, retry later"
	case errors.Is(err, api.ErrUnauthorized):
		return "Token rejected. Press ctrl+l to log out and enter a new one."
	case errors.Is(err, api.ErrEmptyContent):
		return "Message is empty"
	case errors.Is(err, client.ErrNoChannel):
		return "Select a channel first"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Failed to %s (status %d)", op, apiErr.Status)
	}
	return fmt.Sprintf("Failed to %s", op)
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
