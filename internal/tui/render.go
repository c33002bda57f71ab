package tui

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/history"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

var (
	blurple    = lipgloss.Color("63")
	dimColor   = lipgloss.Color("245")
	textColor  = lipgloss.Color("255")
	errorColor = lipgloss.Color("203")

	authorStyle  = lipgloss.NewStyle().Foreground(textColor).Bold(true)
	metaStyle    = lipgloss.NewStyle().Foreground(dimColor)
	botBadge     = lipgloss.NewStyle().Background(blurple).Foreground(textColor).Padding(0, 1).Render("BOT")
	emptyStyle   = lipgloss.NewStyle().Foreground(dimColor).Italic(true)
	attachStyle  = lipgloss.NewStyle().Foreground(blurple)
	sectionStyle = lipgloss.NewStyle().Foreground(dimColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
)

// formatTimestamp shows only the time for messages from today
func formatTimestamp(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	t = t.In(now.Location())

	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

// guildInitials is the stand-in for a guild without an icon
func guildInitials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	initials := []rune(b.String())
	if len(initials) > 2 {
		initials = initials[:2]
	}
	return string(initials)
}

type attachment struct {
	Filename string `json:"filename"`
}

// attachmentNames extracts file names from the raw attachment list.
// Anything that is not a list of objects yields nothing.
func attachmentNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []attachment
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		if a.Filename != "" {
			names = append(names, a.Filename)
		}
	}
	return names
}

// splitChannels separates text and voice channels, keeping their order
func splitChannels(channels []types.Channel) (text, voice []types.Channel) {
	for _, ch := range channels {
		switch ch.Type {
		case types.ChannelTypeText:
			text = append(text, ch)
		case types.ChannelTypeVoice:
			voice = append(voice, ch)
		}
	}
	return text, voice
}

// orderedChannels is the order the channel pane lists channels in
func orderedChannels(channels []types.Channel) []types.Channel {
	text, voice := splitChannels(channels)
	return append(text, voice...)
}

func authorLine(msg types.Message, now time.Time) string {
	parts := []string{authorStyle.Render(msg.Author.Username)}
	if msg.Author.Bot {
		parts = append(parts, botBadge)
	}
	parts = append(parts, metaStyle.Render(formatTimestamp(msg.Timestamp, now)))
	return strings.Join(parts, " ")
}

// renderMessages lays out an oldest-first message list for the viewport
func renderMessages(messages []types.Message, width int, now time.Time) string {
	body := lipgloss.NewStyle().Foreground(textColor)
	if width > 0 {
		body = body.Width(width)
	}

	flags := history.HeaderFlags(messages)
	var b strings.Builder
	for i, msg := range messages {
		if flags[i] {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(authorLine(msg, now))
			b.WriteString("\n")
		}

		if msg.Content == "" {
			b.WriteString(emptyStyle.Render("No content"))
		} else {
			b.WriteString(body.Render(msg.Content))
		}
		b.WriteString("\n")

		for _, name := range attachmentNames(msg.Attachments) {
			b.WriteString(attachStyle.Render("📎 " + name))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
