package types

import (
	"encoding/json"
	"time"
)

// Channel types shown in the channel list
const (
	ChannelTypeText  = 0
	ChannelTypeVoice = 2
)

// BotTokenData is the authenticated bot identity kept by the token store
type BotTokenData struct {
	Token       string `json:"token"`
	BotID       string `json:"botId"`
	BotUsername string `json:"botUsername"`
	BotAvatar   string `json:"botAvatar,omitempty"`
}

// Guild represents a Discord guild the bot is a member of
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Owner       bool   `json:"owner"`
	Permissions string `json:"permissions"`
}

// Channel represents a Discord guild channel
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Position int    `json:"position"`
	ParentID string `json:"parent_id,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// Author is the user that wrote a message
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

// Message represents a Discord channel message.
// Attachments and Embeds are forwarded as-is without interpretation.
type Message struct {
	ID              string          `json:"id"`
	ChannelID       string          `json:"channel_id,omitempty"`
	Content         string          `json:"content"`
	Author          Author          `json:"author"`
	Timestamp       string          `json:"timestamp"`
	EditedTimestamp string          `json:"edited_timestamp,omitempty"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
	Embeds          json.RawMessage `json:"embeds,omitempty"`
}

// Time parses the message timestamp
func (m Message) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// Error codes carried in ErrorResponse
const (
	CodeMissingToken  = "missing_token"
	CodeInvalidToken  = "invalid_token"
	CodeNotBot        = "not_bot"
	CodeEmptyContent  = "empty_content"
	CodeBadRequest    = "bad_request"
	CodeUpstreamError = "upstream_error"
	CodeRateLimited   = "rate_limited"
	CodeInternal      = "internal"
)

// ErrorResponse is the body of every non-success gateway response
type ErrorResponse struct {
	Error      string  `json:"error"`
	Code       string  `json:"code"`
	RetryAfter float64 `json:"retryAfter,omitempty"` // seconds
}

// ValidateTokenRequest is the body of POST /validate-token
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// SendMessageRequest is the body of POST /channels/{channelId}/messages
type SendMessageRequest struct {
	Content string `json:"content"`
}
