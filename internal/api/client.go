// Package api is the typed client the terminal UI uses to call the gateway routes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// TokenSource supplies the stored bot token
type TokenSource interface {
	Token() (string, bool)
}

// Client handles communication with the gateway
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new gateway client
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ValidateToken checks a candidate token and returns the bot identity
func (c *Client) ValidateToken(ctx context.Context, token string) (*types.BotTokenData, error) {
	var data types.BotTokenData
	body := types.ValidateTokenRequest{Token: strings.TrimSpace(token)}
	if err := c.do(ctx, "validate token", http.MethodPost, "/validate-token", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Guilds lists the guilds of the stored bot
func (c *Client) Guilds(ctx context.Context) ([]types.Guild, error) {
	var guilds []types.Guild
	if err := c.authorized(ctx, "list guilds", http.MethodGet, "/guilds", nil, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// Channels lists the text and voice channels of a guild, sorted by position
func (c *Client) Channels(ctx context.Context, guildID string) ([]types.Channel, error) {
	var channels []types.Channel
	path := "/guilds/" + url.PathEscape(guildID) + "/channels"
	if err := c.authorized(ctx, "list channels", http.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Messages fetches a newest-first page of channel messages.
// A zero limit leaves the gateway default; an empty before starts at the latest message.
func (c *Client) Messages(ctx context.Context, channelID string, limit int, before string) ([]types.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}

	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var messages []types.Message
	if err := c.authorized(ctx, "list messages", http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts content to a channel and returns the created message
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*types.Message, error) {
	var msg types.Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	body := types.SendMessageRequest{Content: content}
	if err := c.authorized(ctx, "send message", http.MethodPost, path, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) authorized(ctx context.Context, op, method, path string, body, out interface{}) error {
	token, ok := c.tokens.Token()
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrNoToken)
	}
	return c.do(ctx, op, method, path, token, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bot "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
