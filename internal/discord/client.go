package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// Module provides the upstream Discord client for fx dependency injection
var Module = fx.Module("discord",
	fx.Provide(NewClient),
)

// Message page bounds accepted by Discord
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
	maxGuildPage        = 200
)

// MessageQuery selects a page of channel messages
type MessageQuery struct {
	Limit  int
	Before string
}

// Client forwards requests to the Discord REST API with a caller-supplied bot token.
// It keeps no per-token state; a discordgo session is built for every call.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new upstream client
func NewClient(cfg *config.DiscordConfig, logger zerolog.Logger) (*Client, error) {
	transport, err := newRewriteTransport(cfg.APIBase, http.DefaultTransport)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &statusTransport{next: transport},
		},
		logger: logger.With().Str("component", "discord").Logger(),
	}, nil
}

func (c *Client) session(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Client = c.httpClient
	session.StateEnabled = false
	// Failures go straight back to the caller
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0

	return session, nil
}

// ValidateToken fetches the identity behind token and checks it is a bot account
func (c *Client) ValidateToken(ctx context.Context, token string) (*types.BotTokenData, error) {
	token = strings.TrimSpace(token)

	session, err := c.session(token)
	if err != nil {
		return nil, err
	}

	ctx, status := trackStatus(ctx)
	user, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		err = classify(err, status.get())
		var upstream *UpstreamError
		if errors.As(err, &upstream) && upstream.Status != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w (discord status %d)", ErrInvalidToken, upstream.Status)
		}
		return nil, err
	}

	if !user.Bot {
		c.logger.Debug().Str("user_id", user.ID).Msg("rejected non-bot token")
		return nil, ErrNotBot
	}

	return &types.BotTokenData{
		Token:       token,
		BotID:       user.ID,
		BotUsername: user.Username,
		BotAvatar:   user.Avatar,
	}, nil
}

// Guilds returns the guilds the bot belongs to
func (c *Client) Guilds(ctx context.Context, token string) ([]types.Guild, error) {
	session, err := c.session(token)
	if err != nil {
		return nil, err
	}

	ctx, status := trackStatus(ctx)
	guilds, err := session.UserGuilds(maxGuildPage, "", "", false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, status.get())
	}

	guildList := make([]types.Guild, 0, len(guilds))
	for _, guild := range guilds {
		guildList = append(guildList, types.Guild{
			ID:          guild.ID,
			Name:        guild.Name,
			Icon:        guild.Icon,
			Owner:       guild.Owner,
			Permissions: strconv.FormatInt(guild.Permissions, 10),
		})
	}

	return guildList, nil
}

// Channels returns every channel of a guild, unfiltered
func (c *Client) Channels(ctx context.Context, token, guildID string) ([]types.Channel, error) {
	session, err := c.session(token)
	if err != nil {
		return nil, err
	}

	ctx, status := trackStatus(ctx)
	channels, err := session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, status.get())
	}

	channelList := make([]types.Channel, 0, len(channels))
	for _, channel := range channels {
		channelList = append(channelList, types.Channel{
			ID:       channel.ID,
			Name:     channel.Name,
			Type:     int(channel.Type),
			Position: channel.Position,
			ParentID: channel.ParentID,
			Topic:    channel.Topic,
		})
	}

	return channelList, nil
}

// FilterChannels keeps text and voice channels and orders them by position
func FilterChannels(channels []types.Channel) []types.Channel {
	filtered := make([]types.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel.Type == types.ChannelTypeText || channel.Type == types.ChannelTypeVoice {
			filtered = append(filtered, channel)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Position < filtered[j].Position
	})

	return filtered
}

// Messages returns a page of channel messages, newest first, as Discord sends them.
// Attachment and embed payloads are kept as raw JSON.
func (c *Client) Messages(ctx context.Context, token, channelID string, q MessageQuery) ([]types.Message, error) {
	session, err := c.session(token)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	if q.Before != "" {
		v.Set("before", q.Before)
	}

	ctx, status := trackStatus(ctx)
	endpoint := discordgo.EndpointChannelMessages(channelID)
	body, err := session.RequestWithBucketID(http.MethodGet, endpoint+"?"+v.Encode(), nil, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, status.get())
	}

	var messages []types.Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// NormalizeContent trims message content and rejects blank input
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// SendMessage posts trimmed content to a channel and returns the created message
func (c *Client) SendMessage(ctx context.Context, token, channelID, content string) (*types.Message, error) {
	content, err := NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	session, err := c.session(token)
	if err != nil {
		return nil, err
	}

	ctx, status := trackStatus(ctx)
	endpoint := discordgo.EndpointChannelMessages(channelID)
	body, err := session.RequestWithBucketID(http.MethodPost, endpoint, types.SendMessageRequest{Content: content}, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, status.get())
	}

	var message types.Message
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("failed to decode created message: %w", err)
	}

	c.logger.Debug().Str("channel_id", channelID).Str("message_id", message.ID).Msg("message sent")
	return &message, nil
}
