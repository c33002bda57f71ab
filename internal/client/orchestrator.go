// Package client holds the navigation state of the terminal client:
// token, guild list, selected guild, channel list, selected channel and messages.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/api"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/history"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/tokenstore"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// PageSize is the number of messages requested per page
const PageSize = 50

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoChannel        = errors.New("no channel selected")
	ErrEmptyToken       = errors.New("token is empty")

	// ErrSuperseded is returned by a load whose result was discarded
	// because a newer navigation action started meanwhile
	ErrSuperseded = errors.New("superseded by a newer request")
)

// API is the gateway access the orchestrator needs
type API interface {
	ValidateToken(ctx context.Context, token string) (*types.BotTokenData, error)
	Guilds(ctx context.Context) ([]types.Guild, error)
	Channels(ctx context.Context, guildID string) ([]types.Channel, error)
	Messages(ctx context.Context, channelID string, limit int, before string) ([]types.Message, error)
	SendMessage(ctx context.Context, channelID, content string) (*types.Message, error)
}

// State is a point-in-time copy of the navigation state
type State struct {
	Authenticated   bool
	Identity        *types.BotTokenData
	Guilds          []types.Guild
	SelectedGuild   string
	Channels        []types.Channel
	SelectedChannel string
	Messages        []types.Message // oldest first
	HasOlder        bool
	Busy            bool
}

// generations fence async results. Each counter is bumped by the actions
// that make an in-flight result of that kind stale.
type generations struct {
	session uint64 // login, logout
	guilds  uint64 // guild list and guild selection
	channel uint64 // channel selection
}

// Orchestrator owns the navigation state and sequences gateway calls
type Orchestrator struct {
	api    API
	tokens tokenstore.TokenStore
	logger zerolog.Logger

	mu    sync.Mutex
	state State
	gen   generations
	busy  int
}

// New creates an orchestrator in the unauthenticated state
func New(a API, tokens tokenstore.TokenStore, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		api:    a,
		tokens: tokens,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Snapshot returns a copy of the current state
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.state
	s.Guilds = append([]types.Guild(nil), o.state.Guilds...)
	s.Channels = append([]types.Channel(nil), o.state.Channels...)
	s.Messages = append([]types.Message(nil), o.state.Messages...)
	if o.state.Identity != nil {
		id := *o.state.Identity
		s.Identity = &id
	}
	s.Busy = o.busy > 0
	return s
}

// Mount restores a stored session and loads guilds. Without a stored
// token it leaves the orchestrator unauthenticated.
func (o *Orchestrator) Mount(ctx context.Context) error {
	if !o.tokens.HasToken() {
		return nil
	}

	identity, _ := o.tokens.Identity()

	o.mu.Lock()
	o.resetLocked()
	o.state.Authenticated = true
	o.state.Identity = identity
	o.mu.Unlock()

	o.logger.Info().Msg("Restored stored session")
	return o.LoadGuilds(ctx)
}

// Login validates a token, persists it and loads guilds
func (o *Orchestrator) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	o.mu.Lock()
	session := o.gen.session
	o.mu.Unlock()

	done := o.begin()
	data, err := o.api.ValidateToken(ctx, token)
	done()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Token validation failed")
		return err
	}

	o.mu.Lock()
	if session != o.gen.session {
		o.mu.Unlock()
		return ErrSuperseded
	}
	if err := o.tokens.Save(*data); err != nil {
		o.mu.Unlock()
		return fmt.Errorf("failed to store token: %w", err)
	}
	o.resetLocked()
	o.state.Authenticated = true
	o.state.Identity = data
	o.mu.Unlock()

	o.logger.Info().Str("bot", data.BotUsername).Msg("Logged in")
	return o.LoadGuilds(ctx)
}

// Logout clears the stored token and all in-memory state
func (o *Orchestrator) Logout() error {
	o.mu.Lock()
	o.resetLocked()
	o.mu.Unlock()

	if err := o.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	o.logger.Info().Msg("Logged out")
	return nil
}

// LoadGuilds refreshes the guild list and selects the first guild
func (o *Orchestrator) LoadGuilds(ctx context.Context) error {
	o.mu.Lock()
	if !o.state.Authenticated {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	o.gen.guilds++
	want := o.gen
	o.mu.Unlock()

	done := o.begin()
	guilds, err := o.api.Guilds(ctx)
	done()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to load guilds")
		return err
	}

	o.mu.Lock()
	if want.session != o.gen.session || want.guilds != o.gen.guilds {
		o.mu.Unlock()
		o.logger.Debug().Msg("Discarding stale guild list")
		return ErrSuperseded
	}
	o.state.Guilds = guilds
	if !containsGuild(guilds, o.state.SelectedGuild) {
		o.state.SelectedGuild = ""
		o.state.Channels = nil
		o.clearChannelLocked()
	}
	o.mu.Unlock()

	if len(guilds) == 0 {
		return nil
	}
	return o.SelectGuild(ctx, guilds[0].ID)
}

// SelectGuild loads the channels of a guild from the current list and
// selects its first text channel. Unknown ids are ignored.
func (o *Orchestrator) SelectGuild(ctx context.Context, guildID string) error {
	o.mu.Lock()
	if !o.state.Authenticated {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !containsGuild(o.state.Guilds, guildID) {
		o.mu.Unlock()
		return nil
	}
	o.gen.guilds++
	o.gen.channel++
	want := o.gen
	o.mu.Unlock()

	done := o.begin()
	channels, err := o.api.Channels(ctx, guildID)
	done()
	if err != nil {
		o.logger.Warn().Err(err).Str("guild", guildID).Msg("Failed to load channels")
		return err
	}

	o.mu.Lock()
	if want != o.gen {
		o.mu.Unlock()
		o.logger.Debug().Str("guild", guildID).Msg("Discarding stale channel list")
		return ErrSuperseded
	}
	o.state.SelectedGuild = guildID
	o.state.Channels = channels
	o.clearChannelLocked()
	o.mu.Unlock()

	for _, ch := range channels {
		if ch.Type == types.ChannelTypeText {
			return o.SelectChannel(ctx, ch.ID)
		}
	}
	return nil
}

// SelectChannel loads the latest page of a channel from the current list
func (o *Orchestrator) SelectChannel(ctx context.Context, channelID string) error {
	o.mu.Lock()
	if !o.state.Authenticated {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !containsChannel(o.state.Channels, channelID) {
		o.mu.Unlock()
		return nil
	}
	o.gen.channel++
	want := o.gen
	o.mu.Unlock()

	done := o.begin()
	page, err := o.api.Messages(ctx, channelID, PageSize, "")
	done()
	if err != nil {
		o.logger.Warn().Err(err).Str("channel", channelID).Msg("Failed to load messages")
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if want != o.gen {
		o.logger.Debug().Str("channel", channelID).Msg("Discarding stale messages")
		return ErrSuperseded
	}
	o.state.SelectedChannel = channelID
	o.state.Messages = history.Reverse(page)
	o.state.HasOlder = len(page) == PageSize
	return nil
}

// LoadOlder prepends the page before the oldest loaded message
func (o *Orchestrator) LoadOlder(ctx context.Context) error {
	o.mu.Lock()
	channelID := o.state.SelectedChannel
	before, ok := history.Oldest(o.state.Messages)
	if channelID == "" || !ok || !o.state.HasOlder {
		o.mu.Unlock()
		return nil
	}
	want := o.gen
	o.mu.Unlock()

	done := o.begin()
	page, err := o.api.Messages(ctx, channelID, PageSize, before)
	done()
	if err != nil {
		o.logger.Warn().Err(err).Str("channel", channelID).Msg("Failed to load older messages")
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if want != o.gen {
		return ErrSuperseded
	}
	o.state.Messages = history.Prepend(o.state.Messages, history.Reverse(page))
	o.state.HasOlder = len(page) == PageSize
	return nil
}

// SendMessage posts to the selected channel. The created message is
// appended once the gateway returns it, never before.
func (o *Orchestrator) SendMessage(ctx context.Context, content string) (*types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, api.ErrEmptyContent
	}

	o.mu.Lock()
	channelID := o.state.SelectedChannel
	session := o.gen.session
	o.mu.Unlock()
	if channelID == "" {
		return nil, ErrNoChannel
	}

	done := o.begin()
	msg, err := o.api.SendMessage(ctx, channelID, content)
	done()
	if err != nil {
		o.logger.Warn().Err(err).Str("channel", channelID).Msg("Failed to send message")
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if session == o.gen.session && o.state.SelectedChannel == channelID {
		o.state.Messages, _ = history.Append(o.state.Messages, *msg)
	}
	return msg, nil
}

// begin marks one call in flight and returns its completion func
func (o *Orchestrator) begin() func() {
	o.mu.Lock()
	o.busy++
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		o.busy--
		o.mu.Unlock()
	}
}

// resetLocked returns to the unauthenticated state and invalidates
// every in-flight result
func (o *Orchestrator) resetLocked() {
	o.gen.session++
	o.gen.guilds++
	o.gen.channel++
	o.state = State{}
}

func (o *Orchestrator) clearChannelLocked() {
	o.state.SelectedChannel = ""
	o.state.Messages = nil
	o.state.HasOlder = false
}

func containsGuild(guilds []types.Guild, id string) bool {
	for _, g := range guilds {
		if g.ID == id {
			return true
		}
	}
	return false
}

func containsChannel(channels []types.Channel, id string) bool {
	for _, ch := range channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}
