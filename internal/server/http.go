package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/discord"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// Upstream is the Discord REST access the gateway routes forward to
type Upstream interface {
	ValidateToken(ctx context.Context, token string) (*types.BotTokenData, error)
	Guilds(ctx context.Context, token string) ([]types.Guild, error)
	Channels(ctx context.Context, token, guildID string) ([]types.Channel, error)
	Messages(ctx context.Context, token, channelID string, q discord.MessageQuery) ([]types.Message, error)
	SendMessage(ctx context.Context, token, channelID, content string) (*types.Message, error)
}

// Server provides the HTTP gateway routes
type Server struct {
	port       string
	shutdown   time.Duration
	upstream   Upstream
	logger     zerolog.Logger
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.ServerConfig, upstream Upstream, logger zerolog.Logger) *Server {
	s := &Server{
		port:     cfg.Port,
		shutdown: cfg.ShutdownTimeout,
		upstream: upstream,
		logger:   logger.With().Str("component", "server").Logger(),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(requestID(s.logger), accessLog)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/validate-token", s.handleValidateToken).Methods(http.MethodPost)
	s.router.HandleFunc("/guilds", s.handleGetGuilds).Methods(http.MethodGet)
	s.router.HandleFunc("/guilds/{guildId:[0-9]+}/channels", s.handleGetChannels).Methods(http.MethodGet)
	s.router.HandleFunc("/channels/{channelId:[0-9]+}/messages", s.handleGetMessages).Methods(http.MethodGet)
	s.router.HandleFunc("/channels/{channelId:[0-9]+}/messages", s.handleSendMessage).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, types.CodeBadRequest, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, types.CodeBadRequest, "Method not allowed")
	})
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves in the background
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{Handler: s.router}

	s.logger.Info().Str("port", s.port).Msg("HTTP server started")
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	s.logger.Info().Msg("HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}

// bearerToken reads the token from "Authorization: Bot <token>"
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "Bot" {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bot "))
	return token, token != ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var req types.ValidateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, "Invalid request body", badRequest(err))
		return
	}

	if strings.TrimSpace(req.Token) == "" {
		zerolog.Ctx(r.Context()).Warn().Msg("validate-token called without token")
		writeError(w, http.StatusBadRequest, types.CodeMissingToken, "Token is required")
		return
	}

	data, err := s.upstream.ValidateToken(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, "Token validation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleGetGuilds(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.fail(w, r, "Authorization required", discord.ErrMissingToken)
		return
	}

	guilds, err := s.upstream.Guilds(r.Context(), token)
	if err != nil {
		s.fail(w, r, "Failed to fetch guilds", err)
		return
	}

	writeJSON(w, http.StatusOK, guilds)
}

func (s *Server) handleGetChannels(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.fail(w, r, "Authorization required", discord.ErrMissingToken)
		return
	}

	guildID := mux.Vars(r)["guildId"]
	channels, err := s.upstream.Channels(r.Context(), token, guildID)
	if err != nil {
		s.fail(w, r, "Failed to fetch channels", err)
		return
	}

	writeJSON(w, http.StatusOK, discord.FilterChannels(channels))
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.fail(w, r, "Authorization required", discord.ErrMissingToken)
		return
	}

	q := discord.MessageQuery{
		Limit:  discord.DefaultMessageLimit,
		Before: r.URL.Query().Get("before"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > discord.MaxMessageLimit {
			s.fail(w, r, "limit must be between 1 and 100", badRequest(errors.New("invalid limit "+strconv.Quote(raw))))
			return
		}
		q.Limit = limit
	}

	channelID := mux.Vars(r)["channelId"]
	messages, err := s.upstream.Messages(r.Context(), token, channelID, q)
	if err != nil {
		s.fail(w, r, "Failed to fetch messages", err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.fail(w, r, "Authorization required", discord.ErrMissingToken)
		return
	}

	var req types.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, "Invalid request body", badRequest(err))
		return
	}

	content, err := discord.NormalizeContent(req.Content)
	if err != nil {
		s.fail(w, r, "Message content is required", err)
		return
	}

	channelID := mux.Vars(r)["channelId"]
	message, err := s.upstream.SendMessage(r.Context(), token, channelID, content)
	if err != nil {
		s.fail(w, r, "Failed to send message", err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &badRequestError{err: err} }

// fail logs err and writes the matching generic error response.
// Upstream response bodies never reach the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := http.StatusInternalServerError
	code := types.CodeInternal
	var retryAfter float64

	var upstream *discord.UpstreamError
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		status, code = http.StatusBadRequest, types.CodeBadRequest
	case errors.Is(err, discord.ErrMissingToken):
		status, code, msg = http.StatusUnauthorized, types.CodeMissingToken, "Authorization required"
	case errors.Is(err, discord.ErrInvalidToken):
		status, code, msg = http.StatusUnauthorized, types.CodeInvalidToken, "Invalid token"
	case errors.Is(err, discord.ErrNotBot):
		status, code, msg = http.StatusBadRequest, types.CodeNotBot, "Token must be for a bot account"
	case errors.Is(err, discord.ErrEmptyContent):
		status, code, msg = http.StatusBadRequest, types.CodeEmptyContent, "Message content is required"
	case errors.As(err, &upstream) && upstream.Status == http.StatusTooManyRequests:
		status, code, msg = http.StatusTooManyRequests, types.CodeRateLimited, "Rate limited by Discord, retry later"
		retryAfter = upstream.RetryAfter.Seconds()
		if retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter))))
		}
	case errors.As(err, &upstream):
		status, code = upstream.Status, types.CodeUpstreamError
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
	default:
		msg = "Internal server error"
	}

	event := zerolog.Ctx(r.Context()).Warn()
	if status >= 500 {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("code", code).Msg(msg)

	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: code, RetryAfter: retryAfter})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
