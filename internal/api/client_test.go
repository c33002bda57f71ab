package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

func TestGuilds_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bot test-token" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/guilds" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]types.Guild{{ID: "1", Name: "Alpha"}, {ID: "2", Name: "Beta"}})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", staticToken("test-token"), time.Second)

	guilds, err := client.Guilds(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(guilds) != 2 || guilds[1].Name != "Beta" {
		t.Errorf("Unexpected guilds: %+v", guilds)
	}
}

func TestNoToken_MakesNoRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken(""), time.Second)
	ctx := context.Background()

	_, err1 := client.Guilds(ctx)
	_, err2 := client.Channels(ctx, "1")
	_, err3 := client.Messages(ctx, "1", 0, "")
	_, err4 := client.SendMessage(ctx, "1", "hi")

	for i, err := range []error{err1, err2, err3, err4} {
		if !errors.Is(err, ErrNoToken) {
			t.Errorf("Call %d: expected ErrNoToken, got %v", i, err)
		}
	}
	if calls != 0 {
		t.Errorf("Expected no requests, got %d", calls)
	}
}

func TestChannels_Path(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]types.Channel{{ID: "10", Name: "general"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("t"), time.Second)
	channels, err := client.Channels(context.Background(), "42")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotPath != "/guilds/42/channels" {
		t.Errorf("Expected path /guilds/42/channels, got %s", gotPath)
	}
	if len(channels) != 1 {
		t.Errorf("Expected 1 channel, got %d", len(channels))
	}
}

func TestMessages_Query(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		before    string
		wantQuery string
	}{
		{"defaults", 0, "", ""},
		{"limit only", 20, "", "limit=20"},
		{"cursor", 50, "999", "before=999&limit=50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				w.Write([]byte(`[]`))
			}))
			defer server.Close()

			client := NewClient(server.URL, staticToken("t"), time.Second)
			if _, err := client.Messages(context.Background(), "7", tt.limit, tt.before); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if gotQuery != tt.wantQuery {
				t.Errorf("Expected query %q, got %q", tt.wantQuery, gotQuery)
			}
		})
	}
}

func TestSendMessage(t *testing.T) {
	var got types.SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(types.Message{ID: "55", Content: "hello"})
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("t"), time.Second)
	msg, err := client.SendMessage(context.Background(), "7", "hello")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Content != "hello" {
		t.Errorf("Expected content 'hello', got %q", got.Content)
	}
	if msg.ID != "55" {
		t.Errorf("Expected message 55, got %+v", msg)
	}
}

func TestValidateToken(t *testing.T) {
	var got types.ValidateTokenRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(types.BotTokenData{Token: got.Token, BotID: "1", BotUsername: "helper"})
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken(""), time.Second)
	data, err := client.ValidateToken(context.Background(), "  abc  ")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Token != "abc" {
		t.Errorf("Expected trimmed token, got %q", got.Token)
	}
	if gotAuth != "" {
		t.Errorf("Validation must not send a stored token, got %q", gotAuth)
	}
	if data.BotUsername != "helper" {
		t.Errorf("Unexpected identity %+v", data)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    types.ErrorResponse
		header  string
		want    error
		notWant error
		retry   time.Duration
	}{
		{"invalid token", 401, types.ErrorResponse{Error: "Invalid token", Code: types.CodeInvalidToken}, "", ErrInvalidToken, ErrNotBot, 0},
		{"missing token", 401, types.ErrorResponse{Code: types.CodeMissingToken}, "", ErrUnauthorized, ErrInvalidToken, 0},
		{"not a bot", 400, types.ErrorResponse{Code: types.CodeNotBot}, "", ErrNotBot, ErrInvalidToken, 0},
		{"empty content", 400, types.ErrorResponse{Code: types.CodeEmptyContent}, "", ErrEmptyContent, ErrRateLimited, 0},
		{"rate limited body", 429, types.ErrorResponse{Code: types.CodeRateLimited, RetryAfter: 1.5}, "2", ErrRateLimited, ErrUnauthorized, 1500 * time.Millisecond},
		{"rate limited header", 429, types.ErrorResponse{Code: types.CodeRateLimited}, "3", ErrRateLimited, nil, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, staticToken("t"), time.Second)
			_, err := client.Guilds(context.Background())

			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.Status)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected error to match %v", tt.want)
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Errorf("Error should not match %v", tt.notWant)
			}
			if apiErr.RetryAfter != tt.retry {
				t.Errorf("Expected RetryAfter %v, got %v", tt.retry, apiErr.RetryAfter)
			}
		})
	}
}

func TestErrors_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("t"), time.Second)
	_, err := client.Guilds(context.Background())

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("Expected 502 *Error, got %v", err)
	}
	if apiErr.Code != "" {
		t.Errorf("Expected no code, got %q", apiErr.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("t"), time.Second)
	_, err := client.Guilds(context.Background())
	if err == nil {
		t.Fatal("Expected decode error")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Errorf("Decode failure should not be a gateway *Error: %v", err)
	}
}

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		userID string
		avatar string
		want   string
	}{
		{"123", "abc", "https://cdn.discordapp.com/avatars/123/abc.png"},
		{"10", "", "https://cdn.discordapp.com/embed/avatars/0.png"},
		{"13", "", "https://cdn.discordapp.com/embed/avatars/3.png"},
		{"80351110224678912", "", "https://cdn.discordapp.com/embed/avatars/2.png"},
		{"not-a-number", "", "https://cdn.discordapp.com/embed/avatars/0.png"},
	}

	for _, tt := range tests {
		if got := AvatarURL(tt.userID, tt.avatar); got != tt.want {
			t.Errorf("AvatarURL(%q, %q) = %q, want %q", tt.userID, tt.avatar, got, tt.want)
		}
	}
}

func TestGuildIconURL(t *testing.T) {
	if got := GuildIconURL("1", ""); got != "" {
		t.Errorf("Expected no URL for missing icon, got %q", got)
	}
	if got := GuildIconURL("1", "ff"); got != "https://cdn.discordapp.com/icons/1/ff.png" {
		t.Errorf("Unexpected icon URL %q", got)
	}
}
