package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

var (
	// ErrNoToken is returned before any request when no token is stored
	ErrNoToken = errors.New("no bot token stored")

	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrNotBot       = errors.New("token is not a bot token")
	ErrEmptyContent = errors.New("message content is empty")
	ErrRateLimited  = errors.New("rate limited")
)

// Error is a non-success gateway response
type Error struct {
	Op         string
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: gateway returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// Is lets callers match an Error against the package sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrInvalidToken:
		return e.Code == types.CodeInvalidToken
	case ErrNotBot:
		return e.Code == types.CodeNotBot
	case ErrEmptyContent:
		return e.Code == types.CodeEmptyContent
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

const maxErrorBody = 4 << 10

func newError(op string, resp *http.Response) *Error {
	e := &Error{Op: op, Status: resp.StatusCode}

	var body types.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &body) == nil {
		e.Code = body.Code
		e.Message = body.Error
		if body.RetryAfter > 0 {
			e.RetryAfter = time.Duration(body.RetryAfter * float64(time.Second))
		}
	}

	if e.RetryAfter == 0 {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}
