package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrMissingToken is returned when no bot token was supplied
	ErrMissingToken = errors.New("authorization required")
	// ErrInvalidToken is returned when Discord rejects the token
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotBot is returned when the token belongs to a user account
	ErrNotBot = errors.New("token must be for a bot account")
	// ErrEmptyContent is returned for blank message content
	ErrEmptyContent = errors.New("message content is required")
)

// UpstreamError is a non-success response from Discord.
// The response body is deliberately not carried.
type UpstreamError struct {
	Status     int
	RetryAfter time.Duration
	err        error
}

func (e *UpstreamError) Error() string {
	if e.Status == http.StatusTooManyRequests {
		return fmt.Sprintf("discord rate limited, retry after %v", e.RetryAfter)
	}
	return fmt.Sprintf("discord returned status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.err
}

// classify turns discordgo errors into UpstreamError where Discord answered
// with a status. lastStatus is the final response status seen on the wire, or
// 0 if none arrived. Anything else is a transport or decode failure.
func classify(err error, lastStatus int) error {
	if err == nil {
		return nil
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return &UpstreamError{Status: http.StatusTooManyRequests, RetryAfter: retryAfter(rateErr.RateLimit), err: err}
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return &UpstreamError{Status: restErr.Response.StatusCode, err: err}
	}

	if lastStatus >= http.StatusBadRequest {
		return &UpstreamError{Status: lastStatus, err: err}
	}

	return fmt.Errorf("discord request failed: %w", err)
}

func retryAfter(rl *discordgo.RateLimit) time.Duration {
	if rl == nil || rl.TooManyRequests == nil {
		return 0
	}
	return rl.RetryAfter
}
