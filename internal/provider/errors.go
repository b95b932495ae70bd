package provider

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError reports a failed metadata lookup.
type FetchError struct {
	// Provider is the backend name.
	Provider string
	// Msg is the upstream diagnostic, e.g. the yt-dlp stderr tail.
	Msg string
	Err error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" fetch failed")
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Sentinel causes a backend may wrap inside a FetchError.
var (
	ErrPrivate     = errors.New("private video")
	ErrMembersOnly = errors.New("members-only video")
	ErrRestricted  = errors.New("video restricted or unavailable")
)

// upstreamMessages maps known upstream failure texts to causes. Matching is
// case-insensitive.
var upstreamMessages = []struct {
	substr string
	cause  error
}{
	{"private video", ErrPrivate},
	{"members-only", ErrMembersOnly},
	{"join this channel", ErrMembersOnly},
	{"unable to download webpage", ErrRestricted},
	{"sign in to confirm your age", ErrRestricted},
	{"age-restricted", ErrRestricted},
	{"not available in your country", ErrRestricted},
	{"video unavailable", ErrRestricted},
}

// classify returns the sentinel cause matching msg, or nil.
func classify(msg string) error {
	lower := strings.ToLower(msg)
	for _, m := range upstreamMessages {
		if strings.Contains(lower, m.substr) {
			return m.cause
		}
	}
	return nil
}

// newFetchError builds a FetchError, attaching a sentinel cause when the
// message or the underlying error text is recognised.
func newFetchError(provider, msg string, err error) *FetchError {
	text := msg
	if err != nil {
		text += " " + err.Error()
	}
	if cause := classify(text); cause != nil {
		if err == nil {
			err = cause
		} else {
			err = fmt.Errorf("%w: %w", cause, err)
		}
	}
	return &FetchError{Provider: provider, Msg: msg, Err: err}
}

// UserMessage returns an end-user facing description of a fetch failure.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPrivate):
		return "This video is private and cannot be downloaded."
	case errors.Is(err, ErrMembersOnly):
		return "This video is members-only and cannot be downloaded."
	case errors.Is(err, ErrRestricted):
		return "This video cannot be reached. It may be age-restricted or unavailable in your region."
	}

	var fe *FetchError
	if errors.As(err, &fe) && fe.Msg != "" {
		return "Failed to fetch video info: " + fe.Msg
	}
	return "Failed to fetch video info: " + err.Error()
}
