package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidInput indicates the input is not a supported YouTube video URL.
var ErrInvalidInput = errors.New("invalid YouTube URL")

const watchPrefix = "https://www.youtube.com/watch?v="

var videoIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// youtubeHosts are the accepted hosts serving /watch style pages.
var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// pathPrefixes are alternate path forms that carry the id as the next segment.
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ID is the canonical identifier of a single video.
type ID string

// VideoID returns the 11 character video id.
func (id ID) VideoID() string {
	return strings.TrimPrefix(string(id), watchPrefix)
}

// String returns the canonical watch URL.
func (id ID) String() string {
	return string(id)
}

// Normalize validates raw and returns its canonical identifier.
func Normalize(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidInput
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}

	if u.User != nil || u.Port() != "" {
		return "", ErrInvalidInput
	}

	host := strings.ToLower(u.Hostname())
	var videoID string

	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		videoID = firstSegment(u.Path)
	case youtubeHosts[host]:
		videoID = idFromYouTubePath(u)
	default:
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidInput, host)
	}

	if !videoIDPattern.MatchString(videoID) {
		return "", fmt.Errorf("%w: missing or malformed video id", ErrInvalidInput)
	}

	return ID(watchPrefix + videoID), nil
}

// MustNormalize is like Normalize but panics on invalid input. Intended for
// tests and constant inputs.
func MustNormalize(raw string) ID {
	id, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func idFromYouTubePath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "/watch" || path == "/watch/" {
		return u.Query().Get("v")
	}
	for _, prefix := range pathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return firstSegment(strings.TrimPrefix(path, prefix))
		}
	}
	return ""
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
