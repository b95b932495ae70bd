package provider

import (
	"context"

	"ytstream/internal/urlnorm"
)

// Provider fetches metadata for a canonical video identifier.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Fetch performs the network lookup. Errors are *FetchError.
	Fetch(ctx context.Context, id urlnorm.ID) (*Video, error)
	// Check verifies the backend is usable (binary present, etc).
	Check(ctx context.Context) error
}

// Format describes one encoded variant of a video. Zero Bitrate or Filesize
// means unknown.
type Format struct {
	ID           string
	QualityLabel string
	HasVideo     bool
	HasAudio     bool
	Container    string
	Bitrate      float64
	Filesize     int64
	URL          string
}

// VideoOnly reports whether the format carries picture but no sound.
func (f Format) VideoOnly() bool {
	return f.HasVideo && !f.HasAudio
}

// AudioOnly reports whether the format carries sound but no picture.
func (f Format) AudioOnly() bool {
	return f.HasAudio && !f.HasVideo
}

// Muxed reports whether the format carries both picture and sound.
func (f Format) Muxed() bool {
	return f.HasVideo && f.HasAudio
}

// Thumbnail is a preview image reference.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Video is the metadata of a single video. Values returned by a Provider are
// shared through the metadata cache and must be treated as read-only.
type Video struct {
	ID              string
	Title           string
	Author          string
	DurationSeconds int
	Thumbnails      []Thumbnail
	URL             string
	Formats         []Format
}
