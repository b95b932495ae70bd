package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ytstream/internal/logging"
	"ytstream/internal/urlnorm"
)

const ytdlpName = "yt-dlp"

// stderrTail bounds how much yt-dlp diagnostic text is kept in errors.
const stderrTail = 2048

// YtDlp fetches metadata by running the yt-dlp binary.
type YtDlp struct {
	path    string
	timeout time.Duration
}

// NewYtDlp returns a yt-dlp backed provider. An empty path looks up
// "yt-dlp" in PATH; a zero timeout disables the per-fetch deadline.
func NewYtDlp(path string, timeout time.Duration) *YtDlp {
	if path == "" {
		path = ytdlpName
	}
	return &YtDlp{path: path, timeout: timeout}
}

// Name implements Provider.
func (y *YtDlp) Name() string {
	return ytdlpName
}

// Check verifies that the binary runs and logs its version.
func (y *YtDlp) Check(ctx context.Context) error {
	resolved, err := exec.LookPath(y.path)
	if err != nil {
		return fmt.Errorf("yt-dlp not found at %q: %w", y.path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, resolved, "--version").Output()
	if err != nil {
		return fmt.Errorf("failed to get yt-dlp version: %w", err)
	}

	logging.Debug("  yt-dlp path: %s", resolved)
	logging.Info("  yt-dlp version: %s", strings.TrimSpace(string(out)))
	return nil
}

// Fetch implements Provider.
func (y *YtDlp) Fetch(ctx context.Context, id urlnorm.ID) (*Video, error) {
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, y.path,
		"-J",
		"--no-warnings",
		"--no-playlist",
		"--skip-download",
		id.String(),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := tail(strings.TrimSpace(stderr.String()), stderrTail)
		if ctx.Err() != nil {
			return nil, newFetchError(ytdlpName, msg, ctx.Err())
		}
		return nil, newFetchError(ytdlpName, msg, err)
	}
	logging.Debug("yt-dlp fetched %s in %v (%d bytes)", id.VideoID(), time.Since(start), stdout.Len())

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, newFetchError(ytdlpName, "unparseable metadata", err)
	}

	return info.toVideo(id), nil
}

type ytdlpFormat struct {
	FormatID       string   `json:"format_id"`
	FormatNote     string   `json:"format_note"`
	Ext            string   `json:"ext"`
	Protocol       string   `json:"protocol"`
	URL            string   `json:"url"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         int      `json:"height"`
	TBR            *float64 `json:"tbr"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
}

type ytdlpThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ytdlpInfo struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Uploader   string           `json:"uploader"`
	Channel    string           `json:"channel"`
	Duration   float64          `json:"duration"`
	WebpageURL string           `json:"webpage_url"`
	Thumbnails []ytdlpThumbnail `json:"thumbnails"`
	Formats    []ytdlpFormat    `json:"formats"`
}

func (info *ytdlpInfo) toVideo(id urlnorm.ID) *Video {
	v := &Video{
		ID:              info.ID,
		Title:           info.Title,
		Author:          firstNonEmpty(info.Uploader, info.Channel, "Unknown"),
		DurationSeconds: int(info.Duration),
		URL:             firstNonEmpty(info.WebpageURL, id.String()),
		Thumbnails:      make([]Thumbnail, 0, len(info.Thumbnails)),
		Formats:         make([]Format, 0, len(info.Formats)),
	}
	if v.ID == "" {
		v.ID = id.VideoID()
	}

	for _, t := range info.Thumbnails {
		if t.URL == "" {
			continue
		}
		v.Thumbnails = append(v.Thumbnails, Thumbnail(t))
	}

	for _, f := range info.Formats {
		// Manifest based protocols cannot be piped directly.
		if f.URL == "" || (f.Protocol != "https" && f.Protocol != "http") {
			continue
		}
		v.Formats = append(v.Formats, f.toFormat())
	}

	return v
}

func (f ytdlpFormat) toFormat() Format {
	out := Format{
		ID:        f.FormatID,
		HasVideo:  hasCodec(f.VCodec),
		HasAudio:  hasCodec(f.ACodec),
		Container: f.Ext,
		URL:       f.URL,
	}

	if f.TBR != nil {
		out.Bitrate = *f.TBR
	}
	switch {
	case f.Filesize != nil:
		out.Filesize = *f.Filesize
	case f.FilesizeApprox != nil:
		out.Filesize = *f.FilesizeApprox
	}

	switch {
	case f.FormatNote != "":
		out.QualityLabel = f.FormatNote
	case f.Height > 0:
		out.QualityLabel = strconv.Itoa(f.Height) + "p"
	case out.AudioOnly():
		out.QualityLabel = "audio"
	default:
		out.QualityLabel = "unknown"
	}

	return out
}

func hasCodec(codec string) bool {
	return codec != "" && codec != "none"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
