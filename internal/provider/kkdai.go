package provider

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"ytstream/internal/logging"
	"ytstream/internal/urlnorm"
)

const kkdaiName = "kkdai"

// Kkdai fetches metadata in-process with github.com/kkdai/youtube/v2.
type Kkdai struct {
	client *youtube.Client
}

// NewKkdai returns a library backed provider. A nil httpClient uses the
// library default.
func NewKkdai(httpClient *http.Client) *Kkdai {
	return &Kkdai{client: &youtube.Client{HTTPClient: httpClient}}
}

// Name implements Provider.
func (k *Kkdai) Name() string {
	return kkdaiName
}

// Check implements Provider. The library has no external requirements.
func (k *Kkdai) Check(context.Context) error {
	return nil
}

// Fetch implements Provider.
func (k *Kkdai) Fetch(ctx context.Context, id urlnorm.ID) (*Video, error) {
	video, err := k.client.GetVideoContext(ctx, id.String())
	if err != nil {
		return nil, kkdaiError(err)
	}

	v := &Video{
		ID:              video.ID,
		Title:           video.Title,
		Author:          firstNonEmpty(video.Author, "Unknown"),
		DurationSeconds: int(video.Duration.Seconds()),
		URL:             id.String(),
		Thumbnails:      make([]Thumbnail, 0, len(video.Thumbnails)),
		Formats:         make([]Format, 0, len(video.Formats)),
	}

	for _, t := range video.Thumbnails {
		v.Thumbnails = append(v.Thumbnails, Thumbnail{URL: t.URL, Width: int(t.Width), Height: int(t.Height)})
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		streamURL := f.URL
		if streamURL == "" {
			// Ciphered formats need the player script to resolve.
			streamURL, err = k.client.GetStreamURLContext(ctx, video, f)
			if err != nil {
				logging.Debug("kkdai: skipping itag %d for %s: %v", f.ItagNo, id.VideoID(), err)
				continue
			}
		}
		v.Formats = append(v.Formats, kkdaiFormat(f, streamURL))
	}

	return v, nil
}

func kkdaiFormat(f *youtube.Format, streamURL string) Format {
	mediaType, _, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(f.MimeType, ";", 2)[0])
	}

	out := Format{
		ID:        strconv.Itoa(f.ItagNo),
		HasVideo:  strings.HasPrefix(mediaType, "video/"),
		HasAudio:  f.AudioChannels > 0 || strings.HasPrefix(mediaType, "audio/"),
		Container: containerFromMime(mediaType),
		Filesize:  f.ContentLength,
		URL:       streamURL,
	}

	bitrate := f.Bitrate
	if bitrate == 0 {
		bitrate = f.AverageBitrate
	}
	// kbps, matching yt-dlp's tbr
	out.Bitrate = float64(bitrate) / 1000

	switch {
	case f.QualityLabel != "":
		out.QualityLabel = f.QualityLabel
	case out.AudioOnly():
		out.QualityLabel = "audio"
	default:
		out.QualityLabel = firstNonEmpty(f.Quality, "unknown")
	}

	return out
}

func containerFromMime(mediaType string) string {
	switch mediaType {
	case "audio/mp4":
		return "m4a"
	case "video/3gpp":
		return "3gp"
	}
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		return mediaType[i+1:]
	}
	return mediaType
}

func kkdaiError(err error) error {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate):
		return &FetchError{Provider: kkdaiName, Msg: "Private video", Err: errors.Join(ErrPrivate, err)}
	case errors.Is(err, youtube.ErrLoginRequired):
		return &FetchError{Provider: kkdaiName, Msg: "login required", Err: errors.Join(ErrRestricted, err)}
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		fe := newFetchError(kkdaiName, statusErr.Reason, err)
		if !errors.Is(fe, ErrPrivate) && !errors.Is(fe, ErrMembersOnly) && !errors.Is(fe, ErrRestricted) {
			fe.Err = errors.Join(ErrRestricted, err)
		}
		return fe
	}

	return newFetchError(kkdaiName, "", err)
}
