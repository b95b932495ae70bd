package formats

import (
	"errors"
	"slices"
	"strings"

	"github.com/samber/lo"

	"ytstream/internal/provider"
)

// Best is the requested id that asks the resolver to pick a format.
const Best = "best"

var (
	// ErrNoPlayableFormat is returned when no combination of formats can
	// produce a stream with both picture and sound.
	ErrNoPlayableFormat = errors.New("no playable video formats with audio found")

	// ErrFormatNotFound is returned when a specific format id is absent.
	ErrFormatNotFound = errors.New("requested format not found")
)

// Kind is the delivery mode of a selection.
type Kind int

const (
	// Direct pipes a single upstream to the client.
	Direct Kind = iota
	// Merge combines a video-only and an audio-only upstream.
	Merge
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Merge:
		return "merge"
	default:
		return "unknown"
	}
}

// AudioMode says what happens to the audio track of a merge.
type AudioMode int

const (
	AudioCopy AudioMode = iota
	AudioReencode
)

func (m AudioMode) String() string {
	if m == AudioReencode {
		return "reencode"
	}
	return "copy"
}

// Selection is the resolver's decision. Audio is only meaningful for Merge.
type Selection struct {
	Kind      Kind
	Video     provider.Format
	Audio     provider.Format
	AudioMode AudioMode
}

// class orders the three track combinations: muxed, video-only, audio-only.
func class(f provider.Format) int {
	switch {
	case f.Muxed():
		return 0
	case f.HasVideo:
		return 1
	default:
		return 2
	}
}

type dedupKey struct {
	label    string
	hasAudio bool
	hasVideo bool
}

func playable(formats []provider.Format) []provider.Format {
	return lo.Filter(formats, func(f provider.Format, _ int) bool {
		return f.HasVideo || f.HasAudio
	})
}

// Rank filters, deduplicates and orders formats. The input is not modified.
func Rank(formats []provider.Format) []provider.Format {
	ranked := lo.UniqBy(playable(formats), func(f provider.Format) dedupKey {
		return dedupKey{label: f.QualityLabel, hasAudio: f.HasAudio, hasVideo: f.HasVideo}
	})

	slices.SortStableFunc(ranked, func(a, b provider.Format) int {
		if ca, cb := class(a), class(b); ca != cb {
			return ca - cb
		}
		switch {
		case a.Bitrate > b.Bitrate:
			return -1
		case a.Bitrate < b.Bitrate:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// Family groups containers whose tracks can be muxed into the same output
// without re-encoding. Unknown containers are their own family.
func Family(container string) string {
	switch c := strings.ToLower(container); c {
	case "mp4", "m4a", "m4v", "mov", "3gp":
		return "mp4"
	case "webm", "weba", "opus", "mkv":
		return "webm"
	default:
		return c
	}
}

// pickAudio returns the best audio-only format for video, preferring one that
// shares its container family.
func pickAudio(candidates []provider.Format, video provider.Format) (provider.Format, AudioMode, bool) {
	audio := lo.Filter(candidates, func(f provider.Format, _ int) bool {
		return f.AudioOnly()
	})
	if len(audio) == 0 {
		return provider.Format{}, AudioCopy, false
	}

	higher := func(a, b provider.Format) bool { return a.Bitrate > b.Bitrate }

	family := Family(video.Container)
	matching := lo.Filter(audio, func(f provider.Format, _ int) bool {
		return Family(f.Container) == family
	})
	if len(matching) > 0 {
		return lo.MaxBy(matching, higher), AudioCopy, true
	}
	return lo.MaxBy(audio, higher), AudioReencode, true
}

// Resolve chooses how to deliver requestedID for video. An empty id means
// Best.
func Resolve(video *provider.Video, requestedID string) (Selection, error) {
	if video == nil {
		return Selection{}, ErrNoPlayableFormat
	}

	// Audio is chosen from every playable format, not only the deduplicated
	// ones, so a same-family track hidden by a shared label stays eligible.
	candidates := playable(video.Formats)
	if len(candidates) == 0 {
		return Selection{}, ErrNoPlayableFormat
	}
	ranked := Rank(candidates)

	requestedID = strings.TrimSpace(requestedID)
	if requestedID == "" || strings.EqualFold(requestedID, Best) {
		return resolveBest(ranked, candidates)
	}

	f, ok := lo.Find(ranked, func(f provider.Format) bool { return f.ID == requestedID })
	if !ok {
		f, ok = lo.Find(candidates, func(f provider.Format) bool { return f.ID == requestedID })
	}
	if !ok {
		return Selection{}, ErrFormatNotFound
	}

	if f.VideoOnly() {
		return mergeWith(f, candidates)
	}
	// Muxed and audio-only formats are already playable on their own.
	return Selection{Kind: Direct, Video: f}, nil
}

func resolveBest(ranked, candidates []provider.Format) (Selection, error) {
	if muxed, ok := lo.Find(ranked, provider.Format.Muxed); ok {
		return Selection{Kind: Direct, Video: muxed}, nil
	}
	video, ok := lo.Find(ranked, provider.Format.VideoOnly)
	if !ok {
		return Selection{}, ErrNoPlayableFormat
	}
	return mergeWith(video, candidates)
}

func mergeWith(video provider.Format, candidates []provider.Format) (Selection, error) {
	audio, mode, ok := pickAudio(candidates, video)
	if !ok {
		return Selection{}, ErrNoPlayableFormat
	}
	return Selection{Kind: Merge, Video: video, Audio: audio, AudioMode: mode}, nil
}
