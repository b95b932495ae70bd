package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"ytstream/internal/delivery"
	"ytstream/internal/formats"
	"ytstream/internal/logging"
	"ytstream/internal/provider"
	"ytstream/internal/urlnorm"
)

const (
	// Default timeout for one metadata lookup
	defaultTimeout = 60 * time.Second
)

// probe holds what the commands need. Tests substitute the provider and
// the output mode.
type probe struct {
	provider provider.Provider
	engine   *delivery.Engine
	stdout   io.Writer
	stderr   io.Writer
	table    bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := &probe{
		provider: providerFromEnv(),
		engine:   delivery.New(delivery.Config{FFmpegPath: os.Getenv("FFMPEG_PATH")}),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		table:    term.IsTerminal(int(os.Stdout.Fd())),
	}
	os.Exit(p.run(ctx, os.Args[1:]))
}

func providerFromEnv() provider.Provider {
	if strings.EqualFold(os.Getenv("PROVIDER"), "kkdai") {
		return provider.NewKkdai(nil)
	}
	return provider.NewYtDlp(os.Getenv("YTDLP_PATH"), defaultTimeout)
}

// run executes one command and returns the process exit code.
func (p *probe) run(ctx context.Context, args []string) int {
	if len(args) > 0 && (args[0] == "-v" || args[0] == "--verbose") {
		logging.SetLevel(logging.LevelDebug)
		args = args[1:]
	}
	if len(args) == 0 {
		printUsage(p.stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "formats":
		if len(args) != 2 {
			printUsage(p.stderr)
			return 1
		}
		err = p.formats(ctx, args[1])
	case "resolve":
		if len(args) < 2 || len(args) > 3 {
			printUsage(p.stderr)
			return 1
		}
		itag := formats.Best
		if len(args) == 3 {
			itag = args[2]
		}
		err = p.resolve(ctx, args[1], itag)
	case "check":
		err = p.check(ctx)
	default:
		fmt.Fprintf(p.stderr, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(p.stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(p.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ytstream format probe")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: ytprobe [-v] <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  formats <url>          - List playable formats in delivery order")
	fmt.Fprintln(w, "  resolve <url> [itag]   - Show how a format would be delivered (default: best)")
	fmt.Fprintln(w, "  check                  - Verify the metadata provider and ffmpeg")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -v, --verbose          - Debug logging (provider commands, timings)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  PROVIDER     - ytdlp or kkdai (default: ytdlp)")
	fmt.Fprintln(w, "  YTDLP_PATH   - yt-dlp binary (default: yt-dlp)")
	fmt.Fprintln(w, "  FFMPEG_PATH  - ffmpeg binary (default: ffmpeg)")
}

func (p *probe) fetch(ctx context.Context, rawURL string) (*provider.Video, error) {
	id, err := urlnorm.Normalize(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	video, err := p.provider.Fetch(ctx, id)
	if err != nil {
		return nil, errors.New(provider.UserMessage(err))
	}
	return video, nil
}

type formatRow struct {
	Itag         string  `json:"itag"`
	QualityLabel string  `json:"qualityLabel"`
	HasVideo     bool    `json:"hasVideo"`
	HasAudio     bool    `json:"hasAudio"`
	Container    string  `json:"container"`
	Bitrate      float64 `json:"bitrate"`
	Filesize     int64   `json:"filesize,omitempty"`
}

func (p *probe) formats(ctx context.Context, rawURL string) error {
	video, err := p.fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	ranked := formats.Rank(video.Formats)
	if len(ranked) == 0 {
		return formats.ErrNoPlayableFormat
	}

	if !p.table {
		rows := make([]formatRow, 0, len(ranked))
		for _, f := range ranked {
			rows = append(rows, formatRow{f.ID, f.QualityLabel, f.HasVideo, f.HasAudio, f.Container, f.Bitrate, f.Filesize})
		}
		return p.writeJSON(map[string]interface{}{
			"videoId": video.ID,
			"title":   video.Title,
			"formats": rows,
		})
	}

	fmt.Fprintf(p.stdout, "%s (%s)\n\n", video.Title, video.ID)
	tw := tabwriter.NewWriter(p.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITAG\tQUALITY\tTRACKS\tCONTAINER\tBITRATE\tSIZE")
	for _, f := range ranked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, dash(f.QualityLabel), tracks(f), f.Container, bitrate(f.Bitrate), size(f.Filesize))
	}
	return tw.Flush()
}

func (p *probe) resolve(ctx context.Context, rawURL, itag string) error {
	video, err := p.fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	sel, err := formats.Resolve(video, itag)
	if err != nil {
		return err
	}

	out := map[string]string{
		"kind":  sel.Kind.String(),
		"video": sel.Video.ID,
	}
	if sel.Kind == formats.Merge {
		out["audio"] = sel.Audio.ID
		out["audioMode"] = sel.AudioMode.String()
	}

	if !p.table {
		return p.writeJSON(out)
	}

	tw := tabwriter.NewWriter(p.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Delivery:\t%s\n", out["kind"])
	fmt.Fprintf(tw, "Video:\t%s %s (%s)\n", sel.Video.ID, dash(sel.Video.QualityLabel), sel.Video.Container)
	if sel.Kind == formats.Merge {
		fmt.Fprintf(tw, "Audio:\t%s %s (%s)\n", sel.Audio.ID, dash(sel.Audio.QualityLabel), sel.Audio.Container)
		fmt.Fprintf(tw, "Audio codec:\t%s\n", out["audioMode"])
	}
	return tw.Flush()
}

func (p *probe) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var failed bool
	if err := p.provider.Check(ctx); err != nil {
		fmt.Fprintf(p.stdout, "provider %s: FAIL (%v)\n", p.provider.Name(), err)
		failed = true
	} else {
		fmt.Fprintf(p.stdout, "provider %s: OK\n", p.provider.Name())
	}

	if version, err := p.engine.CheckBinary(ctx); err != nil {
		fmt.Fprintf(p.stdout, "ffmpeg: FAIL (%v)\n", err)
		failed = true
	} else {
		fmt.Fprintf(p.stdout, "ffmpeg: OK (%s)\n", version)
	}

	if failed {
		return errors.New("one or more checks failed")
	}
	return nil
}

func (p *probe) writeJSON(v interface{}) error {
	enc := json.NewEncoder(p.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func tracks(f provider.Format) string {
	switch {
	case f.Muxed():
		return "video+audio"
	case f.HasVideo:
		return "video"
	default:
		return "audio"
	}
}

func bitrate(kbps float64) string {
	if kbps <= 0 {
		return "-"
	}
	return strconv.FormatFloat(kbps, 'f', 0, 64) + "k"
}

func size(n int64) string {
	const unit = 1024
	if n <= 0 {
		return "-"
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
