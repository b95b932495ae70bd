// Command ytstream serves YouTube video metadata and media streams over HTTP.
//
// A request names a video by any of its YouTube URL forms. The server looks
// up metadata through the configured provider (yt-dlp or the kkdai/youtube
// library), caches it, picks a format and either pipes that format straight
// to the client or has ffmpeg merge a video-only and an audio-only format
// into fragmented MP4 on the fly.
//
// # Endpoints
//
//	GET /api/health                    liveness for the web front end
//	GET /api/info?url=                 metadata and ranked formats
//	GET /api/download?url=&itag=       media as an attachment
//	GET /api/stream?url=&itag=         media for inline playback
//	GET /healthz /livez /readyz        probes
//	GET /version                       build information
//	GET /metrics                       Prometheus, on METRICS_PORT
//
// When STATIC_DIR is set, its files are served for every other path.
//
// # Shutdown
//
// On SIGINT or SIGTERM the server stops accepting connections and gives
// running streams 30 seconds to finish. ffmpeg processes still running after
// that are killed together with their process groups.
//
// See package ytstream/internal/startup for the environment variables, and
// ytstream/internal/memory for MEMORY_LIMIT and MEMORY_RATIO.
package main
