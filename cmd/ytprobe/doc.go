// Command ytprobe inspects how ytstream would deliver a video, without
// running the server.
//
// Usage:
//
//	ytprobe [-v] <command> [arguments]
//
// Commands:
//
//	formats <url>         List the playable formats in the order the
//	                      server reports them from /api/info.
//
//	resolve <url> [itag]  Show whether a format is piped directly or
//	                      merged with an audio track, and whether that
//	                      audio is copied or re-encoded.
//
//	check                 Verify that the metadata provider and ffmpeg
//	                      are usable.
//
// Output is a table when stdout is a terminal and JSON otherwise. -v turns
// on debug logging on stderr.
//
// Environment:
//
//	PROVIDER    - ytdlp or kkdai (default: ytdlp)
//	YTDLP_PATH  - yt-dlp binary (default: yt-dlp)
//	FFMPEG_PATH - ffmpeg binary (default: ffmpeg)
package main
