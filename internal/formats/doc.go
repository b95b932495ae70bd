// Package formats ranks the encoded variants of a video and decides how a
// request for one of them is delivered.
//
// [Rank] produces the client-facing list: formats without any media track
// are dropped, duplicates by (quality label, has audio, has video) are
// collapsed keeping the first occurrence, and the rest is ordered muxed
// first, then video-only, then audio-only, each class by descending bitrate.
//
// [Resolve] turns a requested format id (or "best") into a [Selection]:
// either a Direct pipe of a single upstream, or a Merge of a video-only and
// an audio-only upstream. Audio for a merge is taken from the same container
// family as the video when possible so both tracks can be stream-copied;
// otherwise the best audio of any container is used and marked for
// re-encoding.
package formats
