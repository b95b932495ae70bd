/*
Package provider fetches raw video metadata and format listings from the
source platform.

# Backends

Two implementations of [Provider] are available:

  - [YtDlp] runs the yt-dlp binary with -J and parses its JSON dump. This is
    the default and mirrors what the web frontend was originally built on.
  - [Kkdai] uses github.com/kkdai/youtube/v2 in-process, resolving stream
    URLs (including ciphered ones) through the library.

Both return a [Video] whose Formats slice is in the provider's own order.
Ranking and selection live in the formats package; providers only translate.

# Errors

Every backend failure is returned as a [*FetchError]. [UserMessage] maps the
well known upstream failure texts (private, members-only, age restricted or
region blocked videos) to messages suitable for end users.
*/
package provider
