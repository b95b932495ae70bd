/*
Package streaming writes long-running media responses to HTTP clients.

# Overview

A media download can last minutes and its body is produced incrementally,
either from an upstream HTTP response or from the stdout of an ffmpeg
process. The [Sink] wraps http.ResponseWriter for that case: it splits
large writes into chunks, flushes after every chunk so the client sees data
as soon as it is produced, and tracks whether the body has started.

That last bit decides how errors are reported. Before the first byte the
handler can still change the status code, so [Sink.Fail] replaces the
video headers with a plain text error. Afterwards the status line is
already on the wire and the only honest signal left is dropping the
connection.

# Usage

	sink := streaming.NewSink(r.Context(), w, streaming.DefaultSinkConfig())
	defer sink.Close()

	w.Header().Set("Content-Type", "video/mp4")
	if _, err := streaming.Copy(sink, body); err != nil {
		if streaming.IsClientGone(err) {
			return
		}
		if !sink.Fail(http.StatusInternalServerError, "Download error") {
			panic(http.ErrAbortHandler)
		}
	}

# Flushing and deadlines

Flushes and write deadlines go through http.ResponseController, so
middleware that wraps the ResponseWriter must implement Unwrap. Writers
that support neither are tolerated.

# Errors

Write failures are reported as one of [ErrClientGone], [ErrWriteTimeout]
or [ErrStreamCanceled] so callers can tell a departed client, which is
routine, from a server fault.
*/
package streaming
