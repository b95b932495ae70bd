// Package delivery streams a resolved format selection to a client.
//
// A Direct selection is piped from its upstream URL. A Merge selection spawns
// ffmpeg with the video-only and audio-only upstreams as inputs and pipes its
// fragmented MP4 output, which can be played before it is complete.
//
// Each call to [Engine.Deliver] is a session that runs in the caller's
// goroutine and moves through Init, then Direct or Merging, and ends in
// Closed, Failed or Cancelled. Cancelling the context kills the ffmpeg
// process group and closes the upstream body; teardown runs exactly once
// whichever terminal state is reached. Failures before the first body byte
// are reported to the sink as a 500; later ones can only abort the
// connection, which Deliver signals with [ErrAborted].
package delivery
