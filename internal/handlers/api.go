package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ytstream/internal/delivery"
	"ytstream/internal/formats"
	"ytstream/internal/logging"
	"ytstream/internal/provider"
	"ytstream/internal/streaming"
	"ytstream/internal/urlnorm"
)

const msgInvalidURL = "Invalid YouTube URL"

// APIHealth reports that the API is up.
// GET /api/health
func (h *Handlers) APIHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, map[string]interface{}{
		"ok": true,
		"ts": h.now().UTC().Format(time.RFC3339),
	})
}

// Info returns video metadata with the playable formats in delivery order.
// GET /api/info?url=<youtube url>
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	id, err := urlnorm.Normalize(r.URL.Query().Get("url"))
	if err != nil {
		writeJSONError(w, msgInvalidURL, http.StatusBadRequest)
		return
	}

	video, err := h.lookup(r.Context(), id)
	if err != nil {
		logging.Error("Error fetching info for %s: %v", id.VideoID(), err)
		writeJSONError(w, provider.UserMessage(err), http.StatusInternalServerError)
		return
	}

	ranked, err := rankedFormats(video)
	if err != nil {
		logging.Warn("No playable formats for %s", id.VideoID())
		writeJSONError(w, noPlayableMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, newVideoResponse(video, ranked))
}

const noPlayableMessage = "No downloadable formats with both video and audio were found."

// Download streams the selected format as an attachment.
// GET /api/download?url=<youtube url>&itag=<format id|best>
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	h.serveMedia(w, r, true)
}

// Stream streams the selected format for inline playback.
// GET /api/stream?url=<youtube url>&itag=<format id|best>
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	h.serveMedia(w, r, false)
}

func (h *Handlers) serveMedia(w http.ResponseWriter, r *http.Request, attachment bool) {
	id, err := urlnorm.Normalize(r.URL.Query().Get("url"))
	if err != nil {
		http.Error(w, msgInvalidURL, http.StatusBadRequest)
		return
	}

	itag := r.URL.Query().Get("itag")
	if itag == "" {
		itag = formats.Best
	}

	video, err := h.lookup(r.Context(), id)
	if err != nil {
		logging.Error("Error fetching info for %s: %v", id.VideoID(), err)
		http.Error(w, provider.UserMessage(err), http.StatusInternalServerError)
		return
	}

	sel, err := formats.Resolve(video, itag)
	switch {
	case errors.Is(err, formats.ErrFormatNotFound):
		http.Error(w, "Requested format not found", http.StatusBadRequest)
		return
	case err != nil:
		logging.Warn("No playable format for %s (itag %s): %v", id.VideoID(), itag, err)
		http.Error(w, noPlayableMessage, http.StatusInternalServerError)
		return
	}

	logging.Info("Processing %s for %s, itag: %s (%s)", endpointName(attachment), id.VideoID(), itag, sel.Kind)

	hdr := w.Header()
	hdr.Set("Content-Type", "video/mp4")
	hdr.Set("Cache-Control", "no-store")
	hdr.Set("X-Content-Type-Options", "nosniff")
	if attachment {
		hdr.Set("Content-Disposition", attachmentDisposition(sanitizeFilename(video.Title)))
	}

	cfg := h.sinkConfig
	videoID := id.VideoID()
	cfg.OnProgress = func(n int64, d time.Duration) {
		logging.Debug("Stream progress for %s: %d bytes in %v", videoID, n, d.Round(time.Millisecond))
	}
	sink := streaming.NewSink(r.Context(), w, cfg)
	defer func() { _ = sink.Close() }()

	err = h.engine.Deliver(r.Context(), sel, sink)
	n, d := sink.Stats()
	switch {
	case err == nil:
		logging.Info("Stream for %s finished: %d bytes in %v", videoID, n, d.Round(time.Millisecond))
	case errors.Is(err, context.Canceled):
		logging.Debug("Stream for %s canceled by client after %d bytes", videoID, n)
	case errors.Is(err, delivery.ErrAborted):
		// Headers are gone; only dropping the connection tells the client.
		panic(http.ErrAbortHandler)
	default:
		// The engine already answered with a 500.
		logging.Debug("Stream for %s failed before any bytes: %v", videoID, err)
	}
}

func endpointName(attachment bool) string {
	if attachment {
		return "download"
	}
	return "stream"
}
