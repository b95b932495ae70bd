package handlers

import (
	"ytstream/internal/formats"
	"ytstream/internal/provider"
)

type thumbnailResponse = provider.Thumbnail

type formatResponse struct {
	Itag         string  `json:"itag"`
	QualityLabel string  `json:"qualityLabel"`
	HasVideo     bool    `json:"hasVideo"`
	HasAudio     bool    `json:"hasAudio"`
	Container    string  `json:"container"`
	Bitrate      float64 `json:"bitrate"`
	Filesize     *int64  `json:"filesize"`
	URL          string  `json:"url"`
}

type videoResponse struct {
	VideoID       string              `json:"videoId"`
	Title         string              `json:"title"`
	Author        string              `json:"author"`
	LengthSeconds int                 `json:"lengthSeconds"`
	Thumbnails    []thumbnailResponse `json:"thumbnails"`
	URL           string              `json:"url"`
	Formats       []formatResponse    `json:"formats"`
}

// newVideoResponse builds the /api/info body from cached metadata. ranked
// must be the output of formats.Rank.
func newVideoResponse(v *provider.Video, ranked []provider.Format) videoResponse {
	resp := videoResponse{
		VideoID:       v.ID,
		Title:         v.Title,
		Author:        v.Author,
		LengthSeconds: v.DurationSeconds,
		Thumbnails:    v.Thumbnails,
		URL:           v.URL,
		Formats:       make([]formatResponse, 0, len(ranked)),
	}
	if resp.Author == "" {
		resp.Author = "Unknown"
	}
	if resp.Thumbnails == nil {
		resp.Thumbnails = []thumbnailResponse{}
	}

	for _, f := range ranked {
		fr := formatResponse{
			Itag:         f.ID,
			QualityLabel: f.QualityLabel,
			HasVideo:     f.HasVideo,
			HasAudio:     f.HasAudio,
			Container:    f.Container,
			Bitrate:      f.Bitrate,
			URL:          f.URL,
		}
		if f.Filesize > 0 {
			size := f.Filesize
			fr.Filesize = &size
		}
		resp.Formats = append(resp.Formats, fr)
	}
	return resp
}

// rankedFormats returns the client-facing format list or
// formats.ErrNoPlayableFormat when nothing is playable.
func rankedFormats(v *provider.Video) ([]provider.Format, error) {
	ranked := formats.Rank(v.Formats)
	if len(ranked) == 0 {
		return nil, formats.ErrNoPlayableFormat
	}
	return ranked, nil
}
