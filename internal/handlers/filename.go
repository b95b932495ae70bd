package handlers

import (
	"strings"
)

const maxFilenameLen = 80

// sanitizeFilename turns a video title into a printable ASCII file name with
// an .mp4 extension. The result never contains quotes or backslashes.
func sanitizeFilename(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxFilenameLen {
			break
		}
		if r < 0x20 || r > 0x7e || strings.ContainsRune(`\/:*?"<>|`, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
		n++
	}

	if b.Len() == 0 {
		return "video.mp4"
	}
	return b.String() + ".mp4"
}

// attachmentDisposition returns a Content-Disposition value for a name
// produced by sanitizeFilename, repeated as an RFC 5987 filename* parameter.
func attachmentDisposition(filename string) string {
	return `attachment; filename="` + filename + `"; filename*=UTF-8''` + rfc5987Escape(filename)
}

// rfc5987Escape percent-encodes every byte outside the attr-char set.
func rfc5987Escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&15])
		}
	}
	return b.String()
}
