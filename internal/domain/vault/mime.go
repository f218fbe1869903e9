package vault

import (
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

const (
	PreviewImage = "image"
	PreviewText  = "text"
	PreviewAudio = "audio"
	PreviewVideo = "video"
	PreviewNone  = "none"
)

// detectContentType sniffs the first bytes of content and falls back to the
// type the client declared. content is rewound afterwards.
func detectContentType(content io.ReadSeeker, declared string) (string, error) {
	detected, err := mimetype.DetectReader(content)
	if _, seekErr := content.Seek(0, io.SeekStart); seekErr != nil {
		return "", seekErr
	}
	if err == nil {
		if ct := baseType(detected.String()); ct != "" && ct != defaultContentType {
			return ct, nil
		}
	}
	if ct := baseType(declared); ct != "" {
		return ct, nil
	}
	return defaultContentType, nil
}

func baseType(ct string) string {
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

// PreviewKind classifies a content type for the detail view.
func PreviewKind(contentType string) string {
	ct := baseType(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return PreviewImage
	case strings.HasPrefix(ct, "text/"), ct == "application/json", ct == "application/xml":
		return PreviewText
	case strings.HasPrefix(ct, "audio/"):
		return PreviewAudio
	case strings.HasPrefix(ct, "video/"):
		return PreviewVideo
	default:
		return PreviewNone
	}
}
