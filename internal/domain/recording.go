package domain

import (
	"strings"
	"time"
)

const (
	ContentTypeWebM = "audio/webm"
	ContentTypeWAV  = "audio/wav"
	ContentTypeOgg  = "audio/ogg"
	ContentTypeMP3  = "audio/mpeg"
	ContentTypeM4A  = "audio/mp4"
)

// Recording is the audio assembled from one capture session.
type Recording struct {
	ID          string
	ContentType string
	Data        []byte
	Fragments   int
	StartedAt   time.Time
	StoppedAt   time.Time
}

func (r *Recording) Size() int {
	return len(r.Data)
}

func (r *Recording) Duration() time.Duration {
	if r.StoppedAt.Before(r.StartedAt) {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// Extension returns the file extension (without dot) for the recording's content type.
func (r *Recording) Extension() string {
	return ExtensionFor(r.ContentType)
}

var extensions = map[string]string{
	ContentTypeWebM: "webm",
	ContentTypeWAV:  "wav",
	"audio/x-wav":   "wav",
	"audio/wave":    "wav",
	ContentTypeOgg:  "ogg",
	ContentTypeMP3:  "mp3",
	ContentTypeM4A:  "m4a",
}

// ExtensionFor maps a content type to a file extension. Parameters such as
// "codecs=opus" are ignored. Unknown types map to "bin".
func ExtensionFor(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	if ext, ok := extensions[strings.TrimSpace(strings.ToLower(base))]; ok {
		return ext
	}
	return "bin"
}

// ContentTypeFor is the inverse of ExtensionFor. The extension may carry a leading dot.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "webm":
		return ContentTypeWebM
	case "wav":
		return ContentTypeWAV
	case "ogg", "opus":
		return ContentTypeOgg
	case "mp3":
		return ContentTypeMP3
	case "m4a":
		return ContentTypeM4A
	default:
		return "application/octet-stream"
	}
}
