package audio

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxUploadSizeMB = 25
	maxUploadBytes  = MaxUploadSizeMB * 1024 * 1024
)

// allowedFormats maps sniffed MIME types to the extension the speech backend
// uses to pick a decoder.
var allowedFormats = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/flac":  "flac",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
}

var formatNames = map[string]string{
	"mp3":  "MP3",
	"wav":  "WAV",
	"m4a":  "M4A",
	"flac": "FLAC",
	"webm": "WebM",
	"ogg":  "OGG",
}

type ValidatedUpload struct {
	Data      []byte
	MIMEType  string
	Extension string
	SizeMB    float64
}

func SupportedFormats() string {
	seen := make(map[string]struct{})
	names := make([]string, 0, len(formatNames))
	for _, ext := range allowedFormats {
		name := formatNames[ext]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// lookupAllowed walks the detected type and its parents so aliases such as
// video/webm <-> audio/webm and application/ogg children resolve.
func lookupAllowed(mt *mimetype.MIME) (string, bool) {
	for m := mt; m != nil; m = m.Parent() {
		for mime, ext := range allowedFormats {
			if m.Is(mime) {
				return ext, true
			}
		}
	}
	return "", false
}

// ValidateUpload sniffs data and checks it against the allow-list, then checks
// size (the declared upload size, which may exceed len(data)) against the
// ceiling. Failures are client-facing 400s carrying the detected type.
func ValidateUpload(filename string, data []byte, size int64) (*ValidatedUpload, error) {
	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	details := map[string]string{"mime_type": mime}

	ext, ok := lookupAllowed(mt)
	if !ok {
		switch {
		case strings.HasPrefix(mime, "video/"):
			return nil, shared.NewAPIError("video_file", fmt.Sprintf(
				"Video file detected! '%s' is a video (%s). Please upload audio only. Supported: %s",
				filename, mime, SupportedFormats())).WithDetails(details).ToHTTP(http.StatusBadRequest)
		case !strings.HasPrefix(mime, "audio/"):
			return nil, shared.NewAPIError("invalid_file_type", fmt.Sprintf(
				"Invalid file type! '%s' is %s. Expected audio file. Supported: %s",
				filename, mime, SupportedFormats())).WithDetails(details).ToHTTP(http.StatusBadRequest)
		default:
			return nil, shared.NewAPIError("unsupported_format", fmt.Sprintf(
				"Unsupported audio format! '%s' is %s. Supported formats: %s",
				filename, mime, SupportedFormats())).WithDetails(details).ToHTTP(http.StatusBadRequest)
		}
	}

	sizeMB := float64(size) / (1024 * 1024)
	if size > maxUploadBytes || len(data) > maxUploadBytes {
		return nil, shared.NewAPIError("file_too_large", fmt.Sprintf(
			"File too large: %.1fMB. Maximum is %dMB", sizeMB, MaxUploadSizeMB)).
			WithDetails(details).ToHTTP(http.StatusBadRequest)
	}

	return &ValidatedUpload{
		Data:      data,
		MIMEType:  mime,
		Extension: ext,
		SizeMB:    sizeMB,
	}, nil
}
