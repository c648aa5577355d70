package bot

import (
	"path/filepath"
	"strings"
)

// MediaKind is the Telegram send method chosen for a file
type MediaKind int

const (
	MediaDocument MediaKind = iota
	MediaVideo
	MediaAudio
	MediaPhoto
)

// String returns the display label for the media kind
func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaPhoto:
		return "photo"
	default:
		return "document"
	}
}

var mediaKinds = map[string]MediaKind{
	".mp4":  MediaVideo,
	".mkv":  MediaVideo,
	".avi":  MediaVideo,
	".mov":  MediaVideo,
	".webm": MediaVideo,
	".flv":  MediaVideo,
	".wmv":  MediaVideo,
	".m4v":  MediaVideo,
	".3gp":  MediaVideo,
	".ts":   MediaVideo,

	".mp3":  MediaAudio,
	".m4a":  MediaAudio,
	".flac": MediaAudio,
	".wav":  MediaAudio,
	".ogg":  MediaAudio,
	".opus": MediaAudio,
	".aac":  MediaAudio,
	".wma":  MediaAudio,

	".jpg":  MediaPhoto,
	".jpeg": MediaPhoto,
	".png":  MediaPhoto,
	".webp": MediaPhoto,
}

// Classify picks the send method from the file extension. Unknown
// extensions go out as documents, which Telegram accepts for anything.
func Classify(filename string) MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := mediaKinds[ext]; ok {
		return kind
	}
	return MediaDocument
}
