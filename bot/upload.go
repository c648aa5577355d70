package bot

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"teraleech/internal"
)

// Uploader sends downloaded files into a chat as their detected media
// type, falling back to a plain document when Telegram rejects the
// typed send.
type Uploader struct {
	api     *tgbotapi.BotAPI
	ceiling int64
}

// NewUploader creates an uploader with the given size ceiling
func NewUploader(api *tgbotapi.BotAPI, ceiling int64) *Uploader {
	if ceiling <= 0 {
		ceiling = internal.DefaultUploadCeiling
	}
	return &Uploader{api: api, ceiling: ceiling}
}

// Upload sends the file at path to chatID. The size ceiling is checked
// against the file on disk before any bytes leave the server.
func (u *Uploader) Upload(chatID int64, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return internal.NewUploadRejectedError(fmt.Sprintf("file missing before upload: %v", err))
	}

	if info.Size() > u.ceiling {
		return internal.NewFileTooLargeError(info.Size(), u.ceiling).
			WithHint(fmt.Sprintf("Files over %s cannot be sent by the bot.", humanize.IBytes(uint64(u.ceiling))))
	}

	kind := Classify(path)
	if err := u.send(chatID, path, caption, kind); err == nil {
		return nil
	} else if kind == MediaDocument {
		return internal.NewUploadRejectedError(err.Error())
	} else {
		internal.LogWarn("Typed send as %s failed (%v), retrying as document", kind, err)
	}

	if err := u.send(chatID, path, caption, MediaDocument); err != nil {
		return internal.NewUploadRejectedError(err.Error())
	}
	return nil
}

// send issues one Telegram upload of the given kind
func (u *Uploader) send(chatID int64, path, caption string, kind MediaKind) error {
	file := tgbotapi.FilePath(path)

	var msg tgbotapi.Chattable
	switch kind {
	case MediaVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption = caption
		cfg.SupportsStreaming = true
		msg = cfg
	case MediaAudio:
		cfg := tgbotapi.NewAudio(chatID, file)
		cfg.Caption = caption
		msg = cfg
	case MediaPhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption = caption
		msg = cfg
	default:
		cfg := tgbotapi.NewDocument(chatID, file)
		cfg.Caption = caption
		msg = cfg
	}

	_, err := u.api.Send(msg)
	return err
}
