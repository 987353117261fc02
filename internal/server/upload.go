package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const (
	postImagesPrefix    = "post_images/"
	profileImagesPrefix = "profile_images/"

	imageField = "image"
	sniffLen   = 512
)

var errNoImage = errors.New("no file was submitted")

// uploadError is an error of client's upload which is reported as a field error.
type uploadError struct {
	msg string
}

func (e uploadError) Error() string {
	return e.msg
}

// imageExtensions maps accepted sniffed content types to extensions of stored files.
// nolint:gochecknoglobals
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// uploadImage stores image from the multipart form under prefix and returns its key.
func (s server) uploadImage(r *http.Request, prefix string) (string, error) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return "", uploadError{msg: "invalid multipart form"}
	}
	defer r.MultipartForm.RemoveAll() // nolint:errcheck

	f, h, err := r.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", uploadError{msg: errNoImage.Error()}
		}
		return "", uploadError{msg: "invalid file"}
	}
	defer f.Close() // nolint:errcheck

	if h.Size > maxImageSize {
		return "", uploadError{msg: fmt.Sprintf("file is too large, maximum size is %d bytes", maxImageSize)}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", uploadError{msg: "upload a valid image"}
	}

	key := prefix + uuid.NewString() + ext

	if err := s.blobs.Put(r.Context(), key, io.MultiReader(bytes.NewReader(head), f), h.Size, contentType); err != nil {
		return "", fmt.Errorf("failed to put blob: %w", err)
	}

	return key, nil
}

// dropImage removes an uploaded image which is not referenced anymore.
func (s server) dropImage(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to delete image")
	}
}
