// Package blob contains storages for uploaded images.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys which are empty or escape the storage root.
var ErrInvalidKey = errors.New("invalid key")

// Store saves binary objects under slash-separated keys.
type Store interface {
	// Put stores content of r with the key. size is -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') {
		return "", ErrInvalidKey
	}

	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}

	return k, nil
}
