package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	// ObjectKey is the decimal frame id.
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// Location is where the provider put the bytes: a path for localfs, a
	// file id for gdrive.
	Location string
	Size     int64
}

// StorageProvider persists rendered frames.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	DeleteObject(ctx context.Context, location string) error

	// Check reports whether the backend is reachable and writable.
	Check(ctx context.Context) error
}
