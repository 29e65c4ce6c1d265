package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store is the blob surface the inventory core consumes. Implementations hold
// one object per inventory batch plus one object per delivered line.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetText(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (bool, error)
}

// URLSigner issues time-limited download URLs for delivered content.
type URLSigner interface {
	PresignGet(key string, expiry time.Duration) (string, error)
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}
