package dictionary

import (
	"context"
	"time"
)

// Fetcher retrieves one record from the remote word source. Errors must wrap
// ErrRemoteRequestFailed or ErrDeserializationFailed so callers can classify them.
type Fetcher interface {
	Fetch(ctx context.Context) (Record, error)
}

// ArtifactStore persists completed dictionaries keyed by job identifier.
type ArtifactStore interface {
	Write(ctx context.Context, id string, records []Record) error
	Read(ctx context.Context, id string) ([]byte, error)
	ReadAll(ctx context.Context) ([]Artifact, error)
	Delete(ctx context.Context, id string) error
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
