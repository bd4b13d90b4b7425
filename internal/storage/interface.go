package storage

import "context"

// Archive stores ingestion run snapshots as named blobs.
type Archive interface {
	Store(ctx context.Context, name string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}
