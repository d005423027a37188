package archive

import (
	"context"
	"time"
)

// ObjectStore persists raw documents under deterministic keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

// IssueStore persists issue rows. Upsert must be a single atomic statement
// and report whether the row was newly created.
type IssueStore interface {
	Upsert(ctx context.Context, issue Issue) (created bool, err error)
	Get(ctx context.Context, id string) (Issue, error)
	List(ctx context.Context) ([]Issue, error)
}

// Indexer keeps the full-text index entry for an issue in lockstep with its row.
type Indexer interface {
	Refresh(ctx context.Context, issue Issue) error
}

// Searcher returns issues whose title or text contain the query phrase.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// TextExtractor turns a downloaded document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Publisher pushes ingestion notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests of stored documents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
