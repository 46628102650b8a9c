package remote

import "context"

// Store is the remote document store the queue reconciles against: a keyed
// collection store addressed by (collection, documentID). Every call is
// transactional on the remote side and may fail transiently; the sync engine
// does not distinguish retryable from terminal failures.
type Store interface {
	// Create adds a document. An empty documentID asks the store to assign
	// one; the assigned id is returned either way.
	Create(ctx context.Context, collection, documentID string, fields map[string]any) (string, error)

	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, documentID string, fields map[string]any) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, documentID string) error

	// Close releases resources.
	Close() error
}
