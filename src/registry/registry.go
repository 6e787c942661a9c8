// Package registry stores the mapping from connection id to connection
// metadata. A record exists for an id if and only if that connection is
// believed open; disconnect notifications are best-effort, so callers must
// tolerate stale entries and reconcile on failed pushes.
package registry

import (
	"context"
	"errors"

	"github.com/semsearch/gateway/src/types"
)

// ErrNotFound reports that no record exists for a connection id. It is a
// valid state, not a storage failure: the connection is unknown or closed.
var ErrNotFound = errors.New("connection not found")

// Registry is the durable store of live connections.
type Registry interface {
	// Put creates or overwrites the record for its connection id. Idempotent;
	// fails only when the backing store is unavailable.
	Put(ctx context.Context, rec types.ConnectionRecord) error

	// Get returns the record for an id, or ErrNotFound.
	Get(ctx context.Context, connectionID string) (types.ConnectionRecord, error)

	// Delete removes the record if present. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, connectionID string) error

	// Scan returns all current records. Administrative use only; unbounded
	// cost, never called on the message path.
	Scan(ctx context.Context) ([]types.ConnectionRecord, error)
}
