// ABOUTME: Remote Adapter contract: user-scoped CRUD against the shared backend.
// ABOUTME: Fetches include tombstones; live reads exclude them.

// Package remote implements the Remote Adapter: network CRUD against the
// shared relational backend, scoped to the authenticated user.
//
// Two implementations are provided:
//   - RESTClient speaks the PostgREST dialect (one resource per table)
//   - SQLRemote talks to a relational database directly, for self-hosting
//     and for simulating a second device in tests
package remote

import (
	"context"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// CallTimeout bounds every remote round trip.
const CallTimeout = 5 * time.Second

// Remote is the contract the sync engine pushes to and pulls from.
type Remote interface {
	// Upsert inserts or overwrites the full row by id.
	Upsert(ctx context.Context, rec models.Record) error
	// FetchSince returns the user's rows whose server sequence is strictly
	// after seq, tombstones included, in sequence order. Zero fetches everything.
	FetchSince(ctx context.Context, kind models.Kind, userID string, seq int64) ([]Change, error)
	// ListLive returns the user's rows with deleted_at IS NULL, ordered by
	// order_index for ordered kinds and created_at otherwise.
	ListLive(ctx context.Context, kind models.Kind, userID string) ([]models.Record, error)
	// SoftDelete stamps deleted_at and updated_at on an existing row.
	SoftDelete(ctx context.Context, rec models.Record) error
	// Ping checks reachability and credentials.
	Ping(ctx context.Context) error
}

// SeqColumn is the server-assigned write sequence. Every upsert and soft
// delete stamps a value above any earlier write of the same user, in commit
// order, so it can serve as a pull cursor where client updated_at cannot:
// a device that syncs late uploads edits carrying old timestamps.
const SeqColumn = "server_seq"

// Change is one fetched row and the sequence of its last write.
type Change struct {
	Record models.Record
	Seq    int64
}

// Records drops the sequence numbers.
func Records(changes []Change) []models.Record {
	out := make([]models.Record, len(changes))
	for i, c := range changes {
		out[i] = c.Record
	}
	return out
}

// liveOrder is the ORDER BY column list for ListLive.
func liveOrder(kind models.Kind) []string {
	if kind.Ordered() {
		return []string{"order_index", "created_at", "id"}
	}
	return []string{"created_at", "id"}
}
