// ABOUTME: Sync engine state machine values and the collaborator contracts it consumes.
// ABOUTME: Identity and Reachability are provided by the composition root.
package sync

import (
	"errors"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// State is the engine's position in Idle -> Pushing -> Pulling -> Idle.
type State int32

const (
	StateIdle State = iota
	StatePushing
	StatePulling
	// StateError is entered on unrecoverable failure and left only via Reset.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ErrAborted is returned when a pass is interrupted by losing the remote.
// Records completed before the interruption stay completed.
var ErrAborted = errors.New("sync aborted")

// Store is the part of the local store the engine drives.
type Store interface {
	ListDirty(kind models.Kind, userID string) ([]models.Record, error)
	GetRecord(kind models.Kind, id string) (models.Record, error)
	MarkSynced(kind models.Kind, id string, version, syncedAt time.Time) (bool, error)
	ApplyRemote(rec models.Record, syncedAt time.Time) error
	PendingCount(userID string) (int, error)
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Identity supplies the authenticated user.
type Identity interface {
	CurrentUserID() (string, bool)
}

// StaticIdentity is an Identity fixed at construction; empty means signed out.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID() (string, bool) { return string(s), s != "" }

// Reachability reports connectivity and notifies on changes.
type Reachability interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// State keys persisted through Store.SetState.
const lastSyncedKey = "last_synced_at"

// cursorKey names the pull cursor of (kind, user). The value is the last
// merged remote write sequence.
func cursorKey(kind models.Kind, userID string) string {
	return "pull_seq:" + string(kind) + ":" + userID
}
