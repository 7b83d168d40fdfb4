// ABOUTME: Flat key-value Backend: records stored as JSON under "<kind>:<id>" keys.
// ABOUTME: Scans and filters in memory, ordering exactly like the SQLite backend.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/periodize/internal/models"
)

const statePrefix = "state:"

// KVEngine is the minimal byte-level map the KV backend needs.
// Get must return an error matching ErrNotFound or badger.ErrKeyNotFound for absent keys.
type KVEngine interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Close() error
}

// KVStore is the flat key-value Backend. It offers no cross-record transactions.
type KVStore struct {
	engine KVEngine
	mu     sync.RWMutex
}

// Compile-time check that KVStore implements Backend.
var _ Backend = (*KVStore)(nil)

// NewKVStore wraps an engine.
func NewKVStore(engine KVEngine) *KVStore {
	return &KVStore{engine: engine}
}

func recordKey(kind models.Kind, id string) []byte {
	return []byte(string(kind) + ":" + id)
}

func isMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// Close closes the engine.
func (k *KVStore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engine.Close()
}

// Put overwrites the record stored under its id.
func (k *KVStore) Put(rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.Kind(), err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.engine.Set(recordKey(rec.Kind(), rec.Base().ID), data); err != nil {
		return fmt.Errorf("put %s %s: %w", rec.Kind(), rec.Base().ID, err)
	}
	return nil
}

// Get returns a record by id, including tombstones.
func (k *KVStore) Get(kind models.Kind, id string) (models.Record, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.get(kind, id)
}

func (k *KVStore) get(kind models.Kind, id string) (models.Record, error) {
	data, err := k.engine.Get(recordKey(kind, id))
	if isMissing(err) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return decodeRecord(kind, data)
}

func decodeRecord(kind models.Kind, data []byte) (models.Record, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	models.Normalize(rec)
	return rec, nil
}

// all loads every record of kind. Callers hold the lock.
func (k *KVStore) all(kind models.Kind) ([]models.Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown entity kind: %q", kind)
	}
	keys, err := k.engine.Keys()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	prefix := []byte(string(kind) + ":")
	var out []models.Record
	for _, key := range keys {
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		data, err := k.engine.Get(key)
		if isMissing(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		rec, err := decodeRecord(kind, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (k *KVStore) filter(kind models.Kind, keep func(models.Record) bool) ([]models.Record, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	recs, err := k.all(kind)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func parentOf(rec models.Record) string {
	if rec.Kind().Parent() == "" {
		return rec.Base().UserID
	}
	return rec.ParentID()
}

func orderIndexOf(rec models.Record) int {
	switch r := rec.(type) {
	case *models.Exercise:
		return r.OrderIndex
	case *models.Set:
		return r.OrderIndex
	}
	return 0
}

// ListByParent returns the children of parentID, or a user's periodizations.
func (k *KVStore) ListByParent(kind models.Kind, parentID string, includeDeleted bool) ([]models.Record, error) {
	recs, err := k.filter(kind, func(r models.Record) bool {
		return parentOf(r) == parentID && (includeDeleted || !r.Base().IsDeleted())
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		am, bm := a.Base(), b.Base()
		if kind.Ordered() {
			if oa, ob := orderIndexOf(a), orderIndexOf(b); oa != ob {
				return oa < ob
			}
			if !am.CreatedAt.Equal(bm.CreatedAt) {
				return am.CreatedAt.Before(bm.CreatedAt)
			}
			return am.ID < bm.ID
		}
		if !am.CreatedAt.Equal(bm.CreatedAt) {
			return am.CreatedAt.After(bm.CreatedAt)
		}
		return am.ID < bm.ID
	})
	return recs, nil
}

// ListDirty returns the user's records awaiting push, oldest update first.
func (k *KVStore) ListDirty(kind models.Kind, userID string) ([]models.Record, error) {
	recs, err := k.filter(kind, func(r models.Record) bool {
		return r.Base().UserID == userID && r.Base().NeedsSync
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].Base(), recs[j].Base()
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return recs, nil
}

// ListAll returns every record of kind by creation time.
func (k *KVStore) ListAll(kind models.Kind) ([]models.Record, error) {
	recs, err := k.filter(kind, func(models.Record) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].Base(), recs[j].Base()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return recs, nil
}

// MarkSynced clears needs_sync only if the stored record still carries the pushed version.
func (k *KVStore) MarkSynced(kind models.Kind, id string, version, syncedAt time.Time) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rec, err := k.get(kind, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m := rec.Base()
	if !m.UpdatedAt.Equal(version) {
		return false, nil
	}
	synced := models.NormalizeTime(syncedAt)
	m.SyncedAt = &synced
	m.NeedsSync = false
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := k.engine.Set(recordKey(kind, id), data); err != nil {
		return false, fmt.Errorf("mark %s %s synced: %w", kind, id, err)
	}
	return true, nil
}

// Purge deletes acknowledged tombstones synced before the cutoff whose subtree
// holds nothing live or dirty. Descendants go with them, as a cascading FK would.
func (k *KVStore) Purge(kind models.Kind, before time.Time) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	recs, err := k.all(kind)
	if err != nil {
		return 0, err
	}
	tree := map[models.Kind]map[string][]models.Record{}
	for c := kind.Child(); c != ""; c = c.Child() {
		children, err := k.all(c)
		if err != nil {
			return 0, err
		}
		byParent := map[string][]models.Record{}
		for _, r := range children {
			byParent[r.ParentID()] = append(byParent[r.ParentID()], r)
		}
		tree[c] = byParent
	}

	purged := 0
	for _, r := range recs {
		m := r.Base()
		if !m.IsDeleted() || m.NeedsSync || m.SyncedAt == nil || !m.SyncedAt.Before(before) {
			continue
		}
		if pinned(tree, kind, m.ID) {
			continue
		}
		if err := k.deleteSubtree(tree, kind, m.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func pinned(tree map[models.Kind]map[string][]models.Record, kind models.Kind, id string) bool {
	child := kind.Child()
	if child == "" {
		return false
	}
	for _, c := range tree[child][id] {
		cm := c.Base()
		if cm.NeedsSync || !cm.IsDeleted() || pinned(tree, child, cm.ID) {
			return true
		}
	}
	return false
}

func (k *KVStore) deleteSubtree(tree map[models.Kind]map[string][]models.Record, kind models.Kind, id string) error {
	if child := kind.Child(); child != "" {
		for _, c := range tree[child][id] {
			if err := k.deleteSubtree(tree, child, c.Base().ID); err != nil {
				return err
			}
		}
	}
	if err := k.engine.Delete(recordKey(kind, id)); err != nil && !isMissing(err) {
		return fmt.Errorf("purge %s %s: %w", kind, id, err)
	}
	return nil
}

// GetState reads a bookkeeping value; a missing key yields "".
func (k *KVStore) GetState(key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	data, err := k.engine.Get([]byte(statePrefix + key))
	if isMissing(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync state %s: %w", key, err)
	}
	return string(data), nil
}

// SetState writes a bookkeeping value.
func (k *KVStore) SetState(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.engine.Set([]byte(statePrefix+key), []byte(value)); err != nil {
		return fmt.Errorf("set sync state %s: %w", key, err)
	}
	return nil
}
