// ABOUTME: Charm KV engine for the KV backend, replicated through Charm Cloud.
// ABOUTME: Guards writes when another process holds the database lock.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
)

const (
	charmDBName = "periodize"
	charmHost   = "charm.2389.dev"
)

// ErrReadOnly is returned for writes while another process holds the charm lock.
var ErrReadOnly = errors.New("cannot write: database is locked by another process (MCP server?)")

// CharmEngine adapts a charm KV database to KVEngine.
type CharmEngine struct {
	kv       *kv.KV
	autoSync bool
	mu       sync.RWMutex
}

// OpenCharm opens the charm KV database, pulling remote data on startup.
func OpenCharm() (*CharmEngine, error) {
	if os.Getenv("CHARM_HOST") == "" {
		if err := os.Setenv("CHARM_HOST", charmHost); err != nil {
			return nil, err
		}
	}
	db, err := kv.OpenWithDefaultsFallback(charmDBName)
	if err != nil {
		return nil, fmt.Errorf("open charm kv: %w", err)
	}
	// Pull remote data on startup (skip in read-only mode)
	if !db.IsReadOnly() {
		_ = db.Sync()
	}
	return &CharmEngine{kv: db, autoSync: true}, nil
}

// OpenCharmKV opens the KV backend on the charm engine.
func OpenCharmKV() (*KVStore, error) {
	engine, err := OpenCharm()
	if err != nil {
		return nil, err
	}
	return NewKVStore(engine), nil
}

// CharmUserID returns the Charm account id, usable as the local user id.
func CharmUserID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

// SetAutoSync enables or disables replication after every write.
func (c *CharmEngine) SetAutoSync(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSync = enabled
}

func (c *CharmEngine) syncIfEnabled() {
	if c.autoSync && !c.kv.IsReadOnly() {
		_ = c.kv.Sync()
	}
}

func (c *CharmEngine) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Get(key)
}

func (c *CharmEngine) Set(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := c.kv.Set(key, value); err != nil {
		return err
	}
	c.syncIfEnabled()
	return nil
}

func (c *CharmEngine) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := c.kv.Delete(key); err != nil {
		return err
	}
	c.syncIfEnabled()
	return nil
}

func (c *CharmEngine) Keys() ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Keys()
}

func (c *CharmEngine) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Close()
}
