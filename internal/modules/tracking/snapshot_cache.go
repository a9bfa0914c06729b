package tracking

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotCache persists the last assembled decision snapshot to disk so a
// burst of snapshot requests does not re-read every store. Entries expire
// after the TTL and the file is dropped whenever a fill mutates state.
type SnapshotCache struct {
	path string
	ttl  time.Duration
	log  zerolog.Logger
}

// NewSnapshotCache creates a file-backed snapshot cache
func NewSnapshotCache(path string, ttl time.Duration, log zerolog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SnapshotCache{
		path: path,
		ttl:  ttl,
		log:  log.With().Str("component", "snapshot_cache").Logger(),
	}
}

// Load returns the cached snapshot if it exists and is fresh
func (c *SnapshotCache) Load() (*DecisionSnapshot, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Msg("Failed to read snapshot cache")
		}
		return nil, false
	}

	var snapshot DecisionSnapshot
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		c.log.Warn().Err(err).Msg("Corrupt snapshot cache, discarding")
		c.Invalidate()
		return nil, false
	}

	if time.Since(snapshot.GeneratedAt) > c.ttl {
		return nil, false
	}

	return &snapshot, true
}

// Store writes the snapshot to disk, replacing any previous entry
func (c *SnapshotCache) Store(snapshot *DecisionSnapshot) {
	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to encode snapshot cache")
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.log.Warn().Err(err).Msg("Failed to write snapshot cache")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.log.Warn().Err(err).Msg("Failed to swap snapshot cache")
	}
}

// Invalidate removes the cached snapshot
func (c *SnapshotCache) Invalidate() {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn().Err(err).Msg("Failed to remove snapshot cache")
	}
}
