package bridge

import "sync"

// StateCache holds the last known fan state. It is the source the HTTP
// API reads from and the base the dispatcher patches read-back results
// into. Snapshots are deep-copied on the way in and out, so callers can
// hold what they get without racing the cache.
//
// Thread Safety: all methods are safe for concurrent use.
type StateCache struct {
	mu   sync.RWMutex
	snap Snapshot
	set  bool
}

// NewStateCache creates an empty cache. Read reports ok=false until the
// first Replace or Patch lands.
func NewStateCache() *StateCache {
	return &StateCache{}
}

// Read returns a copy of the cached snapshot. ok is false when nothing
// has been cached yet.
func (c *StateCache) Read() (snap Snapshot, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return Snapshot{}, false
	}
	return c.snap.clone(), true
}

// Replace swaps the entire cached snapshot. The poller calls this after
// a full read cycle.
func (c *StateCache) Replace(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap.clone()
	c.set = true
}

// Patch merges the present fields of patch into the cached snapshot and
// returns the merged result. Nil pointer fields, an empty Name, and a
// zero UpdatedAt leave the cached values untouched.
func (c *StateCache) Patch(patch Snapshot) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if patch.Name != "" {
		c.snap.Name = patch.Name
	}
	if patch.Power != nil {
		c.snap.Power = copyState(patch.Power)
	}
	if patch.Speed != nil {
		c.snap.Speed = copyInt(patch.Speed)
	}
	if patch.Whoosh != nil {
		c.snap.Whoosh = copyState(patch.Whoosh)
	}
	if patch.LightPower != nil {
		c.snap.LightPower = copyState(patch.LightPower)
	}
	if patch.LightLevel != nil {
		c.snap.LightLevel = copyInt(patch.LightLevel)
	}
	if !patch.UpdatedAt.IsZero() {
		c.snap.UpdatedAt = patch.UpdatedAt
	}
	c.set = true

	return c.snap.clone()
}
