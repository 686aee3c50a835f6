package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"stellartourism.org/internal/obs"
)

// DefaultCompactionCooldown bounds blacklist compaction I/O under load.
const DefaultCompactionCooldown = 15 * time.Minute

// fallbackRevocationTTL covers tokens that could not be decoded: they are
// blacklisted under a content hash for a fixed window.
const fallbackRevocationTTL = 24 * time.Hour

// BlacklistStore is the persistence collaborator behind the revocation
// list. The Blacklist owns the in-memory map and decides when to flush.
type BlacklistStore interface {
	Load() (map[string]int64, error)
	Save(map[string]int64) error
}

// Blacklist is the process-wide set of revoked token identifiers, safe for
// concurrent use. Reads fail open: if the store cannot be loaded the list
// starts empty. Writes fail closed: Revoke reports an error whenever the
// updated map could not be made durable.
type Blacklist struct {
	mu      sync.Mutex
	entries map[string]int64
	store   BlacklistStore
	sweep   *rate.Limiter
	now     func() time.Time
}

// NewBlacklist loads persisted entries and arms the compaction throttle.
// A cooldown of zero disables throttling (every Compact call sweeps).
func NewBlacklist(store BlacklistStore, cooldown time.Duration, now func() time.Time) *Blacklist {
	if now == nil {
		now = time.Now
	}
	entries, err := store.Load()
	if err != nil {
		obs.LogEvent("warn", "blacklist load failed, starting empty", map[string]any{"error": err.Error()})
		entries = map[string]int64{}
	}
	if entries == nil {
		entries = map[string]int64{}
	}
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	return &Blacklist{
		entries: entries,
		store:   store,
		sweep:   rate.NewLimiter(limit, 1),
		now:     now,
	}
}

// IsRevoked reports whether a non-expired entry exists for the token id.
func (b *Blacklist) IsRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry, ok := b.entries[tokenID]
	return ok && expiry >= b.now().Unix()
}

// Revoke upserts the entry and flushes it to the store before returning.
// The in-memory entry is kept even when the flush fails, so the token stays
// rejected for the lifetime of this process, but the caller must treat the
// returned ErrPersistence as a security-relevant failure.
func (b *Blacklist) Revoke(tokenID string, expiry int64) error {
	if tokenID == "" {
		return fmt.Errorf("%w: empty token id", ErrPersistence)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenID] = expiry
	if err := b.store.Save(b.snapshotLocked()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Compact drops entries whose expiry has passed. Throttled: it runs at most
// once per cooldown window regardless of call frequency.
func (b *Blacklist) Compact() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sweep.Allow() {
		return
	}
	now := b.now().Unix()
	changed := false
	for id, expiry := range b.entries {
		if expiry < now {
			delete(b.entries, id)
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := b.store.Save(b.snapshotLocked()); err != nil {
		// Compaction is an optimization; a failed flush here loses no
		// revocations, the next Revoke will retry the write.
		obs.LogEvent("warn", "blacklist compaction flush failed", map[string]any{"error": err.Error()})
	}
}

// Len returns the number of entries currently held, expired or not.
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Blacklist) snapshotLocked() map[string]int64 {
	out := make(map[string]int64, len(b.entries))
	for k, v := range b.entries {
		out[k] = v
	}
	return out
}

// HashTokenID derives a stable blacklist key for tokens without a usable
// jti, or that failed to decode at revocation time.
func HashTokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
