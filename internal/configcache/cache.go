// Package configcache keeps the last few configurations a node applied so a
// master can restart them with a CacheStart instead of resending every frame.
package configcache

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/clelom/titan/internal/ctxlog"
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/wire"
)

// Capacity is the number of configurations held at once.
const Capacity = packet.CacheEntries

// Entry is one cached configuration in its compact segment form.
type Entry struct {
	ConfigID uint8
	NumTasks uint8
	NumConns uint8
	Data     []byte
	// Seq orders entries by store time; the lowest is evicted first.
	Seq uint64
}

// Persister mirrors the cache into durable storage.
type Persister interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, configID uint8) error
	Load(ctx context.Context) ([]Entry, error)
}

// Cache is a fixed set of entries keyed by configuration id. When full, the
// entry written longest ago makes room for a new id. Storing an id that is
// already present overwrites it and makes it the newest entry.
type Cache struct {
	entries []Entry
	seq     uint64
	persist Persister
}

// New creates an empty cache. p may be nil.
func New(p Persister) *Cache {
	return &Cache{entries: make([]Entry, 0, Capacity), persist: p}
}

// Store caches cfg under its configuration id.
func (c *Cache) Store(ctx context.Context, cfg wire.Config) error {
	if cfg.ConfigID > wire.MaxConfigID {
		return errcode.New(errcode.CacheStoreFailed, errcode.SourceFramework, "config id %d out of range", cfg.ConfigID)
	}
	if len(cfg.Tasks) > 0xFF || len(cfg.Conns) > 0xFF {
		return errcode.New(errcode.CacheStoreFailed, errcode.SourceFramework, "config %d too large to cache", cfg.ConfigID)
	}
	data := wire.EncodeSegments(cfg)
	if len(data) > packet.CacheMaxDataSize {
		return errcode.New(errcode.CacheStoreFailed, errcode.SourceFramework, "config %d needs %d bytes, cache holds %d", cfg.ConfigID, len(data), packet.CacheMaxDataSize)
	}
	e := Entry{
		ConfigID: cfg.ConfigID,
		NumTasks: uint8(len(cfg.Tasks)),
		NumConns: uint8(len(cfg.Conns)),
		Data:     data,
		Seq:      c.seq + 1,
	}
	logger := ctxlog.FromContext(ctx)

	// The entry is saved first so a failed write leaves the cache as it was.
	if c.persist != nil {
		if err := c.persist.Save(ctx, e); err != nil {
			return &errcode.Error{Code: errcode.CacheStoreFailed, Source: errcode.SourceFramework, Err: fmt.Errorf("persist config %d: %w", cfg.ConfigID, err)}
		}
	}
	c.seq = e.Seq

	if i := c.index(cfg.ConfigID); i >= 0 {
		c.entries[i] = e
	} else {
		if len(c.entries) == Capacity {
			old := c.entries[c.oldest()]
			c.remove(old.ConfigID)
			logger.Debug("Evicting cached configuration.", "config", old.ConfigID)
			if c.persist != nil {
				if err := c.persist.Delete(ctx, old.ConfigID); err != nil {
					logger.Warn("Failed to delete persisted configuration.", "config", old.ConfigID, "error", err)
				}
			}
		}
		c.entries = append(c.entries, e)
	}
	logger.Debug("Cached configuration.", "config", cfg.ConfigID, "bytes", len(data))
	return nil
}

// Lookup returns the entry for configID.
func (c *Cache) Lookup(configID uint8) (Entry, bool) {
	i := c.index(configID)
	if i < 0 {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Load decodes the cached configuration for configID. A missing entry fails
// with NoCacheEntry.
func (c *Cache) Load(configID uint8) (wire.Config, error) {
	e, ok := c.Lookup(configID)
	if !ok {
		return wire.Config{}, errcode.New(errcode.NoCacheEntry, errcode.SourceFramework, "config %d not cached", configID)
	}
	return wire.DecodeSegments(e.ConfigID, int(e.NumTasks), int(e.NumConns), e.Data)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// IDs returns the cached configuration ids, oldest first.
func (c *Cache) IDs() []uint8 {
	sorted := slices.Clone(c.entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return cmp.Compare(a.Seq, b.Seq) })
	ids := make([]uint8, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ConfigID
	}
	return ids
}

// Reset forgets every entry without touching the persister.
func (c *Cache) Reset() {
	c.entries = c.entries[:0]
}

// Restore refills the cache from the persister, keeping the newest entries
// when more than Capacity were saved.
func (c *Cache) Restore(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	saved, err := c.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore config cache: %w", err)
	}
	slices.SortFunc(saved, func(a, b Entry) int { return cmp.Compare(b.Seq, a.Seq) })
	c.entries = c.entries[:0]
	for _, e := range saved {
		if len(c.entries) == Capacity {
			break
		}
		if e.ConfigID > wire.MaxConfigID || len(e.Data) > packet.CacheMaxDataSize || c.index(e.ConfigID) >= 0 {
			continue
		}
		c.entries = append(c.entries, e)
		c.seq = max(c.seq, e.Seq)
	}
	ctxlog.FromContext(ctx).Debug("Restored configuration cache.", "entries", len(c.entries))
	return nil
}

func (c *Cache) index(configID uint8) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.ConfigID == configID })
}

func (c *Cache) oldest() int {
	o := 0
	for i, e := range c.entries {
		if e.Seq < c.entries[o].Seq {
			o = i
		}
	}
	return o
}

func (c *Cache) remove(configID uint8) {
	if i := c.index(configID); i >= 0 {
		c.entries = slices.Delete(c.entries, i, i+1)
	}
}
