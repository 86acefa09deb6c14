package selection

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vidnote/vidnote/internal/ports"
)

// DefaultTTL is how long a capability record stays trusted before the model
// is probed again.
const DefaultTTL = 24 * time.Hour

const probeTimeout = 15 * time.Second

// probePrompt forces a binary single-token answer so the reply can be matched
// literally. Anything else is treated as "unknown" and resolved toward the
// OCR path, which degrades safely.
const probePrompt = "Answer with exactly one word and nothing else. " +
	"If you can analyze images attached to a chat message, answer CAPABLE. " +
	"If you are a text-only model that cannot process images, answer TEXT-ONLY."

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Record states whether one (provider, model) pair understands images.
type Record struct {
	ProviderID string
	ModelName  string
	HasVision  bool
	Confidence Confidence
	DetectedAt time.Time
}

// Cache stores capability records keyed by (provider, model). Get must treat
// entries older than the TTL as absent.
type Cache interface {
	Get(providerID, modelName string) (Record, bool)
	Put(rec Record)
	Invalidate(providerID, modelName string)
}

// MemoryCache is a process-local Cache with lazy TTL expiry. The clock is
// injectable so tests can move time.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Record
}

func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: make(map[string]Record)}
}

func (c *MemoryCache) Get(providerID, modelName string) (Record, bool) {
	c.mu.RLock()
	rec, ok := c.entries[cacheKey(providerID, modelName)]
	c.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	if c.now().Sub(rec.DetectedAt) > c.ttl {
		return Record{}, false
	}
	return rec, true
}

func (c *MemoryCache) Put(rec Record) {
	c.mu.Lock()
	c.entries[cacheKey(rec.ProviderID, rec.ModelName)] = rec
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(providerID, modelName string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(providerID, modelName))
	c.mu.Unlock()
}

func cacheKey(providerID, modelName string) string {
	return providerID + "/" + modelName
}

// Detector resolves vision capability with one text probe per (provider,
// model) per TTL window. Concurrent callers for the same key share a single
// in-flight probe.
type Detector struct {
	client ports.ModelClient
	cache  Cache
	group  singleflight.Group
	now    func() time.Time
	log    *slog.Logger
}

func NewDetector(client ports.ModelClient, cache Cache, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{client: client, cache: cache, now: time.Now, log: log}
}

// Detect never fails: an unreachable or evasive model is recorded as
// text-only with low confidence, and that outcome is cached too so a broken
// endpoint is not hammered on every run.
func (d *Detector) Detect(ctx context.Context, providerID, modelName string) Record {
	if rec, ok := d.cache.Get(providerID, modelName); ok {
		return rec
	}

	v, _, _ := d.group.Do(cacheKey(providerID, modelName), func() (any, error) {
		// Another caller may have finished while this one waited on the key.
		if rec, ok := d.cache.Get(providerID, modelName); ok {
			return rec, nil
		}
		rec := d.probe(ctx, providerID, modelName)
		d.cache.Put(rec)
		return rec, nil
	})
	return v.(Record)
}

func (d *Detector) probe(ctx context.Context, providerID, modelName string) Record {
	rec := Record{
		ProviderID: providerID,
		ModelName:  modelName,
		DetectedAt: d.now(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	reply, err := d.client.Complete(probeCtx, modelName, probePrompt)
	if err != nil {
		d.log.Warn("capability probe failed, assuming text-only",
			"provider", providerID, "model", modelName, "error", err)
		rec.HasVision = false
		rec.Confidence = ConfidenceLow
		return rec
	}

	switch normalizeProbeReply(reply) {
	case "CAPABLE":
		rec.HasVision = true
		rec.Confidence = ConfidenceHigh
	case "TEXT-ONLY", "TEXTONLY", "TEXT_ONLY":
		rec.HasVision = false
		rec.Confidence = ConfidenceHigh
	default:
		d.log.Warn("ambiguous capability probe reply, assuming text-only",
			"provider", providerID, "model", modelName, "reply", reply)
		rec.HasVision = false
		rec.Confidence = ConfidenceLow
	}
	return rec
}

func normalizeProbeReply(reply string) string {
	t := strings.TrimSpace(reply)
	t = strings.Trim(t, "\"'`.!")
	return strings.ToUpper(t)
}
