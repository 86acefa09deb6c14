package store

import (
	"database/sql"
	"time"

	"github.com/vidnote/vidnote/internal/domain/selection"
)

// CapabilityCache is a selection.Cache backed by the history database, so a
// capability record survives across CLI invocations for its whole TTL window.
// The interface has no error returns: a failed lookup reads as a miss and a
// failed write is dropped, which at worst costs one extra probe.
type CapabilityCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func (s *Store) CapabilityCache(ttl time.Duration) *CapabilityCache {
	if ttl <= 0 {
		ttl = selection.DefaultTTL
	}
	return &CapabilityCache{db: s.db, ttl: ttl, now: time.Now}
}

func (c *CapabilityCache) Get(providerID, modelName string) (selection.Record, bool) {
	var (
		hasVision  int
		confidence string
		detectedAt int64
	)
	err := c.db.QueryRow(`
		SELECT has_vision, confidence, detected_at FROM capabilities
		WHERE provider_id = ? AND model_name = ?
	`, providerID, modelName).Scan(&hasVision, &confidence, &detectedAt)
	if err != nil {
		return selection.Record{}, false
	}

	rec := selection.Record{
		ProviderID: providerID,
		ModelName:  modelName,
		HasVision:  hasVision != 0,
		Confidence: selection.Confidence(confidence),
		DetectedAt: time.Unix(detectedAt, 0).UTC(),
	}
	if c.now().Sub(rec.DetectedAt) > c.ttl {
		return selection.Record{}, false
	}
	return rec, true
}

func (c *CapabilityCache) Put(rec selection.Record) {
	hasVision := 0
	if rec.HasVision {
		hasVision = 1
	}
	_, _ = c.db.Exec(`
		INSERT OR REPLACE INTO capabilities (provider_id, model_name, has_vision, confidence, detected_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ProviderID, rec.ModelName, hasVision, string(rec.Confidence), rec.DetectedAt.Unix())
}

func (c *CapabilityCache) Invalidate(providerID, modelName string) {
	_, _ = c.db.Exec(`
		DELETE FROM capabilities WHERE provider_id = ? AND model_name = ?
	`, providerID, modelName)
}
