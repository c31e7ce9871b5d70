package models

import (
	"fmt"
	"time"
)

// WatchItem is the canonical normalized form of one history entry from any
// platform. `(Platform, ExternalID)` is the natural deduplication key.
type WatchItem struct {
	Platform   string
	ExternalID string
	Title      string
	Cover      string
	URL        string
	WatchedAt  time.Time
	Progress   *float64 // fraction watched, platform-dependent
	Rating     *float64
	Metadata   map[string]any
}

// PersistedItem wraps a WatchItem with persistence bookkeeping.
type PersistedItem struct {
	id        string
	sequence  int
	item      WatchItem
	createdAt time.Time
	updatedAt time.Time
}

// NewPersistedItem creates a PersistedItem from a normalized WatchItem.
func NewPersistedItem(sequence int, item WatchItem) *PersistedItem {
	now := time.Now()
	return &PersistedItem{
		sequence:  sequence,
		item:      item,
		createdAt: now,
		updatedAt: now,
	}
}

func (p *PersistedItem) ID() string           { return p.id }
func (p *PersistedItem) Sequence() int        { return p.sequence }
func (p *PersistedItem) Item() WatchItem      { return p.item }
func (p *PersistedItem) Platform() string     { return p.item.Platform }
func (p *PersistedItem) ExternalID() string   { return p.item.ExternalID }
func (p *PersistedItem) CreatedAt() time.Time { return p.createdAt }
func (p *PersistedItem) UpdatedAt() time.Time { return p.updatedAt }

func (p *PersistedItem) SetID(id string)             { p.id = id }
func (p *PersistedItem) SetUpdatedAt(t time.Time)    { p.updatedAt = t }
func (p *PersistedItem) SetCreatedAt(t time.Time)    { p.createdAt = t }
func (p *PersistedItem) SetItem(item WatchItem)      { p.item = item }

// Validate checks the natural key and timestamp are present.
func (p *PersistedItem) Validate() error {
	if p.item.Platform == "" {
		return fmt.Errorf("item platform is required")
	}
	if p.item.ExternalID == "" {
		return fmt.Errorf("item external ID is required")
	}
	if p.item.WatchedAt.IsZero() {
		return fmt.Errorf("item watched_at is required")
	}
	return nil
}
