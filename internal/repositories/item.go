package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"watchvault/internal/models"
	"watchvault/internal/shared"
)

// ItemRepository persists normalized watch history items.
//
// The natural key is (platform, external_id); Upsert is idempotent under it,
// updating mutable fields (watched_at, progress, rating, title, cover, url,
// metadata) without ever creating duplicates.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new ItemRepository with the given database connection
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Upsert inserts a watch item or, when its (platform, external_id) already
// exists, updates the mutable fields of the stored row.
func (r *ItemRepository) Upsert(item models.WatchItem) error {
	persisted := models.NewPersistedItem(0, item)
	if err := persisted.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "items")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()

	query := `
		INSERT INTO items (id, sequence, platform, external_id, title, cover, url, watched_at, progress, rating, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, external_id) DO UPDATE SET
			title = excluded.title,
			cover = excluded.cover,
			url = excluded.url,
			watched_at = excluded.watched_at,
			progress = excluded.progress,
			rating = excluded.rating,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(),
		sequence,
		item.Platform,
		item.ExternalID,
		item.Title,
		item.Cover,
		item.URL,
		item.WatchedAt,
		item.Progress,
		item.Rating,
		string(metadata),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	return nil
}

// ExistingIDs reports which of the given external IDs are already stored for
// a platform. Used by the sync engine's early-stop heuristic.
func (r *ItemRepository) ExistingIDs(platform string, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(externalIDs)), ",")
	query := fmt.Sprintf(
		"SELECT external_id FROM items WHERE platform = ? AND external_id IN (%s)",
		placeholders,
	)

	args := make([]any, 0, len(externalIDs)+1)
	args = append(args, platform)
	for _, id := range externalIDs {
		args = append(args, id)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external ID: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return existing, nil
}

// Get retrieves an item by (platform, external_id).
func (r *ItemRepository) Get(platform, externalID string) (*models.PersistedItem, error) {
	query := `
		SELECT id, sequence, platform, external_id, title, cover, url, watched_at, progress, rating, metadata, created_at, updated_at
		FROM items
		WHERE platform = ? AND external_id = ?
	`
	row := r.db.QueryRow(query, platform, externalID)
	item, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found: %s/%s", platform, externalID)
	}
	return item, err
}

// List retrieves items matching the given criteria, newest watch first.
func (r *ItemRepository) List(criteria map[string]any) ([]*models.PersistedItem, error) {
	query := `
		SELECT id, sequence, platform, external_id, title, cover, url, watched_at, progress, rating, metadata, created_at, updated_at
		FROM items
		WHERE 1 = 1
	`

	args := []any{}

	if platform, ok := criteria["platform"].(string); ok && platform != "" {
		query += " AND platform = ?"
		args = append(args, platform)
	}

	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND watched_at >= ?"
		args = append(args, since)
	}

	query += " ORDER BY watched_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.PersistedItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// Count returns the number of stored items for a platform ("" for all).
func (r *ItemRepository) Count(platform string) (int, error) {
	query := "SELECT COUNT(*) FROM items"
	args := []any{}
	if platform != "" {
		query += " WHERE platform = ?"
		args = append(args, platform)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// scanItem scans one items row via the given scan function.
func scanItem(scan func(dest ...any) error) (*models.PersistedItem, error) {
	var (
		id         string
		sequence   int
		platform   string
		externalID string
		title      string
		cover      sql.NullString
		url        sql.NullString
		watchedAt  time.Time
		progress   sql.NullFloat64
		rating     sql.NullFloat64
		metadata   string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := scan(&id, &sequence, &platform, &externalID, &title, &cover, &url, &watchedAt, &progress, &rating, &metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	dto := models.WatchItem{
		Platform:   platform,
		ExternalID: externalID,
		Title:      title,
		Cover:      cover.String,
		URL:        url.String,
		WatchedAt:  watchedAt,
	}
	if progress.Valid {
		dto.Progress = &progress.Float64
	}
	if rating.Valid {
		dto.Rating = &rating.Float64
	}
	if metadata != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(metadata), &meta); err == nil {
			dto.Metadata = meta
		}
	}

	item := models.NewPersistedItem(sequence, dto)
	item.SetID(id)
	item.SetCreatedAt(createdAt)
	item.SetUpdatedAt(updatedAt)

	return item, nil
}
