package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"watchvault/internal/models"
	"watchvault/internal/shared"
)

// CredentialRepository persists encrypted platform credentials with soft
// delete support and per-platform lookups.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new credential into the database with generated ID and sequence
func (r *CredentialRepository) Create(cred *models.Credential) error {
	sequence, err := NextSequence(r.db, "credentials")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	cred.SetID(id)

	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	metadata, err := json.Marshal(cred.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO credentials (
			id, sequence, platform, type, encrypted_value, metadata, is_valid,
			failure_count, usage_count, last_validated_at, last_used_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		cred.Platform(),
		cred.Type(),
		cred.EncryptedValue(),
		string(metadata),
		cred.IsValid(),
		cred.FailureCount(),
		cred.UsageCount(),
		cred.LastValidatedAt(),
		cred.LastUsedAt(),
		cred.CreatedAt(),
		cred.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	return nil
}

// Get retrieves a credential by ID, excluding soft-deleted credentials
func (r *CredentialRepository) Get(id string) (*models.Credential, error) {
	row := r.db.QueryRow(selectCredentials+" WHERE id = ? AND deleted_at IS NULL", id)
	cred, err := scanCredential(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credential not found")
	}
	return cred, err
}

// GetValid retrieves the valid credential for a platform, if any.
func (r *CredentialRepository) GetValid(platform string) (*models.Credential, error) {
	query := selectCredentials + `
		WHERE platform = ? AND is_valid = 1 AND deleted_at IS NULL
		ORDER BY sequence DESC LIMIT 1
	`
	row := r.db.QueryRow(query, platform)
	cred, err := scanCredential(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no valid credential for %s", shared.ErrMissingCredentials, platform)
	}
	return cred, err
}

// Update modifies an existing credential in the database
func (r *CredentialRepository) Update(cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	cred.SetUpdatedAt(now)

	metadata, err := json.Marshal(cred.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE credentials
		SET encrypted_value = ?, metadata = ?, is_valid = ?, failure_count = ?,
			usage_count = ?, last_validated_at = ?, last_used_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		cred.EncryptedValue(),
		string(metadata),
		cred.IsValid(),
		cred.FailureCount(),
		cred.UsageCount(),
		cred.LastValidatedAt(),
		cred.LastUsedAt(),
		now,
		cred.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential not found or already deleted: %s", cred.ID())
	}

	return nil
}

// Delete soft-deletes a credential by ID
func (r *CredentialRepository) Delete(id string) error {
	now := time.Now()

	result, err := r.db.Exec(
		"UPDATE credentials SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all credentials matching the given criteria, excluding soft-deleted ones
func (r *CredentialRepository) List(criteria map[string]any) ([]*models.Credential, error) {
	query := selectCredentials + " WHERE deleted_at IS NULL"
	args := []any{}

	if platform, ok := criteria["platform"].(string); ok && platform != "" {
		query += " AND platform = ?"
		args = append(args, platform)
	}

	if valid, ok := criteria["is_valid"].(bool); ok {
		query += " AND is_valid = ?"
		args = append(args, valid)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return creds, nil
}

// MarkUsed records a successful use of the credential.
func (r *CredentialRepository) MarkUsed(cred *models.Credential) error {
	now := time.Now()
	cred.SetUsageCount(cred.UsageCount() + 1)
	cred.SetLastUsedAt(&now)
	cred.SetLastValidatedAt(&now)
	return r.Update(cred)
}

// MarkFailure records an authentication failure against the credential.
func (r *CredentialRepository) MarkFailure(cred *models.Credential) error {
	cred.SetFailureCount(cred.FailureCount() + 1)
	return r.Update(cred)
}

const selectCredentials = `
	SELECT id, sequence, platform, type, encrypted_value, metadata, is_valid,
		failure_count, usage_count, last_validated_at, last_used_at,
		created_at, updated_at, deleted_at
	FROM credentials
`

// scanCredential scans one credentials row via the given scan function.
func scanCredential(scan func(dest ...any) error) (*models.Credential, error) {
	var (
		id              string
		sequence        int
		platform        string
		credType        string
		encryptedValue  string
		metadata        string
		isValid         bool
		failureCount    int
		usageCount      int
		lastValidatedAt sql.NullTime
		lastUsedAt      sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := scan(
		&id, &sequence, &platform, &credType, &encryptedValue, &metadata,
		&isValid, &failureCount, &usageCount, &lastValidatedAt, &lastUsedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	var meta map[string]string
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	cred := models.NewCredential(sequence, platform, credType, encryptedValue, meta)
	cred.SetID(id)
	cred.SetIsValid(isValid)
	cred.SetFailureCount(failureCount)
	cred.SetUsageCount(usageCount)
	cred.SetCreatedAt(createdAt)
	cred.SetUpdatedAt(updatedAt)
	if lastValidatedAt.Valid {
		cred.SetLastValidatedAt(&lastValidatedAt.Time)
	}
	if lastUsedAt.Valid {
		cred.SetLastUsedAt(&lastUsedAt.Time)
	}
	if deletedAt.Valid {
		cred.SetDeletedAt(&deletedAt.Time)
	}

	return cred, nil
}
