package models

import (
	"fmt"
	"time"
)

// Credential holds one platform account's auth material. The value is always
// stored in the vault wire format; plaintext never reaches the database once
// migration has run.
type Credential struct {
	id              string
	sequence        int
	platform        string
	credType        string
	encryptedValue  string
	metadata        map[string]string
	isValid         bool
	failureCount    int
	usageCount      int
	lastValidatedAt *time.Time
	lastUsedAt      *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewCredential creates a valid, unused Credential for a platform.
func NewCredential(sequence int, platform, credType, encryptedValue string, metadata map[string]string) *Credential {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Credential{
		sequence:       sequence,
		platform:       platform,
		credType:       credType,
		encryptedValue: encryptedValue,
		metadata:       metadata,
		isValid:        true,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (c *Credential) ID() string                  { return c.id }
func (c *Credential) Sequence() int               { return c.sequence }
func (c *Credential) Platform() string            { return c.platform }
func (c *Credential) Type() string                { return c.credType }
func (c *Credential) EncryptedValue() string      { return c.encryptedValue }
func (c *Credential) Metadata() map[string]string { return c.metadata }
func (c *Credential) IsValid() bool               { return c.isValid }
func (c *Credential) FailureCount() int           { return c.failureCount }
func (c *Credential) UsageCount() int             { return c.usageCount }
func (c *Credential) LastValidatedAt() *time.Time { return c.lastValidatedAt }
func (c *Credential) LastUsedAt() *time.Time      { return c.lastUsedAt }
func (c *Credential) CreatedAt() time.Time        { return c.createdAt }
func (c *Credential) UpdatedAt() time.Time        { return c.updatedAt }
func (c *Credential) DeletedAt() *time.Time       { return c.deletedAt }

func (c *Credential) SetID(id string)                  { c.id = id }
func (c *Credential) SetEncryptedValue(v string)       { c.encryptedValue = v }
func (c *Credential) SetMetadata(m map[string]string)  { c.metadata = m }
func (c *Credential) SetIsValid(v bool)                { c.isValid = v }
func (c *Credential) SetFailureCount(n int)            { c.failureCount = n }
func (c *Credential) SetUsageCount(n int)              { c.usageCount = n }
func (c *Credential) SetLastValidatedAt(t *time.Time)  { c.lastValidatedAt = t }
func (c *Credential) SetLastUsedAt(t *time.Time)       { c.lastUsedAt = t }
func (c *Credential) SetCreatedAt(t time.Time)         { c.createdAt = t }
func (c *Credential) SetUpdatedAt(t time.Time)         { c.updatedAt = t }
func (c *Credential) SetDeletedAt(t *time.Time)        { c.deletedAt = t }

// Validate checks that the credential carries a platform and a value.
func (c *Credential) Validate() error {
	if c.platform == "" {
		return fmt.Errorf("credential platform is required")
	}
	if c.credType == "" {
		return fmt.Errorf("credential type is required")
	}
	if c.encryptedValue == "" {
		return fmt.Errorf("credential value is required")
	}
	return nil
}
