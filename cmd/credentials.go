package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"watchvault/internal/models"
	"watchvault/internal/shared"
)

// CredentialsAdd encrypts and stores a platform credential. The secret never
// touches the database in plaintext.
func (r *Runner) CredentialsAdd(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")
	credType := cmd.String("type")
	value := cmd.String("value")

	metadata, err := parseMetaPairs(cmd.StringSlice("meta"))
	if err != nil {
		return err
	}

	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	encrypted, err := s.vault.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	cred := models.NewCredential(0, platform, credType, encrypted, metadata)
	if err := s.creds.Create(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	r.logger.Info("credential stored", "platform", platform, "type", credType, "id", cred.ID())
	r.writePlain("✓ Credential stored for %s (%s)\n", platform, credType)
	return nil
}

// CredentialsList prints stored credentials without ever decrypting them.
func (r *Runner) CredentialsList(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")
	useJSON := cmd.Bool("json")

	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	creds, err := s.creds.List(map[string]any{"platform": platform})
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	if useJSON {
		rows := make([]map[string]any, 0, len(creds))
		for _, cred := range creds {
			rows = append(rows, map[string]any{
				"id":            cred.ID(),
				"platform":      cred.Platform(),
				"type":          cred.Type(),
				"is_valid":      cred.IsValid(),
				"failure_count": cred.FailureCount(),
				"usage_count":   cred.UsageCount(),
				"last_used_at":  cred.LastUsedAt(),
				"created_at":    cred.CreatedAt(),
			})
		}
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Stored Credentials")
	if len(creds) == 0 {
		r.writePlain("No credentials stored.\n")
		return nil
	}

	for _, cred := range creds {
		valid := "valid"
		if !cred.IsValid() {
			valid = "invalid"
		}
		r.writePlain("%s  %-10s %-8s %-8s uses=%d failures=%d\n",
			cred.ID(), cred.Platform(), cred.Type(), valid,
			cred.UsageCount(), cred.FailureCount())
	}
	return nil
}

// CredentialsMigrate encrypts any stored plaintext credentials in place.
// Values already in the vault wire format pass through untouched, so the
// command is safe to run repeatedly.
func (r *Runner) CredentialsMigrate(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	creds, err := s.creds.List(map[string]any{})
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	migrated := 0
	for _, cred := range creds {
		if s.vault.IsEncrypted(cred.EncryptedValue()) {
			continue
		}

		encrypted, err := s.vault.SafeEncrypt(cred.EncryptedValue())
		if err != nil {
			return fmt.Errorf("failed to encrypt credential %s: %w", cred.ID(), err)
		}

		cred.SetEncryptedValue(encrypted)
		if err := s.creds.Update(cred); err != nil {
			return fmt.Errorf("failed to update credential %s: %w", cred.ID(), err)
		}

		r.logger.Info("credential migrated", "id", cred.ID(), "platform", cred.Platform())
		migrated++
	}

	r.writePlain("✓ %d of %d credentials migrated to encrypted storage\n", migrated, len(creds))
	return nil
}

// parseMetaPairs parses repeated key=value flags into a metadata map.
func parseMetaPairs(pairs []string) (map[string]string, error) {
	metadata := map[string]string{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: meta %q is not key=value", shared.ErrInvalidArgument, pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
