package store

import (
	"context"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// BackupCodeRepository reads backup codes and registered authenticators.
// Batch writes ride the combined user mutations in UserRepository.
type BackupCodeRepository struct {
	client *Client
}

// NewBackupCodeRepository creates a backup code repository
func NewBackupCodeRepository(client *Client) *BackupCodeRepository {
	return &BackupCodeRepository{client: client}
}

type backupCodeRow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CodeHash  string     `json:"code_hash"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListUnused returns a user's unused backup codes, oldest first
func (r *BackupCodeRepository) ListUnused(ctx context.Context, userID string) ([]models.BackupCode, error) {
	query := `query UnusedBackupCodes($userId: uuid!) {
		backup_codes(where: {user_id: {_eq: $userId}, used_at: {_is_null: true}}, order_by: {created_at: asc}) {
			id
			user_id
			code_hash
			used_at
			created_at
		}
	}`

	var resp struct {
		Codes []backupCodeRow `json:"backup_codes"`
	}
	if err := r.client.Execute(ctx, query, map[string]any{"userId": userID}, &resp); err != nil {
		return nil, err
	}

	codes := make([]models.BackupCode, len(resp.Codes))
	for i, row := range resp.Codes {
		codes[i] = models.BackupCode{
			ID:        row.ID,
			UserID:    row.UserID,
			CodeHash:  row.CodeHash,
			UsedAt:    row.UsedAt,
			CreatedAt: row.CreatedAt,
		}
	}
	return codes, nil
}

// MarkUsed sets used_at on a single code so it can never verify again
func (r *BackupCodeRepository) MarkUsed(ctx context.Context, codeID string, now time.Time) error {
	query := `mutation MarkBackupCodeUsed($id: uuid!, $now: timestamptz!) {
		update_backup_codes_by_pk(pk_columns: {id: $id}, _set: {used_at: $now}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_backup_codes_by_pk"`
	}
	err := r.client.Execute(ctx, query, map[string]any{
		"id":  codeID,
		"now": now.UTC().Format(time.RFC3339),
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}

// ListAuthenticators returns metadata for a user's registered hardware
// authenticators. Credential material never leaves the store.
func (r *BackupCodeRepository) ListAuthenticators(ctx context.Context, userID string) ([]models.AuthenticatorInfo, error) {
	query := `query Authenticators($userId: uuid!) {
		authenticators(where: {user_id: {_eq: $userId}}, order_by: {created_at: asc}) {
			id
			name
			created_at
			last_used
		}
	}`

	var resp struct {
		Authenticators []models.AuthenticatorInfo `json:"authenticators"`
	}
	if err := r.client.Execute(ctx, query, map[string]any{"userId": userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Authenticators, nil
}
