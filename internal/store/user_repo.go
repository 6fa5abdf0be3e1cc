package store

import (
	"context"
	"fmt"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// UserRepository reads and mutates the auth slice of user records in the
// data store. Mutations that must be atomic (enable, disable, regenerate)
// are single GraphQL operations: the store runs all root fields of one
// mutation in a single transaction.
type UserRepository struct {
	client *Client
}

// NewUserRepository creates a user repository over the data store client
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

type userRow struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	MFAEnabled             bool       `json:"mfa_enabled"`
	MFASecret              *string    `json:"mfa_secret"`
	BackupCodesGeneratedAt *time.Time `json:"backup_codes_generated_at"`
	WebauthnEnabled        bool       `json:"webauthn_enabled"`
	StravaAccessToken      *string    `json:"strava_access_token"`
	StravaRefreshToken     *string    `json:"strava_refresh_token"`
	StravaExpiresAt        *int64     `json:"strava_expires_at"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:                     r.ID,
		Email:                  r.Email,
		Name:                   r.Name,
		MFAEnabled:             r.MFAEnabled,
		MFASecret:              r.MFASecret,
		BackupCodesGeneratedAt: r.BackupCodesGeneratedAt,
		WebauthnEnabled:        r.WebauthnEnabled,
		StravaAccessToken:      r.StravaAccessToken,
		StravaRefreshToken:     r.StravaRefreshToken,
		StravaExpiresAt:        r.StravaExpiresAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

const userFields = `
	id
	email
	name
	mfa_enabled
	mfa_secret
	backup_codes_generated_at
	webauthn_enabled
	strava_access_token
	strava_refresh_token
	strava_expires_at
	created_at
	updated_at
`

// GetByID fetches a user's auth record
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`query GetUser($id: uuid!) {
		users_by_pk(id: $id) { %s }
	}`, userFields)

	var resp struct {
		User *userRow `json:"users_by_pk"`
	}
	if err := r.client.Execute(ctx, query, map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, models.ErrNotFound
	}
	return resp.User.toModel(), nil
}

// SetPendingMFASecret stores a freshly generated secret on the user record
// without enabling MFA. Re-invocation overwrites any earlier pending secret.
func (r *UserRepository) SetPendingMFASecret(ctx context.Context, userID, secret string) error {
	query := `mutation SetPendingSecret($id: uuid!, $secret: String!) {
		update_users_by_pk(pk_columns: {id: $id}, _set: {mfa_secret: $secret, mfa_enabled: false}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	if err := r.client.Execute(ctx, query, map[string]any{"id": userID, "secret": secret}, &resp); err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}

// EnableMFA flips the user to enabled and inserts the backup code hashes in
// one mutation.
func (r *UserRepository) EnableMFA(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	codes := make([]map[string]any, len(codeHashes))
	for i, hash := range codeHashes {
		codes[i] = map[string]any{
			"user_id":   userID,
			"code_hash": hash,
		}
	}

	query := `mutation EnableMFA($id: uuid!, $now: timestamptz!, $codes: [backup_codes_insert_input!]!) {
		update_users_by_pk(pk_columns: {id: $id}, _set: {mfa_enabled: true, backup_codes_generated_at: $now}) {
			id
		}
		insert_backup_codes(objects: $codes) {
			affected_rows
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	err := r.client.Execute(ctx, query, map[string]any{
		"id":    userID,
		"now":   now.UTC().Format(time.RFC3339),
		"codes": codes,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}

// DisableMFA soft-invalidates every backup code and clears the MFA fields in
// one mutation, so a crash cannot leave codes invalidated with MFA still
// nominally enabled.
func (r *UserRepository) DisableMFA(ctx context.Context, userID string, now time.Time) error {
	query := `mutation DisableMFA($id: uuid!, $now: timestamptz!) {
		update_backup_codes(where: {user_id: {_eq: $id}, used_at: {_is_null: true}}, _set: {used_at: $now}) {
			affected_rows
		}
		update_users_by_pk(pk_columns: {id: $id}, _set: {mfa_enabled: false, mfa_secret: null, backup_codes_generated_at: null}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	err := r.client.Execute(ctx, query, map[string]any{
		"id":  userID,
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

// ReplaceBackupCodes invalidates all unused codes and inserts a fresh batch
// in one mutation. Used when regenerating recovery codes.
func (r *UserRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	codes := make([]map[string]any, len(codeHashes))
	for i, hash := range codeHashes {
		codes[i] = map[string]any{
			"user_id":   userID,
			"code_hash": hash,
		}
	}

	query := `mutation ReplaceBackupCodes($id: uuid!, $now: timestamptz!, $codes: [backup_codes_insert_input!]!) {
		update_backup_codes(where: {user_id: {_eq: $id}, used_at: {_is_null: true}}, _set: {used_at: $now}) {
			affected_rows
		}
		insert_backup_codes(objects: $codes) {
			affected_rows
		}
		update_users_by_pk(pk_columns: {id: $id}, _set: {backup_codes_generated_at: $now}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	err := r.client.Execute(ctx, query, map[string]any{
		"id":    userID,
		"now":   now.UTC().Format(time.RFC3339),
		"codes": codes,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}

// UpdateStravaTokens persists a refreshed token pair on the user record
func (r *UserRepository) UpdateStravaTokens(ctx context.Context, userID string, pair *models.StravaTokenPair) error {
	query := `mutation UpdateStravaTokens($id: uuid!, $access: String!, $refresh: String!, $expires: bigint!) {
		update_users_by_pk(pk_columns: {id: $id}, _set: {strava_access_token: $access, strava_refresh_token: $refresh, strava_expires_at: $expires}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	err := r.client.Execute(ctx, query, map[string]any{
		"id":      userID,
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
		"expires": pair.ExpiresAt,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}

// ClearStravaTokens removes the stored token pair on disconnect
func (r *UserRepository) ClearStravaTokens(ctx context.Context, userID string) error {
	query := `mutation ClearStravaTokens($id: uuid!) {
		update_users_by_pk(pk_columns: {id: $id}, _set: {strava_access_token: null, strava_refresh_token: null, strava_expires_at: null}) {
			id
		}
	}`

	var resp struct {
		Updated *struct {
			ID string `json:"id"`
		} `json:"update_users_by_pk"`
	}
	if err := r.client.Execute(ctx, query, map[string]any{"id": userID}, &resp); err != nil {
		return err
	}
	if resp.Updated == nil {
		return models.ErrNotFound
	}
	return nil
}
