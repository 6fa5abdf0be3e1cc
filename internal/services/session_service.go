package services

import (
	"context"
	"log/slog"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
)

// SessionService materializes sessions: it mints a fresh claims token for
// the data store's access-control layer on every refresh and conditionally
// re-fetches profile data under a staleness policy that keeps the service
// under the store's request quota.
type SessionService struct {
	userRepo UserRepository
	tokenMgr *auth.ClaimsTokenManager
	logger   *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(userRepo UserRepository, tokenMgr *auth.ClaimsTokenManager, logger *slog.Logger) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		tokenMgr: tokenMgr,
		logger:   logger,
	}
}

// ShouldFetchUserData decides whether profile data must be re-fetched. The
// dominant case short-circuits: a session that already carries a populated
// user id is reused as-is. A fetch happens only when the session has no user,
// name or email is missing, or the identity carries the cache-invalidation
// flag. Fetching on every session check would exhaust the store quota under
// moderate traffic.
func ShouldFetchUserData(existing *models.Session, identity models.Identity) bool {
	if identity.InvalidateCache {
		return true
	}
	if existing == nil || existing.UserID == "" {
		return true
	}
	if existing.Name == "" || existing.Email == "" {
		return true
	}
	return false
}

// Materialize builds the session for an identity. The claims token is always
// recomputed from the long-lived identity, never carried over. On profile
// fetch failure the session is still returned with DataFresh=false and an
// error string: stale-but-present data beats no session.
func (s *SessionService) Materialize(ctx context.Context, identity models.Identity, existing *models.Session) (*models.Session, error) {
	session := &models.Session{
		UserID:    identity.UserID,
		DataFresh: true,
	}
	if existing != nil {
		session.Email = existing.Email
		session.Name = existing.Name
	}
	if session.Email == "" {
		session.Email = identity.Email
	}
	if session.Name == "" {
		session.Name = identity.Name
	}

	token, err := s.tokenMgr.MintSessionToken(identity.UserID)
	if err != nil {
		s.logger.Error("failed to mint session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	session.Token = token

	if !ShouldFetchUserData(existing, identity) {
		return session, nil
	}

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		s.logger.Warn("profile fetch failed, returning stale session",
			slog.String("user_id", identity.UserID),
			slog.Any("error", err))
		session.DataFresh = false
		session.DataError = "profile fetch failed"
		return session, nil
	}

	session.Email = user.Email
	session.Name = user.Name
	return session, nil
}
