package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// StravaClient is the provider surface the service depends on
type StravaClient interface {
	IsTokenValid(ctx context.Context, accessToken string) bool
	Refresh(ctx context.Context, refreshToken string) *models.StravaTokenPair
	Exchange(ctx context.Context, code string) (*models.StravaTokenPair, error)
	GetBikes(ctx context.Context, accessToken string) ([]models.StravaBike, error)
	Deauthorize(ctx context.Context, accessToken string) error
}

// StravaStatus reports the connection state for the status endpoint
type StravaStatus struct {
	Connected   bool  `json:"connected"`
	NeedsReauth bool  `json:"needsReauth"`
	ExpiresAt   int64 `json:"expiresAt,omitempty"`
}

// BikesResult is the transparent-refresh result for the bikes endpoint.
// NeedsReauth=true is a payload condition, not an HTTP error: the client
// must prompt re-consent rather than retry.
type BikesResult struct {
	Connected   bool                `json:"connected"`
	NeedsReauth bool                `json:"needsReauth"`
	Bikes       []models.StravaBike `json:"bikes"`
}

// StravaService runs the OAuth token lifecycle: validity probe, refresh,
// persistence, disconnect. Every consumer goes through the same
// ensureFreshToken calling pattern.
type StravaService struct {
	userRepo UserRepository
	client   StravaClient
	logger   *slog.Logger
}

// NewStravaService creates a new Strava service
func NewStravaService(userRepo UserRepository, client StravaClient, logger *slog.Logger) *StravaService {
	return &StravaService{
		userRepo: userRepo,
		client:   client,
		logger:   logger,
	}
}

// ensureFreshToken returns a usable access token for the user, refreshing
// and persisting a new pair when needed. needsReauth=true means the refresh
// grant is exhausted; callers surface that to the client instead of
// retrying.
func (s *StravaService) ensureFreshToken(ctx context.Context, user *models.User) (string, bool, error) {
	if !user.StravaConnected() {
		return "", false, models.ErrStravaNotConnected
	}

	pair := &models.StravaTokenPair{
		AccessToken: *user.StravaAccessToken,
	}
	if user.StravaRefreshToken != nil {
		pair.RefreshToken = *user.StravaRefreshToken
	}
	if user.StravaExpiresAt != nil {
		pair.ExpiresAt = *user.StravaExpiresAt
	}

	// A token inside its lifetime gets a cheap provider probe; an expired
	// one goes straight to refresh.
	if !pair.Expired(time.Now()) && s.client.IsTokenValid(ctx, pair.AccessToken) {
		return pair.AccessToken, false, nil
	}

	if pair.RefreshToken == "" {
		return "", true, nil
	}

	refreshed := s.client.Refresh(ctx, pair.RefreshToken)
	if refreshed == nil {
		s.logger.Info("strava refresh grant exhausted, reauthorization required",
			slog.String("user_id", user.ID))
		return "", true, nil
	}

	if err := s.userRepo.UpdateStravaTokens(ctx, user.ID, refreshed); err != nil {
		s.logger.Error("failed to persist refreshed strava tokens", slog.Any("error", err))
		return "", false, models.ErrInternalServer
	}

	return refreshed.AccessToken, false, nil
}

// Status reports connection state, refreshing transparently when possible
func (s *StravaService) Status(ctx context.Context, userID string) (*StravaStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.StravaConnected() {
		return &StravaStatus{Connected: false}, nil
	}

	_, needsReauth, err := s.ensureFreshToken(ctx, user)
	if err != nil {
		return nil, err
	}
	if needsReauth {
		return &StravaStatus{Connected: false, NeedsReauth: true}, nil
	}

	status := &StravaStatus{Connected: true}
	if user.StravaExpiresAt != nil {
		status.ExpiresAt = *user.StravaExpiresAt
	}
	return status, nil
}

// Bikes returns the athlete's gear list, transparently refreshing the token
func (s *StravaService) Bikes(ctx context.Context, userID string) (*BikesResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.StravaConnected() {
		return &BikesResult{Connected: false, Bikes: []models.StravaBike{}}, nil
	}

	accessToken, needsReauth, err := s.ensureFreshToken(ctx, user)
	if err != nil {
		return nil, err
	}
	if needsReauth {
		return &BikesResult{Connected: false, NeedsReauth: true, Bikes: []models.StravaBike{}}, nil
	}

	bikes, err := s.client.GetBikes(ctx, accessToken)
	if err != nil {
		s.logger.Error("failed to fetch strava bikes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if bikes == nil {
		bikes = []models.StravaBike{}
	}

	return &BikesResult{Connected: true, Bikes: bikes}, nil
}

// Connect exchanges an authorization code and persists the initial pair
func (s *StravaService) Connect(ctx context.Context, userID, code string) error {
	pair, err := s.client.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("strava code exchange failed", slog.Any("error", err))
		return models.ErrBadRequest
	}

	if err := s.userRepo.UpdateStravaTokens(ctx, userID, pair); err != nil {
		if err == models.ErrNotFound {
			return err
		}
		s.logger.Error("failed to persist strava tokens", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("strava account connected", slog.String("user_id", userID))
	return nil
}

// Disconnect revokes the grant (best effort) and clears the stored pair
func (s *StravaService) Disconnect(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.StravaConnected() {
		if err := s.client.Deauthorize(ctx, *user.StravaAccessToken); err != nil {
			s.logger.Warn("strava deauthorize failed, clearing tokens anyway", slog.Any("error", err))
		}
	}

	if err := s.userRepo.ClearStravaTokens(ctx, userID); err != nil {
		if err == models.ErrNotFound {
			return err
		}
		s.logger.Error("failed to clear strava tokens", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("strava account disconnected", slog.String("user_id", userID))
	return nil
}
