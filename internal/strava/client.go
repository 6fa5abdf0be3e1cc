package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

const (
	defaultAPIBase   = "https://www.strava.com/api/v3"
	defaultTokenURL  = "https://www.strava.com/oauth/token"
	defaultDeauthURL = "https://www.strava.com/oauth/deauthorize"
)

// Client talks to the Strava API and token endpoint. All calls carry a
// bounded timeout so a hung provider cannot stall an auth flow.
type Client struct {
	clientID     string
	clientSecret string
	apiBase      string
	tokenURL     string
	deauthURL    string
	httpClient   *http.Client
	logger       *slog.Logger
}

// Config holds Strava client settings
type Config struct {
	ClientID     string
	ClientSecret string
	APIBase      string // overridable for tests
	TokenURL     string
	DeauthURL    string
	Timeout      time.Duration
}

// NewClient creates a Strava client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.DeauthURL == "" {
		cfg.DeauthURL = defaultDeauthURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiBase:      cfg.APIBase,
		tokenURL:     cfg.TokenURL,
		deauthURL:    cfg.DeauthURL,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// IsTokenValid probes the provider with the access token. True on HTTP
// success; any failure means the token cannot be used.
func (c *Client) IsTokenValid(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/athlete", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Refresh exchanges a refresh token for a new pair. Returns nil on any
// failure: an expired or revoked grant is an expected steady-state condition
// signaling reauthorization, not a fault to propagate. Callers must treat
// nil as "prompt the user to reconnect".
func (c *Client) Refresh(ctx context.Context, refreshToken string) *models.StravaTokenPair {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	pair, err := c.requestToken(ctx, form)
	if err != nil {
		c.logger.Warn("strava token refresh failed", slog.Any("error", err))
		return nil
	}
	return pair
}

// Exchange trades an authorization code for an initial token pair
func (c *Client) Exchange(ctx context.Context, code string) (*models.StravaTokenPair, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	}

	pair, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange failed: %w", err)
	}
	return pair, nil
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*models.StravaTokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return nil, fmt.Errorf("token response missing tokens")
	}

	return &models.StravaTokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
	}, nil
}

// GetBikes returns the athlete's gear list
func (c *Client) GetBikes(ctx context.Context, accessToken string) ([]models.StravaBike, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/athlete", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("athlete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("athlete request returned status %d", resp.StatusCode)
	}

	var athlete struct {
		Bikes []models.StravaBike `json:"bikes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&athlete); err != nil {
		return nil, fmt.Errorf("failed to decode athlete response: %w", err)
	}
	return athlete.Bikes, nil
}

// Deauthorize revokes the application's grant at the provider. Best effort;
// the stored tokens are cleared regardless.
func (c *Client) Deauthorize(ctx context.Context, accessToken string) error {
	form := url.Values{"access_token": {accessToken}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create deauthorize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deauthorize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deauthorize returned status %d", resp.StatusCode)
	}
	return nil
}
