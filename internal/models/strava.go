package models

import "time"

// StravaTokenPair is the access/refresh token pair owned by a user record.
// Mutated in place whenever a refresh succeeds; cleared on disconnect.
type StravaTokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds
}

// Expired reports whether the access token is expired or about to expire.
// A 60 second margin avoids using a token that dies mid-request.
func (p *StravaTokenPair) Expired(now time.Time) bool {
	return p.ExpiresAt <= now.Add(60*time.Second).Unix()
}

// StravaBike is a bike from the athlete's Strava gear list
type StravaBike struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Primary     bool    `json:"primary"`
	Distance    float64 `json:"distance"`
	BrandName   string  `json:"brand_name"`
	ModelName   string  `json:"model_name"`
	FrameType   int     `json:"frame_type"`
	Description string  `json:"description"`
}
