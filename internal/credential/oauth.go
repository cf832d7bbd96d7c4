package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aircall-sync/internal/domain"
)

// RefreshTokenProvider implements the OAuth2 refresh_token grant used by both CRMs.
type RefreshTokenProvider struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	now          func() time.Time
}

// NewRefreshTokenProvider creates an AuthProvider posting a form-encoded grant to tokenURL.
func NewRefreshTokenProvider(httpClient *http.Client, tokenURL, clientID, clientSecret, refreshToken string) *RefreshTokenProvider {
	return &RefreshTokenProvider{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

// Refresh exchanges the refresh token for a new access token.
func (p *RefreshTokenProvider) Refresh(ctx context.Context) (domain.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", p.refreshToken)
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Credential{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return domain.Credential{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	// Zoho reports grant errors with a 200 status.
	if tr.Error != "" {
		return domain.Credential{}, fmt.Errorf("token endpoint error: %s", tr.Error)
	}
	if tr.AccessToken == "" {
		return domain.Credential{}, ErrEmptyToken
	}

	return domain.Credential{
		Token:     tr.AccessToken,
		ExpiresAt: ExpiryFor(p.now(), tr.AccessToken, tr.ExpiresIn),
	}, nil
}
