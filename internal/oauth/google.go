package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autolinkhq/autolink/pkg/slogx"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	// ProviderGoogle is the canonical provider name stored on oauth_links rows.
	ProviderGoogle = "GOOGLE"
)

// GoogleConfig configures the Google strategy. The URL fields exist so tests
// can point the strategy at httptest servers.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type googleStrategy struct {
	cfg    GoogleConfig
	client *http.Client
}

// NewGoogle builds the Google authorization-code-grant strategy. All outbound
// calls carry a request timeout so a stuck provider fails the login attempt
// instead of hanging the request.
func NewGoogle(cfg GoogleConfig) Strategy {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultGoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultGoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &googleStrategy{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *googleStrategy) Provider() string { return ProviderGoogle }

func (g *googleStrategy) AuthURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {g.cfg.ClientID},
		"redirect_uri":  {g.cfg.CallbackURL},
		"scope":         {"openid email profile"},
		"access_type":   {"online"},
		"state":         {state},
	}
	return g.cfg.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

func (g *googleStrategy) Exchange(ctx context.Context, code string) (string, error) {
	log := slogx.FromContext(ctx)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"redirect_uri":  {g.cfg.CallbackURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := g.do(req)
	if err != nil {
		log.Warn("google token exchange failed", "err", err)
		return "", ErrFailed
	}

	var tok googleTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		log.Warn("google token response malformed")
		return "", ErrFailed
	}

	return tok.AccessToken, nil
}

func (g *googleStrategy) FetchUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	log := slogx.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return UserInfo{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := g.do(req)
	if err != nil {
		log.Warn("google userinfo fetch failed", "err", err)
		return UserInfo{}, ErrFailed
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil || info.ID == "" || info.Email == "" {
		log.Warn("google userinfo response malformed")
		return UserInfo{}, ErrFailed
	}

	nickname := info.GivenName
	if nickname == "" {
		nickname = info.Name
	}
	var image *string
	if info.Picture != "" {
		image = &info.Picture
	}

	return UserInfo{
		ProviderID:   info.ID,
		Email:        info.Email,
		Nickname:     nickname,
		ProfileImage: image,
	}, nil
}

// do runs the request and returns the body, treating any non-2xx status as an
// error. The body is included in the returned error for server-side logging
// but callers surface only ErrFailed.
func (g *googleStrategy) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

var _ Strategy = (*googleStrategy)(nil)
