// Package oauth implements the provider-facing half of login: building
// authorization URLs, exchanging authorization codes, and normalizing
// provider profiles into a provider-agnostic shape.
package oauth

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedProvider means the requested provider is not configured.
	ErrUnsupportedProvider = errors.New("oauth: unsupported provider")

	// ErrFailed covers any upstream failure during code exchange or profile
	// fetch. It deliberately carries no upstream detail; the full error is
	// logged server-side only.
	ErrFailed = errors.New("oauth: authentication failed")

	// ErrInvalidState means the state parameter failed verification.
	ErrInvalidState = errors.New("oauth: invalid state")
)

// UserInfo is a provider profile normalized into the shape the identity
// resolver consumes.
type UserInfo struct {
	ProviderID   string
	Email        string
	Nickname     string
	ProfileImage *string
}

// Strategy is one configured identity provider.
type Strategy interface {
	// Provider returns the canonical provider name (e.g. "GOOGLE").
	Provider() string

	// AuthURL builds the provider's authorization-code-grant URL carrying the
	// given state parameter.
	AuthURL(state string) string

	// Exchange swaps an authorization code for an access token. Any non-2xx or
	// malformed response fails with ErrFailed.
	Exchange(ctx context.Context, code string) (string, error)

	// FetchUserInfo retrieves and normalizes the provider profile.
	FetchUserInfo(ctx context.Context, accessToken string) (UserInfo, error)
}
