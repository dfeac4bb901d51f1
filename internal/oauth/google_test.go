package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGoogle(t *testing.T, tokenHandler, userInfoHandler http.HandlerFunc) Strategy {
	t.Helper()

	tokenSrv := httptest.NewServer(tokenHandler)
	t.Cleanup(tokenSrv.Close)
	infoSrv := httptest.NewServer(userInfoHandler)
	t.Cleanup(infoSrv.Close)

	return NewGoogle(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://app.example/v1/auth/google/callback",
		TokenURL:     tokenSrv.URL,
		UserInfoURL:  infoSrv.URL,
	})
}

func TestGoogleAuthURL(t *testing.T) {
	t.Parallel()

	g := NewGoogle(GoogleConfig{
		ClientID:    "client-id",
		CallbackURL: "https://app.example/callback",
	})

	u, err := url.Parse(g.AuthURL("state-token"))
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", u.Host)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "https://app.example/callback", q.Get("redirect_uri"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Equal(t, "state-token", q.Get("state"))
}

func TestGoogleExchange(t *testing.T) {
	t.Parallel()

	t.Run("returns access token", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				require.Equal(t, "authorization_code", r.FormValue("grant_type"))
				require.Equal(t, "the-code", r.FormValue("code"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer"}`))
			},
			func(w http.ResponseWriter, r *http.Request) {},
		)

		tok, err := g.Exchange(context.Background(), "the-code")
		require.NoError(t, err)
		require.Equal(t, "at-123", tok)
	})

	t.Run("non-2xx fails without leaking detail", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"invalid_grant","secret":"do-not-leak"}`, http.StatusBadRequest)
			},
			func(w http.ResponseWriter, r *http.Request) {},
		)

		_, err := g.Exchange(context.Background(), "bad-code")
		require.ErrorIs(t, err, ErrFailed)
		require.NotContains(t, err.Error(), "do-not-leak")
	})

	t.Run("empty access token fails", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
			},
			func(w http.ResponseWriter, r *http.Request) {},
		)

		_, err := g.Exchange(context.Background(), "the-code")
		require.ErrorIs(t, err, ErrFailed)
	})
}

func TestGoogleFetchUserInfo(t *testing.T) {
	t.Parallel()

	t.Run("normalizes profile", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {},
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"id":"g-1","email":"a@x.com","name":"Alice Smith","given_name":"Alice","picture":"https://img.example/a.png"}`))
			},
		)

		info, err := g.FetchUserInfo(context.Background(), "at-123")
		require.NoError(t, err)
		require.Equal(t, "g-1", info.ProviderID)
		require.Equal(t, "a@x.com", info.Email)
		require.Equal(t, "Alice", info.Nickname)
		require.NotNil(t, info.ProfileImage)
		require.Equal(t, "https://img.example/a.png", *info.ProfileImage)
	})

	t.Run("falls back to full name and nil image", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {},
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"g-2","email":"b@x.com","name":"Bob"}`))
			},
		)

		info, err := g.FetchUserInfo(context.Background(), "at-123")
		require.NoError(t, err)
		require.Equal(t, "Bob", info.Nickname)
		require.Nil(t, info.ProfileImage)
	})

	t.Run("missing id fails", func(t *testing.T) {
		g := newTestGoogle(t,
			func(w http.ResponseWriter, r *http.Request) {},
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"email":"a@x.com"}`))
			},
		)

		_, err := g.FetchUserInfo(context.Background(), "at-123")
		require.ErrorIs(t, err, ErrFailed)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Get("google")
	require.ErrorIs(t, err, ErrUnsupportedProvider)

	reg.Register(NewGoogle(GoogleConfig{ClientID: "id"}))

	s, err := reg.Get("google")
	require.NoError(t, err)
	require.Equal(t, ProviderGoogle, s.Provider())

	s, err = reg.Get("GOOGLE")
	require.NoError(t, err)
	require.Equal(t, ProviderGoogle, s.Provider())

	_, err = reg.Get("apple")
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestStateSigner(t *testing.T) {
	t.Parallel()

	signer := NewStateSigner("test-secret")

	state, err := signer.Sign("GOOGLE")
	require.NoError(t, err)
	require.NoError(t, signer.Verify(state, "GOOGLE"))

	require.ErrorIs(t, signer.Verify(state, "APPLE"), ErrInvalidState)
	require.ErrorIs(t, signer.Verify("garbage", "GOOGLE"), ErrInvalidState)

	other := NewStateSigner("other-secret")
	require.ErrorIs(t, other.Verify(state, "GOOGLE"), ErrInvalidState)
}
