package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/internal/session"
	"github.com/autolinkhq/autolink/internal/store/drivers/sqlite"
	"github.com/autolinkhq/autolink/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// memKV is an in-process KV so handler tests run without Redis.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return nil, session.ErrNotFound
	}
	return val, nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Ping(context.Context) error { return nil }

// stubStrategy lets callback tests drive the whole login flow in-process.
type stubStrategy struct {
	info oauth.UserInfo
}

func (s *stubStrategy) Provider() string { return "STUB" }

func (s *stubStrategy) AuthURL(state string) string {
	return "https://stub.example/auth?state=" + state
}

func (s *stubStrategy) Exchange(_ context.Context, code string) (string, error) {
	if code != "good-code" {
		return "", oauth.ErrFailed
	}
	return "stub-access-token", nil
}

func (s *stubStrategy) FetchUserInfo(context.Context, string) (oauth.UserInfo, error) {
	return s.info, nil
}

func newTestRouter(t *testing.T) (*Router, *stubStrategy) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	stub := &stubStrategy{info: oauth.UserInfo{
		ProviderID: "stub-1",
		Email:      "alice@x.com",
		Nickname:   "Alice",
	}}
	registry := oauth.NewRegistry()
	registry.Register(stub)

	sessions := session.NewManager(&memKV{data: make(map[string][]byte)}, time.Hour)
	workspaceService := &service.WorkspaceService{Store: st}

	logger := slogx.New(slogx.Config{Service: "autolink-test", Level: "error"})
	r := NewRouter("test", st, logger)
	r.WebURL = "https://app.example"
	r.Sessions = sessions
	r.Providers = registry
	r.StateSigner = oauth.NewStateSigner("test-secret")
	r.IdentityService = &service.IdentityService{Store: st}
	r.WorkspaceService = workspaceService
	r.InviteService = &service.InviteService{Store: st, Workspaces: workspaceService}
	r.ApplyRoutes()

	return r, stub
}

// login runs the full OAuth flow against the router and returns the session
// cookie for follow-up requests.
func login(t *testing.T, r *Router, email string) *http.Cookie {
	t.Helper()

	stub := mustStrategy(t, r)
	stub.info.Email = email
	stub.info.ProviderID = "stub-" + email
	stub.info.Nickname = strings.SplitN(email, "@", 2)[0]

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/stub", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc := rec.Header().Get("Location")
	state := loc[strings.Index(loc, "state=")+len("state="):]

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/auth/stub/callback?code=good-code&state="+state, nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Location"))

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			require.True(t, c.HttpOnly)
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func mustStrategy(t *testing.T, r *Router) *stubStrategy {
	t.Helper()
	s, err := r.Providers.Get("STUB")
	require.NoError(t, err)
	return s.(*stubStrategy)
}

func doJSON(r *Router, method, path string, cookie *http.Cookie, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginRedirectsWithSignedState(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/stub", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "https://stub.example/auth?state=")

	// Unknown provider.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/nope", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackRejectsBadState(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/auth/stub/callback?code=good-code&state=tampered", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "invalid_state", body.Error)
}

func TestCallbackRejectsBadCode(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/stub", nil))
	loc := rec.Header().Get("Location")
	state := loc[strings.Index(loc, "state=")+len("state="):]

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/auth/stub/callback?code=bad-code&state="+state, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	cookie := login(t, r, "alice@x.com")

	rec := doJSON(r, http.MethodGet, "/v1/auth/me", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile struct {
		Email      string   `json:"email"`
		Providers  []string `json:"providers"`
		Workspaces []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"workspaces"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	require.Equal(t, "alice@x.com", profile.Email)
	require.Equal(t, []string{"STUB"}, profile.Providers)
	require.Len(t, profile.Workspaces, 1)
	require.Equal(t, "ADMIN", profile.Workspaces[0].Role)

	// Logout kills the session.
	rec = doJSON(r, http.MethodPost, "/v1/auth/logout", cookie, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/auth/me", cookie, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionCookieLifetimeMatchesManager(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	cookie := login(t, r, "alice@x.com")

	// The router is wired with a one hour session TTL; the cookie must carry
	// the same lifetime, not a fixed default.
	require.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
}

func TestUnauthenticatedRequests(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodGet, "/v1/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/workspaces", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := &http.Cookie{Name: SessionCookie, Value: "stale-token"}
	rec = doJSON(r, http.MethodGet, "/v1/workspaces", stale, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkspaceLifecycle(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	cookie := login(t, r, "alice@x.com")

	rec := doJSON(r, http.MethodPost, "/v1/workspaces", cookie, map[string]any{
		"name":        "Acme",
		"description": "team bookmarks",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ws struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))
	require.Equal(t, "Acme", ws.Name)

	rec = doJSON(r, http.MethodPatch, "/v1/workspaces/"+ws.ID, cookie, map[string]any{
		"name": "Acme Inc",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Personal workspace from login plus this one.
	rec = doJSON(r, http.MethodGet, "/v1/workspaces", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Workspaces []struct {
			ID string `json:"id"`
		} `json:"workspaces"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Workspaces, 2)

	rec = doJSON(r, http.MethodDelete, "/v1/workspaces/"+ws.ID, cookie, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/workspaces/"+ws.ID, cookie, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsReportFields(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	cookie := login(t, r, "alice@x.com")

	decodeFields := func(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
		t.Helper()
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "invalid_request", body.Error)
		return body.Fields
	}

	t.Run("workspace create requires a name", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/v1/workspaces", cookie,
			map[string]string{"name": "   "})
		fields := decodeFields(t, rec)
		require.Contains(t, fields, "name")
	})

	t.Run("invite create reports email and role", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/v1/workspaces", cookie,
			map[string]string{"name": "Team"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var ws struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))

		rec = doJSON(r, http.MethodPost, "/v1/workspaces/"+ws.ID+"/invites", cookie,
			map[string]string{"email": "", "role": "OWNER"})
		fields := decodeFields(t, rec)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "role")
	})

	t.Run("invite accept requires a token", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/v1/invites/accept", cookie,
			map[string]string{})
		fields := decodeFields(t, rec)
		require.Contains(t, fields, "token")
	})
}

func TestInviteFlowAcrossUsers(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	adminCookie := login(t, r, "admin@x.com")

	rec := doJSON(r, http.MethodPost, "/v1/workspaces", adminCookie, map[string]any{"name": "Shared"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))

	// Mint an invite for bob.
	rec = doJSON(r, http.MethodPost, "/v1/workspaces/"+ws.ID+"/invites", adminCookie, map[string]any{
		"email": "Bob@X.com",
		"role":  "MEMBER",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var minted struct {
		Token  string `json:"token"`
		Email  string `json:"email"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&minted))
	require.NotEmpty(t, minted.Token)
	require.Equal(t, "bob@x.com", minted.Email)
	require.Equal(t, "PENDING", minted.Status)

	// Bob logs in and accepts.
	bobCookie := login(t, r, "bob@x.com")
	rec = doJSON(r, http.MethodPost, "/v1/invites/accept", bobCookie, map[string]any{
		"token": minted.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/workspaces/"+ws.ID+"/members", bobCookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members struct {
		Members []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"members"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	require.Len(t, members.Members, 2)

	// Second accept conflicts.
	rec = doJSON(r, http.MethodPost, "/v1/invites/accept", bobCookie, map[string]any{
		"token": minted.Token,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Bob is a MEMBER; workspace admin surface is off limits.
	rec = doJSON(r, http.MethodPost, "/v1/workspaces/"+ws.ID+"/invites", bobCookie, map[string]any{
		"email": "carol@x.com",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// But an outsider can't even see the workspace.
	carolCookie := login(t, r, "carol@x.com")
	rec = doJSON(r, http.MethodGet, "/v1/workspaces/"+ws.ID+"/members", carolCookie, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberRoleAndRemoval(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	adminCookie := login(t, r, "admin@x.com")
	bobCookie := login(t, r, "bob@x.com")

	rec := doJSON(r, http.MethodPost, "/v1/workspaces", adminCookie, map[string]any{"name": "Shared"})
	var ws struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))

	rec = doJSON(r, http.MethodPost, "/v1/workspaces/"+ws.ID+"/invites", adminCookie, map[string]any{
		"email": "bob@x.com",
	})
	var minted struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&minted))
	rec = doJSON(r, http.MethodPost, "/v1/invites/accept", bobCookie, map[string]any{"token": minted.Token})
	require.Equal(t, http.StatusOK, rec.Code)

	var bobID string
	rec = doJSON(r, http.MethodGet, "/v1/workspaces/"+ws.ID+"/members", adminCookie, nil)
	var members struct {
		Members []struct {
			UserID string `json:"user_id"`
			Email  string `json:"email"`
		} `json:"members"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	for _, m := range members.Members {
		if m.Email == "bob@x.com" {
			bobID = m.UserID
		}
	}
	require.NotEmpty(t, bobID)

	// Promote, then verify the last-admin guard on self-demotion after a
	// demotion of the other admin.
	rec = doJSON(r, http.MethodPatch, "/v1/workspaces/"+ws.ID+"/members/"+bobID, adminCookie,
		map[string]any{"role": "ADMIN"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(r, http.MethodPatch, "/v1/workspaces/"+ws.ID+"/members/"+bobID, adminCookie,
		map[string]any{"role": "MEMBER"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(r, http.MethodDelete, "/v1/workspaces/"+ws.ID+"/members/"+bobID, adminCookie, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Removing the sole admin is a conflict.
	var adminID string
	rec = doJSON(r, http.MethodGet, "/v1/workspaces/"+ws.ID+"/members", adminCookie, nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	require.Len(t, members.Members, 1)
	adminID = members.Members[0].UserID

	rec = doJSON(r, http.MethodDelete, "/v1/workspaces/"+ws.ID+"/members/"+adminID, adminCookie, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "last_admin", body.Error)
}

func TestDeleteAccountAndRestore(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	cookie := login(t, r, "alice@x.com")

	rec := doJSON(r, http.MethodDelete, "/v1/auth/me", cookie, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The session is gone with the account.
	rec = doJSON(r, http.MethodGet, "/v1/auth/me", cookie, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging back in restores the account with its workspace intact.
	cookie = login(t, r, "alice@x.com")
	rec = doJSON(r, http.MethodGet, "/v1/auth/me", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile struct {
		Workspaces []struct {
			Name string `json:"name"`
		} `json:"workspaces"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	require.Len(t, profile.Workspaces, 1)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
			Sessions string `json:"sessions"`
		} `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
}
