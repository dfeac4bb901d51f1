package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/internal/session"
	"github.com/autolinkhq/autolink/pkg/httpx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// LoginHandler starts the OAuth flow by redirecting to the provider's consent
// screen with a signed state parameter.
type LoginHandler struct {
	Providers   *oauth.Registry
	StateSigner *oauth.StateSigner
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	strategy, err := h.Providers.Get(r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	state, err := h.StateSigner.Sign(strategy.Provider())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, strategy.AuthURL(state), http.StatusFound)
}

// CallbackHandler completes the OAuth flow: verifies state, exchanges the
// code, resolves the identity to a local user, and issues a session cookie.
type CallbackHandler struct {
	Providers       *oauth.Registry
	StateSigner     *oauth.StateSigner
	IdentityService *service.IdentityService
	Sessions        *session.Manager
	WebURL          string
	SecureCookies   bool
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	strategy, err := h.Providers.Get(r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		// The provider reported an error or the user denied consent. No state
		// was consumed and nothing was written.
		writeServiceError(w, r, oauth.ErrFailed)
		return
	}
	if err := h.StateSigner.Verify(state, strategy.Provider()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	accessToken, err := strategy.Exchange(ctx, code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	info, err := strategy.FetchUserInfo(ctx, accessToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, isNew, err := h.IdentityService.Resolve(ctx, strategy.Provider(), info)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.Sessions.Create(ctx, session.Session{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	setSessionCookie(w, token, h.Sessions.TTL(), h.SecureCookies)
	log.Info("login completed",
		slog.String("user_id", user.ID),
		slog.String("provider", strategy.Provider()),
		slog.Bool("new_user", isNew),
	)

	httpx.NoCache(w)
	http.Redirect(w, r, h.WebURL, http.StatusFound)
}

// LogoutHandler destroys the current session and clears the cookie.
type LogoutHandler struct {
	Sessions      *session.Manager
	SecureCookies bool
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, _ := httpx.SessionTokenFromContext(r.Context())
	if err := h.Sessions.Destroy(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	clearSessionCookie(w, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler serves the authenticated user's own profile and account deletion.
type MeHandler struct {
	IdentityService *service.IdentityService
	Sessions        *session.Manager
	SecureCookies   bool
}

type profileResponse struct {
	ID            string             `json:"id"`
	Email         string             `json:"email"`
	Nickname      string             `json:"nickname"`
	ProfileImage  *string            `json:"profile_image,omitempty"`
	ProfilePublic bool               `json:"profile_public"`
	Providers     []string           `json:"providers"`
	Workspaces    []workspaceSummary `json:"workspaces"`
}

type workspaceSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Role        domain.Role `json:"role"`
	MemberCount int         `json:"member_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

func toWorkspaceSummaries(in []domain.WorkspaceSummary) []workspaceSummary {
	out := make([]workspaceSummary, 0, len(in))
	for _, s := range in {
		out = append(out, workspaceSummary{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Role:        s.Role,
			MemberCount: s.MemberCount,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out
}

func (h *MeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	profile, err := h.IdentityService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profileResponse{
		ID:            profile.User.ID,
		Email:         profile.User.Email,
		Nickname:      profile.User.Nickname,
		ProfileImage:  profile.User.ProfileImage,
		ProfilePublic: profile.User.ProfilePublic,
		Providers:     profile.Providers,
		Workspaces:    toWorkspaceSummaries(profile.Workspaces),
	})
}

func (h *MeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.IdentityService.DeleteAccount(ctx, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if token, ok := httpx.SessionTokenFromContext(ctx); ok {
		_ = h.Sessions.Destroy(ctx, token)
	}

	clearSessionCookie(w, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
