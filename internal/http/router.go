package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/internal/session"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/pkg/httpx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// WebURL is where the browser lands after a completed OAuth flow.
	WebURL string
	// SecureCookies marks session cookies Secure; off only in local dev.
	SecureCookies bool

	store            store.Store
	Sessions         *session.Manager
	Providers        *oauth.Registry
	StateSigner      *oauth.StateSigner
	IdentityService  *service.IdentityService
	WorkspaceService *service.WorkspaceService
	InviteService    *service.InviteService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerWorkspaces()
	r.registerInvites()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Providers: r.Providers, StateSigner: r.StateSigner}
	r.Mux.Handle("GET /v1/auth/{provider}",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// The callback carries the authorization code; strict limit by IP to slow
	// down code/state guessing.
	callback := &CallbackHandler{
		Providers:       r.Providers,
		StateSigner:     r.StateSigner,
		IdentityService: r.IdentityService,
		Sessions:        r.Sessions,
		WebURL:          r.WebURL,
		SecureCookies:   r.SecureCookies,
	}
	r.Mux.Handle("GET /v1/auth/{provider}/callback",
		httpx.Chain(callback,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logout := &LogoutHandler{Sessions: r.Sessions, SecureCookies: r.SecureCookies}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logout,
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	me := &MeHandler{
		IdentityService: r.IdentityService,
		Sessions:        r.Sessions,
		SecureCookies:   r.SecureCookies,
	}
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(me.HandleGet),
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/me",
		httpx.Chain(http.HandlerFunc(me.HandleDelete),
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerWorkspaces() {
	h := &WorkspaceHandler{WorkspaceService: r.WorkspaceService}

	authed := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("POST /v1/workspaces", authed(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/workspaces", authed(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/workspaces/{workspaceID}", authed(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/workspaces/{workspaceID}", authed(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/workspaces/{workspaceID}", authed(h.HandleDelete, httpx.ModerateLimit))

	m := &MemberHandler{WorkspaceService: r.WorkspaceService}
	r.Mux.Handle("GET /v1/workspaces/{workspaceID}/members", authed(m.HandleList, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/workspaces/{workspaceID}/members/{userID}", authed(m.HandleChangeRole, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/workspaces/{workspaceID}/members/{userID}", authed(m.HandleRemove, httpx.ModerateLimit))
}

func (r *Router) registerInvites() {
	h := &InviteHandler{InviteService: r.InviteService}

	r.Mux.Handle("POST /v1/workspaces/{workspaceID}/invites",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/workspaces/{workspaceID}/invites",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// Token redemption is strictly limited by IP: the token is the only
	// credential, so guessing attempts need to be slowed down.
	r.Mux.Handle("POST /v1/invites/accept",
		httpx.Chain(http.HandlerFunc(h.HandleAccept),
			SessionMiddleware(r.Sessions),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}
