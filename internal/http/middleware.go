package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/autolinkhq/autolink/internal/session"
	"github.com/autolinkhq/autolink/pkg/httpx"
)

// SessionCookie is the browser cookie carrying the opaque session token.
const SessionCookie = "autolink_sid"

// SessionMiddleware resolves the session cookie into an authenticated
// identity on the request context. Requests without a live session get a 401.
func SessionMiddleware(sessions *session.Manager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				writeUnauthenticated(w)
				return
			}

			sess, err := sessions.Validate(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					writeUnauthenticated(w)
					return
				}
				httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
					Error:            "internal_error",
					ErrorDescription: "An internal error occurred",
				})
				return
			}

			ctx := context.WithValue(r.Context(), httpx.CtxKeyUserID, sess.UserID)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserEmail, sess.Email)
			ctx = context.WithValue(ctx, httpx.CtxKeySessionToken, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
