package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID       ctxKey = "user_id"
	CtxKeyUserEmail    ctxKey = "user_email"
	CtxKeySessionToken ctxKey = "session_token"
)

// UserIDFromContext returns the authenticated user's id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CtxKeyUserID).(string)
	return id, ok && id != ""
}

// UserEmailFromContext returns the authenticated user's email, if any.
func UserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(CtxKeyUserEmail).(string)
	return email, ok && email != ""
}

// SessionTokenFromContext returns the raw session token of the current request.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(CtxKeySessionToken).(string)
	return tok, ok && tok != ""
}
