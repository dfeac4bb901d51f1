package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/pkg/httpx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// writeServiceError maps service sentinel errors onto HTTP responses.
// Anything unrecognized is logged with full detail and surfaced as a bare 500
// so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
		desc   = "An internal error occurred"
	)

	switch {
	case errors.Is(err, oauth.ErrUnsupportedProvider):
		status, code, desc = http.StatusBadRequest, "unsupported_provider", "Unknown OAuth provider"
	case errors.Is(err, oauth.ErrInvalidState):
		status, code, desc = http.StatusBadRequest, "invalid_state", "OAuth state is missing, expired, or malformed"
	case errors.Is(err, oauth.ErrFailed):
		status, code, desc = http.StatusUnauthorized, "oauth_failed", "Authentication with the provider failed"

	case errors.Is(err, service.ErrInvalidRequest):
		status, code, desc = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, service.ErrInvalidRole):
		status, code, desc = http.StatusBadRequest, "invalid_role", "Role must be ADMIN or MEMBER"

	case errors.Is(err, service.ErrWorkspaceNotFound):
		status, code, desc = http.StatusNotFound, "not_found", "Workspace not found"
	case errors.Is(err, service.ErrMemberNotFound):
		status, code, desc = http.StatusNotFound, "not_found", "Member not found"
	case errors.Is(err, service.ErrInviteNotFound):
		status, code, desc = http.StatusNotFound, "not_found", "Invite not found"
	case errors.Is(err, service.ErrUserNotFound):
		status, code, desc = http.StatusNotFound, "not_found", "User not found"

	case errors.Is(err, service.ErrPermissionDenied):
		status, code, desc = http.StatusForbidden, "permission_denied", "You are not a member of this workspace"
	case errors.Is(err, service.ErrAdminRequired):
		status, code, desc = http.StatusForbidden, "admin_required", "Admin role required"
	case errors.Is(err, service.ErrInviteEmailMismatch):
		status, code, desc = http.StatusForbidden, "email_mismatch", "This invite was issued for a different email"

	case errors.Is(err, service.ErrLastAdmin):
		status, code, desc = http.StatusConflict, "last_admin", "A workspace must retain at least one admin"
	case errors.Is(err, service.ErrMemberExists):
		status, code, desc = http.StatusConflict, "member_exists", "User is already a member of this workspace"
	case errors.Is(err, service.ErrInvitePending):
		status, code, desc = http.StatusConflict, "invite_pending", "A pending invite already exists for this email"
	case errors.Is(err, service.ErrInviteAlreadyAccepted):
		status, code, desc = http.StatusConflict, "invite_accepted", "This invite has already been accepted"
	case errors.Is(err, service.ErrInviteExpired):
		status, code, desc = http.StatusConflict, "invite_expired", "This invite has expired"
	}

	if status == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("unhandled service error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	httpx.WriteJSON(w, status, httpx.ErrorResponse{
		Error:            code,
		ErrorDescription: desc,
	})
}

// writeValidationError reports request body problems with per-field detail.
func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
		Error:            "invalid_request",
		ErrorDescription: "Request validation failed",
		Fields:           fields,
	})
}

func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorResponse{
		Error:            "unauthenticated",
		ErrorDescription: "A valid session is required",
	})
}
