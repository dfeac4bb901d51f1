package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/pkg/httpx"
)

type InviteHandler struct {
	InviteService *service.InviteService
}

type inviteResponse struct {
	ID          string              `json:"id"`
	WorkspaceID string              `json:"workspace_id"`
	Email       string              `json:"email"`
	Role        domain.Role         `json:"role"`
	Status      domain.InviteStatus `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toInviteResponse(inv domain.Invite) inviteResponse {
	return inviteResponse{
		ID:          inv.ID,
		WorkspaceID: inv.WorkspaceID,
		Email:       inv.Email,
		Role:        inv.Role,
		Status:      inv.Status,
		ExpiresAt:   inv.ExpiresAt,
		CreatedAt:   inv.CreatedAt,
	}
}

func (h *InviteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = "email is required"
	}
	if !req.Role.Valid() {
		fields["role"] = "role must be ADMIN or MEMBER"
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	invite, token, err := h.InviteService.CreateInvite(r.Context(),
		r.PathValue("workspaceID"), callerID, req.Email, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// The raw token appears exactly once, in this response. Only its
	// fingerprint is stored.
	resp := struct {
		inviteResponse
		Token string `json:"token"`
	}{toInviteResponse(invite), token}

	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *InviteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	invites, err := h.InviteService.ListInvites(r.Context(), r.PathValue("workspaceID"), callerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		out = append(out, toInviteResponse(inv))
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"invites": out})
}

func (h *InviteHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		writeUnauthenticated(w)
		return
	}
	email, _ := httpx.UserEmailFromContext(ctx)

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}
	if req.Token == "" {
		writeValidationError(w, map[string]string{"token": "token is required"})
		return
	}

	invite, err := h.InviteService.AcceptInvite(ctx, req.Token, userID, email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toInviteResponse(invite))
}
