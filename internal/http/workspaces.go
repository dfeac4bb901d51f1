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

type WorkspaceHandler struct {
	WorkspaceService *service.WorkspaceService
}

type workspaceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toWorkspaceResponse(w domain.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func (h *WorkspaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeValidationError(w, map[string]string{"name": "name is required"})
		return
	}

	workspace, err := h.WorkspaceService.CreateWorkspace(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toWorkspaceResponse(workspace))
}

func (h *WorkspaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	summaries, err := h.WorkspaceService.ListWorkspaces(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"workspaces": toWorkspaceSummaries(summaries),
	})
}

func (h *WorkspaceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	summary, err := h.WorkspaceService.GetWorkspace(r.Context(), r.PathValue("workspaceID"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, workspaceSummary{
		ID:          summary.ID,
		Name:        summary.Name,
		Description: summary.Description,
		Role:        summary.Role,
		MemberCount: summary.MemberCount,
		CreatedAt:   summary.CreatedAt,
	})
}

func (h *WorkspaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	workspace, err := h.WorkspaceService.UpdateWorkspace(r.Context(), r.PathValue("workspaceID"), userID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toWorkspaceResponse(workspace))
}

func (h *WorkspaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.WorkspaceService.DeleteWorkspace(r.Context(), r.PathValue("workspaceID"), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type MemberHandler struct {
	WorkspaceService *service.WorkspaceService
}

type memberResponse struct {
	UserID   string      `json:"user_id"`
	Nickname string      `json:"nickname"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

func (h *MemberHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	members, err := h.WorkspaceService.ListMembers(r.Context(), r.PathValue("workspaceID"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:   m.UserID,
			Nickname: m.Nickname,
			Email:    m.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *MemberHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	if !req.Role.Valid() {
		writeValidationError(w, map[string]string{"role": "role must be ADMIN or MEMBER"})
		return
	}

	err := h.WorkspaceService.ChangeMemberRole(r.Context(),
		r.PathValue("workspaceID"), callerID, r.PathValue("userID"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	err := h.WorkspaceService.RemoveMember(r.Context(),
		r.PathValue("workspaceID"), callerID, r.PathValue("userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
