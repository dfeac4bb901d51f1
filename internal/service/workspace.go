package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/pkg/idx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// WorkspaceService owns workspace CRUD, membership listing, and role
// management. Every operation authorizes through RequireMember/RequireAdmin
// before touching workspace data.
type WorkspaceService struct {
	Store store.Store
}

// RequireMember returns the caller's membership in the workspace. On a
// membership miss the workspace is probed so a missing workspace reads as
// not-found while an existing one the caller does not belong to reads as
// permission denied.
func (s *WorkspaceService) RequireMember(ctx context.Context, workspaceID, userID string) (domain.Membership, error) {
	m, err := s.Store.Memberships().GetMembership(ctx, workspaceID, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Membership{}, fmt.Errorf("fetch membership: %w", err)
	}

	exists, err := s.Store.Workspaces().WorkspaceExists(ctx, workspaceID)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("probe workspace: %w", err)
	}
	if !exists {
		return domain.Membership{}, ErrWorkspaceNotFound
	}
	return domain.Membership{}, ErrPermissionDenied
}

// RequireAdmin is RequireMember plus an ADMIN role check.
func (s *WorkspaceService) RequireAdmin(ctx context.Context, workspaceID, userID string) (domain.Membership, error) {
	m, err := s.RequireMember(ctx, workspaceID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if m.Role != domain.RoleAdmin {
		return domain.Membership{}, ErrAdminRequired
	}
	return m, nil
}

// CreateWorkspace creates a workspace with the caller as its first admin.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, userID, name string, description *string) (domain.Workspace, error) {
	log := slogx.FromContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Workspace{}, ErrInvalidRequest
	}

	now := time.Now()
	workspace := domain.Workspace{
		ID:          idx.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Workspaces().CreateWorkspace(ctx, workspace); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		if err := tx.Memberships().CreateMembership(ctx, domain.Membership{
			WorkspaceID: workspace.ID,
			UserID:      userID,
			Role:        domain.RoleAdmin,
			JoinedAt:    now,
		}); err != nil {
			return fmt.Errorf("create admin membership: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create workspace", slog.Any("error", err))
		return domain.Workspace{}, err
	}

	log.Info("workspace created",
		slog.String("workspace_id", workspace.ID),
		slog.String("user_id", userID),
	)
	return workspace, nil
}

// GetWorkspace returns the workspace as seen by the member: the row plus
// their role and the current member count.
func (s *WorkspaceService) GetWorkspace(ctx context.Context, workspaceID, userID string) (domain.WorkspaceSummary, error) {
	if _, err := s.RequireMember(ctx, workspaceID, userID); err != nil {
		return domain.WorkspaceSummary{}, err
	}
	summary, err := s.Store.Workspaces().GetSummaryForUser(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.WorkspaceSummary{}, ErrWorkspaceNotFound
		}
		return domain.WorkspaceSummary{}, fmt.Errorf("fetch workspace summary: %w", err)
	}
	return summary, nil
}

// ListWorkspaces returns every workspace the user belongs to.
func (s *WorkspaceService) ListWorkspaces(ctx context.Context, userID string) ([]domain.WorkspaceSummary, error) {
	summaries, err := s.Store.Workspaces().ListSummariesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return summaries, nil
}

// UpdateWorkspace applies a partial update. Admin only.
func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, workspaceID, userID string, name *string, description *string) (domain.Workspace, error) {
	if _, err := s.RequireAdmin(ctx, workspaceID, userID); err != nil {
		return domain.Workspace{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return domain.Workspace{}, ErrInvalidRequest
		}
		name = &trimmed
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Workspaces().UpdateWorkspace(ctx, workspaceID, name, description)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Workspace{}, ErrWorkspaceNotFound
		}
		return domain.Workspace{}, fmt.Errorf("update workspace: %w", err)
	}

	workspace, err := s.Store.Workspaces().GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("reload workspace: %w", err)
	}
	return workspace, nil
}

// DeleteWorkspace removes the workspace and everything under it. Admin only.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, workspaceID, userID string) error {
	log := slogx.FromContext(ctx)

	if _, err := s.RequireAdmin(ctx, workspaceID, userID); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Workspaces().DeleteWorkspace(ctx, workspaceID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrWorkspaceNotFound
		}
		return fmt.Errorf("delete workspace: %w", err)
	}

	log.Info("workspace deleted",
		slog.String("workspace_id", workspaceID),
		slog.String("user_id", userID),
	)
	return nil
}

// ListMembers returns the workspace roster. Any member may list.
func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID, userID string) ([]domain.Member, error) {
	if _, err := s.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	members, err := s.Store.Memberships().ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// ChangeMemberRole sets the target member's role. Admin only. Demoting the
// last remaining admin is rejected; the admin count check and the role write
// run in one write transaction so concurrent demotions serialize.
func (s *WorkspaceService) ChangeMemberRole(ctx context.Context, workspaceID, callerID, targetID string, role domain.Role) error {
	log := slogx.FromContext(ctx)

	if !role.Valid() {
		return ErrInvalidRole
	}
	if _, err := s.RequireAdmin(ctx, workspaceID, callerID); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := tx.Memberships().GetMembership(ctx, workspaceID, targetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("fetch target membership: %w", err)
		}
		if target.Role == role {
			return nil
		}

		if target.Role == domain.RoleAdmin && role != domain.RoleAdmin {
			count, err := tx.Memberships().CountAdmins(ctx, workspaceID)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if count <= 1 {
				return ErrLastAdmin
			}
		}

		return tx.Memberships().UpdateRole(ctx, workspaceID, targetID, role)
	})
	if err != nil {
		return err
	}

	log.Info("member role changed",
		slog.String("workspace_id", workspaceID),
		slog.String("target_user_id", targetID),
		slog.String("role", string(role)),
	)
	return nil
}

// RemoveMember removes the target from the workspace. Admins may remove
// anyone, including themselves, except the last remaining admin.
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, callerID, targetID string) error {
	log := slogx.FromContext(ctx)

	if _, err := s.RequireAdmin(ctx, workspaceID, callerID); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := tx.Memberships().GetMembership(ctx, workspaceID, targetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("fetch target membership: %w", err)
		}

		if target.Role == domain.RoleAdmin {
			count, err := tx.Memberships().CountAdmins(ctx, workspaceID)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if count <= 1 {
				return ErrLastAdmin
			}
		}

		return tx.Memberships().DeleteMembership(ctx, workspaceID, targetID)
	})
	if err != nil {
		return err
	}

	log.Info("member removed",
		slog.String("workspace_id", workspaceID),
		slog.String("target_user_id", targetID),
	)
	return nil
}
