package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/pkg/cryptox"
	"github.com/autolinkhq/autolink/pkg/idx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// DefaultInviteExpiry is how long a fresh invite stays redeemable.
const DefaultInviteExpiry = 7 * 24 * time.Hour

// InviteService mints and redeems workspace invites. Invite tokens are opaque
// 256-bit values; only their SHA-256 fingerprint is stored.
type InviteService struct {
	Store      store.Store
	Workspaces *WorkspaceService

	// Expiry overrides DefaultInviteExpiry when positive.
	Expiry time.Duration
}

func (s *InviteService) expiry() time.Duration {
	if s.Expiry > 0 {
		return s.Expiry
	}
	return DefaultInviteExpiry
}

// CreateInvite mints an invite for the given email. Admin only. The raw token
// is returned exactly once; it is not recoverable afterwards.
func (s *InviteService) CreateInvite(ctx context.Context, workspaceID, callerID, email string, role domain.Role) (domain.Invite, string, error) {
	log := slogx.FromContext(ctx)

	if _, err := s.Workspaces.RequireAdmin(ctx, workspaceID, callerID); err != nil {
		return domain.Invite{}, "", err
	}

	email = NormalizeEmail(email)
	if email == "" {
		return domain.Invite{}, "", ErrInvalidRequest
	}
	if !role.Valid() {
		return domain.Invite{}, "", ErrInvalidRole
	}

	now := time.Now()

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invite token", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	invite := domain.Invite{
		ID:          idx.New().String(),
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		TokenHash:   cryptox.FingerprintToken(token),
		Status:      domain.InvitePending,
		ExpiresAt:   now.Add(s.expiry()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The precondition checks and the insert share one write transaction so
	// concurrent creates for the same email serialize on the write lock and
	// the loser re-reads the winner's committed row.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// 1. Reject if the email already belongs to a member.
		_, err := tx.Memberships().GetMemberByEmail(ctx, workspaceID, email)
		if err == nil {
			return ErrMemberExists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup member by email: %w", err)
		}

		// 2. Reject if an unexpired PENDING invite already exists.
		_, err = tx.Invites().FindPendingInvite(ctx, workspaceID, email, now)
		if err == nil {
			return ErrInvitePending
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup pending invite: %w", err)
		}

		// 3. Store the invite; only the token fingerprint is persisted.
		return tx.Invites().CreateInvite(ctx, invite)
	})
	if err != nil {
		if errors.Is(err, ErrMemberExists) || errors.Is(err, ErrInvitePending) {
			return domain.Invite{}, "", err
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Invite{}, "", ErrInvitePending
		}
		log.Error("failed to store invite", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	log.Info("invite created",
		slog.String("invite_id", invite.ID),
		slog.String("workspace_id", workspaceID),
		slog.String("role", string(role)),
	)
	return invite, token, nil
}

// ListInvites returns every invite for the workspace, newest first. Admin only.
func (s *InviteService) ListInvites(ctx context.Context, workspaceID, callerID string) ([]domain.Invite, error) {
	if _, err := s.Workspaces.RequireAdmin(ctx, workspaceID, callerID); err != nil {
		return nil, err
	}
	invites, err := s.Store.Invites().ListInvites(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// AcceptInvite redeems a raw invite token for the authenticated user. Checks
// run in a fixed order so a caller always sees the most specific failure:
// unknown token, already accepted, expired (including lazy expiry of a stale
// PENDING row), wrong email, already a member. The PENDING to ACCEPTED
// transition is a conditional write, so two concurrent accepts of the same
// token admit exactly one membership.
func (s *InviteService) AcceptInvite(ctx context.Context, token, userID, userEmail string) (domain.Invite, error) {
	log := slogx.FromContext(ctx)

	if token == "" {
		return domain.Invite{}, ErrInviteNotFound
	}

	invite, err := s.Store.Invites().GetInviteByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invite{}, ErrInviteNotFound
		}
		return domain.Invite{}, fmt.Errorf("lookup invite: %w", err)
	}

	switch invite.Status {
	case domain.InviteAccepted:
		return domain.Invite{}, ErrInviteAlreadyAccepted
	case domain.InviteExpired:
		return domain.Invite{}, ErrInviteExpired
	}

	now := time.Now()
	if !now.Before(invite.ExpiresAt) {
		// Materialize the expiry so later reads see EXPIRED, not a stale
		// PENDING row. Losing the conditional write here just means someone
		// else transitioned it first.
		if _, err := s.Store.Invites().MarkInviteExpired(ctx, invite.ID); err != nil {
			log.Warn("failed to mark invite expired", slog.Any("error", err))
		}
		return domain.Invite{}, ErrInviteExpired
	}

	if NormalizeEmail(userEmail) != invite.Email {
		return domain.Invite{}, ErrInviteEmailMismatch
	}

	_, err = s.Store.Memberships().GetMembership(ctx, invite.WorkspaceID, userID)
	if err == nil {
		return domain.Invite{}, ErrMemberExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Invite{}, fmt.Errorf("lookup membership: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		won, err := tx.Invites().MarkInviteAccepted(ctx, invite.ID)
		if err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}
		if !won {
			return ErrInviteAlreadyAccepted
		}
		return tx.Memberships().UpsertMembership(ctx, domain.Membership{
			WorkspaceID: invite.WorkspaceID,
			UserID:      userID,
			Role:        invite.Role,
			JoinedAt:    now,
		})
	})
	if err != nil {
		return domain.Invite{}, err
	}

	log.Info("invite accepted",
		slog.String("invite_id", invite.ID),
		slog.String("workspace_id", invite.WorkspaceID),
		slog.String("user_id", userID),
	)

	invite.Status = domain.InviteAccepted
	invite.UpdatedAt = now
	return invite, nil
}
