package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/pkg/idx"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// IdentityService resolves OAuth provider identities to local users and owns
// the account lifecycle (creation, soft delete, restore on re-login).
type IdentityService struct {
	Store store.Store
}

// Profile is a user together with their linked providers and workspaces,
// as returned to the authenticated user themselves.
type Profile struct {
	User       domain.User
	Providers  []string
	Workspaces []domain.WorkspaceSummary
}

// NormalizeEmail canonicalizes an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolve maps a verified provider identity onto a local user, creating one
// on first login. The lookup order is fixed:
//
//  1. An existing (provider, provider_id) link wins outright.
//  2. Otherwise a user with the same email gets the new provider linked.
//  3. Otherwise a brand-new user is created together with their first link,
//     a personal workspace, and an ADMIN membership, atomically.
//
// A soft-deleted user who logs back in is restored rather than duplicated.
// The second return value reports whether the user was created by this call.
func (s *IdentityService) Resolve(ctx context.Context, provider string, info oauth.UserInfo) (domain.User, bool, error) {
	log := slogx.FromContext(ctx)

	email := NormalizeEmail(info.Email)
	if email == "" || info.ProviderID == "" {
		return domain.User{}, false, ErrInvalidRequest
	}

	// 1. Provider link already known.
	link, err := s.Store.OAuthLinks().GetLinkByProvider(ctx, provider, info.ProviderID)
	if err == nil {
		user, err := s.Store.Users().GetUserByID(ctx, link.UserID)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("fetch linked user: %w", err)
		}
		if user.Deleted() {
			if user, err = s.restore(ctx, user.ID); err != nil {
				return domain.User{}, false, err
			}
			log.Info("soft-deleted user restored on login",
				slog.String("user_id", user.ID),
			)
		}
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, fmt.Errorf("lookup oauth link: %w", err)
	}

	// 2. Same email, new provider: attach the link to the existing account.
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.OAuthLinks().CreateLink(ctx, domain.OAuthLink{
				Provider:   provider,
				ProviderID: info.ProviderID,
				UserID:     user.ID,
				CreatedAt:  time.Now(),
			}); err != nil {
				return fmt.Errorf("link provider: %w", err)
			}
			if user.Deleted() {
				if err := tx.Users().RestoreUser(ctx, user.ID); err != nil {
					return fmt.Errorf("restore user: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return domain.User{}, false, err
		}
		if user.Deleted() {
			if user, err = s.Store.Users().GetUserByID(ctx, user.ID); err != nil {
				return domain.User{}, false, fmt.Errorf("reload restored user: %w", err)
			}
			log.Info("soft-deleted user restored on login",
				slog.String("user_id", user.ID),
			)
		}
		log.Info("provider linked to existing user",
			slog.String("user_id", user.ID),
			slog.String("provider", provider),
		)
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, fmt.Errorf("lookup user by email: %w", err)
	}

	// 3. First login: create the user, the link, and a personal workspace
	// they administer. All four inserts commit or none do.
	now := time.Now()
	user = domain.User{
		ID:            idx.New().String(),
		Email:         email,
		Nickname:      info.Nickname,
		ProfileImage:  info.ProfileImage,
		ProfilePublic: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	workspace := domain.Workspace{
		ID:        idx.New().String(),
		Name:      personalWorkspaceName(info.Nickname),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.OAuthLinks().CreateLink(ctx, domain.OAuthLink{
			Provider:   provider,
			ProviderID: info.ProviderID,
			UserID:     user.ID,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("create oauth link: %w", err)
		}
		if err := tx.Workspaces().CreateWorkspace(ctx, workspace); err != nil {
			return fmt.Errorf("create personal workspace: %w", err)
		}
		if err := tx.Memberships().CreateMembership(ctx, domain.Membership{
			WorkspaceID: workspace.ID,
			UserID:      user.ID,
			Role:        domain.RoleAdmin,
			JoinedAt:    now,
		}); err != nil {
			return fmt.Errorf("create admin membership: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to provision new user", slog.Any("error", err))
		return domain.User{}, false, err
	}

	log.Info("new user provisioned",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
		slog.String("workspace_id", workspace.ID),
	)
	return user, true, nil
}

// GetProfile returns the user's own profile with linked providers and
// workspace summaries. Soft-deleted users resolve to ErrUserNotFound.
func (s *IdentityService) GetProfile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("fetch user: %w", err)
	}
	if user.Deleted() {
		return Profile{}, ErrUserNotFound
	}

	links, err := s.Store.OAuthLinks().ListLinksByUser(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("list oauth links: %w", err)
	}
	providers := make([]string, 0, len(links))
	for _, l := range links {
		providers = append(providers, l.Provider)
	}

	summaries, err := s.Store.Workspaces().ListSummariesForUser(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("list workspaces: %w", err)
	}

	return Profile{User: user, Providers: providers, Workspaces: summaries}, nil
}

// DeleteAccount soft-deletes the user. Memberships and links are kept so a
// later login through any linked provider restores the account intact.
func (s *IdentityService) DeleteAccount(ctx context.Context, userID string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	if user.Deleted() {
		return nil
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().SoftDeleteUser(ctx, userID, time.Now())
	})
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}

	log.Info("user soft-deleted", slog.String("user_id", userID))
	return nil
}

func (s *IdentityService) restore(ctx context.Context, userID string) (domain.User, error) {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().RestoreUser(ctx, userID)
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("restore user: %w", err)
	}
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("reload restored user: %w", err)
	}
	return user, nil
}

func personalWorkspaceName(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "My workspace"
	}
	return nickname + "'s workspace"
}
