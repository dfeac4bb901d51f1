package store

import (
	"context"
	"errors"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a transaction entry point for multi-step mutations that must
// appear atomic to concurrent requests.
type Store interface {
	Users() Users
	OAuthLinks() OAuthLinks
	Workspaces() Workspaces
	Memberships() Memberships
	Invites() Invites

	ApplyMigrations() error

	// Tx starts a write transaction and returns a Tx-scoped Store. The caller
	// MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a write transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Drivers retry the
	// whole function a bounded number of times on transient failures (lock
	// contention), so fn must be safe to re-run from scratch.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id, soft-deleted or not.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a user by exact email, soft-deleted or not.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// RestoreUser clears deleted_at and bumps updated_at.
	RestoreUser(ctx context.Context, userID string) error

	// SoftDeleteUser sets deleted_at to the given time. The row, its OAuth
	// links and its memberships all survive so a later re-login can restore it.
	SoftDeleteUser(ctx context.Context, userID string, at time.Time) error
}

type OAuthLinks interface {
	// GetLinkByProvider looks up the unique (provider, provider_id) pair.
	GetLinkByProvider(ctx context.Context, provider, providerID string) (domain.OAuthLink, error)

	// CreateLink inserts a new provider linkage. Links are never updated.
	CreateLink(ctx context.Context, l domain.OAuthLink) error

	// ListLinksByUser returns all linkages for a user, oldest first.
	ListLinksByUser(ctx context.Context, userID string) ([]domain.OAuthLink, error)
}

type Workspaces interface {
	// GetWorkspaceByID returns the bare workspace row.
	GetWorkspaceByID(ctx context.Context, id string) (domain.Workspace, error)

	// WorkspaceExists probes existence without fetching the row. Used to tell
	// "no such workspace" apart from "caller is not a member".
	WorkspaceExists(ctx context.Context, id string) (bool, error)

	// CreateWorkspace inserts a new workspace.
	CreateWorkspace(ctx context.Context, w domain.Workspace) error

	// UpdateWorkspace applies a partial update; nil fields are left unchanged.
	UpdateWorkspace(ctx context.Context, id string, name *string, description *string) error

	// DeleteWorkspace removes the workspace. Memberships and invites cascade
	// per schema.
	DeleteWorkspace(ctx context.Context, id string) error

	// GetSummaryForUser returns the workspace with the user's role and the
	// current member count, or ErrNotFound if the user is not a member.
	GetSummaryForUser(ctx context.Context, workspaceID, userID string) (domain.WorkspaceSummary, error)

	// ListSummariesForUser returns all workspaces the user belongs to, ordered
	// by join date.
	ListSummariesForUser(ctx context.Context, userID string) ([]domain.WorkspaceSummary, error)
}

type Memberships interface {
	// GetMembership returns the (workspace, user) membership row.
	GetMembership(ctx context.Context, workspaceID, userID string) (domain.Membership, error)

	// CreateMembership inserts a membership; duplicate pairs fail with
	// ErrAlreadyExists.
	CreateMembership(ctx context.Context, m domain.Membership) error

	// UpsertMembership inserts a membership, leaving an existing pair untouched.
	UpsertMembership(ctx context.Context, m domain.Membership) error

	// ListMembers returns memberships joined with user records, oldest first.
	ListMembers(ctx context.Context, workspaceID string) ([]domain.Member, error)

	// GetMemberByEmail finds a member of the workspace by the user's email,
	// compared case-insensitively.
	GetMemberByEmail(ctx context.Context, workspaceID, email string) (domain.Membership, error)

	// CountAdmins returns the number of ADMIN memberships in the workspace.
	CountAdmins(ctx context.Context, workspaceID string) (int, error)

	// UpdateRole changes the member's role.
	UpdateRole(ctx context.Context, workspaceID, userID string, role domain.Role) error

	// DeleteMembership removes the member from the workspace.
	DeleteMembership(ctx context.Context, workspaceID, userID string) error
}

type Invites interface {
	// CreateInvite writes a new invite (token_hash is the SHA-256 fingerprint
	// of the opaque invite token).
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByTokenHash returns the invite regardless of status.
	GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error)

	// FindPendingInvite returns a PENDING, unexpired invite for the normalized
	// email in the workspace, if one exists.
	FindPendingInvite(ctx context.Context, workspaceID, email string, now time.Time) (domain.Invite, error)

	// ListInvites returns all invites for a workspace, newest first.
	ListInvites(ctx context.Context, workspaceID string) ([]domain.Invite, error)

	// MarkInviteAccepted flips PENDING to ACCEPTED as a single conditional
	// write and reports whether a row changed. A false return means a
	// concurrent acceptor won the race.
	MarkInviteAccepted(ctx context.Context, inviteID string) (bool, error)

	// MarkInviteExpired flips PENDING to EXPIRED as a single conditional write.
	MarkInviteExpired(ctx context.Context, inviteID string) (bool, error)

	// ExpireStaleInvites transitions every PENDING invite whose expiry has
	// passed to EXPIRED and returns the number of rows changed. Housekeeping
	// only; readers already expire lazily.
	ExpireStaleInvites(ctx context.Context, now time.Time) (int64, error)
}
