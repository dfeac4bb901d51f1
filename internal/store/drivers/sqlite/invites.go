package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
)

type invitesRepo struct {
	db dbtx
}

const inviteColumns = `id, workspace_id, email, role, token_hash, status, expires_at, created_at, updated_at`

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspace_invites (id, workspace_id, email, role, token_hash, status, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.WorkspaceID, inv.Email, inv.Role, inv.TokenHash, inv.Status,
		inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	return mapConstraint(err)
}

func (r *invitesRepo) GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM workspace_invites WHERE token_hash = ?`, hash)
	return scanInvite(row)
}

func (r *invitesRepo) FindPendingInvite(ctx context.Context, workspaceID, email string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM workspace_invites
		 WHERE workspace_id = ? AND LOWER(email) = LOWER(?) AND status = ? AND expires_at > ?
		 LIMIT 1`,
		workspaceID, email, domain.InvitePending, now)
	return scanInvite(row)
}

func (r *invitesRepo) ListInvites(ctx context.Context, workspaceID string) ([]domain.Invite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM workspace_invites
		 WHERE workspace_id = ? ORDER BY created_at DESC`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []domain.Invite
	for rows.Next() {
		var inv domain.Invite
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.TokenHash,
			&inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// MarkInviteAccepted is the compare-and-swap half of invite acceptance: the
// status check and the write are one statement, so of N concurrent acceptors
// exactly one observes a changed row.
func (r *invitesRepo) MarkInviteAccepted(ctx context.Context, inviteID string) (bool, error) {
	return r.transition(ctx, inviteID, domain.InviteAccepted)
}

func (r *invitesRepo) MarkInviteExpired(ctx context.Context, inviteID string) (bool, error) {
	return r.transition(ctx, inviteID, domain.InviteExpired)
}

func (r *invitesRepo) transition(ctx context.Context, inviteID string, to domain.InviteStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workspace_invites SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), inviteID, domain.InvitePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *invitesRepo) ExpireStaleInvites(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workspace_invites SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at <= ?`,
		domain.InviteExpired, now, domain.InvitePending, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanInvite(row *sql.Row) (domain.Invite, error) {
	var inv domain.Invite
	err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.TokenHash,
		&inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}
