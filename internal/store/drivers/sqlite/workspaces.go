package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
)

type workspacesRepo struct {
	db dbtx
}

func (r *workspacesRepo) GetWorkspaceByID(ctx context.Context, id string) (domain.Workspace, error) {
	var (
		w    domain.Workspace
		desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM workspaces WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &desc, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return domain.Workspace{}, mapNotFound(err)
	}
	w.Description = mapNullStringPtr(desc)
	return w, nil
}

func (r *workspacesRepo) WorkspaceExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM workspaces WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *workspacesRepo) CreateWorkspace(ctx context.Context, w domain.Workspace) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.Name, mapOptionalString(w.Description), w.CreatedAt, w.UpdatedAt)
	return mapConstraint(err)
}

func (r *workspacesRepo) UpdateWorkspace(ctx context.Context, id string, name *string, description *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workspaces
		 SET name = COALESCE(?, name),
		     description = COALESCE(?, description),
		     updated_at = ?
		 WHERE id = ?`,
		mapOptionalString(name), mapOptionalString(description), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *workspacesRepo) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

const summaryQuery = `
	SELECT w.id, w.name, w.description, w.created_at, w.updated_at, m.role,
	       (SELECT COUNT(*) FROM workspace_members c WHERE c.workspace_id = w.id)
	FROM workspace_members m
	JOIN workspaces w ON w.id = m.workspace_id`

func (r *workspacesRepo) GetSummaryForUser(ctx context.Context, workspaceID, userID string) (domain.WorkspaceSummary, error) {
	var (
		s    domain.WorkspaceSummary
		desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		summaryQuery+` WHERE m.workspace_id = ? AND m.user_id = ?`,
		workspaceID, userID).
		Scan(&s.ID, &s.Name, &desc, &s.CreatedAt, &s.UpdatedAt, &s.Role, &s.MemberCount)
	if err != nil {
		return domain.WorkspaceSummary{}, mapNotFound(err)
	}
	s.Description = mapNullStringPtr(desc)
	return s, nil
}

func (r *workspacesRepo) ListSummariesForUser(ctx context.Context, userID string) ([]domain.WorkspaceSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		summaryQuery+` WHERE m.user_id = ? ORDER BY m.joined_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WorkspaceSummary
	for rows.Next() {
		var (
			s    domain.WorkspaceSummary
			desc sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &desc, &s.CreatedAt, &s.UpdatedAt, &s.Role, &s.MemberCount); err != nil {
			return nil, err
		}
		s.Description = mapNullStringPtr(desc)
		out = append(out, s)
	}
	return out, rows.Err()
}
