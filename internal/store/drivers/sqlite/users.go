package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, nickname, profile_image, profile_public, deleted_at, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, nickname, profile_image, profile_public, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Nickname, mapOptionalString(u.ProfileImage), u.ProfilePublic,
		u.CreatedAt, u.UpdatedAt)
	return mapConstraint(err)
}

func (r *usersRepo) RestoreUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		at, at, userID)
	return err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u            domain.User
		profileImage sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Nickname, &profileImage, &u.ProfilePublic,
		&deletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.ProfileImage = mapNullStringPtr(profileImage)
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return u, nil
}
