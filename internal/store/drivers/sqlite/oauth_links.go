package sqlite

import (
	"context"

	"github.com/autolinkhq/autolink/internal/domain"
)

type oauthLinksRepo struct {
	db dbtx
}

func (r *oauthLinksRepo) GetLinkByProvider(ctx context.Context, provider, providerID string) (domain.OAuthLink, error) {
	var l domain.OAuthLink
	err := r.db.QueryRowContext(ctx,
		`SELECT provider, provider_id, user_id, created_at
		 FROM oauth_links WHERE provider = ? AND provider_id = ?`,
		provider, providerID).
		Scan(&l.Provider, &l.ProviderID, &l.UserID, &l.CreatedAt)
	if err != nil {
		return domain.OAuthLink{}, mapNotFound(err)
	}
	return l, nil
}

func (r *oauthLinksRepo) CreateLink(ctx context.Context, l domain.OAuthLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_links (provider, provider_id, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		l.Provider, l.ProviderID, l.UserID, l.CreatedAt)
	return mapConstraint(err)
}

func (r *oauthLinksRepo) ListLinksByUser(ctx context.Context, userID string) ([]domain.OAuthLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider, provider_id, user_id, created_at
		 FROM oauth_links WHERE user_id = ? ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.OAuthLink
	for rows.Next() {
		var l domain.OAuthLink
		if err := rows.Scan(&l.Provider, &l.ProviderID, &l.UserID, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
