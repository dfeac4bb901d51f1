package domain

import "time"

type User struct {
	ID            string
	Email         string
	Nickname      string
	ProfileImage  *string    // URL from the OAuth provider (nullable)
	ProfilePublic bool
	DeletedAt     *time.Time // Soft-delete marker; nil means active
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Deleted reports whether the user is currently soft-deleted.
func (u User) Deleted() bool { return u.DeletedAt != nil }

// OAuthLink ties a provider identity to a user. The (provider, provider_id)
// pair is unique and a link is never updated after creation.
type OAuthLink struct {
	Provider   string
	ProviderID string
	UserID     string
	CreatedAt  time.Time
}
