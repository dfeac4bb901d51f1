package domain

import "time"

// InviteStatus is the lifecycle state of a workspace invite.
// PENDING is the only state that can transition; ACCEPTED and EXPIRED are terminal.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteExpired  InviteStatus = "EXPIRED"
)

type Invite struct {
	ID          string
	WorkspaceID string
	Email       string // normalized (trimmed, lowercased) before storage
	Role        Role
	TokenHash   string // SHA-256 fingerprint of the opaque invite token
	Status      InviteStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
