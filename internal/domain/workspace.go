package domain

import "time"

// Role is the membership role within a workspace.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleMember }

type Workspace struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Membership struct {
	WorkspaceID string
	UserID      string
	Role        Role
	JoinedAt    time.Time
}

// WorkspaceSummary is a workspace as seen by one of its members.
type WorkspaceSummary struct {
	Workspace
	Role        Role
	MemberCount int
}

// Member is a membership joined with the member's user record.
type Member struct {
	UserID   string
	Nickname string
	Email    string
	Role     Role
	JoinedAt time.Time
}
