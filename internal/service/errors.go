package service

import "errors"

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrPermissionDenied means the workspace exists but the caller is not a
	// member of it.
	ErrPermissionDenied = errors.New("permission denied")

	ErrAdminRequired  = errors.New("admin role required")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidRequest = errors.New("invalid request")
	ErrLastAdmin      = errors.New("workspace must retain at least one admin")
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberExists   = errors.New("user is already a member of this workspace")
	ErrUserNotFound   = errors.New("user not found")

	ErrInvitePending         = errors.New("a pending invite already exists for this email")
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteExpired         = errors.New("invite has expired")
	ErrInviteAlreadyAccepted = errors.New("invite has already been accepted")
	ErrInviteEmailMismatch   = errors.New("invite was issued for a different email")
)
