package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/autolinkhq/autolink/internal/domain"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/internal/store/drivers/sqlite"
	"github.com/autolinkhq/autolink/pkg/idx"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a file-backed database in a temp dir. A file (rather
// than :memory:) is required because the pool may hand different connections
// to concurrent transactions.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedUser(t *testing.T, st store.Store, email string) domain.User {
	t.Helper()

	now := time.Now()
	user := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		Nickname:  "user-" + email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

func seedWorkspace(t *testing.T, st store.Store, adminID string) domain.Workspace {
	t.Helper()

	now := time.Now()
	ws := domain.Workspace{
		ID:        idx.New().String(),
		Name:      "test workspace",
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx := context.Background()
	require.NoError(t, st.Workspaces().CreateWorkspace(ctx, ws))
	require.NoError(t, st.Memberships().CreateMembership(ctx, domain.Membership{
		WorkspaceID: ws.ID,
		UserID:      adminID,
		Role:        domain.RoleAdmin,
		JoinedAt:    now,
	}))
	return ws
}

func seedMember(t *testing.T, st store.Store, workspaceID, userID string, role domain.Role) {
	t.Helper()

	require.NoError(t, st.Memberships().CreateMembership(context.Background(), domain.Membership{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    time.Now(),
	}))
}
