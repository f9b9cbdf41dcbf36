package pendinglogin_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/postsync/oauthflow/pendinglogin"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_UpsertGetDelete(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := pendinglogin.NewInMemoryRepo(time.Minute).WithNowFunc(func() time.Time { return now })

	login := &pendinglogin.PendingLogin{Nonce: "n1", RedirectURI: "http://localhost:3000/callback", CreatedAt: now}
	require.NoError(t, repo.Upsert("n1", login))

	// The repo keeps its own copy.
	login.RedirectURI = "http://evil.example"

	got, err := repo.Get("n1")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000/callback", got.RedirectURI)

	require.NoError(t, repo.Delete("n1"))
	_, err = repo.Get("n1")
	require.ErrorIs(t, err, pendinglogin.ErrNotFound)
}

func TestInMemoryRepo_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := pendinglogin.NewInMemoryRepo(time.Minute).WithNowFunc(func() time.Time { return now })

	require.NoError(t, repo.Upsert("n1", &pendinglogin.PendingLogin{Nonce: "n1", CreatedAt: now}))

	now = now.Add(2 * time.Minute)
	_, err := repo.Get("n1")
	require.ErrorIs(t, err, pendinglogin.ErrExpired)

	// Expired entries are dropped on the next write.
	require.NoError(t, repo.Upsert("n2", &pendinglogin.PendingLogin{Nonce: "n2", CreatedAt: now}))
	_, err = repo.Get("n1")
	require.ErrorIs(t, err, pendinglogin.ErrNotFound)
}

func TestInMemoryRepo_Validation(t *testing.T) {
	repo := pendinglogin.NewInMemoryRepo(0)

	require.Error(t, repo.Upsert("", &pendinglogin.PendingLogin{}))
	require.Error(t, repo.Upsert("n1", nil))
	_, err := repo.Get("")
	require.Error(t, err)
	require.Error(t, repo.Delete(""))
}
