package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE shares (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  label TEXT NOT NULL,
  content_key TEXT NOT NULL,
  server_url TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  deleted INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)
	return db
}

func TestCreateAndGetByID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	s := &Share{
		ID:         "id1",
		Kind:       KindNote,
		Label:      "(note)",
		ContentKey: "abc123",
		ServerURL:  "https://share.example.com",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, r.Create(ctx, s))

	got, err := r.GetByID(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, KindNote, got.Kind)
	assert.Equal(t, "abc123", got.ContentKey)
	assert.Equal(t, "https://share.example.com", got.ServerURL)
}

func TestList_OnlyNotDeleted(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := db.Exec(`INSERT INTO shares(id, kind, label, content_key, server_url, created_at, expires_at, deleted) VALUES
	  ('a', 'note', 'l1', 'k1', 'u1', ?, ?, 0),
	  ('b', 'file', 'l2', 'k2', 'u2', ?, ?, 0),
	  ('c', 'note', 'l3', 'k3', 'u3', ?, ?, 1)
	`, now, now, now, now, now, now)
	require.NoError(t, err)

	r := NewSQLiteRepository(db)
	got, err := r.List(ctx)
	require.NoError(t, err)

	ids := make(map[string]struct{})
	for _, s := range got {
		ids[s.ID] = struct{}{}
	}
	assert.Equal(t, map[string]struct{}{"a": {}, "b": {}}, ids)
}

func TestDeleteByID_SuccessAndNotFound(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := db.Exec(`INSERT INTO shares(id, kind, label, content_key, server_url, created_at, expires_at, deleted)
	                   VALUES ('x', 'note', 'l', 'k', 'u', ?, ?, 0)`, now, now)
	require.NoError(t, err)

	r := NewSQLiteRepository(db)

	require.NoError(t, r.DeleteByID(ctx, "x"))

	err = r.DeleteByID(ctx, "x")
	require.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	_, err := db.Exec(`INSERT INTO shares(id, kind, label, content_key, server_url, created_at, expires_at, deleted) VALUES
	  ('expired', 'note', 'l', 'k', 'u', ?, ?, 0),
	  ('live', 'note', 'l', 'k', 'u', ?, ?, 0)
	`, now, past, now, future)
	require.NoError(t, err)

	r := NewSQLiteRepository(db)
	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}
