package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func TestCloudProviderAuthority_NeverSet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	value, everSet, err := db.CloudProviderAuthority(ctx)
	require.NoError(t, err)
	require.False(t, everSet)
	require.Empty(t, value)
}

func TestCloudProviderAuthority_SetAndUnset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.SetCloudProviderAuthority(ctx, "com.example.cloudy"))

	value, everSet, err := db.CloudProviderAuthority(ctx)
	require.NoError(t, err)
	require.True(t, everSet)
	require.Equal(t, "com.example.cloudy", value)

	require.NoError(t, db.SetCloudProviderUnset(ctx))

	value, everSet, err = db.CloudProviderAuthority(ctx)
	require.NoError(t, err)
	require.True(t, everSet)
	require.Equal(t, unsetSentinel, value)
}

func TestMediaSyncCursor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.MediaSyncCursor(ctx, "com.example.cloudy")
	require.NoError(t, err)
	require.False(t, ok)

	cursor := SyncCursor{
		CollectionID: "collection-1",
		Generation:   42,
		Tokens: ResumeTokens{
			AddMedia:    "token-add",
			AddAlbum:    "token-album",
			RemoveMedia: "token-remove",
		},
	}
	require.NoError(t, db.SetMediaSyncCursor(ctx, "com.example.cloudy", cursor))

	got, ok, err := db.MediaSyncCursor(ctx, "com.example.cloudy")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cursor, got)

	require.NoError(t, db.ClearMediaSyncCursor(ctx, "com.example.cloudy"))

	_, ok, err = db.MediaSyncCursor(ctx, "com.example.cloudy")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAlbumSyncCursor_IndependentFromMediaCursor(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	mediaCursor := SyncCursor{CollectionID: "c1", Generation: 1}
	albumCursor := SyncCursor{CollectionID: "c1", Generation: 2}

	require.NoError(t, db.SetMediaSyncCursor(ctx, "auth", mediaCursor))
	require.NoError(t, db.SetAlbumSyncCursor(ctx, "auth", "album-1", albumCursor))

	gotMedia, ok, err := db.MediaSyncCursor(ctx, "auth")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), gotMedia.Generation)

	gotAlbum, ok, err := db.AlbumSyncCursor(ctx, "auth", "album-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), gotAlbum.Generation)
}

func TestAddMediaOp_CommitsOnlyAfterSetSuccess(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	op, err := db.BeginAddMediaOperation(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, op.Execute(ctx, "auth", []MediaItem{
		{LocalID: "local-1", DateTakenMs: 1000, GenerationModified: 1, IsVisible: true},
	}))
	require.NoError(t, op.Close())

	count := countMedia(t, db, "auth")
	require.Equal(t, 0, count, "uncommitted op must not have written rows")
}

func TestAddMediaOp_PersistsAfterSetSuccess(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	op, err := db.BeginAddMediaOperation(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, op.Execute(ctx, "auth", []MediaItem{
		{LocalID: "local-1", DateTakenMs: 1000, GenerationModified: 1, IsVisible: true},
	}))
	op.SetSuccess()
	require.NoError(t, op.Close())

	require.Equal(t, 1, countMedia(t, db, "auth"))
}

func TestRemoveMediaOp_DeletesMatchingRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	addOp, err := db.BeginAddMediaOperation(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, addOp.Execute(ctx, "auth", []MediaItem{
		{LocalID: "local-1", DateTakenMs: 1000, GenerationModified: 1, IsVisible: true},
	}))
	addOp.SetSuccess()
	require.NoError(t, addOp.Close())
	require.Equal(t, 1, countMedia(t, db, "auth"))

	removeOp, err := db.BeginRemoveMediaOperation(ctx)
	require.NoError(t, err)
	require.NoError(t, removeOp.Execute(ctx, "auth", []MediaID{{LocalID: "local-1"}}))
	removeOp.SetSuccess()
	require.NoError(t, removeOp.Close())

	require.Equal(t, 0, countMedia(t, db, "auth"))
}

func TestResetMediaOperation_ClearsAllRowsForAuthority(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	addOp, err := db.BeginAddMediaOperation(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, addOp.Execute(ctx, "auth", []MediaItem{
		{LocalID: "local-1", DateTakenMs: 1000, GenerationModified: 1, IsVisible: true},
		{LocalID: "local-2", DateTakenMs: 2000, GenerationModified: 2, IsVisible: true},
	}))
	addOp.SetSuccess()
	require.NoError(t, addOp.Close())
	require.Equal(t, 2, countMedia(t, db, "auth"))

	resetOp, err := db.BeginResetMediaOperation(ctx, "auth")
	require.NoError(t, err)
	resetOp.SetSuccess()
	require.NoError(t, resetOp.Close())

	require.Equal(t, 0, countMedia(t, db, "auth"))
}

func countMedia(t *testing.T, db *DB, authority string) int {
	t.Helper()

	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM media WHERE authority = ?`, authority).Scan(&count)
	require.NoError(t, err)

	return count
}
