package picker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/store"
)

func openTestStore(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestEngine_SyncMedia_FullSyncPersistsCursorAndResumeTokensPerPage(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 3}
	prov.mediaPages = []mediaprovider.MediaPage{
		{
			Items:         []mediaprovider.MediaItem{{LocalID: "a", DateTakenMs: 100}},
			NextPageToken: "page-2",
			HonoredArgs:   []string{},
			CollectionID:  "col-1",
		},
		{
			Items:         []mediaprovider.MediaItem{{LocalID: "b", DateTakenMs: 200}},
			NextPageToken: "",
			HonoredArgs:   []string{},
			CollectionID:  "col-1",
		},
	}

	report, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, false)
	require.NoError(t, err)
	require.Equal(t, 2, report.MediaAdded)

	cursor, ok, err := db.MediaSyncCursor(context.Background(), prov.Authority())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "col-1", cursor.CollectionID)
	require.Equal(t, int64(3), cursor.Generation)
	require.Equal(t, "", cursor.Tokens.AddMedia)
}

func TestEngine_SyncMedia_PerPageTokenPersistedBeforeNextPageFetched(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "a"}}, NextPageToken: "page-2", CollectionID: "col-1"},
	}
	// only one page is scripted; the engine should fail on the second
	// fetch, but by then the first page's resume token must already be on
	// disk.
	_, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, false)
	require.Error(t, err)

	cursor, ok, err := db.MediaSyncCursor(context.Background(), prov.Authority())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "page-2", cursor.Tokens.AddMedia)
}

func TestEngine_SyncMedia_ResetClearsExistingRowsFirst(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	authority := "com.example.cloud"

	op, err := db.BeginAddMediaOperation(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, op.Execute(context.Background(), authority, []store.MediaItem{{LocalID: "stale"}}))
	op.SetSuccess()
	require.NoError(t, op.Close())

	prov := newFakeProvider(authority)
	prov.info = mediaprovider.CollectionInfo{ID: "col-2", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "fresh"}}, NextPageToken: "", CollectionID: "col-2"},
	}

	_, err = e.SyncMedia(context.Background(), prov, authority, VerdictReset, prov.info, store.SyncCursor{CollectionID: "col-1"}, false)
	require.NoError(t, err)

	cursor, ok, err := db.MediaSyncCursor(context.Background(), authority)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "col-2", cursor.CollectionID)
}

func TestEngine_SyncMedia_NoneVerdictDoesNothing(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	report, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictNone, mediaprovider.CollectionInfo{}, store.SyncCursor{}, false)
	require.NoError(t, err)
	require.Equal(t, 0, report.MediaAdded)
	require.Empty(t, prov.mediaCalls)
}

func TestEngine_SyncMedia_MismatchedCollectionIDIsIllegalState(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "a"}}, NextPageToken: "", CollectionID: "wrong-collection"},
	}

	_, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, false)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEngine_SyncMedia_UnhonoredGenerationFilterIsIllegalState(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	authority := "com.example.cloud"
	info := mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 5}

	require.NoError(t, db.SetMediaSyncCursor(context.Background(), authority, store.SyncCursor{CollectionID: "col-1", Generation: 2}))

	prov := newFakeProvider(authority)
	prov.info = info
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: nil, NextPageToken: "", CollectionID: "col-1", HonoredArgs: []string{}},
	}

	cached, ok, err := db.MediaSyncCursor(context.Background(), authority)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.SyncMedia(context.Background(), prov, authority, VerdictIncremental, info, cached, false)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEngine_SyncMedia_PageTokenCycleIsDetected(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: nil, NextPageToken: "loop", CollectionID: "col-1"},
		{Items: nil, NextPageToken: "loop", CollectionID: "col-1"},
	}

	_, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, false)
	require.ErrorIs(t, err, ErrPageTokenCycle)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEngine_SyncMedia_EnforcedPagingRequiresPageSizeHonored(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "a"}}, NextPageToken: "", CollectionID: "col-1", HonoredArgs: []string{}},
	}

	_, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, true)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEngine_SyncMedia_UnenforcedPagingToleratesMissingPageSize(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.local")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "a"}}, NextPageToken: "", CollectionID: "col-1", HonoredArgs: []string{}},
	}

	report, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.MediaAdded)
}

func TestEngine_SyncMedia_EnforcedPagingSucceedsWhenPageSizeHonored(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	prov := newFakeProvider("com.example.cloud")
	prov.info = mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}
	prov.mediaPages = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "a"}}, NextPageToken: "", CollectionID: "col-1", HonoredArgs: []string{"page_size"}},
	}
	prov.deletedPages = []mediaprovider.DeletedMediaPage{
		{Items: nil, NextPageToken: "", CollectionID: "col-1", HonoredArgs: []string{"page_size"}},
	}

	report, err := e.SyncMedia(context.Background(), prov, prov.Authority(), VerdictFull, prov.info, store.SyncCursor{}, true)
	require.NoError(t, err)
	require.Equal(t, 1, report.MediaAdded)
}

func TestEngine_SyncAlbumMedia_FullResetThenAdd(t *testing.T) {
	db := openTestStore(t)
	notify := NewNotifier(testLogger())
	e := NewEngine(db, db, notify, testLogger())

	authority := "com.example.cloud"
	albumID := "album-1"

	op, err := db.BeginAddAlbumMediaOperation(context.Background(), albumID, 1)
	require.NoError(t, err)
	require.NoError(t, op.Execute(context.Background(), authority, []store.AlbumMediaItem{{LocalID: "stale"}}))
	op.SetSuccess()
	require.NoError(t, op.Close())

	prov := newFakeProvider(authority)
	prov.albumPages[albumID] = []mediaprovider.MediaPage{
		{Items: []mediaprovider.MediaItem{{LocalID: "fresh", DateTakenMs: 42}}, NextPageToken: ""},
	}

	info := mediaprovider.CollectionInfo{ID: "col-1", LastSyncGeneration: 1}

	report, err := e.SyncAlbumMedia(context.Background(), prov, authority, albumID, VerdictFull, info, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.AlbumMedia)

	cursor, ok, err := db.AlbumSyncCursor(context.Background(), authority, albumID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "col-1", cursor.CollectionID)
}
