package picker

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPlan_ForceFullAlwaysWins(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.Plan(
		SyncRequestParams{Authority: "a", ForceFull: true},
		store.SyncCursor{CollectionID: "c1", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 5},
	)

	assert.Equal(t, VerdictFull, v)
}

func TestPlan_NoCachedCursorIsFull(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.Plan(
		SyncRequestParams{Authority: "a"},
		store.SyncCursor{},
		false,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 5},
	)

	assert.Equal(t, VerdictFull, v)
}

func TestPlan_CollectionChangedIsReset(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.Plan(
		SyncRequestParams{Authority: "a"},
		store.SyncCursor{CollectionID: "old", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "new", LastSyncGeneration: 7},
	)

	assert.Equal(t, VerdictReset, v)
}

func TestPlan_SameGenerationIsNone(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.Plan(
		SyncRequestParams{Authority: "a"},
		store.SyncCursor{CollectionID: "c1", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 5},
	)

	assert.Equal(t, VerdictNone, v)
}

func TestPlan_NewerGenerationIsIncremental(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.Plan(
		SyncRequestParams{Authority: "a"},
		store.SyncCursor{CollectionID: "c1", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 9},
	)

	assert.Equal(t, VerdictIncremental, v)
}

func TestPlanAlbum_NeverReturnsIncremental(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.PlanAlbum(
		SyncRequestParams{Authority: "a", Scope: MediaScope{AlbumID: "album1"}},
		store.SyncCursor{CollectionID: "c1", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 9},
	)

	assert.Equal(t, VerdictFull, v)
	assert.NotEqual(t, VerdictIncremental, v)
}

func TestPlanAlbum_UpToDateIsNone(t *testing.T) {
	p := NewPlanner(testLogger())

	v := p.PlanAlbum(
		SyncRequestParams{Authority: "a"},
		store.SyncCursor{CollectionID: "c1", Generation: 5},
		true,
		mediaprovider.CollectionInfo{ID: "c1", LastSyncGeneration: 5},
	)

	assert.Equal(t, VerdictNone, v)
}
