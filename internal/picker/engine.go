package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/store"
)

// SyncReport summarizes a single engine run, returned to the caller.
type SyncReport struct {
	Authority    string
	Verdict      Verdict
	MediaAdded   int
	MediaRemoved int
	AlbumMedia   int
	Duration     time.Duration
}

// Engine executes the paged provider queries a Verdict calls for and
// persists the results through PickerDbFacade and PreferencesStore. It
// holds no locks of its own — the controller runs whole-media cloud syncs
// under the cloud-sync lock and local syncs under the idle-maintenance
// lock; album syncs take neither.
type Engine struct {
	db     store.PickerDbFacade
	prefs  store.PreferencesStore
	notify *Notifier
	logger *slog.Logger
	nowFn  func() int64
}

// NewEngine creates an Engine. nowFn defaults to the wall clock in
// milliseconds.
func NewEngine(db store.PickerDbFacade, prefs store.PreferencesStore, notifier *Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		db:     db,
		prefs:  prefs,
		notify: notifier,
		logger: logger,
		nowFn:  func() int64 { return time.Now().UnixMilli() },
	}
}

// SyncMedia runs a whole-media sync according to verdict. info is the
// provider collection info captured by the planner for this cycle; cached
// is the cursor the planner compared against (used only on an Incremental
// verdict, for its generation and resume tokens). enforcePagedSync requires the
// provider to honor page_size on every page — true for cloud sync, false
// for local.
func (e *Engine) SyncMedia(
	ctx context.Context, prov Provider, authority string, verdict Verdict,
	info mediaprovider.CollectionInfo, cached store.SyncCursor, enforcePagedSync bool,
) (*SyncReport, error) {
	start := e.nowFn()
	report := &SyncReport{Authority: authority, Verdict: verdict}

	if verdict == VerdictNone {
		return report, nil
	}

	startGeneration := int64(0)
	tokens := store.ResumeTokens{}

	if verdict == VerdictIncremental {
		startGeneration = cached.Generation
		tokens = cached.Tokens
	}

	if verdict == VerdictFull || verdict == VerdictReset {
		// Full and Reset both start from a clean slate: Reset because the
		// provider's collection id changed under the cached cursor, Full because a cached
		// cursor for this collection may already carry stale rows (a forced
		// full resync does not imply the collection changed).
		if err := e.resetMedia(ctx, authority); err != nil {
			return nil, err
		}

		// Seed the cursor row with generation 0 ("run in progress") before
		// paging starts, so per-page resume-token writes below have a row
		// to attach to. The real generation watermark is only written once
		// both loops finish, marking the run complete.
		if err := e.prefs.SetMediaSyncCursor(ctx, authority, store.SyncCursor{CollectionID: info.ID}); err != nil {
			return nil, fmt.Errorf("picker: seed media sync cursor: %w", err)
		}
	}

	addedCount, err := e.runAddMediaPages(ctx, prov, authority, info.ID, startGeneration, tokens.AddMedia, enforcePagedSync)
	if err != nil {
		return nil, err
	}

	removedCount, err := e.runRemoveMediaPages(ctx, prov, authority, info.ID, startGeneration, tokens.RemoveMedia, enforcePagedSync)
	if err != nil {
		return nil, err
	}

	completedCursor := store.SyncCursor{
		CollectionID: info.ID,
		Generation:   info.LastSyncGeneration,
		Tokens:       store.ResumeTokens{AddAlbum: tokens.AddAlbum},
	}

	if err := e.prefs.SetMediaSyncCursor(ctx, authority, completedCursor); err != nil {
		return nil, fmt.Errorf("picker: persist media sync cursor: %w", err)
	}

	report.MediaAdded = addedCount
	report.MediaRemoved = removedCount
	report.Duration = time.Duration(e.nowFn()-start) * time.Millisecond

	return report, nil
}

// resetMedia clears all media rows and the cursor for authority before a
// Full- or Reset-verdict sync starts from scratch; ResetAllMedia uses it too.
func (e *Engine) resetMedia(ctx context.Context, authority string) error {
	op, err := e.db.BeginResetMediaOperation(ctx, authority)
	if err != nil {
		return fmt.Errorf("picker: begin reset media: %w", err)
	}

	op.SetSuccess()

	if err := op.Close(); err != nil {
		return fmt.Errorf("picker: commit reset media: %w", err)
	}

	if err := e.prefs.ClearMediaSyncCursor(ctx, authority); err != nil {
		return fmt.Errorf("picker: clear media sync cursor: %w", err)
	}

	return nil
}

// runAddMediaPages pages through QueryMedia starting at startToken,
// committing one AddMediaOp per page and persisting that page's resume
// token immediately after the commit. A crash between pages loses at most
// the in-flight page, never the whole run, since every earlier page is
// both written and recorded on disk before the next fetch starts. Each
// page that adds rows publishes its own change notification, keyed off
// the first row's date-taken-ms, before the next page is fetched.
// enforcePagedSync requires the provider to report page_size among its
// honored args.
func (e *Engine) runAddMediaPages(
	ctx context.Context, prov Provider, authority, collectionID string, generation int64, startToken string,
	enforcePagedSync bool,
) (int, error) {
	count := 0
	seen := map[string]bool{}
	token := startToken

	for {
		page, err := prov.QueryMedia(ctx, generation, token)
		if err != nil {
			return count, fmt.Errorf("picker: query media: %w", err)
		}

		if err := validateMediaPage(page.CollectionID, collectionID, page.HonoredArgs, generation, enforcePagedSync); err != nil {
			return count, err
		}

		items := toMediaItems(page.Items)

		op, err := e.db.BeginAddMediaOperation(ctx, e.nowFn())
		if err != nil {
			return count, fmt.Errorf("picker: begin add media: %w", err)
		}

		if err := op.Execute(ctx, authority, items); err != nil {
			op.Close()
			return count, err
		}

		op.SetSuccess()

		if err := op.Close(); err != nil {
			return count, fmt.Errorf("picker: commit add media page: %w", err)
		}

		count += len(items)

		if err := e.prefs.SetMediaAddResumeToken(ctx, authority, page.NextPageToken); err != nil {
			return count, fmt.Errorf("picker: persist add media resume token: %w", err)
		}

		if len(items) > 0 {
			e.notify.NotifyMediaChanged(items[0].DateTakenMs)
		}

		if page.NextPageToken == "" {
			break
		}

		if seen[page.NextPageToken] {
			return count, fmt.Errorf("%w: %w: token %q repeated", ErrIllegalState, ErrPageTokenCycle, page.NextPageToken)
		}

		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}

	return count, nil
}

// runRemoveMediaPages pages through QueryDeletedMedia starting at
// startToken, committing one RemoveMediaOp per page and persisting that
// page's resume token immediately after the commit. enforcePagedSync
// requires the provider to report page_size among its honored args.
func (e *Engine) runRemoveMediaPages(
	ctx context.Context, prov Provider, authority, collectionID string, generation int64, startToken string,
	enforcePagedSync bool,
) (int, error) {
	count := 0
	seen := map[string]bool{}
	token := startToken

	for {
		page, err := prov.QueryDeletedMedia(ctx, generation, token)
		if err != nil {
			return count, fmt.Errorf("picker: query deleted media: %w", err)
		}

		if err := validateMediaPage(page.CollectionID, collectionID, page.HonoredArgs, generation, enforcePagedSync); err != nil {
			return count, err
		}

		ids := make([]store.MediaID, 0, len(page.Items))
		for _, item := range page.Items {
			ids = append(ids, store.MediaID{LocalID: item.LocalID, CloudID: item.CloudID})
		}

		op, err := e.db.BeginRemoveMediaOperation(ctx)
		if err != nil {
			return count, fmt.Errorf("picker: begin remove media: %w", err)
		}

		if err := op.Execute(ctx, authority, ids); err != nil {
			op.Close()
			return count, err
		}

		op.SetSuccess()

		if err := op.Close(); err != nil {
			return count, fmt.Errorf("picker: commit remove media page: %w", err)
		}

		count += len(ids)

		if err := e.prefs.SetMediaRemoveResumeToken(ctx, authority, page.NextPageToken); err != nil {
			return count, fmt.Errorf("picker: persist remove media resume token: %w", err)
		}

		if len(page.Items) > 0 {
			e.notify.NotifyMediaChanged(page.Items[0].DateTakenMs)
		}

		if page.NextPageToken == "" {
			break
		}

		if seen[page.NextPageToken] {
			return count, fmt.Errorf("%w: %w: token %q repeated", ErrIllegalState, ErrPageTokenCycle, page.NextPageToken)
		}

		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}

	return count, nil
}

// SyncAlbumMedia runs an album-media sync. Album media sync has no
// incremental mode: any verdict other than None performs a full reset and
// re-enumeration of the album. Unlike whole-media sync, album media has no
// cached collection id to validate a page against and does not require
// album_id among the honored args; enforcePagedSync still requires
// page_size whenever the provider is cloud.
func (e *Engine) SyncAlbumMedia(
	ctx context.Context, prov Provider, authority, albumID string, verdict Verdict, info mediaprovider.CollectionInfo,
	enforcePagedSync bool,
) (*SyncReport, error) {
	report := &SyncReport{Authority: authority, Verdict: verdict}

	if verdict == VerdictNone {
		return report, nil
	}

	resetOp, err := e.db.BeginResetAlbumMediaOperation(ctx, authority, albumID)
	if err != nil {
		return nil, fmt.Errorf("picker: begin reset album media: %w", err)
	}

	resetOp.SetSuccess()

	if err := resetOp.Close(); err != nil {
		return nil, fmt.Errorf("picker: commit reset album media: %w", err)
	}

	count := 0
	seen := map[string]bool{}
	token := ""

	for {
		page, err := prov.QueryAlbumMedia(ctx, albumID, token)
		if err != nil {
			return nil, fmt.Errorf("picker: query album media: %w", err)
		}

		if enforcePagedSync && !honoredArgsContain(page.HonoredArgs, "page_size") {
			return nil, fmt.Errorf("%w: provider did not honor page_size", ErrIllegalState)
		}

		items := toAlbumMediaItems(page.Items)

		op, err := e.db.BeginAddAlbumMediaOperation(ctx, albumID, e.nowFn())
		if err != nil {
			return nil, fmt.Errorf("picker: begin add album media: %w", err)
		}

		if err := op.Execute(ctx, authority, items); err != nil {
			op.Close()
			return nil, err
		}

		op.SetSuccess()

		if err := op.Close(); err != nil {
			return nil, fmt.Errorf("picker: commit add album media page: %w", err)
		}

		count += len(items)

		if err := e.prefs.SetAlbumAddResumeToken(ctx, authority, albumID, page.NextPageToken); err != nil {
			return nil, fmt.Errorf("picker: persist album resume token: %w", err)
		}

		if len(page.Items) > 0 {
			e.notify.NotifyAlbumContentChanged(albumID, maxDateTakenRaw(0, page.Items))
		}

		if page.NextPageToken == "" {
			break
		}

		if seen[page.NextPageToken] {
			return nil, fmt.Errorf("%w: %w: token %q repeated", ErrIllegalState, ErrPageTokenCycle, page.NextPageToken)
		}

		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}

	if err := e.prefs.SetAlbumSyncCursor(ctx, authority, albumID, store.SyncCursor{
		CollectionID: info.ID,
		Generation:   info.LastSyncGeneration,
	}); err != nil {
		return nil, fmt.Errorf("picker: persist album sync cursor: %w", err)
	}

	report.AlbumMedia = count

	return report, nil
}

// validateMediaPage checks a page's extras before the engine trusts it: the
// collection id must match what the run started against (a mismatch means
// the provider's collection changed mid-run, fatal), and honoredArgs must
// list every arg the engine required (page_size whenever paging is
// enforced, and the generation filter whenever one was requested).
func validateMediaPage(pageCollectionID, expectedCollectionID string, honored []string, generation int64, enforcePagedSync bool) error {
	if pageCollectionID != "" && pageCollectionID != expectedCollectionID {
		return fmt.Errorf("%w: page collection id %q does not match %q",
			ErrIllegalState, pageCollectionID, expectedCollectionID)
	}

	if enforcePagedSync && !honoredArgsContain(honored, "page_size") {
		return fmt.Errorf("%w: provider did not honor page_size", ErrIllegalState)
	}

	if generation == 0 {
		return nil
	}

	if !honoredArgsContain(honored, "generation") {
		return fmt.Errorf("%w: provider did not honor generation filter", ErrIllegalState)
	}

	return nil
}

func honoredArgsContain(honored []string, arg string) bool {
	for _, a := range honored {
		if a == arg {
			return true
		}
	}

	return false
}

func toMediaItems(items []mediaprovider.MediaItem) []store.MediaItem {
	out := make([]store.MediaItem, 0, len(items))
	for _, item := range items {
		out = append(out, store.MediaItem{
			LocalID:            item.LocalID,
			CloudID:            item.CloudID,
			DateTakenMs:        item.DateTakenMs,
			GenerationModified: item.GenerationModified,
			IsVisible:          item.IsVisible,
			SizeBytes:          item.SizeBytes,
			MimeType:           item.MimeType,
		})
	}

	return out
}

func toAlbumMediaItems(items []mediaprovider.MediaItem) []store.AlbumMediaItem {
	out := make([]store.AlbumMediaItem, 0, len(items))
	for _, item := range items {
		out = append(out, store.AlbumMediaItem{
			LocalID:            item.LocalID,
			CloudID:            item.CloudID,
			DateTakenMs:        item.DateTakenMs,
			GenerationModified: item.GenerationModified,
		})
	}

	return out
}

func maxDateTakenRaw(current int64, items []mediaprovider.MediaItem) int64 {
	for _, item := range items {
		if item.DateTakenMs > current {
			current = item.DateTakenMs
		}
	}

	return current
}

// Provider is the read side of a cloud or local media provider the sync
// engine queries. mediaprovider.Client satisfies this interface over
// HTTP; tests use fakes.
type Provider interface {
	Authority() string
	CollectionInfo(ctx context.Context) (mediaprovider.CollectionInfo, error)
	QueryMedia(ctx context.Context, generation int64, pageToken string) (mediaprovider.MediaPage, error)
	QueryDeletedMedia(ctx context.Context, generation int64, pageToken string) (mediaprovider.DeletedMediaPage, error)
	QueryAlbums(ctx context.Context, pageToken string) (mediaprovider.AlbumPage, error)
	QueryAlbumMedia(ctx context.Context, albumID, pageToken string) (mediaprovider.MediaPage, error)
}

// isRetryableEngineError classifies an engine error as one that the
// orchestrator's retry policy should treat as transient/illegal-state
// (eligible for one resetAllMedia-and-retry on a full-media sync).
func isRetryableEngineError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrIllegalState) || errors.Is(err, ErrTransientFailure) || errors.Is(err, ErrCursorInvalid)
}
