package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/haavardk/pickersync/internal/store"
)

// Controller is the process-wide sync orchestrator: the public entry
// points a host process calls, composing the planner, engine, and cloud
// state behind the three named locks the concurrency model requires.
type Controller struct {
	local Provider
	cloud func() Provider // resolves the current cloud Provider, or nil if none active

	db      store.PickerDbFacade
	prefs   store.PreferencesStore
	planner *Planner
	engine  *Engine
	cloudSt *CloudState
	notify  *Notifier
	logger  *slog.Logger

	cloudSyncMu sync.Mutex
	idleSem     *semaphore.Weighted
}

// NewController wires the collaborators into a Controller. idleSem is
// accepted rather than created so it can be shared by value with an
// unrelated idle-maintenance job the host process also runs.
func NewController(
	local Provider, resolveCloud func() Provider,
	db store.PickerDbFacade, prefs store.PreferencesStore,
	cloudSt *CloudState, notify *Notifier, idleSem *semaphore.Weighted, logger *slog.Logger,
) *Controller {
	return &Controller{
		local:   local,
		cloud:   resolveCloud,
		db:      db,
		prefs:   prefs,
		planner: NewPlanner(logger),
		engine:  NewEngine(db, prefs, notify, logger),
		cloudSt: cloudSt,
		notify:  notify,
		idleSem: idleSem,
		logger:  logger,
	}
}

// SyncAllMedia runs local then cloud sequentially, per §4.F. Cloud sync
// failures don't prevent the local run from having already completed.
func (c *Controller) SyncAllMedia(ctx context.Context) error {
	if err := c.SyncAllMediaFromLocalProvider(ctx); err != nil {
		return fmt.Errorf("picker: local sync: %w", err)
	}

	if err := c.SyncAllMediaFromCloudProvider(ctx); err != nil {
		return fmt.Errorf("picker: cloud sync: %w", err)
	}

	return nil
}

// SyncAllMediaFromLocalProvider acquires the idle-maintenance lock (shared
// with unrelated DB-touching maintenance jobs), then plans and executes a
// whole-media sync against the local provider with the retry-once policy.
// Local sync does not enforce the page_size honored-arg the way cloud
// sync does.
func (c *Controller) SyncAllMediaFromLocalProvider(ctx context.Context) error {
	if err := c.idleSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("picker: acquire idle-maintenance lock: %w", err)
	}
	defer c.idleSem.Release(1)

	authority := c.local.Authority()

	return c.runMediaSyncWithRetry(ctx, c.local, authority, true, false)
}

// SyncAllMediaFromCloudProvider runs under the cloud-sync lock: snapshots
// the active cloud authority, disables facade cloud visibility, runs the
// planner + engine with page_size honoring enforced, resets album-media
// for both providers, and only re-enables facade visibility if the active
// cloud provider still matches the snapshot at the end.
func (c *Controller) SyncAllMediaFromCloudProvider(ctx context.Context) error {
	c.cloudSyncMu.Lock()
	defer c.cloudSyncMu.Unlock()

	token, unlockCloudProvider := c.cloudSt.lockForCloudSync()
	snapshot := c.cloudSt.currentLocked(token)
	unlockCloudProvider()

	if !snapshot.IsSet() {
		return nil
	}

	authority := snapshot.Info.Authority
	prov := c.cloud()

	if prov == nil || prov.Authority() != authority {
		c.logger.Info("picker: cloud provider changed before sync started", slog.String("authority", authority))
		return ErrRequestObsolete
	}

	c.db.SetCloudAuthority("")

	if err := c.runMediaSyncWithRetry(ctx, prov, authority, true, true); err != nil {
		return err
	}

	if err := c.resetAlbumMediaBothProviders(ctx, authority); err != nil {
		return err
	}

	token, unlockCloudProvider = c.cloudSt.lockForCloudSync()
	current := c.cloudSt.currentLocked(token)
	unlockCloudProvider()

	if current.IsSet() && current.Info.Authority == authority {
		c.db.SetCloudAuthority(authority)
	}

	return nil
}

// runMediaSyncWithRetry plans and executes a whole-media sync, applying
// the retry policy: on IllegalState/TransientRuntime/cursor-invalid, reset
// and retry exactly once with retryOnFailure=false. RequestObsolete is not
// retried. enforcePagedSync is true for cloud sync, false for local.
func (c *Controller) runMediaSyncWithRetry(ctx context.Context, prov Provider, authority string, retryOnFailure, enforcePagedSync bool) error {
	err := c.runMediaSyncOnce(ctx, prov, authority, enforcePagedSync)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrRequestObsolete) {
		c.logger.Info("picker: sync request obsolete, not retrying", slog.String("authority", authority))
		return err
	}

	if !retryOnFailure || !isRetryableEngineError(err) {
		return err
	}

	c.logger.Info("picker: retrying sync after reset", slog.String("authority", authority), slog.Any("error", err))

	if err := c.engine.resetMedia(ctx, authority); err != nil {
		return fmt.Errorf("picker: reset before retry: %w", err)
	}

	return c.runMediaSyncOnce(ctx, prov, authority, enforcePagedSync)
}

func (c *Controller) runMediaSyncOnce(ctx context.Context, prov Provider, authority string, enforcePagedSync bool) error {
	info, err := prov.CollectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}

	if info.ID == "" || info.LastSyncGeneration < 0 {
		return fmt.Errorf("%w: malformed collection info for %s", ErrIllegalState, authority)
	}

	cached, cachedOK, err := c.prefs.MediaSyncCursor(ctx, authority)
	if err != nil {
		return fmt.Errorf("picker: read media sync cursor: %w", err)
	}

	params := SyncRequestParams{Authority: authority}

	verdict := c.planner.Plan(params, cached, cachedOK, info)

	_, err = c.engine.SyncMedia(ctx, prov, authority, verdict, info, cached, enforcePagedSync)

	return err
}

// SyncAlbumMedia implements §4.F syncAlbumMedia: always a full reset
// followed by a paged add, no retry. isLocal selects which provider to use.
func (c *Controller) SyncAlbumMedia(ctx context.Context, albumID string, isLocal bool) error {
	prov := c.resolveProvider(isLocal)
	if prov == nil {
		return ErrProviderNotAvailable
	}

	authority := prov.Authority()

	info, err := prov.CollectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}

	cached, cachedOK, err := c.prefs.AlbumSyncCursor(ctx, authority, albumID)
	if err != nil {
		return fmt.Errorf("picker: read album sync cursor: %w", err)
	}

	params := SyncRequestParams{Authority: authority, Scope: MediaScope{AlbumID: albumID}, ForceFull: true}

	verdict := c.planner.PlanAlbum(params, cached, cachedOK, info)

	_, err = c.engine.SyncAlbumMedia(ctx, prov, authority, albumID, verdict, info, !isLocal)

	return err
}

// resetAlbumMediaBothProviders resets album-media for both the local and
// cloud providers, per §4.F's "reset album-media for both providers"
// during a cloud sync cycle. cloudAuthority is the provider whose albums
// should be reset on the cloud side; the local provider is always reset.
func (c *Controller) resetAlbumMediaBothProviders(ctx context.Context, cloudAuthority string) error {
	if err := c.resetProviderAlbumMedia(ctx, c.local.Authority()); err != nil {
		return fmt.Errorf("picker: reset local album media: %w", err)
	}

	if err := c.resetProviderAlbumMedia(ctx, cloudAuthority); err != nil {
		return fmt.Errorf("picker: reset cloud album media: %w", err)
	}

	return nil
}

func (c *Controller) resetProviderAlbumMedia(ctx context.Context, authority string) error {
	op, err := c.db.BeginResetAllAlbumMediaOperation(ctx, authority)
	if err != nil {
		return err
	}

	op.SetSuccess()

	return op.Close()
}

// ResetAllMedia implements §4.F resetAllMedia: full DB reset and cursor
// clear for both providers.
func (c *Controller) ResetAllMedia(ctx context.Context) error {
	if err := c.engine.resetMedia(ctx, c.local.Authority()); err != nil {
		return fmt.Errorf("picker: reset local media: %w", err)
	}

	if prov := c.cloud(); prov != nil {
		if err := c.engine.resetMedia(ctx, prov.Authority()); err != nil {
			return fmt.Errorf("picker: reset cloud media: %w", err)
		}
	}

	return nil
}

func (c *Controller) resolveProvider(isLocal bool) Provider {
	if isLocal {
		return c.local
	}

	return c.cloud()
}

// NotifyPackageRemovalBatch re-evaluates default selection for every
// removed package concurrently, bounded to a small worker limit. A host
// broadcast naming several removed packages at once (a bulk app update, a
// restore) need not serialize the re-evaluation of each.
func (c *Controller) NotifyPackageRemovalBatch(ctx context.Context, packages []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, pkg := range packages {
		pkg := pkg

		g.Go(func() error {
			return c.cloudSt.NotifyPackageRemoval(gctx, pkg)
		})
	}

	return g.Wait()
}
