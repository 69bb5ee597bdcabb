package picker

import (
	"log/slog"

	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/store"
)

// Planner is a pure decision engine: given the caller's request, the
// cached sync cursor (if any), and the provider's current collection
// info, it produces a Verdict. It performs no I/O and holds no locks —
// callers serialize access to the state it reads.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a Planner with the given logger.
func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{logger: logger}
}

// Plan decides what kind of sync params requires. cachedOK is false when
// no cursor has ever been persisted for this authority/scope.
func (p *Planner) Plan(
	params SyncRequestParams, cached store.SyncCursor, cachedOK bool, info mediaprovider.CollectionInfo,
) Verdict {
	if params.ForceFull {
		p.logger.Debug("plan: forced full sync", slog.String("authority", params.Authority))
		return VerdictFull
	}

	if !cachedOK {
		p.logger.Debug("plan: no cached cursor, full sync", slog.String("authority", params.Authority))
		return VerdictFull
	}

	if cached.CollectionID != info.ID {
		p.logger.Info("plan: collection changed, reset required",
			slog.String("authority", params.Authority),
			slog.String("cached_collection", cached.CollectionID),
			slog.String("current_collection", info.ID),
		)

		return VerdictReset
	}

	if cached.Generation == info.LastSyncGeneration {
		p.logger.Debug("plan: up to date", slog.String("authority", params.Authority))
		return VerdictNone
	}

	p.logger.Debug("plan: incremental sync",
		slog.String("authority", params.Authority),
		slog.Int64("cached_generation", cached.Generation),
		slog.Int64("current_generation", info.LastSyncGeneration),
	)

	return VerdictIncremental
}

// PlanAlbum decides the verdict for an album-media sync. Album media sync
// has no incremental mode: the only choices are skip (up to date) or a
// full re-enumeration, because providers are not required to support a
// generation filter scoped to a single album.
func (p *Planner) PlanAlbum(
	params SyncRequestParams, cached store.SyncCursor, cachedOK bool, info mediaprovider.CollectionInfo,
) Verdict {
	if params.ForceFull || !cachedOK {
		return VerdictFull
	}

	if cached.CollectionID != info.ID {
		return VerdictReset
	}

	if cached.Generation == info.LastSyncGeneration {
		return VerdictNone
	}

	return VerdictFull
}
