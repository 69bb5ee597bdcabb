// Package picker implements the picker sync controller: it tracks which
// cloud media provider (if any) is active, decides what kind of sync a
// request needs, and drives the paged provider queries that keep the
// local media and album_media tables current.
package picker

import "github.com/haavardk/pickersync/internal/provider"

// CloudProviderStateKind is the tri-state the selected cloud provider can
// be in. NotSet and Unset are distinguished so the controller can tell
// "never configured" (eligible for auto-selecting a default) apart from
// "the user explicitly turned cloud media off" (must stay off).
type CloudProviderStateKind int

const (
	CloudProviderNotSet CloudProviderStateKind = iota
	CloudProviderUnset
	CloudProviderSet
)

func (k CloudProviderStateKind) String() string {
	switch k {
	case CloudProviderNotSet:
		return "not_set"
	case CloudProviderUnset:
		return "unset"
	case CloudProviderSet:
		return "set"
	default:
		return "unknown"
	}
}

// CloudProviderState is the current resolved state of the cloud provider
// selection. Info is only meaningful when Kind is CloudProviderSet.
type CloudProviderState struct {
	Kind CloudProviderStateKind
	Info provider.Info
}

// IsSet reports whether a cloud provider is currently active.
func (s CloudProviderState) IsSet() bool {
	return s.Kind == CloudProviderSet
}

// MediaScope distinguishes a whole-media sync from a sync scoped to one
// album. Album media sync has no incremental mode — every album sync is
// a full re-enumeration (see Verdict).
type MediaScope struct {
	AlbumID string // empty means whole-media scope
}

// IsAlbum reports whether this scope is a single album.
func (s MediaScope) IsAlbum() bool {
	return s.AlbumID != ""
}

// Verdict is the outcome of planning a sync request: what kind of sync,
// if any, should run.
type Verdict int

const (
	// VerdictNone means no sync is needed — the provider's collection and
	// generation already match the cached cursor.
	VerdictNone Verdict = iota
	// VerdictIncremental means the cached cursor is valid; resume from its
	// resume tokens and generation.
	VerdictIncremental
	// VerdictFull means no cursor exists or the caller forced a full
	// resync; the engine clears existing rows and the cursor for this
	// authority and enumerates the provider from scratch.
	VerdictFull
	// VerdictReset means the provider's collection id no longer matches
	// the cached cursor; the engine clears everything for this authority
	// and re-syncs from scratch, exactly as for VerdictFull.
	VerdictReset
)

func (v Verdict) String() string {
	switch v {
	case VerdictNone:
		return "none"
	case VerdictIncremental:
		return "incremental"
	case VerdictFull:
		return "full"
	case VerdictReset:
		return "reset"
	default:
		return "unknown"
	}
}

// SyncRequestParams describes the sync a caller asked for, before the
// planner compares it against cached state to produce a Verdict.
type SyncRequestParams struct {
	Authority      string
	Scope          MediaScope
	LocalOnly      bool // informational; Planner and Controller do not read it
	ForceFull      bool // caller demands a full resync regardless of cursor state
	CurrentSyncGen int64
}

// OperationKind names the paged query kinds an engine run executes. The
// engine picks its PickerDbFacade write operations directly and does not
// consult it.
type OperationKind int

const (
	OpAddMedia OperationKind = iota
	OpRemoveMedia
	OpAddAlbumMedia
)

func (o OperationKind) String() string {
	switch o {
	case OpAddMedia:
		return "add_media"
	case OpRemoveMedia:
		return "remove_media"
	case OpAddAlbumMedia:
		return "add_album_media"
	default:
		return "unknown"
	}
}
