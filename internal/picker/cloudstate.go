package picker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haavardk/pickersync/internal/config"
	"github.com/haavardk/pickersync/internal/provider"
	"github.com/haavardk/pickersync/internal/store"
)

// cloudProviderLockToken is a zero-cost marker obtainable only by holding
// the cloud-provider lock. Methods that must only run under that lock take
// one as a parameter, turning the lock-ordering rule (cloud-sync before
// cloud-provider) into something the compiler checks rather than a runtime
// assertion.
type cloudProviderLockToken struct{}

// StorageNotifier notifies the OS storage service of the active cloud media
// provider authority. A host process wires this to whatever platform call
// grants the provider content access; failures are logged, never fatal,
// mirroring the security-failure handling a privileged-process check would
// otherwise require.
type StorageNotifier interface {
	NotifyStorageProvider(ctx context.Context, authority string) error
}

// CloudState tracks the process-wide cloud provider selection: which
// authority (if any) is active, persisted through PreferencesStore and
// guarded by its own mutex. The sync orchestrator composes this with the
// cloud-sync lock per the documented lock ordering.
type CloudState struct {
	mu sync.Mutex

	cfg      config.Store
	registry *provider.Registry
	prefs    store.PreferencesStore
	facade   store.PickerDbFacade
	notify   *Notifier
	storage  StorageNotifier
	logger   *slog.Logger

	current CloudProviderState
}

// NewCloudState creates a CloudState and runs default selection
// immediately, matching the spec's "at initialization" semantics for the
// long-lived singleton.
func NewCloudState(
	ctx context.Context, cfg config.Store, registry *provider.Registry,
	prefs store.PreferencesStore, facade store.PickerDbFacade, notify *Notifier, logger *slog.Logger,
) (*CloudState, error) {
	cs := &CloudState{
		cfg: cfg, registry: registry, prefs: prefs, facade: facade, notify: notify, logger: logger,
	}

	if err := cs.selectDefault(ctx); err != nil {
		return nil, err
	}

	return cs, nil
}

// SetStorageNotifier wires the OS storage-service notification seam. Left
// unset, CloudState simply skips that step (the default for tests and for
// hosts that don't need it); a real process calls this once during startup,
// before any provider change can occur.
func (cs *CloudState) SetStorageNotifier(n StorageNotifier) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.storage = n
}

// notifyStorageProvider is the best-effort OS storage-service notification
// step: failures (e.g. running outside the privileged process) are logged,
// never returned, since a rejected notification must not fail the cloud
// provider change itself.
func (cs *CloudState) notifyStorageProvider(ctx context.Context, authority string) {
	if cs.storage == nil {
		return
	}

	if err := cs.storage.NotifyStorageProvider(ctx, authority); err != nil {
		cs.logger.Warn("failed to notify system storage service of cloud provider",
			slog.String("authority", authority), slog.Any("error", err))
	}
}

// Current returns the current resolved cloud provider state under lock.
func (cs *CloudState) Current() CloudProviderState {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.current
}

// lockForCloudSync acquires the cloud-provider lock and returns the token
// proving it, for callers (the orchestrator) that already hold the
// cloud-sync lock and need to read/mutate cloud state under the documented
// ordering (cloud-sync before cloud-provider). Callers must call unlock.
func (cs *CloudState) lockForCloudSync() (cloudProviderLockToken, func()) {
	cs.mu.Lock()
	return cloudProviderLockToken{}, cs.mu.Unlock
}

// currentLocked reads the cloud state while already holding the lock, via
// the structural token.
func (cs *CloudState) currentLocked(_ cloudProviderLockToken) CloudProviderState {
	return cs.current
}

// SetCloudProvider implements §4.C setCloudProvider. Returns false (no
// error) for the documented "rejected, not fatal" outcomes: feature
// disabled, or a non-empty authority outside the provider listing.
func (cs *CloudState) SetCloudProvider(ctx context.Context, authority string, ignoreAllowlist bool) (bool, error) {
	if !cs.cfg.IsCloudMediaInPhotoPickerEnabled() {
		return false, nil
	}

	var info provider.Info

	if authority != "" {
		info = cs.registry.Resolve(authority, ignoreAllowlist, cs.cfg.CloudProviderAllowlist())
		if info.IsEmpty() {
			return false, nil
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.setLocked(ctx, cloudProviderLockToken{}, info)
}

// setLocked performs the accept path of setCloudProvider while already
// holding the cloud-provider lock (proven by token): no-op if unchanged,
// else disable cloud queries on the facade, persist, and notify.
func (cs *CloudState) setLocked(ctx context.Context, _ cloudProviderLockToken, info provider.Info) (bool, error) {
	if info.Authority == cs.current.Info.Authority {
		return true, nil
	}

	cs.facade.SetCloudAuthority("")

	if info.IsEmpty() {
		if err := cs.prefs.SetCloudProviderUnset(ctx); err != nil {
			return false, fmt.Errorf("picker: persist cloud provider unset: %w", err)
		}

		cs.current = CloudProviderState{Kind: CloudProviderUnset}
	} else {
		if err := cs.prefs.SetCloudProviderAuthority(ctx, info.Authority); err != nil {
			return false, fmt.Errorf("picker: persist cloud provider authority: %w", err)
		}

		cs.current = CloudProviderState{Kind: CloudProviderSet, Info: info}
	}

	cs.logger.Info("cloud provider changed",
		slog.String("authority", info.Authority),
		slog.Bool("is_set", !info.IsEmpty()),
	)

	cs.notifyStorageProvider(ctx, info.Authority)
	cs.notify.NotifyCloudProviderChanged()

	return true, nil
}

// GetCloudProvider returns the current authority, or empty if unset/unset.
func (cs *CloudState) GetCloudProvider() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.current.Info.Authority
}

// NotifyPackageRemoval implements §4.C notifyPackageRemoval: if the
// currently set cloud provider's package matches pkg, clear it back to
// NotSet (not Unset) and re-run default selection.
func (cs *CloudState) NotifyPackageRemoval(ctx context.Context, pkg string) error {
	cs.mu.Lock()

	matches := cs.current.IsSet() && cs.current.Info.Matches(pkg)

	cs.mu.Unlock()

	if !matches {
		return nil
	}

	if _, err := cs.SetCloudProvider(ctx, "", false); err != nil {
		return err
	}

	// Clearing via SetCloudProvider leaves the persisted state Unset; the
	// package-removal path instead wants NotSet, so the next initialization
	// (or this call's own default-selection rerun below) is eligible to
	// auto-pick a new default rather than staying pinned off.
	if err := cs.prefs.SetCloudProviderAuthority(ctx, ""); err != nil {
		return fmt.Errorf("picker: clear authority after package removal: %w", err)
	}

	return cs.selectDefault(ctx)
}

// IsProviderEnabled restricts the check to the currently active cloud
// provider. uid is optional (pass 0 to skip it); when non-zero, the caller's
// uid must additionally match the active provider's registered uid, so a
// process can't be told another package's provider is enabled for it.
func (cs *CloudState) IsProviderEnabled(authority string, uid int) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.current.IsSet() || cs.current.Info.Authority != authority {
		return false
	}

	return uid == 0 || cs.current.Info.UID == uid
}

// IsProviderSupported consults the full installed list, ignoring the
// allow-list — used for legacy/support checks distinct from selectability.
// uid is optional (pass 0 to skip it); when non-zero, it must match the
// resolved provider's registered uid.
func (cs *CloudState) IsProviderSupported(authority string, uid int) bool {
	info := cs.registry.Resolve(authority, true, nil)
	if info.IsEmpty() {
		return false
	}

	return uid == 0 || info.UID == uid
}

// selectDefault runs the §4.C default-selection routine at initialization
// or after a package removal clears the current selection.
func (cs *CloudState) selectDefault(ctx context.Context) error {
	if !cs.cfg.IsCloudMediaInPhotoPickerEnabled() {
		cs.mu.Lock()
		cs.current = CloudProviderState{Kind: CloudProviderSet, Info: provider.Empty}
		cs.mu.Unlock()

		return nil
	}

	persisted, everSet, err := cs.prefs.CloudProviderAuthority(ctx)
	if err != nil {
		return fmt.Errorf("picker: read persisted cloud provider: %w", err)
	}

	if everSet && isUnsetSentinel(persisted) {
		cs.mu.Lock()
		cs.current = CloudProviderState{Kind: CloudProviderSet, Info: provider.Empty}
		cs.mu.Unlock()

		return nil
	}

	chosen := cs.pickDefaultAuthority(persisted)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if chosen.Authority == persisted {
		// Cached authority is still the right pick: set in-memory only, no
		// persistence write, no "cloud media now available" notification.
		if chosen.IsEmpty() {
			cs.current = CloudProviderState{Kind: CloudProviderNotSet}
		} else {
			cs.current = CloudProviderState{Kind: CloudProviderSet, Info: chosen}
		}

		return nil
	}

	return cs.persistSelection(ctx, chosen)
}

func (cs *CloudState) persistSelection(ctx context.Context, chosen provider.Info) error {
	if chosen.IsEmpty() {
		cs.current = CloudProviderState{Kind: CloudProviderNotSet}
		return nil
	}

	if err := cs.prefs.SetCloudProviderAuthority(ctx, chosen.Authority); err != nil {
		return fmt.Errorf("picker: persist default cloud provider: %w", err)
	}

	cs.current = CloudProviderState{Kind: CloudProviderSet, Info: chosen}
	cs.notifyStorageProvider(ctx, chosen.Authority)
	cs.notify.NotifyCloudProviderChanged()

	return nil
}

// pickDefaultAuthority implements the default-selection precedence: a sole
// available provider wins; else the cached authority if still available;
// else the configured default package if available; else empty.
func (cs *CloudState) pickDefaultAuthority(cachedAuthority string) provider.Info {
	available := cs.registry.Available(cs.cfg.CloudProviderAllowlist())

	if len(available) == 1 {
		return available[0]
	}

	for _, info := range available {
		if info.Authority == cachedAuthority {
			return info
		}
	}

	defaultPkg := cs.cfg.DefaultCloudProviderPackage()
	if defaultPkg != "" {
		for _, info := range available {
			if info.PackageName == defaultPkg {
				return info
			}
		}
	}

	return provider.Empty
}

func isUnsetSentinel(value string) bool {
	return value == "-"
}
