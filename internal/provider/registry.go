package provider

import (
	"log/slog"
	"sync"
)

// Registry tracks the media-provider installations the host process knows
// about. Discovery of installed providers (package manager queries,
// manifest parsing) happens outside this package; Registry only holds and
// filters the resulting snapshot. This mirrors the narrower "enumeration
// surface" the picker sync controller actually depends on.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Info // keyed by authority
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		providers: make(map[string]Info),
		logger:    logger,
	}
}

// Register records an installed provider, replacing any prior entry for
// the same authority. Called once per discovered provider at process
// wiring time, and again whenever the host observes a package change.
func (r *Registry) Register(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Authority] = info

	r.logger.Debug("registered media provider",
		slog.String("authority", info.Authority),
		slog.String("package", info.PackageName),
	)
}

// Unregister removes a previously registered provider by authority.
func (r *Registry) Unregister(authority string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, authority)
}

// All returns every installed provider, ignoring the allow-list. Used for
// legacy/testing support checks (isProviderSupported in spec terms).
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.providers))
	for _, info := range r.providers {
		out = append(out, info)
	}

	return out
}

// Available returns installed providers filtered by allowlist. A nil or
// empty allowlist excludes every provider — the host must explicitly
// allow providers before they become selectable.
func (r *Registry) Available(allowlist []string) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := toSet(allowlist)

	out := make([]Info, 0, len(r.providers))

	for _, info := range r.providers {
		if _, ok := allowed[info.PackageName]; ok {
			out = append(out, info)
		}
	}

	return out
}

// Resolve looks up the Info for authority. When ignoreAllowlist is true,
// the lookup considers every installed provider; otherwise it is
// restricted to the allow-listed set. Returns Empty if no match.
func (r *Registry) Resolve(authority string, ignoreAllowlist bool, allowlist []string) Info {
	if authority == "" {
		return Empty
	}

	var candidates []Info
	if ignoreAllowlist {
		candidates = r.All()
	} else {
		candidates = r.Available(allowlist)
	}

	for _, info := range candidates {
		if info.Authority == authority {
			return info
		}
	}

	return Empty
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}
