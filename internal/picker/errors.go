package picker

import "errors"

// Sentinel errors the controller and engine return. Use errors.Is to
// check them.
var (
	// ErrRequestObsolete means the cloud provider authority changed (or
	// was cleared) between planning a sync and executing it. The caller
	// should drop the request rather than retry it.
	ErrRequestObsolete = errors.New("picker: sync request obsolete")

	// ErrProviderNotAvailable means the requested authority is not
	// registered, or is not in the config allowlist.
	ErrProviderNotAvailable = errors.New("picker: provider not available")

	// ErrCursorInvalid means a persisted sync cursor failed validation
	// against the provider's current collection or page semantics — the
	// caller should reset and retry from scratch.
	ErrCursorInvalid = errors.New("picker: sync cursor invalid")

	// ErrIllegalState means the provider returned a page inconsistent
	// with its own collection info (e.g. honored args missing the
	// generation filter it advertised). One resetAllMedia-and-retry is
	// permitted for full-media syncs; any other sync just fails.
	ErrIllegalState = errors.New("picker: provider illegal state")

	// ErrTransientFailure means a retryable provider or transport error
	// occurred. Full-media sync gets one reset-and-retry; other syncs
	// fail immediately.
	ErrTransientFailure = errors.New("picker: transient provider failure")

	// ErrPageTokenCycle means a provider page response repeated a page
	// token already seen in this run, which would otherwise loop forever.
	// Also wraps ErrIllegalState, so errors.Is(err, ErrIllegalState) holds
	// for a detected cycle too.
	ErrPageTokenCycle = errors.New("picker: page token cycle detected")
)
