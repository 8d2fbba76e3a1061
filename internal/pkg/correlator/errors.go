package correlator

import "errors"

// Sentinel errors surfaced by Init, grounded on
// internal/pkg/vinterface/errors.go's package-level errors.New style.
// Per spec.md §7, these are the only two failure kinds init can report;
// every ingress path afterward is infallible (return-none, never an
// error).
var (
	// ErrRegexCompile is wrapped, together with matchexpr.ErrRegexCompile,
	// into the error Init returns for a bad expression; kept as a distinct
	// sentinel so callers can errors.Is against the correlator package
	// without reaching into matchexpr.
	ErrRegexCompile = errors.New("correlator: match expression failed to compile")

	// ErrResourceAllocation indicates the store's backing containers could
	// not be constructed. Go's map/slice allocation only fails by panicking
	// on OOM, so this sentinel exists for API parity with spec.md §7 and
	// for callers that wrap external resource setup (e.g. a file-backed
	// snapshot store) ahead of Init.
	ErrResourceAllocation = errors.New("correlator: resource allocation failed")
)
