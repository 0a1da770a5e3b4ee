package nodes

import "errors"

var (
	ErrCatalogUnavailable     = errors.New("node catalog unavailable")
	ErrDuplicateNode          = errors.New("node already managed")
	ErrNodeRegistrationFailed = errors.New("node registration failed")
	ErrNoSuitableNodes        = errors.New("no suitable nodes")
	ErrCycleInFlight          = errors.New("node cycle already running")
)
