package looper

import (
	"errors"
)

// Framework errors
var (
	// Storage errors
	ErrDuplicateResource = errors.New("resource type already registered in storage")
	ErrMissingResource   = errors.New("resource type not found in storage")

	// Access errors
	ErrUndeclaredAccess = errors.New("resource access not declared in system access set")
	ErrReadOnlyAccess   = errors.New("resource declared shared, exclusive access required")

	// Scheduling errors
	ErrDuplicateSystem    = errors.New("system name already registered")
	ErrUnknownSystem      = errors.New("ordering edge references unknown system")
	ErrCyclicOrdering     = errors.New("cyclic ordering between systems")
	ErrUnresolvedConflict = errors.New("unordered systems declare conflicting access")

	// Builder errors
	ErrLoggerNotSet     = errors.New("logger not set")
	ErrBuildAfterFreeze = errors.New("builder already consumed by Build")
	ErrNilResource      = errors.New("resource is nil")
	ErrNilSystem        = errors.New("system is nil")

	// Run loop errors
	ErrSystemFailed = errors.New("system invocation failed")
)
