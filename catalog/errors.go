package catalog

import "errors"

// Sentinel error kinds a caller can match with errors.Is.
var (
	ErrInvalidPluginID   = errors.New("catalog: invalid plugin id")
	ErrLoadFailed        = errors.New("catalog: plugin load failed")
	ErrBusesNotSupported = errors.New("catalog: no supported buses layout")
)
