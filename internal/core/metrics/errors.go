package metrics

import "errors"

// Registry errors
var (
	ErrKindMismatch  = errors.New("metric already registered with a different kind")
	ErrEmptyName     = errors.New("metric name must not be empty")
	ErrUnknownMetric = errors.New("metric id is not registered")
)
