package pipeline

import "errors"

// ErrInvalidRecord marks an observation with no usable name. Such records
// are dropped and counted; they never abort a run.
var ErrInvalidRecord = errors.New("pipeline: record has no usable name")
