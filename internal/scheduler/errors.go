package scheduler

import "errors"

// Sentinel errors surfaced to the (out-of-scope) API layer per spec §6.2/§7.
// Grounded on the dist-job-scheduler domain error style: named errors the
// caller can distinguish with errors.Is, rather than string matching.
var (
	ErrConfigNotFound    = errors.New("scheduler: config not found")
	ErrConfigExists      = errors.New("scheduler: config already exists for season")
	ErrInvalidTransition = errors.New("scheduler: invalid lifecycle transition")
	ErrInvalidWindow     = errors.New("scheduler: invalid window (start/end hour or interval)")
)
