package investigate

import "errors"

// ErrInvestigationTimeout is returned when the pipeline's wall-clock budget
// expires before a verdict is reached.
var ErrInvestigationTimeout = errors.New("investigate: investigation timed out")

// ErrInvestigationFailed wraps an unexpected fault in the pipeline's own
// control flow. Evidence-gathering sub-failures never surface as this; they
// degrade locally.
var ErrInvestigationFailed = errors.New("investigate: investigation failed")

// ErrExportNotFound is returned when exporting an unknown investigation id.
var ErrExportNotFound = errors.New("investigate: no investigation with that id")

// ErrBadRequest is returned when the request shape cannot be investigated.
var ErrBadRequest = errors.New("investigate: bad request")
