package submit

import "errors"

// ErrDraftNotFinalized is returned when a submission is attempted for a
// draft the accumulator has not marked complete.
var ErrDraftNotFinalized = errors.New("draft is not finalized")
