// Package status defines the upload processing status enum and the legal
// transitions between states. Only the webhook reconciler and the upload
// intake service write statuses; everything else treats them as read-only.
package status

import "fmt"

type Upload string

const (
	Uploaded  Upload = "uploaded"
	Scanning  Upload = "scanning"
	Scanned   Upload = "scanned"
	Analyzing Upload = "analyzing"
	Completed Upload = "completed"
	Error     Upload = "error"
)

func (s Upload) String() string { return string(s) }

func (s Upload) Valid() bool {
	switch s {
	case Uploaded, Scanning, Scanned, Analyzing, Completed, Error:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Upload) Terminal() bool {
	return s == Completed || s == Error
}

// transitions is the forward edge set. Error is reachable from any
// non-terminal state and is handled in CanTransition directly.
var transitions = map[Upload][]Upload{
	Uploaded:  {Scanning},
	Scanning:  {Scanned},
	Scanned:   {Analyzing},
	Analyzing: {Completed},
}

func CanTransition(from, to Upload) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == Error {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted transition outside the table.
type TransitionError struct {
	UploadID uint
	From     Upload
	To       Upload
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("upload %d: illegal status transition %s -> %s", e.UploadID, e.From, e.To)
}
