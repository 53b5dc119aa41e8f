// Package permission models the camera permission round trip.
package permission

import "errors"

// ErrDenied is logged when the operator refuses camera access.
var ErrDenied = errors.New("camera permission denied")

// Prompter answers whether camera access is already granted and, if not,
// asks the operator. Request returns immediately; the answer is delivered
// to respond later, on the foreground context.
type Prompter interface {
	Granted() bool
	Request(respond func(granted bool))
}

// Static is a Prompter with a fixed answer, for headless stations where
// access is decided by configuration.
type Static struct {
	granted bool
}

func NewStatic(granted bool) *Static { return &Static{granted: granted} }

func (s *Static) Granted() bool { return s.granted }

func (s *Static) Request(respond func(granted bool)) { respond(s.granted) }
