// Package fault holds the error kinds of the scrape flow and tags failures with
// the instrument and phase in which they happened.
package fault

import (
	"github.com/pkg/errors"
)

// Phase is the step of the scrape flow an error belongs to.
type Phase string

const (
	PhaseLogin       Phase = "login"
	PhasePIN         Phase = "pin"
	PhaseNavigation  Phase = "navigation"
	PhaseExtraction  Phase = "extraction"
	PhasePersistence Phase = "persistence"
)

var (
	// ErrLoginFlowTimeout is returned when the PIN prompt did not show up after submitting credentials.
	ErrLoginFlowTimeout = errors.New("pin prompt did not appear after login submit")
	// ErrPINValidationTimeout is returned when the app did not redirect home after PIN entry.
	ErrPINValidationTimeout = errors.New("no redirect to home after pin entry")
	// ErrNavigationTimeout is returned when an instrument page did not load in time.
	ErrNavigationTimeout = errors.New("instrument page did not load in time")
)

// Error is a failure tagged with the phase and, when known, the instrument code.
type Error struct {
	Code  string
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	if e.Code == "" {
		return string(e.Phase) + ": " + e.Err.Error()
	}
	return "instrument " + e.Code + ": " + string(e.Phase) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with phase. An error which already carries a phase keeps it.
func Wrap(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Phase: phase, Err: err}
}

// WithCode tags err with the instrument code. Untagged errors get the given phase.
func WithCode(code string, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Code != "" {
			return err
		}
		return &Error{Code: code, Phase: fe.Phase, Err: fe.Err}
	}
	return &Error{Code: code, Phase: phase, Err: err}
}

// PhaseOf returns the phase err was tagged with, or an empty phase.
func PhaseOf(err error) Phase {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Phase
	}
	return ""
}

// IsSessionFailure reports whether err happened while establishing the session.
// Those failures are fatal because every following instrument depends on the session.
func IsSessionFailure(err error) bool {
	switch PhaseOf(err) {
	case PhaseLogin, PhasePIN:
		return true
	}
	return false
}
