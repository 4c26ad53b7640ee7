package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")
)

// FaultKind classifies renderer failures by what the caller can do about them.
type FaultKind uint8

const (
	FaultUnknown FaultKind = iota
	// Device, surface or swapchain could not be created. Fatal.
	FaultInitialization
	// Allocation, memory type or format failures. Fatal.
	FaultResource
	// Caller programming errors: bad handles, reserved bindings, wrong order.
	FaultUsage
	// Stale or suboptimal surface. Recovered by swapchain recreation.
	FaultTransient
)

func (k FaultKind) String() string {
	switch k {
	case FaultInitialization:
		return "initialization"
	case FaultResource:
		return "resource"
	case FaultUsage:
		return "usage"
	case FaultTransient:
		return "transient"
	}
	return "unknown"
}

type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s fault in %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func newFault(kind FaultKind, op string, err error) error {
	if err == nil {
		err = ErrUnknown
	}
	return &Fault{Kind: kind, Op: op, Err: err}
}

func Initialization(op string, err error) error { return newFault(FaultInitialization, op, err) }
func Resource(op string, err error) error       { return newFault(FaultResource, op, err) }
func Usage(op string, err error) error          { return newFault(FaultUsage, op, err) }
func Transient(op string, err error) error      { return newFault(FaultTransient, op, err) }

// KindOf returns the kind of the outermost Fault in err's chain.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultUnknown
}

func IsInitialization(err error) bool { return KindOf(err) == FaultInitialization }
func IsResource(err error) bool       { return KindOf(err) == FaultResource }
func IsUsage(err error) bool          { return KindOf(err) == FaultUsage }
func IsTransient(err error) bool      { return KindOf(err) == FaultTransient }

// IsFatal reports whether err must abort the session.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == FaultInitialization || k == FaultResource
}
