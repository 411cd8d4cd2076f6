package biometric

import (
	"context"
	"strings"
	"sync"
)

type Type int

const (
	None Type = iota
	TouchID
	FaceID
	OpticID
)

func (t Type) String() string {
	switch t {
	case TouchID:
		return "touchID"
	case FaceID:
		return "faceID"
	case OpticID:
		return "opticID"
	default:
		return "none"
	}
}

// ParseType accepts the names produced by String; anything else is None.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "touchid":
		return TouchID
	case "faceid":
		return FaceID
	case "opticid":
		return OpticID
	default:
		return None
	}
}

// Capability is a point-in-time device fact.
type Capability struct {
	Type      Type
	Enrolled  bool
	LockedOut bool
}

func (c Capability) Available() bool {
	return c.Type != None && c.Enrolled && !c.LockedOut
}

// Device is the platform hook. Evaluate blocks on user interaction and
// returns nil on a match or one of the package sentinels.
type Device interface {
	Capability(ctx context.Context) (Capability, error)
	Evaluate(ctx context.Context, reason string) error
}

// NoneDevice is used on hosts without biometric hardware.
type NoneDevice struct{}

func (NoneDevice) Capability(context.Context) (Capability, error) {
	return Capability{Type: None}, nil
}

func (NoneDevice) Evaluate(context.Context, string) error {
	return ErrNotAvailable
}

// StaticDevice reports a fixed capability and a fixed evaluation result.
// It backs dry runs and tests.
type StaticDevice struct {
	mu     sync.Mutex
	cap    Capability
	result error
	calls  int
}

func NewStaticDevice(c Capability, result error) *StaticDevice {
	return &StaticDevice{cap: c, result: result}
}

func (d *StaticDevice) Set(c Capability, result error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cap = c
	d.result = result
}

func (d *StaticDevice) Capability(context.Context) (Capability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cap, nil
}

func (d *StaticDevice) Evaluate(context.Context, string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.result
}

// Calls reports how many times Evaluate ran.
func (d *StaticDevice) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
