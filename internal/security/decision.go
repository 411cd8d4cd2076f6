package security

import "github.com/quantumauth-io/quantum-wallet/internal/biometric"

// State is the security setup as seen at the moment of a request.
type State int

const (
	NoSecuritySetup State = iota
	BiometricAvailable
	PINOnly
)

func (s State) String() string {
	switch s {
	case BiometricAvailable:
		return "biometric_available"
	case PINOnly:
		return "pin_only"
	default:
		return "no_security_setup"
	}
}

// Route is the first authentication path to try.
type Route int

const (
	RouteNoSetup Route = iota
	RouteBiometric
	RoutePIN
)

// Inputs are the facts the routing decision depends on.
type Inputs struct {
	Hardware  bool
	Enrolled  bool
	LockedOut bool
	PINExists bool
}

func InputsFrom(c biometric.Capability, pinExists bool) Inputs {
	return Inputs{
		Hardware:  c.Type != biometric.None,
		Enrolled:  c.Enrolled,
		LockedOut: c.LockedOut,
		PINExists: pinExists,
	}
}

// decisionTable covers every combination of Inputs.
var decisionTable = map[Inputs]Route{
	{Hardware: false, Enrolled: false, LockedOut: false, PINExists: false}: RouteNoSetup,
	{Hardware: false, Enrolled: false, LockedOut: false, PINExists: true}:  RoutePIN,
	{Hardware: false, Enrolled: false, LockedOut: true, PINExists: false}:  RouteNoSetup,
	{Hardware: false, Enrolled: false, LockedOut: true, PINExists: true}:   RoutePIN,
	{Hardware: false, Enrolled: true, LockedOut: false, PINExists: false}:  RouteNoSetup,
	{Hardware: false, Enrolled: true, LockedOut: false, PINExists: true}:   RoutePIN,
	{Hardware: false, Enrolled: true, LockedOut: true, PINExists: false}:   RouteNoSetup,
	{Hardware: false, Enrolled: true, LockedOut: true, PINExists: true}:    RoutePIN,
	{Hardware: true, Enrolled: false, LockedOut: false, PINExists: false}:  RouteNoSetup,
	{Hardware: true, Enrolled: false, LockedOut: false, PINExists: true}:   RoutePIN,
	{Hardware: true, Enrolled: false, LockedOut: true, PINExists: false}:   RouteNoSetup,
	{Hardware: true, Enrolled: false, LockedOut: true, PINExists: true}:    RoutePIN,
	{Hardware: true, Enrolled: true, LockedOut: false, PINExists: false}:   RouteBiometric,
	{Hardware: true, Enrolled: true, LockedOut: false, PINExists: true}:    RouteBiometric,
	{Hardware: true, Enrolled: true, LockedOut: true, PINExists: false}:    RouteNoSetup,
	{Hardware: true, Enrolled: true, LockedOut: true, PINExists: true}:     RoutePIN,
}

func Decide(in Inputs) Route {
	return decisionTable[in]
}

// StateOf maps the same inputs onto the coarse setup state.
func StateOf(in Inputs) State {
	switch Decide(in) {
	case RouteBiometric:
		return BiometricAvailable
	case RoutePIN:
		return PINOnly
	default:
		return NoSecuritySetup
	}
}
