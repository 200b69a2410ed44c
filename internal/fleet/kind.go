// Package fleet defines the domain model shared by the fleet control plane:
// managed object kinds, their declared configurations, controller states,
// and the version stamps used for optimistic concurrency.
package fleet

import "fmt"

// Kind identifies a managed infrastructure object kind.
type Kind string

const (
	// KindSwitch is a managed network switch
	KindSwitch Kind = "switch"

	// KindMachine is a managed physical machine
	KindMachine Kind = "machine"

	// KindPowerShelf is a managed power shelf
	KindPowerShelf Kind = "power_shelf"

	// KindDPU is a managed data processing unit
	KindDPU Kind = "dpu"
)

// Kinds lists every managed object kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindSwitch, KindMachine, KindPowerShelf, KindDPU}
}

// Validate checks that the kind is one of the known object kinds
func (k Kind) Validate() error {
	switch k {
	case KindSwitch, KindMachine, KindPowerShelf, KindDPU:
		return nil
	default:
		return fmt.Errorf("unrecognized object kind: %q", string(k))
	}
}

func (k Kind) String() string {
	return string(k)
}
