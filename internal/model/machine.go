package model

import (
	"fmt"
	"math"
	"time"
)

// MachineInfo is one domain as observed by a single hypervisor listing.
type MachineInfo struct {
	Name      string
	State     PowerState
	CPUTimeNs uint64
	VCPUCount uint32
	// SampledAt carries a monotonic clock reading taken when the domain
	// info was fetched.
	SampledAt time.Time
}

// CPURate is a utilisation fraction (1.0 means every vCPU fully busy) or
// unknown. The zero value is unknown.
type CPURate struct {
	value float64
	known bool
}

// UnknownCPURate is returned whenever a rate cannot be derived.
var UnknownCPURate = CPURate{}

// KnownCPURate wraps a computed fraction. NaN, infinite and negative values
// collapse to unknown.
func KnownCPURate(v float64) CPURate {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return UnknownCPURate
	}
	return CPURate{value: v, known: true}
}

// Value returns the fraction and whether it is known.
func (r CPURate) Value() (float64, bool) {
	return r.value, r.known
}

func (r CPURate) Known() bool {
	return r.known
}

// String renders the rate as a percentage, or "-" when unknown.
func (r CPURate) String() string {
	if !r.known {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", r.value*100)
}

// Failure reports a dispatched action that did not succeed.
type Failure struct {
	VM    string
	Error string
}
