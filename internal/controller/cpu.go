package controller

import (
	"time"

	"kvm-dashboard/internal/model"
)

// EstimateCPURate turns two cumulative CPU-time samples into the average
// fraction of vCPU capacity used between them. The result is unknown when
// the counter went backwards, the wall clock did not advance, or vcpus is not
// positive.
func EstimateCPURate(prevCPUNs uint64, prevAt time.Time, curCPUNs uint64, curAt time.Time, vcpus int) model.CPURate {
	if vcpus <= 0 || curCPUNs < prevCPUNs {
		return model.UnknownCPURate
	}
	wall := curAt.Sub(prevAt)
	if wall <= 0 {
		return model.UnknownCPURate
	}
	busy := float64(curCPUNs - prevCPUNs)
	return model.KnownCPURate(busy / float64(wall) / float64(vcpus))
}
