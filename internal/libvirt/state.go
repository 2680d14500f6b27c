package libvirt

import (
	golibvirt "github.com/digitalocean/go-libvirt"

	"kvm-dashboard/internal/model"
)

func powerState(code uint8) model.PowerState {
	return model.PowerStateFromCode(uint32(code))
}

// isDomainActive reports whether a domain still holds a running guest and
// therefore needs a shutdown before it counts as stopped.
func isDomainActive(state uint8) bool {
	switch golibvirt.DomainState(state) {
	case golibvirt.DomainRunning, golibvirt.DomainBlocked, golibvirt.DomainPaused,
		golibvirt.DomainShutdown, golibvirt.DomainPmsuspended:
		return true
	default:
		return false
	}
}
