package controller

import (
	"sort"
	"time"

	"kvm-dashboard/internal/model"
)

type cachedVM struct {
	state     model.PowerState
	cpuTimeNs uint64
	sampledAt time.Time
	seen      bool
}

// Cache holds the last reconciled state of every known VM. It is not safe
// for concurrent use; the Loop goroutine is its only user.
type Cache struct {
	vms map[string]*cachedVM
}

func NewCache() *Cache {
	return &Cache{vms: map[string]*cachedVM{}}
}

func (c *Cache) Len() int {
	return len(c.vms)
}

// Names returns the cached VM names in lexical order.
func (c *Cache) Names() []string {
	out := make([]string, 0, len(c.vms))
	for name := range c.vms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// State returns the last observed power state of name.
func (c *Cache) State(name string) (model.PowerState, bool) {
	vm, ok := c.vms[name]
	if !ok {
		return model.StateUnknown, false
	}
	return vm.state, true
}

func (c *Cache) Clear() {
	clear(c.vms)
}

// Reconcile diffs a complete hypervisor snapshot against the cache, reports
// every difference to sink and leaves the cache equal to the snapshot.
// It stops at the first sink error.
func (c *Cache) Reconcile(observed []model.MachineInfo, sink Sink) error {
	for _, m := range observed {
		if err := c.upsert(m, sink); err != nil {
			return err
		}
	}

	var gone []string
	for name, vm := range c.vms {
		if !vm.seen {
			gone = append(gone, name)
			continue
		}
		vm.seen = false
	}
	sort.Strings(gone)
	for _, name := range gone {
		delete(c.vms, name)
		if err := sink.VMRemoved(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) upsert(m model.MachineInfo, sink Sink) error {
	old, ok := c.vms[m.Name]
	if !ok {
		c.vms[m.Name] = &cachedVM{
			state:     m.State,
			cpuTimeNs: m.CPUTimeNs,
			sampledAt: m.SampledAt,
			seen:      true,
		}
		return sink.VMAdded(m.Name, m.State.Label(), m.State.Affordance())
	}

	if old.state != m.State {
		if err := sink.VMStateChanged(m.Name, m.State.Label(), m.State.Affordance()); err != nil {
			return err
		}
	}

	// A repeated sample carries no new information.
	duplicate := m.SampledAt.Equal(old.sampledAt) && m.CPUTimeNs == old.cpuTimeNs
	if old.state == model.StateRunning && m.State == model.StateRunning && !duplicate {
		rate := EstimateCPURate(old.cpuTimeNs, old.sampledAt, m.CPUTimeNs, m.SampledAt, int(m.VCPUCount))
		if err := sink.VMCPUUpdated(m.Name, rate); err != nil {
			return err
		}
	}

	old.state = m.State
	old.cpuTimeNs = m.CPUTimeNs
	old.sampledAt = m.SampledAt
	old.seen = true
	return nil
}
