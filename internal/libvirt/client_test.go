package libvirt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvm-dashboard/internal/model"
)

type fakeDomain struct {
	state   uint8
	vcpus   uint16
	cpuTime uint64
	infoErr error
}

// fakeAPI is an in-memory hypervisor. shutdownsToStop is how many shutdown
// requests a running domain needs before it reports shut off.
type fakeAPI struct {
	mu              sync.Mutex
	domains         map[string]*fakeDomain
	order           []string
	listErr         error
	createErr       error
	shutdownErr     error
	shutdownsToStop int
	shutdowns       int
	creates         []string
	listFlags       golibvirt.ConnectListAllDomainsFlags
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{domains: map[string]*fakeDomain{}, shutdownsToStop: 1}
}

func (f *fakeAPI) add(name string, d *fakeDomain) {
	f.domains[name] = d
	f.order = append(f.order, name)
}

func (f *fakeAPI) ConnectListAllDomains(_ int32, flags golibvirt.ConnectListAllDomainsFlags) ([]golibvirt.Domain, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFlags = flags
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	out := make([]golibvirt.Domain, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, golibvirt.Domain{Name: name})
	}
	return out, uint32(len(out)), nil
}

func (f *fakeAPI) DomainGetInfo(dom golibvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.domains[dom.Name]
	if !ok {
		return 0, 0, 0, 0, 0, errors.New("no such domain")
	}
	if d.infoErr != nil {
		return 0, 0, 0, 0, 0, d.infoErr
	}
	return d.state, 0, 0, d.vcpus, d.cpuTime, nil
}

func (f *fakeAPI) DomainLookupByName(name string) (golibvirt.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.domains[name]; !ok {
		return golibvirt.Domain{}, errors.New("domain not found: " + name)
	}
	return golibvirt.Domain{Name: name}, nil
}

func (f *fakeAPI) DomainCreate(dom golibvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates = append(f.creates, dom.Name)
	f.domains[dom.Name].state = uint8(golibvirt.DomainRunning)
	return nil
}

func (f *fakeAPI) DomainShutdown(dom golibvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shutdownErr != nil {
		return f.shutdownErr
	}
	f.shutdowns++
	if f.shutdowns >= f.shutdownsToStop {
		f.domains[dom.Name].state = uint8(golibvirt.DomainShutoff)
	}
	return nil
}

func (f *fakeAPI) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

type fakeConnector struct {
	api DomainAPI
	err error
}

func (c fakeConnector) Domains(context.Context) (DomainAPI, error) {
	return c.api, c.err
}

func testClient(api DomainAPI, poll, retry time.Duration) *Client {
	return NewClient(fakeConnector{api: api}, Options{StopPollInterval: poll, StopRetryInterval: retry},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListMachines(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning), vcpus: 2, cpuTime: 1500})
	api.add("db", &fakeDomain{state: uint8(golibvirt.DomainShutoff), vcpus: 1})
	api.add("odd", &fakeDomain{state: 42, vcpus: 1})

	c := testClient(api, 0, 0)
	stamp := time.Unix(100, 0)
	c.now = func() time.Time { return stamp }

	got, err := c.ListMachines(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.MachineInfo{
		{Name: "web", State: model.StateRunning, CPUTimeNs: 1500, VCPUCount: 2, SampledAt: stamp},
		{Name: "db", State: model.StateOff, VCPUCount: 1, SampledAt: stamp},
		{Name: "odd", State: model.StateUnknown, VCPUCount: 1, SampledAt: stamp},
	}, got)
	assert.Equal(t, listAllDomains, api.listFlags)
}

func TestListMachinesFailsOnAnyDomainError(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning)})
	api.add("db", &fakeDomain{infoErr: errors.New("rpc timeout")})

	_, err := testClient(api, 0, 0).ListMachines(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
	assert.Contains(t, err.Error(), "rpc timeout")
}

func TestListMachinesPropagatesListAndConnectErrors(t *testing.T) {
	api := newFakeAPI()
	api.listErr = errors.New("permission denied")
	_, err := testClient(api, 0, 0).ListMachines(context.Background())
	assert.ErrorContains(t, err, "permission denied")

	c := NewClient(fakeConnector{err: ErrNotConnected}, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = c.ListMachines(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestStart(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainShutoff)})

	require.NoError(t, testClient(api, 0, 0).Start(context.Background(), "web"))
	assert.Equal(t, []string{"web"}, api.creates)
}

func TestStartErrors(t *testing.T) {
	api := newFakeAPI()
	api.add("db1", &fakeDomain{state: uint8(golibvirt.DomainShutoff)})
	api.createErr = errors.New("permission denied")
	c := testClient(api, 0, 0)

	assert.ErrorContains(t, c.Start(context.Background(), "db1"), "permission denied")
	assert.ErrorContains(t, c.Start(context.Background(), "missing"), "missing")
}

func TestStopAlreadyStopped(t *testing.T) {
	api := newFakeAPI()
	api.add("db", &fakeDomain{state: uint8(golibvirt.DomainShutoff)})

	require.NoError(t, testClient(api, time.Millisecond, time.Hour).Stop(context.Background(), "db"))
	assert.Zero(t, api.shutdownCount())
}

func TestStopWaitsUntilOff(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning)})

	require.NoError(t, testClient(api, time.Millisecond, time.Hour).Stop(context.Background(), "web"))
	assert.Equal(t, 1, api.shutdownCount())
}

func TestStopRepeatsShutdown(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning)})
	api.shutdownsToStop = 3

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, testClient(api, time.Millisecond, 5*time.Millisecond).Stop(ctx, "web"))
	assert.GreaterOrEqual(t, api.shutdownCount(), 3)
}

func TestStopCancelled(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning)})
	api.shutdownsToStop = 1000

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := testClient(api, time.Millisecond, time.Hour).Stop(ctx, "web")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopShutdownError(t *testing.T) {
	api := newFakeAPI()
	api.add("web", &fakeDomain{state: uint8(golibvirt.DomainRunning)})
	api.shutdownErr = errors.New("guest agent not responding")

	err := testClient(api, time.Millisecond, time.Hour).Stop(context.Background(), "web")
	assert.ErrorContains(t, err, "guest agent not responding")
}
