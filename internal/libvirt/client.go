package libvirt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"

	"kvm-dashboard/internal/model"
)

const (
	DefaultStopPollInterval  = 500 * time.Millisecond
	DefaultStopRetryInterval = 10 * time.Second
)

// listAllDomains selects active and inactive domains alike.
const listAllDomains = golibvirt.ConnectListDomainsActive | golibvirt.ConnectListDomainsInactive

type Options struct {
	StopPollInterval  time.Duration
	StopRetryInterval time.Duration
}

// Client is the dashboard's view of one hypervisor.
type Client struct {
	conn      Connector
	logger    *slog.Logger
	stopPoll  time.Duration
	stopRetry time.Duration
	now       func() time.Time
}

func NewClient(conn Connector, opts Options, logger *slog.Logger) *Client {
	if opts.StopPollInterval <= 0 {
		opts.StopPollInterval = DefaultStopPollInterval
	}
	if opts.StopRetryInterval <= 0 {
		opts.StopRetryInterval = DefaultStopRetryInterval
	}
	return &Client{
		conn:      conn,
		logger:    logger,
		stopPoll:  opts.StopPollInterval,
		stopRetry: opts.StopRetryInterval,
		now:       time.Now,
	}
}

// ListMachines returns every defined domain with its power state and CPU
// counters. A failure on any single domain fails the whole listing.
func (c *Client) ListMachines(ctx context.Context) ([]model.MachineInfo, error) {
	api, err := c.conn.Domains(ctx)
	if err != nil {
		return nil, err
	}

	doms, _, err := api.ConnectListAllDomains(1, listAllDomains)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}

	out := make([]model.MachineInfo, 0, len(doms))
	for _, dom := range doms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state, _, _, nrVirtCPU, cpuTime, err := api.DomainGetInfo(dom)
		if err != nil {
			return nil, fmt.Errorf("get info for %s: %w", dom.Name, err)
		}
		out = append(out, model.MachineInfo{
			Name:      dom.Name,
			State:     powerState(state),
			CPUTimeNs: cpuTime,
			VCPUCount: uint32(nrVirtCPU),
			SampledAt: c.now(),
		})
	}
	return out, nil
}

// Start boots the named domain.
func (c *Client) Start(ctx context.Context, name string) error {
	api, dom, err := c.lookup(ctx, name)
	if err != nil {
		return err
	}
	if err := api.DomainCreate(dom); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	c.logger.Debug("domain started", "vm", name)
	return nil
}

// Stop asks the guest to shut down and waits until it is no longer active.
// The request is repeated every retry interval until the guest reacts. Stop
// returns nil immediately when the domain is already stopped, and ctx.Err()
// if ctx ends first.
func (c *Client) Stop(ctx context.Context, name string) error {
	api, dom, err := c.lookup(ctx, name)
	if err != nil {
		return err
	}

	state, _, _, _, _, err := api.DomainGetInfo(dom)
	if err != nil {
		return fmt.Errorf("get info for %s: %w", name, err)
	}
	if !isDomainActive(state) {
		return nil
	}

	if err := api.DomainShutdown(dom); err != nil {
		return fmt.Errorf("shutdown %s: %w", name, err)
	}

	poll := time.NewTicker(c.stopPoll)
	defer poll.Stop()
	retry := time.NewTicker(c.stopRetry)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			c.logger.Debug("domain still active, repeating shutdown", "vm", name)
			if err := api.DomainShutdown(dom); err != nil {
				return fmt.Errorf("shutdown %s: %w", name, err)
			}
		case <-poll.C:
			state, _, _, _, _, err := api.DomainGetInfo(dom)
			if err != nil {
				return fmt.Errorf("get info for %s: %w", name, err)
			}
			if !isDomainActive(state) {
				c.logger.Debug("domain stopped", "vm", name)
				return nil
			}
		}
	}
}

func (c *Client) lookup(ctx context.Context, name string) (DomainAPI, golibvirt.Domain, error) {
	api, err := c.conn.Domains(ctx)
	if err != nil {
		return nil, golibvirt.Domain{}, err
	}
	dom, err := api.DomainLookupByName(name)
	if err != nil {
		if golibvirt.IsNotFound(err) {
			return nil, golibvirt.Domain{}, fmt.Errorf("domain %s not found: %w", name, err)
		}
		return nil, golibvirt.Domain{}, fmt.Errorf("lookup %s: %w", name, err)
	}
	return api, dom, nil
}
