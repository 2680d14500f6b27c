package libvirt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	golibvirt "github.com/digitalocean/go-libvirt"
)

// DefaultURI is used when no connection URI is configured.
const DefaultURI = string(golibvirt.QEMUSystem)

var ErrNotConnected = errors.New("libvirt not connected")

// DomainAPI is the subset of the libvirt RPC surface the dashboard uses.
// *golibvirt.Libvirt satisfies it.
type DomainAPI interface {
	ConnectListAllDomains(needResults int32, flags golibvirt.ConnectListAllDomainsFlags) ([]golibvirt.Domain, uint32, error)
	DomainGetInfo(dom golibvirt.Domain) (state uint8, maxMem uint64, memory uint64, nrVirtCPU uint16, cpuTime uint64, err error)
	DomainLookupByName(name string) (golibvirt.Domain, error)
	DomainCreate(dom golibvirt.Domain) error
	DomainShutdown(dom golibvirt.Domain) error
}

// Connector hands out a live DomainAPI, dialing if needed.
type Connector interface {
	Domains(ctx context.Context) (DomainAPI, error)
}

// ConnManager owns the single libvirt RPC connection shared by the refresh
// path and the action workers. It dials lazily and re-dials once the
// previous connection is gone. A failed dial is returned to the caller
// rather than retried; the next refresh tries again.
type ConnManager struct {
	mu     sync.Mutex
	client *golibvirt.Libvirt
	uri    string
	logger *slog.Logger
	dial   func(*url.URL) (*golibvirt.Libvirt, error)
}

func NewConnManager(uri string, logger *slog.Logger) *ConnManager {
	return &ConnManager{
		uri:    uri,
		logger: logger,
		dial: func(u *url.URL) (*golibvirt.Libvirt, error) {
			return golibvirt.ConnectToURI(u)
		},
	}
}

func (m *ConnManager) URI() string {
	if strings.TrimSpace(m.uri) == "" {
		return DefaultURI
	}
	return m.uri
}

func (m *ConnManager) Domains(ctx context.Context) (DomainAPI, error) {
	c, err := m.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Client returns the current connection, dialing a new one when there is
// none or the old one dropped.
func (m *ConnManager) Client(ctx context.Context) (*golibvirt.Libvirt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		if m.client.IsConnected() {
			return m.client, nil
		}
		m.logger.Warn("libvirt connection lost, reconnecting", "uri", m.URI())
		_ = m.client.Disconnect()
		m.client = nil
	}

	uri, err := ParseURI(m.uri)
	if err != nil {
		return nil, err
	}
	c, err := m.dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri.Redacted(), err)
	}
	m.client = c
	m.logger.Info("libvirt connected", "uri", uri.Redacted())
	return c, nil
}

// Connected reports whether a live connection is currently held. It never
// dials.
func (m *ConnManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil && m.client.IsConnected()
}

// Healthy round-trips a version request on the shared connection, dialing
// first if needed.
func (m *ConnManager) Healthy(ctx context.Context) error {
	c, err := m.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := c.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt version check failed: %w", err)
	}
	return nil
}

func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect()
	m.client = nil
	return err
}

// ParseURI validates raw as a libvirt connection URI. An empty value or one
// without a scheme means qemu:///system.
func ParseURI(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURI
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", raw, err)
	}
	if uri.Scheme == "" {
		return url.Parse(DefaultURI)
	}
	return uri, nil
}
