package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

type exportStats interface {
	Connected() bool
	Sent() uint64
	Dropped() uint64
}

// libvirtSession is the connection side of libvirt health.
type libvirtSession interface {
	Connected() bool
	Healthy(ctx context.Context) error
}

var errRefreshFailing = errors.New("last refresh failed")

// HealthStatus is updated by the reconciliation loop after every refresh
// and read by the dashboard footer.
type HealthStatus struct {
	libvirtConnected atomic.Bool
	lastRefreshAt    atomic.Int64
	refreshFailures  atomic.Uint64
	export           exportStats
	libvirt          libvirtSession
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

// TrackExport makes the export stream state part of the report. It must be
// called before the status is shared.
func (h *HealthStatus) TrackExport(p exportStats) {
	h.export = p
}

// TrackLibvirt adds the shared libvirt connection to the report. It must be
// called before the status is shared.
func (h *HealthStatus) TrackLibvirt(p libvirtSession) {
	h.libvirt = p
}

// Check returns nil when the last refresh succeeded and the tracked
// libvirt connection, if any, still answers.
func (h *HealthStatus) Check(ctx context.Context) error {
	if !h.LibvirtConnected() {
		return errRefreshFailing
	}
	if h.libvirt == nil {
		return nil
	}
	return h.libvirt.Healthy(ctx)
}

// ObserveRefresh implements controller.RefreshObserver.
func (h *HealthStatus) ObserveRefresh(at time.Time, err error) {
	if err != nil {
		h.libvirtConnected.Store(false)
		h.refreshFailures.Add(1)
		return
	}
	h.libvirtConnected.Store(true)
	h.lastRefreshAt.Store(at.UnixNano())
}

func (h *HealthStatus) LibvirtConnected() bool {
	return h.libvirtConnected.Load()
}

// LastRefresh is the time of the last successful refresh, zero if none.
func (h *HealthStatus) LastRefresh() time.Time {
	v := h.lastRefreshAt.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

func (h *HealthStatus) RefreshFailures() uint64 {
	return h.refreshFailures.Load()
}

func (h *HealthStatus) ExportStatus() (enabled, connected bool) {
	if h.export == nil {
		return false, false
	}
	return true, h.export.Connected()
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"libvirt_connected": h.LibvirtConnected(),
		"refresh_failures":  h.RefreshFailures(),
	}
	if h.libvirt != nil {
		out["libvirt_session_open"] = h.libvirt.Connected()
	}
	if enabled, ok := h.ExportStatus(); enabled {
		out["export_connected"] = ok
		out["export_sent"] = h.export.Sent()
		out["export_dropped"] = h.export.Dropped()
	}
	if last := h.LastRefresh(); !last.IsZero() {
		out["last_refresh_at"] = last.UTC()
	}
	return out
}
