package libvirt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/libvirttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "qemu:///system"},
		{"   ", "qemu:///system"},
		{"qemu:///session", "qemu:///session"},
		{"qemu+ssh://root@host/system", "qemu+ssh://root@host/system"},
		{"no-scheme", "qemu:///system"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := ParseURI(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestParseURIInvalid(t *testing.T) {
	_, err := ParseURI("qemu://%zz")
	assert.Error(t, err)
}

func TestConnManagerDialFailure(t *testing.T) {
	m := NewConnManager("qemu:///system", slog.New(slog.NewTextHandler(io.Discard, nil)))
	var dialed []string
	m.dial = func(u *url.URL) (*golibvirt.Libvirt, error) {
		dialed = append(dialed, u.String())
		return nil, errors.New("no such file or directory")
	}

	_, err := m.Domains(context.Background())
	require.ErrorContains(t, err, "no such file or directory")
	_, err = m.Client(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"qemu:///system", "qemu:///system"}, dialed)
	assert.False(t, m.Connected())
	assert.NoError(t, m.Close())
}

func TestConnManagerHealthyDialsAndReuses(t *testing.T) {
	m := NewConnManager("qemu:///system", slog.New(slog.NewTextHandler(io.Discard, nil)))
	dials := 0
	m.dial = func(u *url.URL) (*golibvirt.Libvirt, error) {
		dials++
		l := golibvirt.NewWithDialer(libvirttest.New())
		if err := l.ConnectToURI(golibvirt.ConnectURI(u.String())); err != nil {
			return nil, err
		}
		return l, nil
	}

	assert.False(t, m.Connected())
	require.NoError(t, m.Healthy(context.Background()))
	assert.True(t, m.Connected())

	require.NoError(t, m.Healthy(context.Background()))
	assert.Equal(t, 1, dials)

	require.NoError(t, m.Close())
	assert.False(t, m.Connected())
}

func TestConnManagerHealthyReportsDialFailure(t *testing.T) {
	m := NewConnManager("qemu:///system", slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.dial = func(*url.URL) (*golibvirt.Libvirt, error) {
		return nil, errors.New("connection refused")
	}

	err := m.Healthy(context.Background())
	require.ErrorContains(t, err, "connection refused")
	assert.False(t, m.Connected())
}

func TestConnManagerCancelledContext(t *testing.T) {
	m := NewConnManager("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.dial = func(*url.URL) (*golibvirt.Libvirt, error) {
		t.Fatal("dial after cancel")
		return nil, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Client(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, DefaultURI, m.URI())
}
