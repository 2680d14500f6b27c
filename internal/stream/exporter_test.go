package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvm-dashboard/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	err    error
	closed bool
}

func (s *fakeSender) Send(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSender) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSender) received() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func (s *fakeSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestExporterBuildsFrames(t *testing.T) {
	sender := &fakeSender{}
	e := NewExporter(sender, "hv1", 16, discardLogger())
	e.builder.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, e.ConnectedTransition())
	require.NoError(t, e.VMAdded("web", "Running", model.AffordanceStop))
	require.NoError(t, e.VMCPUUpdated("web", model.KnownCPURate(0.25)))
	require.NoError(t, e.VMCPUUpdated("web", model.UnknownCPURate))
	require.NoError(t, e.VMStateChanged("web", "Off", model.AffordanceStart))
	require.NoError(t, e.VMRemoved("web"))
	require.NoError(t, e.ErrorShown("permission denied", false))
	require.NoError(t, e.Cleared())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(sender.received()) == 8 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got := sender.received()
	quarter := 0.25
	want := []Frame{
		{Kind: EventConnected},
		{Kind: EventVMAdded, VM: "web", State: "Running", Action: "Stop"},
		{Kind: EventVMCPU, VM: "web", CPURate: &quarter},
		{Kind: EventVMCPU, VM: "web"},
		{Kind: EventVMState, VM: "web", State: "Off", Action: "Start"},
		{Kind: EventVMRemoved, VM: "web"},
		{Kind: EventError, Message: "permission denied"},
		{Kind: EventCleared},
	}
	for i := range want {
		want[i].NodeID = "hv1"
		want[i].Seq = uint64(i + 1)
		want[i].TimestampUnix = 1700000000
	}
	assert.Equal(t, want, got)
	assert.True(t, e.Connected())
	assert.EqualValues(t, 8, e.Sent())
}

func TestExporterDropsWhenBufferFull(t *testing.T) {
	e := NewExporter(&fakeSender{}, "hv1", 2, discardLogger())

	for i := 0; i < 5; i++ {
		assert.NoError(t, e.VMRemoved("web"))
	}

	assert.EqualValues(t, 3, e.Dropped())
	assert.Len(t, e.frames, 2)
	first := <-e.frames
	assert.EqualValues(t, 1, first.Seq)
}

func TestExporterSurvivesSendFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("unavailable")}
	e := NewExporter(sender, "hv1", 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	require.NoError(t, e.Cleared())
	require.Eventually(t, func() bool { return len(e.frames) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, e.Connected())

	sender.setErr(nil)
	require.NoError(t, e.ConnectedTransition())
	require.Eventually(t, e.Connected, 2*time.Second, 5*time.Millisecond)
	frames := sender.received()
	require.NotEmpty(t, frames)
	assert.Equal(t, EventConnected, frames[len(frames)-1].Kind)
}

func TestExporterClose(t *testing.T) {
	sender := &fakeSender{}
	e := NewExporter(sender, "hv1", 0, discardLogger())

	require.NoError(t, e.Close(context.Background()))
	assert.True(t, sender.closed)
	assert.Equal(t, DefaultBufferSize, cap(e.frames))
}
