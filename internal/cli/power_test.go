package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSwitch struct {
	started, stopped []string
	startErr         error
	stopErr          error
}

func (f *fakeSwitch) Start(_ context.Context, name string) error {
	f.started = append(f.started, name)
	return f.startErr
}

func (f *fakeSwitch) Stop(_ context.Context, name string) error {
	f.stopped = append(f.stopped, name)
	return f.stopErr
}

func TestChangePower(t *testing.T) {
	tests := []struct {
		name    string
		start   bool
		sw      *fakeSwitch
		wantOut string
		wantErr string
	}{
		{
			name:    "start",
			start:   true,
			sw:      &fakeSwitch{},
			wantOut: "web1 started\n",
		},
		{
			name:    "stop",
			sw:      &fakeSwitch{},
			wantOut: "web1 is off\n",
		},
		{
			name:    "start error is not prefixed again",
			start:   true,
			sw:      &fakeSwitch{startErr: errors.New("start web1: permission denied")},
			wantErr: "start web1: permission denied",
		},
		{
			name:    "stop error is not prefixed again",
			sw:      &fakeSwitch{stopErr: errors.New("shutdown web1: operation failed")},
			wantErr: "shutdown web1: operation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := changePower(context.Background(), &buf, tt.sw, "web1", tt.start)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Empty(t, buf.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, buf.String())
			if tt.start {
				assert.Equal(t, []string{"web1"}, tt.sw.started)
			} else {
				assert.Equal(t, []string{"web1"}, tt.sw.stopped)
			}
		})
	}
}
