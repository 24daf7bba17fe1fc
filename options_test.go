package rendergraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGraphOptions(t *testing.T) {
	o := defaultGraphOptions()
	assert.False(t, o.multiQueue)
	assert.False(t, o.hostPasses)
	assert.Equal(t, DefaultWaitTimeout, o.waitTimeout)
	assert.Equal(t, uint64(DefaultFramesInFlight), o.framesInFlight)
	assert.Equal(t, uint64(DefaultEvictAfter), o.evictAfter)
}

func TestGraphOptionsIgnoreNonPositive(t *testing.T) {
	o := defaultGraphOptions()
	WithWaitTimeout(0)(&o)
	WithFramesInFlight(-1)(&o)
	WithEvictAfter(0)(&o)
	assert.Equal(t, DefaultWaitTimeout, o.waitTimeout)
	assert.Equal(t, uint64(DefaultFramesInFlight), o.framesInFlight)
	assert.Equal(t, uint64(DefaultEvictAfter), o.evictAfter)

	WithWaitTimeout(250 * time.Millisecond)(&o)
	WithFramesInFlight(3)(&o)
	assert.Equal(t, 250*time.Millisecond, o.waitTimeout)
	assert.Equal(t, uint64(3), o.framesInFlight)
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Config
		wantErr bool
	}{
		{
			name: "empty",
			yaml: "",
			want: DefaultConfig(),
		},
		{
			name: "full",
			yaml: "multi_queue: true\nhost_passes: true\ntimestamps: true\nwait_timeout: 500ms\nframes_in_flight: 3\nevict_after: 4\n",
			want: Config{
				MultiQueue: true, HostPasses: true, Timestamps: true,
				WaitTimeout: "500ms", FramesInFlight: 3, EvictAfter: 4,
			},
		},
		{name: "unknown key", yaml: "multiqueue: true\n", wantErr: true},
		{name: "bad duration", yaml: "wait_timeout: soon\n", wantErr: true},
		{name: "negative frames", yaml: "frames_in_flight: -1\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfigAppliesOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("multi_queue: true\nwait_timeout: 2s\nevict_after: 1\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	o := defaultGraphOptions()
	WithConfig(cfg)(&o)
	assert.True(t, o.multiQueue)
	assert.Equal(t, 2*time.Second, o.waitTimeout)
	assert.Equal(t, uint64(1), o.evictAfter)
	assert.Equal(t, uint64(DefaultFramesInFlight), o.framesInFlight)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
