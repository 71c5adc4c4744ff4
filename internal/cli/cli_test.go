package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/clelom/titan/internal/app"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		args     []string
		want     *app.Config
		wantExit bool
		wantErr  string
	}{
		{
			name: "positional path with defaults",
			args: []string{"net.hcl"},
			want: &app.Config{
				TopologyPath: "net.hcl", LogFormat: "json", LogLevel: "info",
				Radio: app.RadioMemory, Duration: 10 * time.Second,
			},
		},
		{
			name: "every flag",
			args: []string{
				"-t", "topo", "--log-format", "TEXT", "--log-level", "debug", "--log-file", "titan.log",
				"--healthcheck-port", "8080", "--cache-db", "cache.db", "--radio", "socketio",
				"--radio-url", "http://relay:3000", "--time-unit", "2ms", "--duration", "0s",
			},
			want: &app.Config{
				TopologyPath: "topo", LogFormat: "text", LogLevel: "debug", LogFile: "titan.log",
				HealthcheckPort: 8080, CacheDB: "cache.db", Radio: app.RadioSocketIO,
				RadioURL: "http://relay:3000", TimeUnit: 2 * time.Millisecond,
			},
		},
		{name: "help", args: []string{"-h"}, wantExit: true},
		{name: "no path prints usage", args: nil, wantExit: true},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag: --bogus"},
		{name: "two paths", args: []string{"a", "b"}, wantErr: "accepts at most 1 arg"},
		{name: "bad log format", args: []string{"--log-format", "xml", "a"}, wantErr: "invalid log-format"},
		{name: "bad log level", args: []string{"--log-level", "loud", "a"}, wantErr: "invalid log-level"},
		{name: "socketio needs url", args: []string{"--radio", "socketio", "a"}, wantErr: "RadioURL"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			got, exit, err := Parse(tc.args, out)

			// --- Assert ---
			if tc.wantErr != "" {
				require.Error(t, err)
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, 2, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExit, exit)
			if tc.wantExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
