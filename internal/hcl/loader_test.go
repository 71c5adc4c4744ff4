package hcl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/endpoint"
	"github.com/clelom/titan/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topology = `
master {
  id           = 1
  time_unit_ms = 2
}

node "wrist" {
  id = 10
}

node "base" {
  id = 11
}

configuration "spectrum" {
  config_id = 3
  target    = "wrist"
  cache     = true

  task "adc" {
    kind = "sensor"
  }
  task "fft" {
    kind        = "fft"
    config_data = [4]
  }
  task "radio" {
    kind        = "communicator"
    config_data = concat(route(node.base, 0), route(master, 2))
  }

  connection {
    from = "adc"
    to   = "fft[0]"
  }
  connection {
    from = "fft[0]"
    to   = "radio[0]"
  }
}

configuration "sink" {
  config_id = 1
  target    = "base"
  delayed   = true

  task "radio" {
    kind        = "communicator"
    config_data = "0x000b02"
  }
  task "out" {
    kind        = "print"
  }
}

sampler "tone" {
  node      = "wrist"
  task      = "adc"
  bin       = 5
  every     = "5ms"
}
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	dir := writeFiles(t, map[string]string{"net.hcl": topology, "README.md": "ignored"})

	// --- Act ---
	model, err := NewLoader().Load(ctx, dir)

	// --- Assert ---
	require.NoError(t, err)
	want := &config.Model{
		Master: &config.Master{ID: 1, TimeUnit: 2 * time.Millisecond},
		Nodes:  []*config.Node{{Name: "wrist", ID: 10}, {Name: "base", ID: 11}},
		Configurations: []*config.Configuration{
			{
				Name: "spectrum", ConfigID: 3, Target: "wrist", Cache: true,
				Tasks: []*config.Task{
					{Name: "adc", Kind: "sensor"},
					{Name: "fft", Kind: "fft", Data: []byte{4}},
					{Name: "radio", Kind: "communicator", Data: []byte{0, 11, 0, 0, 1, 2}},
				},
				Connections: []*config.Connection{
					{From: endpoint.Endpoint{Task: "adc"}, To: endpoint.Endpoint{Task: "fft"}},
					{From: endpoint.Endpoint{Task: "fft"}, To: endpoint.Endpoint{Task: "radio"}},
				},
			},
			{
				Name: "sink", ConfigID: 1, Target: "base", Delayed: true,
				Tasks: []*config.Task{{Name: "radio", Kind: "communicator", Data: []byte{0, 11, 2}}, {Name: "out", Kind: "print"}},
			},
		},
		Samplers: []*config.Sampler{{
			Name: "tone", Node: "wrist", Task: "adc", Waveform: config.WaveSine,
			Bin: 5, Amplitude: defaultAmplitude, Window: defaultWindow, Every: 5 * time.Millisecond,
		}},
	}
	if diff := cmp.Diff(want, model); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_MergesFiles(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	dir := writeFiles(t, map[string]string{
		"master.hcl":      `master { id = 1 }`,
		"nodes/node.hcl":  `node "a" { id = 2 }`,
		"nodes/extra.txt": `node "b" { id = 3 }`,
	})

	model, err := NewLoader().Load(ctx, dir)

	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimeUnit, model.Master.TimeUnit)
	require.Len(t, model.Nodes, 1)
	assert.Equal(t, "a", model.Nodes[0].Name)
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()
	const head = "master { id = 1 }\nnode \"a\" { id = 2 }\n"
	task := func(data string) string {
		return head + `configuration "c" {
  config_id = 1
  target    = "a"
  task "t" {
    kind        = "print"
    config_data = ` + data + `
  }
}`
	}
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "syntax", content: "master {", wantErr: "failed to parse"},
		{name: "no master", content: `node "a" { id = 2 }`, wantErr: "no master"},
		{name: "two masters", content: head + "master { id = 3 }", wantErr: "2 master blocks"},
		{name: "broadcast address", content: "master { id = 65535 }", wantErr: "out of range"},
		{name: "value above a byte", content: task("[1, 256]"), wantErr: "is not a byte"},
		{name: "bad hex", content: task(`"0xZZ"`), wantErr: "not a hex string"},
		{name: "unknown node", content: task("route(node.ghost, 0)"), wantErr: "ghost"},
		{name: "wrong type", content: task("true"), wantErr: "list of numbers"},
		{
			name:    "bad endpoint",
			content: head + "configuration \"c\" {\n config_id = 1\n target = \"a\"\n connection {\n from = \"x.y\"\n to = \"z\"\n }\n}",
			wantErr: "invalid endpoint",
		},
		{
			name:    "validation",
			content: head + "configuration \"c\" {\n config_id = 1\n target = \"b\"\n}",
			wantErr: "invalid topology",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, _ := testutil.Context(t)
			dir := writeFiles(t, map[string]string{"net.hcl": tc.content})

			_, err := NewLoader().Load(ctx, dir)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoader_MissingPath(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	_, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "missing.hcl"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error accessing path")
}
