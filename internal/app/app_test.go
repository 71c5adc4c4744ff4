package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/endpoint"
	"github.com/clelom/titan/internal/hcl"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/wire"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topology = `
master {
  id = 1
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
  task "split" {
    kind = "duplicator"
  }
  task "radio" {
    kind        = "communicator"
    config_data = concat(route(master, 0), route(node.base, 0))
  }

  connection {
    from = "adc"
    to   = "fft"
  }
  connection {
    from = "fft"
    to   = "split"
  }
  connection {
    from = "split[0]"
    to   = "radio[0]"
  }
  connection {
    from = "split[1]"
    to   = "radio[1]"
  }
}

configuration "sink" {
  config_id = 1
  target    = "base"
  delayed   = true

  task "radio" {
    kind        = "communicator"
    config_data = route(master, 1)
  }
  task "out" {
    kind = "print"
  }

  connection {
    from = "radio"
    to   = "out"
  }
}

sampler "tone" {
  node  = "wrist"
  task  = "adc"
  bin   = 3
  every = "2ms"
}
`

type staticLoader struct {
	model *config.Model
	err   error
}

func (l staticLoader) Load(context.Context, ...string) (*config.Model, error) {
	return l.model, l.err
}

func writeTopology(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "net.hcl")
	require.NoError(t, os.WriteFile(path, []byte(topology), 0o600))
	return path
}

func newSimulation(t *testing.T, cacheDB string) *App {
	t.Helper()
	cfg, err := NewConfig(Config{
		TopologyPath: writeTopology(t),
		LogFormat:    "text",
		CacheDB:      cacheDB,
		Duration:     400 * time.Millisecond,
	})
	require.NoError(t, err)
	a, _ := SetupAppTest(t, cfg, hcl.NewLoader())
	return a
}

func TestApp_RunSimulation(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	cfg, err := NewConfig(Config{TopologyPath: writeTopology(t), Duration: 400 * time.Millisecond})
	require.NoError(t, err)
	a, logs := SetupAppTest(t, cfg, hcl.NewLoader())

	// --- Act ---
	err = a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	s := a.Summary()
	require.NotNil(t, s)

	require.Len(t, s.Pushes, 2)
	for _, p := range s.Pushes {
		assert.True(t, p.OK, "push %s failed: %s", p.Configuration, p.Error)
		assert.False(t, p.FromCache)
	}

	require.Len(t, s.Nodes, 2)
	wrist, base := s.Nodes[0], s.Nodes[1]
	assert.Equal(t, uint8(3), wrist.ConfigID)
	assert.Len(t, wrist.Tasks, 4)
	assert.Equal(t, 4, wrist.Links)
	assert.Equal(t, []uint8{3}, wrist.Cached)
	assert.Equal(t, uint8(1), base.ConfigID)
	assert.Len(t, base.Tasks, 2)

	assert.Positive(t, s.Data[10], "the wrist should stream spectra to the master")
	for _, rep := range s.Reports {
		// The base may see spectra before its delayed start arrives.
		assert.NotEqual(t, uint16(10), rep.NodeID, "unexpected fault: %s", rep)
	}
	assert.Contains(t, logs.String(), "Packet received.", "the base should print spectra after its start")
	assert.Contains(t, logs.String(), "Titan network report")
}

func TestApp_CacheSurvivesRestart(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	db := filepath.Join(t.TempDir(), "cache.db")
	first := newSimulation(t, db)
	require.NoError(t, first.Run(context.Background()))

	second := newSimulation(t, db)

	// --- Act ---
	err := second.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	pushes := map[string]PushSummary{}
	for _, p := range second.Summary().Pushes {
		pushes[p.Configuration] = p
	}
	assert.True(t, pushes["spectrum"].OK)
	assert.True(t, pushes["spectrum"].FromCache, "the restored cache should serve the push")
	assert.False(t, pushes["sink"].FromCache)
	assert.Equal(t, []uint8{3}, second.Summary().Nodes[0].Cached)
}

func TestApp_RunStopsWithContext(t *testing.T) {
	t.Parallel()
	cfg, err := NewConfig(Config{TopologyPath: writeTopology(t)})
	require.NoError(t, err)
	a, _ := SetupAppTest(t, cfg, hcl.NewLoader())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = a.Run(ctx)

	require.NoError(t, err)
	assert.Len(t, a.Summary().Pushes, 2)
}

func TestNewApp_Panics(t *testing.T) {
	t.Parallel()
	model := func(kind string) *config.Model {
		return &config.Model{
			Master: &config.Master{ID: 1, TimeUnit: time.Millisecond},
			Nodes:  []*config.Node{{Name: "a", ID: 2}},
			Configurations: []*config.Configuration{{
				Name: "c", ConfigID: 1, Target: "a",
				Tasks: []*config.Task{{Name: "t", Kind: kind}},
			}},
		}
	}
	sampled := func(kind string) *config.Model {
		m := model(kind)
		m.Configurations[0].Tasks[0].Data = map[string][]byte{"communicator": nil, "fft": {6}}[kind]
		m.Samplers = []*config.Sampler{{Name: "s", Node: "a", Task: "t", Waveform: config.WaveSine}}
		return m
	}
	testCases := []struct {
		name   string
		loader config.Loader
		want   string
	}{
		{name: "load failure", loader: staticLoader{err: errors.New("boom")}, want: "failed to load topology: boom"},
		{name: "unknown kind", loader: staticLoader{model: model("laser")}, want: `unknown kind "laser"`},
		{name: "sampler on internal task", loader: staticLoader{model: sampled("communicator")}, want: `invalid sampler "s": task "t" of configuration "c" is a communicator`},
		{name: "sampler on fft", loader: staticLoader{model: sampled("fft")}, want: "which takes no external input"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{TopologyPath: "unused"}
			defer func() {
				r := recover()
				require.NotNil(t, r, "NewApp should panic")
				err, ok := r.(error)
				require.True(t, ok)
				assert.Contains(t, err.Error(), tc.want)
			}()
			SetupAppTest(t, cfg, tc.loader)
		})
	}
}

func TestApp_Compile(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ep := func(task string, port int) endpoint.Endpoint { return endpoint.Endpoint{Task: task, Port: port} }
	c := &config.Configuration{
		Name: "c", ConfigID: 7, Target: "a", Delayed: true, Cache: true,
		Tasks: []*config.Task{
			{Name: "in", Kind: "sensor"},
			{Name: "copy", Kind: "duplicator", Data: []byte{3}},
			{Name: "show", Kind: "print"},
		},
		Connections: []*config.Connection{
			{From: ep("in", 0), To: ep("copy", 0)},
			{From: ep("copy", 2), To: ep("show", 0)},
		},
	}
	model := &config.Model{
		Master:         &config.Master{ID: 1, TimeUnit: time.Millisecond},
		Nodes:          []*config.Node{{Name: "a", ID: 2}},
		Configurations: []*config.Configuration{c},
	}
	a, _ := SetupAppTest(t, &Config{TopologyPath: "unused"}, staticLoader{model: model})

	// --- Act ---
	target, cfg, err := a.compile(c)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, uint16(2), target)
	want := wire.Config{
		ConfigID: 7, Delayed: true, Master: 1, Store: true,
		Tasks: []wire.TaskDesc{
			{Kind: 6, RunID: 0},
			{Kind: 3, RunID: 1, Config: []byte{3}},
			{Kind: 1, RunID: 2},
		},
		Conns: []packet.Connection{
			{SrcRunID: 0, SrcPort: 0, DstRunID: 1, DstPort: 0},
			{SrcRunID: 1, SrcPort: 2, DstRunID: 2, DstPort: 0},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("compiled config mismatch (-want +got):\n%s", diff)
	}

	c.Connections = append(c.Connections, &config.Connection{From: ep("copy", 300), To: ep("show", 0)})
	_, _, err = a.compile(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port out of range")
}

func TestApp_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	model := &config.Model{Master: &config.Master{ID: 1}}
	a, _ := SetupAppTest(t, &Config{TopologyPath: "unused"}, staticLoader{model: model})
	a.metrics.Activation(4)

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = httptest.NewRecorder()
	a.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "titan_")
}
