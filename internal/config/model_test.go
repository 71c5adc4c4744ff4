package config

import (
	"testing"
	"time"

	"github.com/clelom/titan/internal/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	return &Model{
		Master: &Master{ID: 1, TimeUnit: DefaultTimeUnit},
		Nodes:  []*Node{{Name: "wrist", ID: 2}, {Name: "base", ID: 3}},
		Configurations: []*Configuration{{
			Name:     "spectrum",
			ConfigID: 1,
			Target:   "wrist",
			Tasks:    []*Task{{Name: "adc", Kind: "sensor"}, {Name: "fft", Kind: "fft", Data: []byte{4}}},
			Connections: []*Connection{
				{From: endpoint.Endpoint{Task: "adc"}, To: endpoint.Endpoint{Task: "fft"}},
			},
		}},
		Samplers: []*Sampler{{Name: "tone", Node: "wrist", Task: "adc", Waveform: WaveSine, Bin: 3, Amplitude: 800, Window: 32, Every: time.Millisecond}},
	}
}

func TestModel_Validate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		mutate  func(m *Model)
		wantErr string
	}{
		{name: "valid", mutate: func(*Model) {}},
		{name: "no master", mutate: func(m *Model) { m.Master = nil }, wantErr: "no master"},
		{name: "duplicate address", mutate: func(m *Model) { m.Nodes[1].ID = 1 }, wantErr: "reuses address 1"},
		{name: "duplicate node", mutate: func(m *Model) { m.Nodes[1].Name = "wrist" }, wantErr: "declared twice"},
		{name: "unknown target", mutate: func(m *Model) { m.Configurations[0].Target = "ankle" }, wantErr: "unknown node \"ankle\""},
		{name: "config id too large", mutate: func(m *Model) { m.Configurations[0].ConfigID = 16 }, wantErr: "exceeds 15"},
		{
			name:    "unknown task in connection",
			mutate:  func(m *Model) { m.Configurations[0].Connections[0].To.Task = "dup" },
			wantErr: "unknown task \"dup\"",
		},
		{name: "sampler without task", mutate: func(m *Model) { m.Samplers[0].Task = "fft2" }, wantErr: "has no task"},
		{name: "bad waveform", mutate: func(m *Model) { m.Samplers[0].Waveform = "saw" }, wantErr: "unknown waveform"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := validModel()
			tc.mutate(m)

			err := m.Validate()

			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestModel_SamplerRunID(t *testing.T) {
	t.Parallel()
	m := validModel()
	m.Samplers[0].Task = "fft"

	runID, ok := m.SamplerRunID(m.Samplers[0])

	require.True(t, ok)
	assert.Equal(t, uint8(1), runID)
}
