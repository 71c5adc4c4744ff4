package hcl

import (
	"fmt"
	"time"

	"github.com/clelom/titan/internal/config"
	"github.com/clelom/titan/internal/endpoint"
)

// Defaults for optional sampler attributes.
const (
	defaultWaveform  = config.WaveSine
	defaultBin       = 1
	defaultAmplitude = 1000
	defaultWindow    = 32
	defaultEvery     = 10 * time.Millisecond
)

// translate converts the decoded blocks of all files into the model.
func translate(root *fileRoot) (*config.Model, error) {
	model := config.NewModel()

	switch len(root.Masters) {
	case 0:
		return nil, fmt.Errorf("topology has no master block")
	case 1:
	default:
		return nil, fmt.Errorf("topology declares %d master blocks", len(root.Masters))
	}
	master, err := translateMaster(root.Masters[0])
	if err != nil {
		return nil, err
	}
	model.Master = master

	for _, n := range root.Nodes {
		id, err := address(n.ID)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		model.Nodes = append(model.Nodes, &config.Node{Name: n.Name, ID: id})
	}

	evalCtx := newEvalContext(model)
	for _, c := range root.Configurations {
		cfg, err := translateConfiguration(c, evalCtx)
		if err != nil {
			return nil, err
		}
		model.Configurations = append(model.Configurations, cfg)
	}
	for _, s := range root.Samplers {
		sampler, err := translateSampler(s)
		if err != nil {
			return nil, err
		}
		model.Samplers = append(model.Samplers, sampler)
	}
	return model, nil
}

func address(id int) (uint16, error) {
	if id < 0 || id >= 0xFFFF {
		return 0, fmt.Errorf("address %d out of range", id)
	}
	return uint16(id), nil
}

func translateMaster(b *masterBlock) (*config.Master, error) {
	id, err := address(b.ID)
	if err != nil {
		return nil, fmt.Errorf("master: %w", err)
	}
	m := &config.Master{ID: id, TimeUnit: config.DefaultTimeUnit}
	if b.TimeUnitMS != nil {
		if *b.TimeUnitMS <= 0 {
			return nil, fmt.Errorf("master: time_unit_ms must be positive")
		}
		m.TimeUnit = time.Duration(*b.TimeUnitMS * float64(time.Millisecond))
	}
	return m, nil
}

func translateConfiguration(b *configurationBlock, evalCtx *evalContext) (*config.Configuration, error) {
	if b.ConfigID < 0 || b.ConfigID > 0xFF {
		return nil, fmt.Errorf("configuration %q: config_id %d out of range", b.Name, b.ConfigID)
	}
	c := &config.Configuration{
		Name:     b.Name,
		ConfigID: uint8(b.ConfigID),
		Target:   b.Target,
		Delayed:  b.Delayed != nil && *b.Delayed,
		Cache:    b.Cache != nil && *b.Cache,
	}
	for _, t := range b.Tasks {
		data, err := evalCtx.configData(t.Data)
		if err != nil {
			return nil, fmt.Errorf("configuration %q, task %q: %w", b.Name, t.Name, err)
		}
		c.Tasks = append(c.Tasks, &config.Task{Name: t.Name, Kind: t.Kind, Data: data})
	}
	for _, conn := range b.Connections {
		from, err := endpoint.Parse(conn.From)
		if err != nil {
			return nil, fmt.Errorf("configuration %q: %w", b.Name, err)
		}
		to, err := endpoint.Parse(conn.To)
		if err != nil {
			return nil, fmt.Errorf("configuration %q: %w", b.Name, err)
		}
		c.Connections = append(c.Connections, &config.Connection{From: from, To: to})
	}
	return c, nil
}

func translateSampler(b *samplerBlock) (*config.Sampler, error) {
	s := &config.Sampler{
		Name:      b.Name,
		Node:      b.Node,
		Task:      b.Task,
		Waveform:  defaultWaveform,
		Bin:       defaultBin,
		Amplitude: defaultAmplitude,
		Window:    defaultWindow,
		Every:     defaultEvery,
	}
	if b.Waveform != nil {
		s.Waveform = *b.Waveform
	}
	if b.Bin != nil {
		s.Bin = *b.Bin
	}
	if b.Amplitude != nil {
		s.Amplitude = *b.Amplitude
	}
	if b.Window != nil {
		s.Window = *b.Window
	}
	if b.Every != nil {
		d, err := time.ParseDuration(*b.Every)
		if err != nil {
			return nil, fmt.Errorf("sampler %q: %w", b.Name, err)
		}
		s.Every = d
	}
	return s, nil
}
