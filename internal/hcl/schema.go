package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a topology file may contain.
type fileRoot struct {
	Masters        []*masterBlock        `hcl:"master,block"`
	Nodes          []*nodeBlock          `hcl:"node,block"`
	Configurations []*configurationBlock `hcl:"configuration,block"`
	Samplers       []*samplerBlock       `hcl:"sampler,block"`
	Remain         hcl.Body              `hcl:",remain"`
}

type masterBlock struct {
	ID         int      `hcl:"id"`
	TimeUnitMS *float64 `hcl:"time_unit_ms,optional"`
}

type nodeBlock struct {
	Name string `hcl:"name,label"`
	ID   int    `hcl:"id"`
}

type configurationBlock struct {
	Name        string             `hcl:"name,label"`
	ConfigID    int                `hcl:"config_id"`
	Target      string             `hcl:"target"`
	Delayed     *bool              `hcl:"delayed,optional"`
	Cache       *bool              `hcl:"cache,optional"`
	Tasks       []*taskBlock       `hcl:"task,block"`
	Connections []*connectionBlock `hcl:"connection,block"`
}

type taskBlock struct {
	Name string `hcl:"name,label"`
	Kind string `hcl:"kind"`
	// Data is a list of byte values or a hex string.
	Data hcl.Expression `hcl:"config_data,optional"`
}

type connectionBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type samplerBlock struct {
	Name      string  `hcl:"name,label"`
	Node      string  `hcl:"node"`
	Task      string  `hcl:"task"`
	Waveform  *string `hcl:"waveform,optional"`
	Bin       *int    `hcl:"bin,optional"`
	Amplitude *int    `hcl:"amplitude,optional"`
	Window    *int    `hcl:"window,optional"`
	Every     *string `hcl:"every,optional"`
}
