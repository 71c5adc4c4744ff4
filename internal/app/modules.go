package app

import (
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/modules/communicator"
	"github.com/clelom/titan/modules/duplicator"
	"github.com/clelom/titan/modules/fft"
	"github.com/clelom/titan/modules/print"
	"github.com/clelom/titan/modules/sensor"
)

// coreModules is the definitive list of all task kinds that are compiled
// into every simulated node.
var coreModules = []registry.Module{
	&communicator.Module{},
	&print.Module{},
	&duplicator.Module{},
	&sensor.Module{},
	&fft.Module{},
}
