package config

import "context"

// Loader is the interface for a format-specific topology loader.
type Loader interface {
	// Load reads every topology file found under paths and translates them
	// into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
