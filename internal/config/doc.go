// Package config defines the format-agnostic topology model of a simulated
// Titan network and the Loader interface that produces it.
package config
