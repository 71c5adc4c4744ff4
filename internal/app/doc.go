// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the lifecycle of a simulated Titan network,
// decoupled from any specific entrypoint like a CLI or server.
package app
