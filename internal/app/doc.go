// Package app wires the service together: configuration, logging, metrics,
// the model registry, the inference and training services, the websocket hub
// and the HTTP server. It owns the startup and shutdown sequence.
package app
