// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// SPARQLRequest caps the time allowed for a single SPARQL request from
// the web tier to the external engine endpoint.
const SPARQLRequest = 10 * time.Second

// EngineStart caps how long the supervisor waits for the external engine
// to answer on its SPARQL endpoint after launch.
const EngineStart = 60 * time.Second

// EngineStop is the grace period between SIGTERM and SIGKILL when the
// supervisor shuts the external engine down.
const EngineStop = 10 * time.Second
