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

// AnalysisCall caps one AI vision call including provider retries.
const AnalysisCall = 30 * time.Second

// BackgroundUser caps the work a timer tick may spend on a single user.
const BackgroundUser = 5 * time.Second

// StoreOpen caps startup queries against the record store.
const StoreOpen = 10 * time.Second
