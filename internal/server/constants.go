// Package server exposes results, notifications and capture control over
// HTTP and a WebSocket event stream.
package server

import "time"

// Server configuration constants
const (
	// Inbound WebSocket messages allowed per connection per window
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Per-message write deadline for WebSocket pushes
	WriteTimeout = 5 * time.Second

	// Upper bound for ?limit= on history reads
	MaxHistoryLimit = 500
)
