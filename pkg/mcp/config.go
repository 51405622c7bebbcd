// Package mcp implements the client side of the device-control transport:
// a child process speaking JSON-RPC 2.0, one object per newline-terminated
// line, over stdin/stdout.
//
// Framing is newline-delimited only. Every request carries a unique
// monotonically increasing numeric id; responses correlate by id and
// unsolicited messages are ignored. If the child exits, all outstanding
// requests fail immediately and the client becomes not-ready. Initial
// connection failures are retried with exponential backoff; once retries
// are exhausted the client is permanently unavailable for the process
// lifetime and callers run with local-only tools.
package mcp

import (
	"errors"
	"time"
)

// Config holds transport client configuration.
type Config struct {
	// Command launches the device-control subsystem,
	// e.g. "python3" with Args ["mqtt-mcp-stdio.py"].
	Command string
	Args    []string

	// Attempts is the maximum number of connect attempts. Default: 3.
	Attempts int

	// BaseDelay is the backoff base; attempt n waits BaseDelay * 2^(n-2)
	// (the first attempt is immediate). Default: 2s → delays 0, 2s, 4s.
	BaseDelay time.Duration

	// HandshakeTimeout bounds the initialize exchange. Default: 10s.
	HandshakeTimeout time.Duration

	// CallTimeout is the per-request timeout. Each outstanding request has
	// its own independent timer. Default: 10s.
	CallTimeout time.Duration
}

// DefaultConfig returns a Config with hearth's canonical defaults.
func DefaultConfig() Config {
	return Config{
		Attempts:         3,
		BaseDelay:        2 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		CallTimeout:      10 * time.Second,
	}
}

// Validate checks the configuration. Command may be empty only when a
// custom Transport is supplied.
func (c *Config) Validate() error {
	if c.Attempts <= 0 {
		return errors.New("mcp: Attempts must be > 0")
	}
	if c.BaseDelay < 0 {
		return errors.New("mcp: BaseDelay must be >= 0")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("mcp: HandshakeTimeout must be > 0")
	}
	if c.CallTimeout <= 0 {
		return errors.New("mcp: CallTimeout must be > 0")
	}
	return nil
}

// Schedule returns the connect backoff delays: 0, BaseDelay, 2×BaseDelay, …
// one entry per attempt.
func (c *Config) Schedule() []time.Duration {
	out := make([]time.Duration, c.Attempts)
	for i := 1; i < c.Attempts; i++ {
		out[i] = c.BaseDelay << (i - 1)
	}
	return out
}
