package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a Source for the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendAuto, BackendMalgo:
		return NewMalgoSource(cfg, logger)
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unknown backend %q", cfg.Backend)
	}
}

// NewSink creates a Sink for the configured backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendAuto, BackendMalgo:
		return NewMalgoSink(cfg, logger)
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unknown backend %q", cfg.Backend)
	}
}
