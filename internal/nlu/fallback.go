package nlu

import (
	"context"
	"errors"
	"time"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// ErrUnavailable reports that every configured extractor failed. The engine
// falls back to heuristic-only extraction when it sees this.
var ErrUnavailable = errors.New("nlu: no extractor produced a hint")

// FallbackExtractor tries each extractor in order with a per-attempt timeout
// and returns the first hint.
type FallbackExtractor struct {
	extractors []Extractor
	timeout    time.Duration
	logger     *logging.Logger
}

func NewFallbackExtractor(timeout time.Duration, logger *logging.Logger, extractors ...Extractor) *FallbackExtractor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FallbackExtractor{
		extractors: extractors,
		timeout:    timeout,
		logger:     logger,
	}
}

func (f *FallbackExtractor) Extract(ctx context.Context, turn Turn) (Hint, error) {
	for i, extractor := range f.extractors {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		hint, err := extractor.Extract(attemptCtx, turn)
		cancel()
		if err == nil {
			return hint, nil
		}
		f.logger.Warn("nlu extractor failed, trying next", "attempt", i+1, "error", err)
		if ctx.Err() != nil {
			return Hint{}, ctx.Err()
		}
	}
	return Hint{}, ErrUnavailable
}
