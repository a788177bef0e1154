// Package audit publishes protection decision payloads to external sinks.
// Every sink is fire-and-forget best-effort: the decision engine never
// depends on a sink's availability, and publish failures are logged and
// dropped rather than surfaced to the caller.
package audit

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Sink accepts flattened decision payloads (protection.Decision.ToMap()
// output plus run metadata).
type Sink interface {
	Publish(ctx context.Context, payload map[string]interface{}) error
	Close() error
}

// LogSink writes payloads to the structured log. Useful as the default
// sink when no external store is configured.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, payload map[string]interface{}) error {
	log.Info().Fields(payload).Msg("Protection decision")
	return nil
}

func (LogSink) Close() error { return nil }

// MultiSink fans out to several sinks. A failing sink does not stop the
// others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a fan-out over the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, payload map[string]interface{}) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, payload); err != nil {
			log.Warn().Err(err).Msg("Audit sink publish failed, dropping")
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("Audit sink close failed")
		}
	}
	return nil
}
