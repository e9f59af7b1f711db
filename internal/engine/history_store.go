package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptTTL = 24 * time.Hour
	// transcriptLimit caps how many lines are kept and fed back to the NLU
	// extractor as context.
	transcriptLimit = 12
)

// HistoryStore keeps a short rolling transcript per customer in Redis. The
// transcript is conversational context for the extractor, not durable state;
// losing it only degrades hint quality.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewHistoryStore(client *redis.Client, tracer trace.Tracer) *HistoryStore {
	if client == nil {
		panic("engine: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("citabot.internal.engine.history")
	}
	return &HistoryStore{
		redis:  client,
		tracer: tracer,
	}
}

// Append adds transcript lines for a customer and refreshes the TTL.
func (s *HistoryStore) Append(ctx context.Context, phone string, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "engine.append_transcript")
	defer span.End()

	key := transcriptKey(phone)
	pipe := s.redis.TxPipeline()
	for _, line := range lines {
		pipe.RPush(ctx, key, line)
	}
	pipe.LTrim(ctx, key, -transcriptLimit, -1)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: failed to append transcript: %w", err)
	}
	return nil
}

// Recent returns the customer's transcript, oldest first. A missing key is
// an empty transcript, not an error.
func (s *HistoryStore) Recent(ctx context.Context, phone string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "engine.load_transcript")
	defer span.End()

	lines, err := s.redis.LRange(ctx, transcriptKey(phone), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("engine: failed to load transcript: %w", err)
	}
	return lines, nil
}

// Clear drops a customer's transcript, used after a committed booking.
func (s *HistoryStore) Clear(ctx context.Context, phone string) error {
	ctx, span := s.tracer.Start(ctx, "engine.clear_transcript")
	defer span.End()

	if err := s.redis.Del(ctx, transcriptKey(phone)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: failed to clear transcript: %w", err)
	}
	return nil
}

func transcriptKey(phone string) string {
	return fmt.Sprintf("transcript:%s", phone)
}
