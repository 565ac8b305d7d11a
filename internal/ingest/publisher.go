package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for indexing jobs.
	StreamKey = "photovault:ingest"

	// DeadLetterStreamKey is the Redis stream for poison and exhausted jobs.
	DeadLetterStreamKey = "photovault:ingest:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// Publisher enqueues jobs to the ingest stream.
type Publisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a stream Publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "ingest.publisher"),
	}
}

// Submit adds job to the stream.
func (p *Publisher) Submit(ctx context.Context, job Job) error {
	if err := ValidateJob(job); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	id, err := p.publish(ctx, job)
	if err != nil {
		return err
	}

	p.logger.Debug("ingest job published",
		"image_id", job.ImageID,
		"attempt", job.Attempt,
		"stream_id", id,
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, job Job) (string, error) {
	payload, err := encodeJob(job)
	if err != nil {
		return "", err
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": payload,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}
