package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/photovault/photovault/internal/metrics"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "ingest_workers"

	// DefaultBatchSize is the max jobs read per round.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of jobs indexed in parallel.
	DefaultConcurrency = 4

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxAttempts is the number of deliveries before a job is dead-lettered.
	DefaultMaxAttempts = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 60 * time.Second

	// DefaultJobTimeout bounds one embed, upsert and mark sequence.
	DefaultJobTimeout = 30 * time.Second

	deadLetterMaxLen = 10000
)

// Processor indexes one job.
type Processor interface {
	Index(ctx context.Context, job Job) error
}

// Worker drains the ingest stream into a Processor.
type Worker struct {
	redis         *redis.Client
	processor     Processor
	logger        *slog.Logger
	metrics       metrics.Recorder
	consumerID    string
	batchSize     int
	concurrency   int
	blockTimeout  time.Duration
	maxAttempts   int
	claimInterval time.Duration
	claimIdle     time.Duration
	jobTimeout    time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates an ingest worker.
func NewWorker(client *redis.Client, processor Processor, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		redis:         client,
		processor:     processor,
		logger:        logger.With("component", "ingest.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		concurrency:   DefaultConcurrency,
		blockTimeout:  DefaultBlockTimeout,
		maxAttempts:   DefaultMaxAttempts,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		jobTimeout:    DefaultJobTimeout,
		claimStartID:  "0-0",
	}
}

// Run starts the worker loop. Blocks until context is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("ingest worker started", "concurrency", w.concurrency)

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("ingest worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("ingest worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				sleepCtx(ctx, time.Second)
			}
		}
	}
}

// Shutdown stops the worker after the in-flight round completes.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("ingest worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("ingest worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("ingest worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetConcurrency overrides the number of jobs indexed in parallel.
func (w *Worker) SetConcurrency(n int) {
	if n > 0 {
		w.concurrency = n
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetMaxAttempts overrides the number of deliveries before dead-lettering.
func (w *Worker) SetMaxAttempts(n int) {
	if n > 0 {
		w.maxAttempts = n
	}
}

// SetClaimInterval overrides the default pending-claim interval.
func (w *Worker) SetClaimInterval(interval time.Duration) {
	if interval > 0 {
		w.claimInterval = interval
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetJobTimeout overrides the per-job deadline.
func (w *Worker) SetJobTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.jobTimeout = timeout
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

func (w *Worker) processOnce(ctx context.Context) error {
	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(w.concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			w.handle(gctx, msg)
			return nil
		})
	}
	return g.Wait()
}

// handle always settles msg: it is acked after success, after a retry is
// enqueued, or after it is dead-lettered. Only a failed settle leaves it
// pending for XAUTOCLAIM.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	job, reason, detail := parseMessage(msg)
	if reason != "" {
		w.deadLetter(ctx, msg, reason, detail)
		w.ack(ctx, msg.ID)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	err := w.processor.Index(jobCtx, job)
	cancel()

	if err == nil {
		w.metrics.RecordIngest(metrics.OutcomeSuccess)
		w.ack(ctx, msg.ID)
		return
	}

	w.metrics.RecordIngest(metrics.OutcomeFailed)
	attempt := job.Attempt + 1
	if attempt >= w.maxAttempts {
		w.logger.Error("ingest job exhausted retries",
			"image_id", job.ImageID,
			"attempts", attempt,
			"error", err,
		)
		w.deadLetter(ctx, msg, "max_attempts", err.Error())
		w.ack(ctx, msg.ID)
		return
	}

	w.logger.Warn("ingest job failed, requeueing",
		"image_id", job.ImageID,
		"attempt", attempt,
		"error", err,
	)
	job.Attempt = attempt
	if err := w.requeue(ctx, job); err != nil {
		w.logger.Error("failed to requeue job, leaving pending",
			"message_id", msg.ID,
			"error", err,
		)
		return
	}
	w.ack(ctx, msg.ID)
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

// parseMessage returns a non-empty reason when msg cannot be processed.
func parseMessage(msg redis.XMessage) (Job, string, string) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return Job{}, "invalid_format", "payload field missing or not a string"
	}
	job, err := decodeJob(payload)
	if err != nil {
		return Job{}, "unmarshal_error", err.Error()
	}
	if err := ValidateJob(job); err != nil {
		return Job{}, "validation_error", err.Error()
	}
	return job, "", ""
}

func (w *Worker) requeue(ctx context.Context, job Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	return w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"payload": payload},
	}).Err()
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering ingest job",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", msg.ID,
			"error", err,
		)
	}
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, id).Err(); err != nil {
		w.logger.Error("xack failed", "message_id", id, "error", err)
	}
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists" ||
		err.Error() == "BUSYGROUP")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
