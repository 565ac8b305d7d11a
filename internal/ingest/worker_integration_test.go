//go:build integration

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/photovault/photovault/internal/testutil"
)

type recordingProcessor struct {
	mu    sync.Mutex
	jobs  []Job
	fail  bool
	calls int
}

func (p *recordingProcessor) Index(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return errors.New("index offline")
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingProcessor) snapshot() (int, []Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]Job(nil), p.jobs...)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	if err := testutil.FlushRedis(context.Background(), client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

func startWorker(t *testing.T, client *redis.Client, p Processor) *Worker {
	t.Helper()

	w := NewWorker(client, p, nil, NewConsumerID(), nil)
	w.SetBlockTimeout(100 * time.Millisecond)
	go func() { _ = w.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.Shutdown(ctx)
	})
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_ProcessesPublishedJobs(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	p := &recordingProcessor{}
	startWorker(t, client, p)

	pub := NewPublisher(client, nil)
	for _, id := range []string{"img-1", "img-2", "img-3"} {
		if err := pub.Submit(ctx, Job{ImageID: id, OwnerID: "user-1", Caption: "caption " + id}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	waitFor(t, func() bool {
		_, jobs := p.snapshot()
		return len(jobs) == 3
	})

	waitFor(t, func() bool {
		pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
		return err == nil && pending.Count == 0
	})
}

func TestWorker_DeadLettersAfterMaxAttempts(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	p := &recordingProcessor{fail: true}
	startWorker(t, client, p)

	if err := NewPublisher(client, nil).Submit(ctx, Job{ImageID: "img-1", OwnerID: "u", Caption: "c"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, func() bool {
		n, err := client.XLen(ctx, DeadLetterStreamKey).Result()
		return err == nil && n == 1
	})

	calls, _ := p.snapshot()
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}

	entries, err := client.XRange(ctx, DeadLetterStreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if entries[0].Values["reason"] != "max_attempts" {
		t.Errorf("reason = %v, want max_attempts", entries[0].Values["reason"])
	}
}

func TestWorker_DeadLettersPoisonMessage(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	p := &recordingProcessor{}
	startWorker(t, client, p)

	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"payload": "not-json"},
	}).Err(); err != nil {
		t.Fatalf("XAdd: %v", err)
	}

	waitFor(t, func() bool {
		n, err := client.XLen(ctx, DeadLetterStreamKey).Result()
		return err == nil && n == 1
	})
	if calls, _ := p.snapshot(); calls != 0 {
		t.Errorf("poison message reached processor %d times", calls)
	}
}
