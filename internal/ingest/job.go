// Package ingest turns captioned images into searchable vector records.
//
// The captioner's callback hands a Job to a Sink. With Redis the Sink is a
// stream Publisher drained by Worker; without it the Indexer runs inline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const maxCaptionLength = 4000

// Job asks for one image caption to be embedded and indexed.
type Job struct {
	ImageID  string `json:"iid"`
	OwnerID  string `json:"oid"`
	Filename string `json:"fn,omitempty"`
	Caption  string `json:"c"`
	// Attempt counts prior failed deliveries.
	Attempt int `json:"a,omitempty"`
}

// Sink accepts jobs for indexing.
type Sink interface {
	Submit(ctx context.Context, job Job) error
}

// ValidateJob validates job fields.
func ValidateJob(job Job) error {
	if job.ImageID == "" {
		return fmt.Errorf("image_id is required")
	}
	if job.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if strings.TrimSpace(job.Caption) == "" {
		return fmt.Errorf("caption is required")
	}
	if len(job.Caption) > maxCaptionLength {
		return fmt.Errorf("caption too long")
	}
	if job.Attempt < 0 {
		return fmt.Errorf("attempt must not be negative")
	}
	return nil
}

func encodeJob(job Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	return string(data), nil
}

func decodeJob(payload string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
