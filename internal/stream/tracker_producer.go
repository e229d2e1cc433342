package stream

import (
	"context"
	"time"

	"tracker_server/core/port/out"

	"github.com/google/uuid"
)

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// PublishSync enqueues a sync job and returns its job ID.
func (p *Producer) PublishSync(ctx context.Context, job *out.SyncJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if _, err := p.stream.Publish(ctx, StreamSync, job); err != nil {
		return "", err
	}
	return job.JobID, nil
}

var _ out.SyncJobPublisher = (*Producer)(nil)
