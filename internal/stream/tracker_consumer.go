package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tracker_server/core/port/out"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
)

const (
	reclaimInterval = 30 * time.Second
	reclaimMinIdle  = 2 * time.Minute
	maxDeliveries   = 3
)

var errPoolRejected = errors.New("worker pool rejected job")

// JobSubmitter accepts decoded sync jobs.
type JobSubmitter interface {
	Submit(job *out.SyncJob) bool
}

type Consumer struct {
	stream *RedisStream
	pool   JobSubmitter
	name   string
}

func NewConsumer(stream *RedisStream, pool JobSubmitter, name string) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
	}
}

// Start creates the consumer group and consumes in the background until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, StreamSync); err != nil {
		return fmt.Errorf("create group for %s: %w", StreamSync, err)
	}

	go c.stream.Consume(ctx, StreamSync, c.name, c.handle)
	go c.reclaimLoop(ctx)
	return nil
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.stream.ReclaimPending(ctx, StreamSync, StreamSyncDLQ, c.name, reclaimMinIdle, maxDeliveries, c.handle)
		}
	}
}

// handle hands the job to the pool. A malformed job is acknowledged and dropped.
func (c *Consumer) handle(id string, data []byte) error {
	job, err := decodeJob(data)
	if err != nil {
		c.stream.log.Warn().Err(err).Str("id", id).Msg("dropping malformed sync job")
		return nil
	}
	if !c.pool.Submit(job) {
		return errPoolRejected
	}
	return nil
}

func decodeJob(data []byte) (*out.SyncJob, error) {
	var job out.SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(job.UserID); err != nil {
		return nil, fmt.Errorf("invalid user_id %q: %w", job.UserID, err)
	}
	return &job, nil
}
