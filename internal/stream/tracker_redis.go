package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StreamSync    = "tracker:sync"
	StreamSyncDLQ = "tracker:sync:dlq"
)

type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    log.With().Str("component", "redis_stream").Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume reads new entries for consumer until ctx is done. Entries whose handler
// fails stay pending for ReclaimPending.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(id string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.log.Error().Err(err).Str("stream", stream).Msg("stream read error")
				time.Sleep(time.Second)
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				s.handle(ctx, st.Stream, msg, handler)
			}
		}
	}
}

// ReclaimPending takes over entries idle longer than minIdle. Entries delivered
// maxDeliveries times or more are copied to dlq and acknowledged.
func (s *RedisStream) ReclaimPending(ctx context.Context, stream, dlq, consumer string, minIdle time.Duration, maxDeliveries int64, handler func(id string, data []byte) error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  s.group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error().Err(err).Str("stream", stream).Msg("error listing pending entries")
		}
		return
	}

	for _, p := range pending {
		claimed, err := s.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    s.group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		msg := claimed[0]

		if p.RetryCount >= maxDeliveries {
			s.log.Warn().Str("stream", stream).Str("id", p.ID).Int64("deliveries", p.RetryCount).Msg("moving entry to DLQ")
			if err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, Values: msg.Values}).Err(); err != nil {
				s.log.Error().Err(err).Str("id", p.ID).Msg("error moving entry to DLQ")
				continue
			}
			s.Ack(ctx, stream, p.ID)
			continue
		}

		s.handle(ctx, stream, msg, handler)
	}
}

func (s *RedisStream) handle(ctx context.Context, stream string, msg redis.XMessage, handler func(id string, data []byte) error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		s.log.Warn().Str("id", msg.ID).Msg("entry without data field, dropping")
		s.Ack(ctx, stream, msg.ID)
		return
	}

	if err := handler(msg.ID, []byte(data)); err != nil {
		s.log.Error().Err(err).Str("id", msg.ID).Msg("handler error")
		return
	}
	s.Ack(ctx, stream, msg.ID)
}

func (s *RedisStream) Ack(ctx context.Context, stream, id string) {
	if err := s.client.XAck(ctx, stream, s.group, id).Err(); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("error acknowledging entry")
	}
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
