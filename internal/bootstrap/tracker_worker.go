package bootstrap

import (
	"context"
	"errors"

	"tracker_server/adapter/in/worker"
	"tracker_server/config"
	"tracker_server/internal/stream"

	"github.com/rs/zerolog"
)

var ErrStreamUnavailable = errors.New("worker mode requires REDIS_URL")

// Worker consumes queued sync jobs from the Redis stream.
type Worker struct {
	pool     *worker.Pool
	consumer *stream.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config, deps *Dependencies) (*Worker, error) {
	if deps.Stream == nil {
		return nil, ErrStreamUnavailable
	}

	zlog := newZerolog(cfg, "worker")

	processor := worker.NewSyncProcessor(deps.Sync, zlog)
	pool := worker.NewPool(processor, &worker.PoolConfig{
		Workers:        cfg.WorkerCount,
		JobTimeout:     cfg.JobTimeout,
		MaxRetries:     cfg.WorkerMaxRetries,
		WorkerChanSize: cfg.WorkerQueueSize,
	}, zlog)

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		pool:     pool,
		consumer: stream.NewConsumer(deps.Stream, pool, cfg.WorkerID),
		ctx:      ctx,
		cancel:   cancel,
		zlog:     zlog,
	}, nil
}

// Start starts the pool and the stream consumer, then returns.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}
	if err := w.consumer.Start(w.ctx); err != nil {
		w.pool.Stop()
		return err
	}
	w.zlog.Info().Msg("worker started")
	return nil
}

// Stop stops consuming first so no new jobs arrive while the pool drains.
func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.zlog.Info().Msg("worker stopped")
}
