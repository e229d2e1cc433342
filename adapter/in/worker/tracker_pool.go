package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tracker_server/core/port/out"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// =============================================================================
// go-pkgz/pool based sync worker pool
// =============================================================================

// JobProcessor runs one sync job.
type JobProcessor interface {
	Process(ctx context.Context, job *out.SyncJob) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	JobTimeout     time.Duration
	MaxRetries     int
	WorkerChanSize int
	BaseBackoff    time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		JobTimeout:     3 * time.Minute,
		MaxRetries:     3,
		WorkerChanSize: 100,
		BaseBackoff:    time.Second,
	}
}

// Message wraps a job with its delivery attempts.
type Message struct {
	Job     *out.SyncJob
	Retries int
}

// Pool runs sync jobs on a fixed set of workers.
type Pool struct {
	processor JobProcessor
	config    *PoolConfig

	pool *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	metrics *PoolMetrics
	log     zerolog.Logger

	// resubmit schedules a retry; replaced in tests.
	resubmit func(msg *Message, after time.Duration)

	started bool
	mu      sync.Mutex
}

// PoolMetrics holds pool metrics.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsDropped    int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	QueueSize      int32
}

// messageWorker implements pool.Worker.
type messageWorker struct {
	pool *Pool
}

func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(processor JobProcessor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	defaults := DefaultPoolConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.WorkerChanSize <= 0 {
		config.WorkerChanSize = defaults.WorkerChanSize
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = defaults.BaseBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		processor: processor,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &PoolMetrics{},
		log:       log.With().Str("component", "worker_pool").Logger(),
	}
	p.resubmit = func(msg *Message, after time.Duration) {
		time.AfterFunc(after, func() { p.submit(msg) })
	}
	return p
}

func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	// Sync jobs are long and sparse, so no batching.
	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to start pool")
		return err
	}
	p.started = true

	go p.metricsReporter()

	p.log.Info().
		Int("workers", p.config.Workers).
		Dur("job_timeout", p.config.JobTimeout).
		Msg("sync worker pool started")
	return nil
}

// Stop waits for running jobs, then cancels the pool.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool...")

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	if err := p.pool.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing pool")
	}
	p.cancel()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit queues a job. It returns false when the pool is not running.
func (p *Pool) Submit(job *out.SyncJob) bool {
	return p.submit(&Message{Job: job})
}

func (p *Pool) submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.pool == nil {
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		p.log.Warn().Str("job_id", msg.Job.JobID).Msg("job dropped, pool not running")
		return false
	}

	p.pool.Submit(msg)
	atomic.AddInt32(&p.metrics.QueueSize, 1)
	return true
}

// processJob runs a job under the job timeout. Retryable failures are resubmitted
// with exponential backoff and jitter; the pool itself never sees the error twice.
func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.QueueSize, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.processor.Process(jobCtx, msg.Job)
	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.Job.JobID).
		Str("user_id", msg.Job.UserID).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if IsRetryable(err) && msg.Retries < p.config.MaxRetries {
		msg.Retries++
		atomic.AddInt64(&p.metrics.JobsRetried, 1)

		base := time.Duration(1<<msg.Retries) * p.config.BaseBackoff
		jitter := time.Duration(rand.Intn(500)) * time.Millisecond
		p.resubmit(msg, base+jitter)
		return err
	}

	atomic.AddInt64(&p.metrics.JobsFailed, 1)
	p.log.Warn().
		Str("job_id", msg.Job.JobID).
		Str("user_id", msg.Job.UserID).
		Msg("job permanently failed")
	return err
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
		return
	}
	atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			m := p.GetMetrics()
			p.log.Info().
				Int64("processed", m.JobsProcessed).
				Int64("failed", m.JobsFailed).
				Int64("dropped", m.JobsDropped).
				Int64("retried", m.JobsRetried).
				Int64("avg_process_ms", m.AvgProcessTime).
				Int32("queue_size", m.QueueSize).
				Msg("worker pool metrics")
		}
	}
}

func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsDropped:    atomic.LoadInt64(&p.metrics.JobsDropped),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		QueueSize:      atomic.LoadInt32(&p.metrics.QueueSize),
	}
}
