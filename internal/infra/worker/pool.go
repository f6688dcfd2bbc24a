// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type Task func(ctx context.Context) error

// ShardedPool runs tasks on a fixed set of workers. Tasks submitted with the
// same key always land on the same worker, so they run one at a time and in
// submission order. Different keys proceed in parallel.
type ShardedPool struct {
	wg     sync.WaitGroup
	shards []chan Task
	quit   chan struct{}
	once   sync.Once
	log    *zerolog.Logger
}

func NewShardedPool(workers, queueSize int, logger *zerolog.Logger) *ShardedPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	shards := make([]chan Task, workers)
	for i := range shards {
		shards[i] = make(chan Task, queueSize)
	}
	return &ShardedPool{shards: shards, quit: make(chan struct{}), log: logger}
}

func (p *ShardedPool) Workers() int { return len(p.shards) }

func (p *ShardedPool) Start(ctx context.Context) {
	for i := range p.shards {
		p.wg.Add(1)
		go func(id int, jobs <-chan Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-jobs:
					p.run(ctx, id, task)
				}
			}
		}(i, p.shards[i])
	}
}

func (p *ShardedPool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("worker task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("worker task error")
	}
}

// Stop signals workers to exit after their current task and waits for them.
// Queued tasks are dropped.
func (p *ShardedPool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit queues task on the shard owning key. When that shard is full it waits
// for room, so a slow task pushes back on the caller instead of losing work.
// It gives up when ctx ends or the pool stops.
func (p *ShardedPool) Submit(ctx context.Context, key int64, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}
	select {
	case p.shards[p.shardOf(key)] <- task:
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ShardedPool) shardOf(key int64) int {
	u := uint64(key)
	return int(u % uint64(len(p.shards)))
}
