package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/JonnyShabli/registry-mailer/pkg/logster"
)

var (
	ErrPoolBusy   = errors.New("worker pool queue is full")
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// Job is a unit of background work. It owns its own context.
type Job func()

// WorkerPoolInterface is the seam between job submission and execution.
// AddJob never blocks the caller. Once shutdown has begun AddJob fails with
// ErrPoolClosed.
type WorkerPoolInterface interface {
	AddJob(job Job) error
	Wait()
}

type Config struct {
	NumWorkers int `yaml:"num_workers"`
	QueueSize  int `yaml:"queue_size"`
}

// Spawner runs every job on its own goroutine, with no upper bound.
type Spawner struct {
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	logger  logster.Logger
}

func NewSpawner(logger logster.Logger) *Spawner {
	return &Spawner{logger: logger}
}

func (s *Spawner) AddJob(job Job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrPoolClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		job()
	}()
	s.logger.Debugf("job spawned")
	return nil
}

// Wait refuses further jobs and blocks until every spawned job has returned.
func (s *Spawner) Wait() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// WorkerPool runs jobs on a fixed number of workers fed by a buffered queue.
type WorkerPool struct {
	name       string
	numWorkers int
	In         chan Job
	wg         *sync.WaitGroup
	pending    sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	logger     logster.Logger
}

func NewWorkerPool(cfg Config, logger logster.Logger, name string) *WorkerPool {
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	logger.Infof("%s pool created with %d workers, queue %d", name, numWorkers, queueSize)
	return &WorkerPool{
		name:       name,
		numWorkers: numWorkers,
		In:         make(chan Job, queueSize),
		wg:         &sync.WaitGroup{},
		logger:     logger,
	}
}

// AddJob enqueues job or fails with ErrPoolBusy when the queue is full.
func (wp *WorkerPool) AddJob(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrPoolClosed
	}
	wp.pending.Add(1)
	select {
	case wp.In <- job:
		wp.logger.Debugf("job queued on %s pool", wp.name)
		return nil
	default:
		wp.pending.Done()
		return ErrPoolBusy
	}
}

// Start launches the workers. They exit when ctx is done; queued jobs still
// run so that each of them can record its own outcome.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.Infof("Starting %s worker pool", wp.name)
	for range wp.numWorkers {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for {
				select {
				case job := <-wp.In:
					wp.run(job)
				case <-ctx.Done():
					wp.stop()
					wp.drain()
					return
				}
			}
		}()
	}

	go func() {
		wp.wg.Wait()
		wp.logger.Infof("Stopping %s worker pool", wp.name)
	}()
}

// stop refuses further jobs. Once it returns nothing new can enter the queue.
func (wp *WorkerPool) stop() {
	wp.mu.Lock()
	wp.stopped = true
	wp.mu.Unlock()
}

func (wp *WorkerPool) drain() {
	for {
		select {
		case job := <-wp.In:
			wp.run(job)
		default:
			return
		}
	}
}

func (wp *WorkerPool) run(job Job) {
	defer wp.pending.Done()
	job()
}

// Wait blocks until every accepted job has returned.
func (wp *WorkerPool) Wait() {
	wp.pending.Wait()
}
