package repository

import (
	"context"
	"sync"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/google/uuid"
)

const initialProgress = "Initializing..."

type StorageInterface interface {
	AddTask(ctx context.Context, kind string) (string, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	SetTask(ctx context.Context, id string, task models.Task) error
	UpdateTask(ctx context.Context, id string, fn func(task *models.Task)) error
	Sweep(ctx context.Context, olderThan time.Duration) int
}

type Config struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Storage is the process-wide task registry. Entries are only removed by Sweep.
type Storage struct {
	mu     sync.RWMutex
	db     map[string]models.Task
	logger logster.Logger
	now    func() time.Time
}

func NewStorage(logger logster.Logger) *Storage {
	return &Storage{
		db:     make(map[string]models.Task),
		logger: logger.WithField("Layer", "Repository"),
		now:    time.Now,
	}
}

// AddTask allocates a fresh id and registers it as running.
func (s *Storage) AddTask(ctx context.Context, kind string) (string, error) {
	select {
	default:
	case <-ctx.Done():
		s.logger.WithError(ctx.Err()).Errorf("AddTask: context expire")
		return "", ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	for {
		if _, taken := s.db[id]; !taken {
			break
		}
		id = uuid.New().String()
	}

	now := s.now()
	s.db[id] = models.Task{
		TaskId:    id,
		Kind:      kind,
		Status:    models.StatusRunning,
		Progress:  initialProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.logger.Infof("AddTask: task added with Id: %s", id)
	return id, nil
}

func (s *Storage) GetTask(ctx context.Context, id string) (models.Task, error) {
	select {
	default:
	case <-ctx.Done():
		return models.Task{}, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.db[id]
	if !ok {
		return models.Task{}, models.ErrTaskNotFound
	}
	return task, nil
}

// SetTask replaces the whole state of an existing task. Identity (id, kind,
// creation time) is kept from the registered entry.
func (s *Storage) SetTask(ctx context.Context, id string, task models.Task) error {
	return s.UpdateTask(ctx, id, func(t *models.Task) {
		kind, createdAt := t.Kind, t.CreatedAt
		*t = task
		t.TaskId = id
		t.Kind = kind
		t.CreatedAt = createdAt
	})
}

// UpdateTask applies fn to the task under the registry lock. A task that has
// reached a terminal state is never modified again.
func (s *Storage) UpdateTask(ctx context.Context, id string, fn func(task *models.Task)) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.db[id]
	if !ok {
		return models.ErrTaskNotFound
	}
	if task.Status.Terminal() {
		s.logger.Warnf("UpdateTask: task %s already %s", id, task.Status)
		return models.ErrTaskFinalized
	}

	fn(&task)
	task.TaskId = id
	task.UpdatedAt = s.now()
	s.db[id] = task
	return nil
}

// Sweep drops terminal tasks not updated for olderThan. Running tasks stay.
func (s *Storage) Sweep(ctx context.Context, olderThan time.Duration) int {
	if olderThan <= 0 || ctx.Err() != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for id, task := range s.db {
		if task.Status.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(s.db, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Infof("Sweep: removed %d finished tasks", removed)
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. A zero ttl disables it.
func (s *Storage) RunSweeper(ctx context.Context, cfg Config) error {
	if cfg.TTL <= 0 {
		s.logger.Infof("task sweeper disabled")
		<-ctx.Done()
		return nil
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = cfg.TTL
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, cfg.TTL)
		}
	}
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.db)
}
