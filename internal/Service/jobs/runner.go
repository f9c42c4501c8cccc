package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/internal/repository"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/JonnyShabli/registry-mailer/pkg/workerpool"
)

// ProgressFunc records a progress line on the running task.
type ProgressFunc func(format string, args ...interface{})

// JobFunc is the body of a background job. A nil error completes the task
// with the returned outcome, anything else marks it failed.
type JobFunc func(ctx context.Context, taskId string, progress ProgressFunc) (models.Outcome, error)

type RunnerInterface interface {
	Submit(ctx context.Context, kind string, job JobFunc) (string, error)
	Launch(id string, job JobFunc) error
	Fail(id string, err error)
}

type Config struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Runner starts job bodies through a pool and translates their result into
// the terminal state of the task. It is the only place job errors are
// converted into task state.
type Runner struct {
	appCtx  context.Context
	db      repository.StorageInterface
	pool    workerpool.WorkerPoolInterface
	timeout time.Duration
	logger  logster.Logger
}

// NewRunner ties job lifetimes to appCtx, not to the request that started them.
func NewRunner(appCtx context.Context, db repository.StorageInterface, pool workerpool.WorkerPoolInterface, cfg Config, logger logster.Logger) *Runner {
	return &Runner{
		appCtx:  appCtx,
		db:      db,
		pool:    pool,
		timeout: cfg.Timeout,
		logger:  logger.WithField("Layer", "Runner"),
	}
}

// Submit registers a task of kind and schedules job on it.
func (r *Runner) Submit(ctx context.Context, kind string, job JobFunc) (string, error) {
	id, err := r.db.AddTask(ctx, kind)
	if err != nil {
		r.logger.WithError(err).Errorf("Submit: add task failed")
		return "", err
	}
	if err := r.Launch(id, job); err != nil {
		return "", err
	}
	return id, nil
}

// Launch schedules job on an already registered task. When the pool refuses
// it, the task is failed immediately and the pool error is returned.
func (r *Runner) Launch(id string, job JobFunc) error {
	log := r.logger.WithField("task_id", id)
	err := r.pool.AddJob(func() { r.run(id, job) })
	if err != nil {
		log.WithError(err).Errorf("Launch: job rejected")
		r.finish(id, models.Outcome{}, fmt.Errorf("job was not started: %w", err))
		return err
	}
	log.Infof("Launch: job scheduled")
	return nil
}

// Fail moves a registered task straight to the error state.
func (r *Runner) Fail(id string, err error) {
	r.finish(id, models.Outcome{}, err)
}

func (r *Runner) run(id string, job JobFunc) {
	ctx := r.appCtx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	log := r.logger.WithField("task_id", id)
	progress := func(format string, args ...interface{}) {
		text := fmt.Sprintf(format, args...)
		if err := r.db.UpdateTask(context.Background(), id, func(t *models.Task) {
			t.Progress = text
		}); err != nil {
			log.WithError(err).Warnf("progress update dropped")
		}
	}

	outcome, err := r.safeCall(ctx, id, job, progress)
	r.finish(id, outcome, err)
}

func (r *Runner) safeCall(ctx context.Context, id string, job JobFunc, progress ProgressFunc) (outcome models.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithField("task_id", id).Errorf("job panic: %v\n%s", p, debug.Stack())
			err = fmt.Errorf("internal error: %v", p)
		}
	}()
	return job(ctx, id, progress)
}

// finish records the terminal state. The registry write must survive the
// job context being cancelled, so it runs on a background context.
func (r *Runner) finish(id string, outcome models.Outcome, err error) {
	log := r.logger.WithField("task_id", id)
	update := func(t *models.Task) {
		t.Status = models.StatusComplete
		t.Message = outcome.Message
		t.FilePath = outcome.FilePath
		t.FileName = outcome.FileName
	}
	if err != nil {
		update = func(t *models.Task) {
			t.Status = models.StatusError
			t.Message = models.Describe(err)
		}
		log.WithError(err).WithField("kind", models.KindOf(err)).Errorf("job failed")
	} else {
		log.Infof("job complete: %s", outcome.Message)
	}

	if uerr := r.db.UpdateTask(context.Background(), id, update); uerr != nil {
		log.WithError(uerr).Errorf("finish: registry update failed")
	}
}
