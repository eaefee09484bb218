package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/events"
	"github.com/recordkit/recordkit/internal/retry"
	"github.com/recordkit/recordkit/internal/store"
)

// Task is one unit of asynchronous work: a plain outbound activity event, or
// a workflow action carrying its trigger and persistent run row.
type Task struct {
	Tenant string
	Event  *events.Event

	// Set only for workflow actions.
	Trigger *domain.Trigger
	Action  domain.Action
	RunID   string
}

// Dispatcher executes tasks on a fixed worker pool so slow sinks never block
// the write path. Workflow actions get bounded retries and their run rows
// record the outcome; plain events rely on the publisher's own retry.
type Dispatcher struct {
	store     *store.Store
	publisher events.Publisher
	logger    *slog.Logger
	retryCfg  *retry.Config
	workers   int
	tasks     chan *Task
	quit      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func newDispatcher(st *store.Store, pub events.Publisher, logger *slog.Logger, workers, queueSize int, retryCfg *retry.Config) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &Dispatcher{
		store:     st,
		publisher: pub,
		logger:    logger,
		retryCfg:  retryCfg,
		workers:   workers,
		tasks:     make(chan *Task, queueSize),
		quit:      make(chan struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop signals the workers, drains queued tasks and waits for completion.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.quit) })
	d.wg.Wait()
}

// Enqueue hands a task to the pool without blocking. It reports false when
// the dispatcher is stopped or the queue is full; the caller marks the
// workflow run failed for dropped action tasks.
func (d *Dispatcher) Enqueue(t *Task) bool {
	select {
	case <-d.quit:
		return false
	default:
	}
	select {
	case d.tasks <- t:
		return true
	default:
		d.logger.Warn("dispatch queue full, dropping task",
			slog.String("tenant", t.Tenant),
			slog.String("event_type", t.Event.Type),
		)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.tasks:
			d.process(t)
		case <-d.quit:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case t := <-d.tasks:
					d.process(t)
				default:
					return
				}
			}
		}
	}
}

// process runs one task to completion. Dispatch work carries its own timeout
// rather than the originating request's context.
func (d *Dispatcher) process(t *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if t.Trigger == nil {
		if err := d.publisher.Publish(ctx, t.Event); err != nil {
			d.logger.Warn("activity event delivery failed",
				slog.String("tenant", t.Tenant),
				slog.String("event_type", t.Event.Type),
				slog.Any("error", err),
			)
		}
		return
	}
	d.runAction(ctx, t)
}

func (d *Dispatcher) runAction(ctx context.Context, t *Task) {
	attempts := 0
	err := retry.Do(ctx, d.retryCfg, func() error {
		attempts++
		return d.execute(ctx, t)
	})

	status := domain.RunSucceeded
	errMsg := ""
	if err != nil {
		status = domain.RunFailed
		errMsg = err.Error()
		d.logger.Warn("workflow action failed",
			slog.String("trigger", t.Trigger.Name),
			slog.String("action", string(t.Action.Type)),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
	}

	// The action context may already be dead; the run row update gets its own.
	updCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if uerr := d.store.Triggers.UpdateRun(updCtx, t.RunID, status, attempts, errMsg); uerr != nil {
		d.logger.Error("workflow run update failed",
			slog.String("run_id", t.RunID),
			slog.Any("error", uerr),
		)
	}
}

// execute performs a single attempt of a workflow action.
func (d *Dispatcher) execute(ctx context.Context, t *Task) error {
	switch t.Action.Type {
	case domain.ActionWebhook:
		return d.publisher.Publish(ctx, t.Event)
	case domain.ActionCreateTask, domain.ActionSendNotification:
		// No task or notification backend is wired in this deployment; the
		// action lands in the structured log and the run row records it.
		d.logger.Info("workflow action",
			slog.String("action", string(t.Action.Type)),
			slog.String("trigger", t.Trigger.Name),
			slog.String("object_id", t.Event.ObjectID),
			slog.Any("params", t.Action.Params),
		)
		return nil
	}
	return fmt.Errorf("unknown action type %q", t.Action.Type)
}
