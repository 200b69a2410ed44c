package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/fleetforge/fleetserver/internal/db"
	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/telemetry"
)

// ErrHandlerFailure tags errors returned by a state handler, as opposed
// to persistence or acquisition failures.
var ErrHandlerFailure = errors.New("state handler failed")

// Options tunes a controller's reconciliation loop.
type Options struct {
	// Interval is the target time between iterations
	Interval time.Duration

	// MaxConcurrency bounds how many objects one iteration handles in
	// parallel; each worker holds its own transaction guard
	MaxConcurrency int

	// ObjectTimeout bounds one object's tick, including handler I/O. A
	// tick past the deadline aborts its transaction and is retried on
	// the next iteration.
	ObjectTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.ObjectTimeout <= 0 {
		opts.ObjectTimeout = time.Minute
	}
	return opts
}

// Controller reconciles every object of one kind: per iteration it
// enqueues all live objects, then for each one loads its state inside a
// fresh transaction, invokes the kind's handler, and commits the
// verdict. Objects are independent; an error in one tick never affects
// another.
type Controller[C any] struct {
	pool    db.Beginner
	io      IO[C]
	handler Handler[C]
	lock    WorkLock
	opts    Options
	metrics *telemetry.ControllerMetrics
	log     *slog.Logger
}

// New constructs a controller from explicitly injected dependencies.
// metrics may be nil.
func New[C any](
	pool db.Beginner,
	io IO[C],
	handler Handler[C],
	lock WorkLock,
	opts Options,
	metrics *telemetry.ControllerMetrics,
) *Controller[C] {
	return &Controller[C]{
		pool:    pool,
		io:      io,
		handler: handler,
		lock:    lock,
		opts:    opts.withDefaults(),
		metrics: metrics,
		log:     slog.With("controller", io.Kind().String()),
	}
}

// Kind returns the object kind this controller reconciles.
func (c *Controller[C]) Kind() fleet.Kind {
	return c.io.Kind()
}

// Run executes iterations until ctx is cancelled, sleeping the
// configured interval (minus elapsed time, plus jitter) between them.
// The jitter is larger after a successful iteration than after a skipped
// one, which biases the next work-lock acquisition towards a different
// instance.
func (c *Controller[C]) Run(ctx context.Context) {
	maxJitter := c.opts.Interval / 3
	skipJitter := c.opts.Interval / 5

	for {
		start := time.Now()
		result, err := c.RunIteration(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error("controller iteration failed", "error", err)
		}

		jitterRange := maxJitter
		if result.Skipped {
			jitterRange = skipJitter
		}
		jitter := rand.N(jitterRange)

		sleep := c.opts.Interval - time.Since(start) + jitter
		if sleep < 0 {
			sleep = jitter
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			c.log.Info("controller stopping")
			return
		}
	}
}

// IterationResult summarizes one reconciliation iteration.
type IterationResult struct {
	// Skipped is true when the work lock was held elsewhere and the
	// iteration did nothing
	Skipped bool

	// Enqueued is how many objects were scheduled
	Enqueued int

	// Handled is how many objects had a tick executed
	Handled int

	// Errors is how many ticks failed (and will be retried next iteration)
	Errors int
}

// RunIteration performs a single reconciliation iteration: take the work
// lock, record the iteration, enqueue all live objects, then drain the
// queue through the handler with bounded concurrency.
func (c *Controller[C]) RunIteration(ctx context.Context) (IterationResult, error) {
	start := time.Now()
	var result IterationResult

	release, ok, err := c.lock.TryAcquire(ctx)
	if err != nil {
		return result, fmt.Errorf("work lock: %w", err)
	}
	if !ok {
		c.log.Debug("work lock held elsewhere, skipping iteration")
		result.Skipped = true
		c.metrics.RecordIteration(ctx, c.Kind().String(), true, time.Since(start))
		return result, nil
	}
	defer release()

	guard := db.NewTxGuard(c.pool)

	var iterationID int64
	err = guard.WithTransaction(ctx, func(tx pgx.Tx) error {
		iterationID, err = c.io.StartIteration(ctx, tx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("failed to start iteration: %w", err)
	}

	// The object list can change until we load each object, which is
	// fine: new objects are found by the next iteration, and nothing
	// removes objects outside this controller.
	err = guard.WithTransaction(ctx, func(tx pgx.Tx) error {
		ids, err := c.io.ListObjectIDs(ctx, tx)
		if err != nil {
			return err
		}
		result.Enqueued = len(ids)
		return c.io.EnqueueObjects(ctx, tx, ids, iterationID)
	})
	if err != nil {
		return result, fmt.Errorf("failed to enqueue objects: %w", err)
	}

	var queued []uuid.UUID
	err = guard.WithTransaction(ctx, func(tx pgx.Tx) error {
		queued, err = c.io.DequeueObjects(ctx, tx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("failed to dequeue objects: %w", err)
	}

	var errCount atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.opts.MaxConcurrency)
	for _, id := range queued {
		group.Go(func() error {
			if err := c.handleObject(groupCtx, id); err != nil {
				errCount.Add(1)
				c.log.Warn("object tick failed",
					"object_id", id,
					"error", err,
					"error_type", classifyTickError(err))
			}
			// Tick errors are isolated per object; they never abort
			// the iteration.
			return nil
		})
	}
	_ = group.Wait()

	result.Handled = len(queued)
	result.Errors = int(errCount.Load())
	c.metrics.RecordIteration(ctx, c.Kind().String(), false, time.Since(start))

	return result, nil
}

// handleObject executes one reconciliation tick for one object, fully
// contained in one transaction held by a fresh guard.
func (c *Controller[C]) handleObject(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ObjectTimeout)
	defer cancel()

	start := time.Now()
	guard := db.NewTxGuard(c.pool)

	outcomeKind, err := c.tick(ctx, guard, id)
	c.metrics.RecordObject(ctx, c.Kind().String(), string(outcomeKind), time.Since(start), classifyTickError(err))
	return err
}

func (c *Controller[C]) tick(ctx context.Context, guard *db.TxGuard, id uuid.UUID) (OutcomeKind, error) {
	scoped, err := guard.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer scoped.Rollback(ctx)

	obj, err := c.io.LoadObject(ctx, scoped.Tx(), id)
	if err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			// Already deleted between enqueue and handling; nothing to do.
			return "", nil
		}
		return "", err
	}

	state := obj.State
	outcome, handlerErr := c.handler.HandleObjectState(ctx, scoped.Tx(), obj, state)
	if handlerErr != nil {
		// Roll back everything the handler may have touched, then store
		// the failure on the row in a fresh transaction so operators can
		// see why the object is stuck.
		scoped.Rollback(ctx)
		recErr := guard.WithTransaction(ctx, func(tx pgx.Tx) error {
			return c.io.PersistOutcome(ctx, tx, id, record(outcome, handlerErr))
		})
		if recErr != nil {
			c.log.Warn("failed to record handler error", "object_id", id, "error", recErr)
		}
		return "", fmt.Errorf("%w: %w", ErrHandlerFailure, handlerErr)
	}

	switch outcome.Kind {
	case OutcomeTransition:
		next := outcome.Next
		if next.Equal(state) {
			c.log.Warn("transition to current state", "object_id", id, "state", next.String())
		}
		nextVersion := obj.StateVersion.Increment()
		if err := c.io.PersistControllerState(ctx, scoped.Tx(), id, obj.StateVersion, next, nextVersion); err != nil {
			return outcome.Kind, err
		}
		if err := c.io.AppendHistory(ctx, scoped.Tx(), id, next, nextVersion); err != nil {
			return outcome.Kind, err
		}
		if err := c.io.PersistOutcome(ctx, scoped.Tx(), id, record(outcome, nil)); err != nil {
			return outcome.Kind, err
		}
		c.log.Info("state transition",
			"object_id", id,
			"from", state.String(),
			"to", next.String(),
			"version", nextVersion.Counter)

	case OutcomeDeleted:
		if state.Name != fleet.StateDeleting {
			return outcome.Kind, fmt.Errorf("%w: deleted outcome from state %q", ErrHandlerFailure, state.Name)
		}
		if err := c.io.DeleteObject(ctx, scoped.Tx(), id); err != nil {
			return outcome.Kind, err
		}
		c.log.Info("object removed", "object_id", id)

	case OutcomeDoNothing, OutcomeWait:
		if err := c.io.PersistOutcome(ctx, scoped.Tx(), id, record(outcome, nil)); err != nil {
			return outcome.Kind, err
		}

	default:
		return outcome.Kind, fmt.Errorf("%w: unrecognized outcome %q", ErrHandlerFailure, outcome.Kind)
	}

	if err := scoped.Commit(ctx); err != nil {
		return outcome.Kind, fmt.Errorf("failed to commit tick: %w", err)
	}
	return outcome.Kind, nil
}

// classifyTickError maps a tick error onto the error taxonomy used in
// logs and metrics.
func classifyTickError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, db.ErrGuardBusy), errors.Is(err, db.ErrAcquire):
		return "acquire"
	case errors.Is(err, fleet.ErrStaleVersion):
		return "stale_write"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrHandlerFailure):
		return "handler"
	default:
		return "persistence"
	}
}
