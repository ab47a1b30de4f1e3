package drone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/mailbox"
	"github.com/KramerO/ollama-flow-sub002/internal/metrics"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"go.uber.org/zap"
)

// DefaultPollInterval is the sleep between empty mailbox fetches.
const DefaultPollInterval = 500 * time.Millisecond

// Booker reserves a drone for one task at a time. Pools implement it so that
// mailbox tasks and workflow tasks never run on the same drone together.
type Booker interface {
	AcquireDrone(id, task string) bool
	Release(ctx context.Context, d *Drone) error
}

// LoopOpts configures a drone's polling loop.
type LoopOpts struct {
	Interval time.Duration
	Logger   *zap.Logger
	// Booker, when set, must grant the drone before a task message is handled.
	Booker Booker
}

// errBusy stops a drain while the drone is booked elsewhere.
var errBusy = errors.New("drone busy")

// Run drains the drone's mailbox until ctx is cancelled. For each pending
// task it runs the handler, sends the reply to the sender, and only then
// marks the task processed: a crash between the two redelivers the task
// instead of losing it. Handler failures produce an error reply and do not
// stop the loop.
func (d *Drone) Run(ctx context.Context, store mailbox.Store, opts LoopOpts) error {
	if store == nil {
		return fmt.Errorf("drone %s: mailbox is required", d.ID)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("drone_id", d.ID), zap.String("role", string(d.Role)))
	log.Debug("drone loop started", zap.Duration("interval", interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("drone loop stopped")
			return nil
		case <-timer.C:
		}

		handled, err := d.Drain(ctx, store, LoopOpts{Logger: log, Booker: opts.Booker})
		if err != nil && ctx.Err() == nil {
			log.Warn("mailbox drain failed", zap.Error(err))
		}
		if handled > 0 && err == nil {
			timer.Reset(0)
			continue
		}
		timer.Reset(interval)
	}
}

// Drain processes every message currently pending for the drone, in sequence
// order. It stops at the first store error, leaving the rest pending, and
// stops quietly when opts.Booker reports the drone busy.
func (d *Drone) Drain(ctx context.Context, store mailbox.Store, opts LoopOpts) (int, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	msgs, err := store.FetchPending(ctx, d.ID)
	if err != nil {
		return 0, err
	}

	handled := 0
	for i := range msgs {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		err := d.process(ctx, store, &msgs[i], opts.Booker, log)
		if errors.Is(err, errBusy) {
			log.Debug("drone booked elsewhere, leaving mailbox pending", zap.Uint("message_id", msgs[i].ID))
			return handled, nil
		}
		if err != nil {
			return handled, err
		}
		handled++
	}
	return handled, nil
}

func (d *Drone) process(ctx context.Context, store mailbox.Store, msg *models.Message, booker Booker, log *zap.Logger) error {
	log = log.With(zap.Uint("message_id", msg.ID), zap.String("sender_id", msg.SenderID))

	if msg.Type != mailbox.TypeTask {
		log.Debug("ignoring non-task message", zap.String("type", msg.Type))
		metrics.MessagesHandled.WithLabelValues(string(d.Role), "ignored").Inc()
		return store.MarkProcessed(ctx, msg.ID)
	}

	if booker != nil {
		if !booker.AcquireDrone(d.ID, fmt.Sprintf("mailbox/%d", msg.ID)) {
			return errBusy
		}
	}
	replyType := mailbox.TypeResult
	var content string
	task, err := DecodeTask(msg.Content)
	var res Result
	if err == nil {
		res, err = d.Handle(ctx, task)
	}
	if booker != nil {
		if relErr := booker.Release(context.WithoutCancel(ctx), d); relErr != nil {
			log.Warn("release after mailbox task failed", zap.Error(relErr))
		}
	}
	if err == nil {
		content, err = EncodeResult(res)
	}
	if err != nil {
		log.Warn("handler failed", zap.Error(err))
		metrics.MessagesHandled.WithLabelValues(string(d.Role), "error").Inc()
		replyType = mailbox.TypeError
		content = err.Error()
	} else {
		metrics.MessagesHandled.WithLabelValues(string(d.Role), "ok").Inc()
	}

	correlation := msg.CorrelationID
	if correlation == "" {
		correlation = fmt.Sprintf("msg-%d", msg.ID)
	}
	if _, err := store.Enqueue(ctx, d.ID, msg.SenderID, replyType, content, mailbox.SendOpts{CorrelationID: correlation}); err != nil {
		return fmt.Errorf("drone %s: reply to %d: %w", d.ID, msg.ID, err)
	}
	if err := store.MarkProcessed(ctx, msg.ID); err != nil {
		return fmt.Errorf("drone %s: mark %d: %w", d.ID, msg.ID, err)
	}
	return nil
}
