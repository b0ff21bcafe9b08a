package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"reminder-server/logx"
	"reminder-server/metrics"
	"reminder-server/models"
	"reminder-server/scheduler"
	"reminder-server/store"
)

const (
	storeTimeout = 5 * time.Second

	deleteInitialBackoff = 50 * time.Millisecond
	deleteMaxBackoff     = 500 * time.Millisecond
	deleteMaxElapsed     = 2 * time.Second
)

// Dispatcher turns client commands into scheduler and repository calls and
// broadcasts reminders to the hub when they fire.
type Dispatcher struct {
	sched *scheduler.Scheduler
	hub   *Hub
	repo  store.Repository
	log   zerolog.Logger

	opts     WSOptions
	upgrader websocket.Upgrader

	// mu serializes every repository write that has to stay in step with
	// the scheduler: register, unregister and the delete after a fire.
	mu sync.Mutex

	started   time.Time
	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once

	firedTemplate string
	unsubscribe   func()
	newBackOff    func() backoff.BackOff
}

func NewDispatcher(sched *scheduler.Scheduler, hub *Hub, repo store.Repository, log zerolog.Logger, opts WSOptions) *Dispatcher {
	d := &Dispatcher{
		sched:    sched,
		hub:      hub,
		repo:     repo,
		log:      logx.Component(log, "dispatcher"),
		opts:     opts.withDefaults(),
		upgrader: newUpgrader(),
		started:  time.Now(),
		ready:    make(chan struct{}),

		firedTemplate: models.DefaultFiredTemplate,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(deleteInitialBackoff),
				backoff.WithMaxInterval(deleteMaxBackoff),
				backoff.WithMaxElapsedTime(deleteMaxElapsed),
			)
		},
	}
	d.unsubscribe = sched.Subscribe(d.onFire)
	return d
}

// Start reloads the stored reminders. Expired ones are deleted, the rest
// are scheduled, and only then does Handle begin serving commands. Any
// repository error aborts startup.
func (d *Dispatcher) Start(ctx context.Context) error {
	reminders, err := d.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("loading reminders: %w", err)
	}

	var scheduled, expired int
	for _, r := range reminders {
		if err := d.sched.Register(r); err != nil {
			if err := d.repo.Delete(ctx, r.ID); err != nil {
				return fmt.Errorf("deleting expired reminder %s: %w", r.ID, err)
			}
			expired++
			d.log.Debug().Str("reminder_id", r.ID).Str("reason", err.Error()).Msg("dropped stored reminder")
			continue
		}
		scheduled++
	}

	d.readyOnce.Do(func() { close(d.ready) })
	d.log.Info().
		Int("scheduled", scheduled).
		Int("expired", expired).
		Msg("reminders reloaded")
	return nil
}

// SetFiredTemplate changes the broadcast text, see models.RenderFired. It
// must be called before Start.
func (d *Dispatcher) SetFiredTemplate(tmpl string) {
	if tmpl != "" {
		d.firedTemplate = tmpl
	}
}

// Ready is closed once Start has finished.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.ready
}

// Handle processes one raw command and returns the reply for its sender.
// It waits for Start to finish first.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) string {
	select {
	case <-d.ready:
	case <-ctx.Done():
		return models.ErrorReply(ctx.Err())
	}

	cmd, err := models.ParseCommand(raw)
	if err != nil {
		return d.fail("parse", err)
	}

	var reply string
	switch cmd.Type {
	case models.CommandRegisterReminder:
		reply, err = d.register(ctx, cmd)
	case models.CommandListReminders:
		reply, err = d.list()
	case models.CommandUnregisterReminder:
		reply, err = d.unregister(ctx, cmd)
	case models.CommandNow:
		reply = models.NowReply(d.sched.Now())
	default:
		d.log.Debug().Str("type", cmd.Type).Msg("unknown message type")
		return d.fail("unknown", models.ErrUnknownCommand)
	}

	if err != nil {
		return d.fail(cmd.Type, err)
	}
	metrics.Commands.WithLabelValues(cmd.Type).Inc()
	return reply
}

func (d *Dispatcher) fail(commandType string, err error) string {
	metrics.Commands.WithLabelValues(commandType).Inc()
	metrics.CommandErrors.WithLabelValues(errorKind(err)).Inc()
	d.log.Debug().Err(err).Str("type", commandType).Msg("command failed")
	return models.ErrorReply(err)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrParse):
		return "parse"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, models.ErrAlreadyExpired):
		return "expired"
	case errors.Is(err, models.ErrPersistence):
		return "persistence"
	case errors.Is(err, models.ErrUnknownCommand):
		return "unknown_command"
	default:
		return "other"
	}
}

func (d *Dispatcher) onFire(r models.Reminder) {
	sent := d.hub.Broadcast([]byte(models.RenderFired(d.firedTemplate, r)))
	d.log.Info().
		Str("reminder_id", r.ID).
		Str("name", r.Name).
		Int("delivered", sent).
		Msg("reminder broadcast")

	d.deleteFired(r)
}

// deleteFired removes a fired reminder from the repository, retrying with
// backoff. A newer reminder registered under the same id in the meantime
// keeps its record.
func (d *Dispatcher) deleteFired(r models.Reminder) {
	op := func() error {
		d.mu.Lock()
		defer d.mu.Unlock()

		if _, pending := d.sched.Get(r.ID); pending {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return d.repo.Delete(ctx, r.ID)
	}

	err := backoff.RetryNotify(op, d.newBackOff(), func(err error, next time.Duration) {
		d.log.Warn().Err(err).Str("reminder_id", r.ID).Dur("retry_in", next).Msg("deleting fired reminder failed")
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		d.log.Error().Err(err).Str("reminder_id", r.ID).Msg("giving up deleting fired reminder")
	}
}

// Close stops firing, drops every pending timer and disconnects all
// clients. The repository is left to its owner.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.unsubscribe()
		d.sched.Stop()
		d.hub.CloseAll()
	})
}
