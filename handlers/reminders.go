package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"reminder-server/metrics"
	"reminder-server/models"
)

// reminderFromCommand builds the candidate reminder of a register command.
func reminderFromCommand(cmd *models.Command) (models.Reminder, error) {
	if cmd.Name == "" {
		return models.Reminder{}, fmt.Errorf("%w: reminder should contain a name", models.ErrValidation)
	}

	id := uuid.NewString()
	if cmd.ID != nil {
		if *cmd.ID == "" {
			return models.Reminder{}, fmt.Errorf("%w: reminder should contain an id", models.ErrValidation)
		}
		id = *cmd.ID
	}

	fireAt, err := models.ParseDate(cmd.Date)
	if err != nil {
		return models.Reminder{}, err
	}
	return models.Reminder{ID: id, Name: cmd.Name, FireAt: fireAt}, nil
}

func (d *Dispatcher) register(ctx context.Context, cmd *models.Command) (string, error) {
	r, err := reminderFromCommand(cmd)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if v := d.sched.CanRegister(r); !v.OK() {
		return "", v.Err()
	}

	if _, err := d.repo.Save(ctx, r); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		d.log.Error().Err(err).Str("reminder_id", r.ID).Msg("saving reminder failed")
		return "", fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	if err := d.sched.Register(r); err != nil {
		// The fire time passed while saving. Drop both copies so that
		// disk and memory agree.
		d.sched.Unregister(r.ID)
		if derr := d.repo.Delete(ctx, r.ID); derr != nil {
			metrics.StoreErrors.WithLabelValues("delete").Inc()
			d.log.Error().Err(derr).Str("reminder_id", r.ID).Msg("deleting rejected reminder failed")
		}
		return "", err
	}

	d.log.Info().
		Str("reminder_id", r.ID).
		Str("name", r.Name).
		Time("fire_at", r.FireAt).
		Msg("reminder registered")
	return models.RegisteredReply(d.hub.Count()), nil
}

func (d *Dispatcher) list() (string, error) {
	data, err := json.Marshal(d.sched.ListActive())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unregister deletes a reminder's record and then cancels its timer. An id
// that is not pending is still a success. A failed delete leaves the
// reminder scheduled so memory and disk keep agreeing.
func (d *Dispatcher) unregister(ctx context.Context, cmd *models.Command) (string, error) {
	if cmd.ID == nil || *cmd.ID == "" {
		return "", fmt.Errorf("%w: reminder should contain an id", models.ErrValidation)
	}
	id := *cmd.ID

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.repo.Delete(ctx, id); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		d.log.Error().Err(err).Str("reminder_id", id).Msg("deleting unregistered reminder failed")
		return "", fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	pending := d.sched.Unregister(id)

	d.log.Info().Str("reminder_id", id).Bool("was_pending", pending).Msg("reminder unregistered")
	return models.UnregisteredReply(id), nil
}
