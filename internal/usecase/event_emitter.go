package usecase

import (
	"context"
	"errors"
	"time"

	"zkcred/internal/domain"

	"github.com/sirupsen/logrus"
)

// EventEmitter records circuit lifecycle events. Without a repository the
// events are only logged.
type EventEmitter struct {
	Repo  CircuitEventRepository
	Clock Clock
	Log   logrus.FieldLogger
}

func NewEventEmitter(repo CircuitEventRepository, clock Clock, log logrus.FieldLogger) *EventEmitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EventEmitter{
		Repo:  repo,
		Clock: clock,
		Log:   log,
	}
}

func (e *EventEmitter) Emit(ctx context.Context, event domain.CircuitEvent) (domain.CircuitEvent, error) {
	if e == nil {
		return domain.CircuitEvent{}, errors.New("event emitter is nil")
	}
	if event.Type == "" || event.CircuitID == "" || event.Status == "" {
		return domain.CircuitEvent{}, errors.New("circuit event missing required fields")
	}
	if event.At.IsZero() {
		event.At = e.now()
	} else {
		event.At = event.At.UTC()
	}
	e.Log.WithFields(logrus.Fields{
		"event":      event.Type,
		"circuit_id": event.CircuitID,
		"status":     event.Status,
		"height":     event.Height,
	}).Info("circuit event")
	if e.Repo == nil {
		return event, nil
	}
	return e.Repo.Append(ctx, event)
}

func (e *EventEmitter) EmitRegistered(ctx context.Context, d domain.CircuitDescriptor) error {
	_, err := e.Emit(ctx, domain.CircuitEvent{
		Type:             domain.EventCircuitRegistered,
		CircuitID:        d.CircuitID,
		Version:          d.Version,
		Status:           d.Status,
		Height:           d.RegistrationHeight,
		VerifyingKeyHash: d.VerifyingKeyHash,
		At:               d.CreatedAt,
	})
	return err
}

func (e *EventEmitter) EmitTransition(ctx context.Context, d domain.CircuitDescriptor, to domain.CircuitStatus, reason string, at time.Time) error {
	var eventType domain.CircuitEventType
	switch to {
	case domain.CircuitActive:
		eventType = domain.EventCircuitActivated
	case domain.CircuitDeprecated:
		eventType = domain.EventCircuitDeprecated
	case domain.CircuitRevoked:
		eventType = domain.EventCircuitRevoked
	default:
		return errors.New("no event for status " + string(to))
	}
	_, err := e.Emit(ctx, domain.CircuitEvent{
		Type:      eventType,
		CircuitID: d.CircuitID,
		Version:   d.Version,
		Status:    to,
		Reason:    reason,
		Height:    d.RegistrationHeight,
		At:        at,
	})
	return err
}

func (e *EventEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock().UTC()
	}
	return time.Now().UTC()
}
