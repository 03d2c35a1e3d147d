package service

import (
	"context"
	"time"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Outbox holds what a transaction staged for delivery after commit.
type Outbox struct {
	deliveries []delivery
	touched    []uuid.UUID
}

type delivery struct {
	event   event.NotificationEvent
	records []entity.Notification
}

// Touch marks users whose unread counts changed without a notification.
func (o *Outbox) Touch(userIDs ...uuid.UUID) {
	o.touched = append(o.touched, userIDs...)
}

func (o *Outbox) Events() []event.NotificationEvent {
	if o == nil {
		return nil
	}
	out := make([]event.NotificationEvent, 0, len(o.deliveries))
	for _, d := range o.deliveries {
		out = append(out, d.event)
	}
	return out
}

func (o *Outbox) Records() []entity.Notification {
	if o == nil {
		return nil
	}
	var out []entity.Notification
	for _, d := range o.deliveries {
		out = append(out, d.records...)
	}
	return out
}

// Dispatcher drives a mutation through classification, durable recording
// and post-commit broadcast.
type Dispatcher struct {
	authority   membership.Authority
	store       NotificationStore
	broadcaster broadcast.Broadcaster
	counts      CountInvalidator
	log         zerolog.Logger
}

func NewDispatcher(authority membership.Authority, store NotificationStore, broadcaster broadcast.Broadcaster, counts CountInvalidator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		authority:   authority,
		store:       store,
		broadcaster: broadcaster,
		counts:      counts,
		log:         log,
	}
}

// Stage classifies the mutations reading through tx and records their
// notifications in tx. Any error must abort the transaction.
func (d *Dispatcher) Stage(ctx context.Context, tx *gorm.DB, mutations ...event.Mutation) (*Outbox, error) {
	classifier := event.NewClassifier(d.authority.WithTx(tx))
	out := &Outbox{}

	for _, m := range mutations {
		events, err := classifier.Classify(ctx, m)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			records, err := d.store.Record(ctx, tx, ev)
			if err != nil {
				return nil, err
			}
			out.deliveries = append(out.deliveries, delivery{event: ev, records: records})
		}
	}
	return out, nil
}

const invalidateTimeout = 2 * time.Second

// Deliver must only be called once the staging transaction committed.
func (d *Dispatcher) Deliver(ctx context.Context, out *Outbox) {
	if out == nil {
		return
	}

	affected := append([]uuid.UUID(nil), out.touched...)
	for _, dl := range out.deliveries {
		if !dl.event.Persist {
			d.broadcaster.Broadcast(dl.event.Channel, dl.event.Name, dl.event.Payload)
			continue
		}
		for _, rec := range dl.records {
			payload := make(broadcast.Payload, len(dl.event.Payload)+2)
			for k, v := range dl.event.Payload {
				payload[k] = v
			}
			payload["notification_id"] = rec.ID.String()
			payload["created_at"] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
			d.broadcaster.Broadcast(channel.User(rec.RecipientID), dl.event.Name, payload)
			affected = append(affected, rec.RecipientID)
		}
	}

	if len(affected) > 0 {
		// The rows are committed; a client that already hung up must not
		// leave stale cached counts behind.
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
		d.counts.Invalidate(ictx, unique(affected)...)
		cancel()
	}
	d.log.Debug().Int("events", len(out.deliveries)).Int("invalidated", len(affected)).Msg("outbox delivered")
}
