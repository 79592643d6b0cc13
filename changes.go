package chronos

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gocloud.dev/pubsub"
)

// Register the change types using gob.Register(). This is required to identify
// the type of change in the notified event after decoding it using gob.
func init() {
	gob.Register(EntityCreated{})
	gob.Register(SpacetimeCreated{})
	gob.Register(FactRecorded{})
}

// A Change is one acknowledged mutation of the store: EntityCreated,
// SpacetimeCreated or FactRecorded.
type Change interface {
	// Subject returns the entity the change is about; for a fact, the entity
	// whose attribute was assigned.
	Subject() EntityID

	change()
}

// EntityCreated notifies about a newly registered entity.
type EntityCreated struct {
	Entity Entity
}

// SpacetimeCreated notifies about a newly created spacetime.
type SpacetimeCreated struct {
	Spacetime Spacetime
}

// FactRecorded notifies about a newly appended fact.
type FactRecorded struct {
	Fact Fact
}

func (c EntityCreated) Subject() EntityID    { return c.Entity.ID }
func (c SpacetimeCreated) Subject() EntityID { return c.Spacetime.ID }
func (c FactRecorded) Subject() EntityID     { return c.Fact.Entity }

func (EntityCreated) change()    {}
func (SpacetimeCreated) change() {}
func (FactRecorded) change()     {}

// Changed is the message a Store publishes for every Change (see
// WithPublisher). It is gob-encoded; the message metadata carries the project
// and the subject entity so that brokers can partition by key.
type Changed struct {
	Change
	Project ProjectID
	// The time, in UTC, the Store acknowledged the change.
	Timestamp time.Time
}

// Metadata keys of published messages.
const (
	MetadataProject = "project"
	MetadataEntity  = "entity"
)

// EncodeChanged encodes c into a pubsub message.
func EncodeChanged(c Changed) (*pubsub.Message, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(c); err != nil {
		return nil, fmt.Errorf("encode gob: %w", err)
	}
	return &pubsub.Message{
		Body: b.Bytes(),
		Metadata: map[string]string{
			MetadataProject: string(c.Project),
			MetadataEntity:  c.Subject().String(),
		},
	}, nil
}

// DecodeChanged decodes the body of a message published by a Store.
func DecodeChanged(body []byte) (Changed, error) {
	var c Changed
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&c); err != nil {
		return Changed{}, fmt.Errorf("decode gob: %w", err)
	}
	if c.Change == nil {
		return Changed{}, errors.New("decode gob: message carries no change")
	}
	return c, nil
}

// publish sends one message per change, in order. The changes were already
// acknowledged, so failures are logged and counted but never reported to the
// caller of the command.
func (s *Store) publish(ctx context.Context, project ProjectID, changes ...Change) {
	if s.topic == nil || len(changes) == 0 {
		return
	}
	// The command succeeded; a caller cancelling right afterwards must not
	// suppress its notifications.
	ctx = context.WithoutCancel(ctx)
	logger := component.Logger(ctx)
	now := time.Now().UTC()
	for _, c := range changes {
		msg, err := EncodeChanged(Changed{Change: c, Project: project, Timestamp: now})
		if err == nil {
			err = s.topic.Send(ctx, msg)
		}
		if err != nil {
			logger.Error("Couldn't publish change notification",
				slog.Any("error", err),
				slog.String("project", string(project)),
				slog.Any("entity", c.Subject()),
			)
			publishFailures.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(
				attribute.String("chronos.change", fmt.Sprintf("%T", c)),
			)))
		}
	}
}

// A ChangeHandler processes a decoded Changed notification.
type ChangeHandler func(ctx context.Context, c Changed) error

// Watch returns a component.Proc that continuously receives messages from the
// subscription, decodes them into Changed notifications and passes them to the
// handler.
//
// Messages are always acknowledged, even if they fail to decode; otherwise we
// might get stuck processing the same failed message. A failing handler stops
// the procedure.
func Watch(sub *pubsub.Subscription, h ChangeHandler) component.Proc {
	return func(l *component.L) {
		for l.Continue() {
			msg, err := sub.Receive(l.Context())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// we're shutting down
					return
				}
				l.Fatal(fmt.Errorf("receive: %w", err))
			}
			msg.Ack()

			changed, err := DecodeChanged(msg.Body)
			if err != nil {
				l.Errorf("Skipping undecodable message %s: %v", msg.LoggableID, err)
				continue
			}
			if err := h(l.Context(), changed); err != nil {
				l.Fatal(fmt.Errorf("process: %w", err))
			}
		}
	}
}
