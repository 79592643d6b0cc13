package chronos_test

import (
	"bytes"
	"context"
	"encoding/gob"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/memengine"
)

// feed connects a Store to an in-memory topic and returns a subscription to
// everything the Store publishes.
func feed(t *testing.T) (*chronos.Store, *pubsub.Subscription) {
	t.Helper()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	t.Cleanup(func() {
		ctx := context.Background()
		if err := sub.Shutdown(ctx); err != nil {
			t.Errorf("Subscription.Shutdown failed: %v", err)
		}
		if err := topic.Shutdown(ctx); err != nil {
			t.Errorf("Topic.Shutdown failed: %v", err)
		}
	})
	return chronos.New(memengine.New(), chronos.WithPublisher(topic)), sub
}

func receive(t *testing.T, sub *pubsub.Subscription) (chronos.Changed, *pubsub.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatal("Receive failed:", err)
	}
	msg.Ack()
	c, err := chronos.DecodeChanged(msg.Body)
	if err != nil {
		t.Fatal("DecodeChanged failed:", err)
	}
	return c, msg
}

func TestBootstrapPublishesChanges(t *testing.T) {
	ctx := t.Context()
	store, sub := feed(t)

	b, err := store.BootstrapProject(ctx, "feed", "Middle Earth")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}

	want := []chronos.Change{
		chronos.EntityCreated{Entity: b.Universe},
		chronos.SpacetimeCreated{Spacetime: b.Canon},
		chronos.FactRecorded{Fact: chronos.Fact{
			ID:        chronos.ComputeFactID(b.Universe.ID, b.Canon.ID, chronos.AttrName, 0),
			Entity:    b.Universe.ID,
			Spacetime: b.Canon.ID,
			Attribute: chronos.AttrName,
			Value:     chronos.String("Middle Earth"),
		}},
	}
	for i, w := range want {
		c, msg := receive(t, sub)
		if diff := cmp.Diff(w, c.Change); diff != "" {
			t.Errorf("change #%d mismatch (-want +got):\n%s", i, diff)
		}
		if c.Project != "feed" {
			t.Errorf("change #%d: Project = %q, want %q", i, c.Project, "feed")
		}
		if c.Timestamp.IsZero() || c.Timestamp.Location() != time.UTC {
			t.Errorf("change #%d: Timestamp = %v, want a UTC time", i, c.Timestamp)
		}
		wantMetadata := map[string]string{
			chronos.MetadataProject: "feed",
			chronos.MetadataEntity:  w.Subject().String(),
		}
		if diff := cmp.Diff(wantMetadata, msg.Metadata); diff != "" {
			t.Errorf("change #%d metadata mismatch (-want +got):\n%s", i, diff)
		}
	}

	// A bootstrapped project changes nothing, so the next message must be the
	// fact recorded afterwards.
	if _, err := store.BootstrapProject(ctx, "feed", "Middle Earth"); err != nil {
		t.Fatal("BootstrapProject (again) failed:", err)
	}
	f, err := store.RecordFact(ctx, b.Universe.ID, b.Canon.ID, "age", chronos.Number(3), 10)
	if err != nil {
		t.Fatal("RecordFact failed:", err)
	}
	c, _ := receive(t, sub)
	if diff := cmp.Diff(chronos.Change(chronos.FactRecorded{Fact: f}), c.Change); diff != "" {
		t.Errorf("change after re-bootstrap mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandsPublishChanges(t *testing.T) {
	ctx := t.Context()
	store, sub := feed(t)

	b, err := store.BootstrapProject(ctx, "feed", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	for range 3 {
		receive(t, sub)
	}

	planet, err := store.CreateEntity(ctx, "feed", chronos.TypePlanet, b.Universe.ID)
	if err != nil {
		t.Fatal("CreateEntity failed:", err)
	}
	if c, _ := receive(t, sub); c.Subject() != planet.ID {
		t.Errorf("CreateEntity published a change about %v, want %v", c.Subject(), planet.ID)
	}

	st, err := store.CreateSpacetime(ctx, "feed", "What If", b.Canon.ID, 5)
	if err != nil {
		t.Fatal("CreateSpacetime failed:", err)
	}
	c, _ := receive(t, sub)
	if diff := cmp.Diff(chronos.Change(chronos.SpacetimeCreated{Spacetime: st}), c.Change); diff != "" {
		t.Errorf("CreateSpacetime change mismatch (-want +got):\n%s", diff)
	}

	// Failed commands publish nothing.
	if _, err := store.CreateEntity(ctx, "feed", chronos.TypePlanet, chronos.NewEntityID()); err == nil {
		t.Fatal("CreateEntity(unknown parent) succeeded")
	}
	f, err := store.RecordFact(ctx, planet.ID, st.ID, chronos.AttrName, chronos.String("Arda"), 6)
	if err != nil {
		t.Fatal("RecordFact failed:", err)
	}
	c, _ = receive(t, sub)
	if diff := cmp.Diff(chronos.Change(chronos.FactRecorded{Fact: f}), c.Change); diff != "" {
		t.Errorf("RecordFact change mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeChangedRejectsGarbage(t *testing.T) {
	if _, err := chronos.DecodeChanged([]byte("not gob")); err == nil {
		t.Errorf("DecodeChanged(garbage) succeeded, want error")
	}
	// A well-formed message without a change.
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(chronos.Changed{Project: "p", Timestamp: time.Now()}); err != nil {
		t.Fatal("Encode failed:", err)
	}
	if _, err := chronos.DecodeChanged(b.Bytes()); err == nil {
		t.Errorf("DecodeChanged(no change) succeeded, want error")
	}
}
