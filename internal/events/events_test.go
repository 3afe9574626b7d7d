package events

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversToRegisteredSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	sub := NewSubscriber("s1", []string{JobUserTopic("alice")}, 4)
	hub.Register(sub)

	hub.Publish(Envelope{Topic: JobUserTopic("alice"), Payload: JobEvent{JobID: "j1"}})

	select {
	case env := <-sub.Send:
		job, ok := env.Payload.(JobEvent)
		if !ok || job.JobID != "j1" {
			t.Fatalf("unexpected payload: %#v", env.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestHubDoesNotDeliverToUnregisteredSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	sub := NewSubscriber("s1", []string{JobUserTopic("alice")}, 4)
	hub.Register(sub)
	hub.Unregister(sub)

	// Give the hub goroutine a chance to process the unregister before publishing.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(Envelope{Topic: JobUserTopic("alice"), Payload: JobEvent{JobID: "j1"}})

	select {
	case env := <-sub.Send:
		t.Fatalf("unexpected delivery after unregister: %#v", env)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHubDropsOnFullSubscriberQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dropped := make(chan string, 8)
	hub := NewHub(metricsFunc{dropped: dropped})
	go hub.Run(ctx)

	topic := JobLogTopic("job-1")
	sub := NewSubscriber("s1", []string{topic}, 1)
	hub.Register(sub)
	time.Sleep(50 * time.Millisecond)

	hub.Publish(Envelope{Topic: topic, Payload: LogEvent{LogID: "1"}})
	hub.Publish(Envelope{Topic: topic, Payload: LogEvent{LogID: "2"}})

	select {
	case topicName := <-dropped:
		if topicName != topic {
			t.Fatalf("dropped topic = %q, want %q", topicName, topic)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a dropped-event notification for the full subscriber queue")
	}
}

type metricsFunc struct {
	dropped chan string
}

func (m metricsFunc) EventPublished(topic string) {}
func (m metricsFunc) EventDropped(topic string)   { m.dropped <- topic }
