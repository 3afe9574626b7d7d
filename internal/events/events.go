// Package events implements the in-process publish/subscribe fan-out that
// feeds job and log change notifications to interested subscribers. It is
// transport-agnostic: Hub knows nothing about websockets or JSON wire
// framing, only about Subscribers and the topics they're bound to. A
// gorilla/websocket adapter (internal/wsapi) is the concrete transport that
// owns the duplex connection and drains a Subscriber's Send channel.
package events

import (
	"context"
	"sync"
	"time"
)

// Envelope is one fan-out frame: a topic name and its JSON-serializable
// payload (JobEvent or LogEvent).
type Envelope struct {
	Topic   string
	Payload any
}

// JobEvent is published to job-user-<username> on Job persistence.
type JobEvent struct {
	JobID    string    `json:"job_id"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Modified time.Time `json:"modified"`
}

// LogEvent is published to job-log-<job_id> on Log persistence.
type LogEvent struct {
	LogID   string    `json:"log_id"`
	Time    time.Time `json:"time"`
	Content string    `json:"content"`
	Stream  string    `json:"stream"`
}

// JobUserTopic returns the subscriber-group name for a user's job dashboard.
func JobUserTopic(username string) string { return "job-user-" + username }

// JobLogTopic returns the subscriber-group name for a single job's live log view.
func JobLogTopic(jobID string) string { return "job-log-" + jobID }

// MetricsSink receives counters for published/dropped events. Implemented
// by internal/metrics; nil is safe to pass to NewHub.
type MetricsSink interface {
	EventPublished(topic string)
	EventDropped(topic string)
}

// Subscriber is a bounded delivery channel bound to a fixed set of topics.
// The transport adapter owns the connection; Hub only ever touches this
// struct's Send channel and Topics set.
type Subscriber struct {
	ID     string
	Send   chan Envelope
	Topics map[string]struct{}
}

// NewSubscriber returns a Subscriber with a bounded outgoing buffer.
func NewSubscriber(id string, topics []string, bufferSize int) *Subscriber {
	t := make(map[string]struct{}, len(topics))
	for _, tp := range topics {
		t[tp] = struct{}{}
	}
	return &Subscriber{ID: id, Send: make(chan Envelope, bufferSize), Topics: t}
}

// Hub fans Envelopes out to every Subscriber registered for the Envelope's
// topic. All mutation of the topic map happens on the single goroutine
// running Run; Publish only ever enqueues, and deliver only ever reads the
// map under a read lock — mirroring a single-writer event-loop hub with a
// lock held only around the broadcast read.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	publish    chan Envelope

	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}

	metrics MetricsSink
}

// NewHub returns a Hub. metrics may be nil.
func NewHub(metrics MetricsSink) *Hub {
	return &Hub{
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		publish:    make(chan Envelope, 256),
		topics:     make(map[string]map[*Subscriber]struct{}),
		metrics:    metrics,
	}
}

// Run drives the hub's event loop until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			h.mu.Lock()
			for topic := range sub.Topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[*Subscriber]struct{})
				}
				h.topics[topic][sub] = struct{}{}
			}
			h.mu.Unlock()
		case sub := <-h.unregister:
			h.mu.Lock()
			for topic := range sub.Topics {
				delete(h.topics[topic], sub)
			}
			h.mu.Unlock()
		case env := <-h.publish:
			h.deliver(env)
		}
	}
}

// Register adds sub to every topic it is bound to.
func (h *Hub) Register(sub *Subscriber) { h.register <- sub }

// Unregister removes sub from every topic it is bound to.
func (h *Hub) Unregister(sub *Subscriber) { h.unregister <- sub }

// Publish enqueues env for delivery. Best-effort: delivery failures (a full
// subscriber queue, a full hub queue) are dropped silently — fan-out is
// explicitly outside the durability contract; lost events are recoverable
// by the subscriber on reconnect via a replay snapshot.
func (h *Hub) Publish(env Envelope) {
	select {
	case h.publish <- env:
	default:
		if h.metrics != nil {
			h.metrics.EventDropped(env.Topic)
		}
	}
}

func (h *Hub) deliver(env Envelope) {
	h.mu.RLock()
	subs := h.topics[env.Topic]
	targets := make([]*Subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.Send <- env:
			if h.metrics != nil {
				h.metrics.EventPublished(env.Topic)
			}
		default:
			if h.metrics != nil {
				h.metrics.EventDropped(env.Topic)
			}
		}
	}
}
