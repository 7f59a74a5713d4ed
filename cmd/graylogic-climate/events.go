package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-climate/internal/api"
	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/mqtt"
)

// sinkQueueSize bounds the events waiting for MQTT and InfluxDB.
const sinkQueueSize = 256

// eventSink fans registry changes and command failures out to the
// WebSocket hub, MQTT and InfluxDB. mqtt and influx may be nil.
//
// The hub is fed inline; it never blocks. MQTT and InfluxDB writes run on
// one worker goroutine so a slow broker cannot hold up the registry's
// change delivery. Events arriving while the queue is full are dropped.
type eventSink struct {
	hub    *api.Hub
	mqtt   *mqtt.Client
	influx *influxdb.Client
	topics mqtt.Topics
	log    *logging.Logger

	mu     sync.Mutex // Protects closed and sends on queue
	closed bool
	queue  chan func()
	done   chan struct{}
}

func newEventSink(hub *api.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *eventSink {
	s := &eventSink{
		hub:    hub,
		mqtt:   mqttClient,
		influx: influxClient,
		log:    log,
		queue:  make(chan func(), sinkQueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *eventSink) run() {
	defer close(s.done)
	for fn := range s.queue {
		fn()
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (s *eventSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// enqueue hands fn to the worker without blocking.
func (s *eventSink) enqueue(what string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- fn:
	default:
		s.log.Warn("event queue full, dropping event", "event", what)
	}
}

// stateMessage is the retained MQTT payload for unit and outdoor state.
type stateMessage struct {
	EventID   string                    `json:"event_id"`
	Cause     device.ChangeKind         `json:"cause"`
	Timestamp time.Time                 `json:"timestamp"`
	Device    *device.DeviceUnit        `json:"device,omitempty"`
	Outdoor   *device.OutdoorConditions `json:"outdoor,omitempty"`
}

// commandMessage is the MQTT payload for a rolled-back command.
type commandMessage struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	command.Failure
}

// deviceChanged runs on the registry's change callback, one call at a time.
func (s *eventSink) deviceChanged(c device.Change) {
	s.hub.DeviceChanged(c)

	if s.mqtt == nil && s.influx == nil {
		return
	}
	s.enqueue(string(c.Kind), func() { s.persistChange(c) })
}

func (s *eventSink) persistChange(c device.Change) {
	if c.Sample != nil && s.influx != nil {
		s.influx.WriteTelemetry(c.Sample.DeviceID, c.Sample.SourceID, c.Sample.Fields, c.Sample.ObservedAt)
	}

	if s.mqtt == nil {
		return
	}
	msg := stateMessage{
		EventID:   uuid.NewString(),
		Cause:     c.Kind,
		Timestamp: time.Now().UTC(),
	}
	var topic string
	switch {
	case c.Outdoor != nil:
		topic, msg.Outdoor = s.topics.Outdoor(), c.Outdoor
	case c.Unit != nil:
		topic, msg.Device = s.topics.DeviceState(c.Unit.ID), c.Unit
	default:
		return
	}
	if err := s.mqtt.PublishJSON(topic, msg, true); err != nil {
		s.log.Debug("publishing state failed", "topic", topic, "error", err)
	}
}

func (s *eventSink) commandFailed(f command.Failure) {
	s.hub.CommandFailed(f)

	if s.mqtt == nil {
		return
	}
	msg := commandMessage{EventID: uuid.NewString(), Timestamp: time.Now().UTC(), Failure: f}
	s.enqueue("command_failed", func() {
		topic := s.topics.CommandEvent(f.DeviceID)
		if err := s.mqtt.PublishJSON(topic, msg, false); err != nil {
			s.log.Debug("publishing command failure failed", "topic", topic, "error", err)
		}
	})
}

// recordingCommander writes the final outcome of every issued command to
// InfluxDB. Applied outcomes have no registry callback of their own.
type recordingCommander struct {
	*command.Dispatcher
	influx *influxdb.Client
}

func (c recordingCommander) Issue(deviceID string, kind device.CommandKind, value any) (*command.Handle, error) {
	h, err := c.Dispatcher.Issue(deviceID, kind, value)
	if err != nil || c.influx == nil {
		return h, err
	}
	go func() {
		out, waitErr := h.Wait(context.Background())
		if waitErr != nil {
			return
		}
		c.influx.WriteCommandOutcome(h.DeviceID, string(h.Kind), string(out.Result.Outcome), h.Seq, time.Now())
	}()
	return h, nil
}
