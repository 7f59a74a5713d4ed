package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/logging"
)

func TestEventSink_SlowWriterDoesNotBlockCallers(t *testing.T) {
	s := newEventSink(nil, nil, nil, logging.Default())

	started, release := make(chan struct{}), make(chan struct{})
	var ran atomic.Int64
	s.enqueue("slow", func() {
		close(started)
		<-release
		ran.Add(1)
	})
	<-started

	done := make(chan struct{})
	go func() {
		// One more than the queue holds while the worker is stuck.
		for i := 0; i < sinkQueueSize+1; i++ {
			s.enqueue("burst", func() { ran.Add(1) })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked behind a slow writer")
	}

	close(release)
	s.Close()

	// The slow event plus a full queue; the overflow was dropped.
	if got := ran.Load(); got != sinkQueueSize+1 {
		t.Errorf("events written = %d, want %d", got, sinkQueueSize+1)
	}
}

func TestEventSink_CloseIsIdempotent(t *testing.T) {
	s := newEventSink(nil, nil, nil, logging.Default())

	var ran atomic.Int64
	s.enqueue("before", func() { ran.Add(1) })
	s.Close()
	s.Close()

	s.enqueue("after", func() { ran.Add(1) })
	if got := ran.Load(); got != 1 {
		t.Errorf("events written = %d, want 1", got)
	}
}
