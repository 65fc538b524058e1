package replication

import (
	"context"
	"testing"
	"time"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/recordcodec/memcstable"
)

func TestWorkerRunTicksAndStops(t *testing.T) {
	key := rowID(9)
	rows := []memcstable.StoredRow{
		{ID: rowID(90), Version: 1, Sequence: 1, Payload: []byte("a")},
	}
	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	scheme := &fakeScheme{replicas: []common.ReplicaRef{
		{UniqueID: "replica-d", Addr: "10.0.0.8:7000"},
	}}
	writer := newFakeWriter()
	uploader := &fakeUploader{}

	r := New(snap, scheme, writer, opener, uploader)
	w := NewWorker(key.String(), r, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		state, _ := writer.FetchReplicationState()
		if state["replica-d"] == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker never replicated within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if w.LastRunFailed() {
		t.Fatalf("expected last run to have succeeded")
	}

	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after Stop()")
	}
}

func TestWorkerLastRunFailedOnUploadError(t *testing.T) {
	key := rowID(8)
	rows := []memcstable.StoredRow{
		{ID: rowID(80), Version: 1, Sequence: 1, Payload: []byte("a")},
	}
	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	scheme := &fakeScheme{replicas: []common.ReplicaRef{
		{UniqueID: "replica-e", Addr: "10.0.0.9:7000"},
	}}
	writer := newFakeWriter()
	uploader := &fakeUploader{statusFor: map[string]int{"10.0.0.9:7000": 503}}

	r := New(snap, scheme, writer, opener, uploader)
	w := NewWorker(key.String(), r, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !w.LastRunFailed() {
		select {
		case <-deadline:
			t.Fatalf("worker never observed a failed run within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after Stop()")
	}
}
