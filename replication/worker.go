package replication

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/getlantern/zenodb/metrics"
)

// Worker runs Replicate on a tick, the background-scheduler counterpart
// to the synchronous Replicator.Replicate call. Its shape — a single
// goroutine owning one partition, an atomic failure flag, and a periodic
// stats report — is the same follower/stats-ticker loop idiom used
// elsewhere in this codebase, retargeted from pulling WAL entries from a
// leader onto pushing LSM records to this partition's replicas.
type Worker struct {
	partitionKey string
	replicator   *Replicator
	interval     time.Duration

	lastRunFailed int32 // atomic bool

	stop chan struct{}
	done chan struct{}
}

// NewWorker builds a Worker that calls replicator.Replicate every
// interval until Stop is called.
func NewWorker(partitionKey string, replicator *Replicator, interval time.Duration) *Worker {
	return &Worker{
		partitionKey: partitionKey,
		replicator:   replicator,
		interval:     interval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// LastRunFailed reports whether the most recently completed tick
// returned false (some replica did not catch up).
func (w *Worker) LastRunFailed() bool {
	return atomic.LoadInt32(&w.lastRunFailed) == 1
}

// Run drives the periodic replication loop. It blocks until Stop is
// called; callers run it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(1 * time.Minute)
	defer statsTicker.Stop()

	var ticks, failures int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			ticks++
			ok, err := w.replicator.Replicate(ctx)
			if err != nil {
				log.Errorf("Replication tick failed for partition %s: %v", w.partitionKey, err)
				atomic.StoreInt32(&w.lastRunFailed, 1)
				failures++
				continue
			}
			if !ok {
				atomic.StoreInt32(&w.lastRunFailed, 1)
				failures++
			} else {
				atomic.StoreInt32(&w.lastRunFailed, 0)
			}
			metrics.ReplicationTickCompleted(w.partitionKey, ok)
		case <-statsTicker.C:
			log.Debugf(
				"Partition %s: %s replication ticks, %s failed",
				w.partitionKey, humanize.Comma(ticks), humanize.Comma(failures),
			)
		}
	}
}

// Stop signals Run to exit and waits for it to return.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
