package replication

import "github.com/getlantern/zenodb/recordcodec"

// Writer is the capability an LSM-backed partition's writer exposes to
// replication: durable, read-modify-write storage of the per-replica
// acknowledged offset map. Rather than downcasting a generic partition
// writer to its LSM variant, non-LSM partitions simply never implement
// this narrow interface and so never appear on the replication path.
type Writer interface {
	// FetchReplicationState returns the durable unique_id -> last-acked-
	// LSM-sequence map. A replica with no entry is assumed to be at
	// offset 0.
	FetchReplicationState() (map[string]uint64, error)

	// CommitReplicationState durably persists state. Called at most once
	// per Replicate invocation, after all per-replica uploads for this
	// pass have been attempted.
	CommitReplicationState(state map[string]uint64) error
}

// CSTableOpener opens the CSTable file backing one flushed LSM table, by
// path. It is the one piece of file I/O this package needs from the
// otherwise-external columnar reader.
type CSTableOpener interface {
	Open(path string) (recordcodec.CSTableReader, error)
}
