package replication

import (
	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/recordcodec"
)

// LSMTableRef describes one flushed SSTable+CSTable pair belonging to a
// partition, in the order they were flushed.
type LSMTableRef struct {
	Filename      string
	FirstSequence uint64
	LastSequence  uint64
}

// PartitionState is the mutable part of a partition snapshot: the
// current LSM write head and the ordered list of flushed tables backing
// it, plus enough table identity to address a replicated record.
type PartitionState struct {
	LSMSequence   uint64
	LSMTables     []LSMTableRef
	TSDBNamespace string
	TableKey      string
	Schema        recordcodec.Schema
}

// Snapshot is a read-only view of one local partition, stable for the
// duration of a single Replicate call: concurrent writers may extend the
// LSM log after a Snapshot is taken, but the snapshot's own State.LSMSequence
// does not change underneath a running replication pass.
type Snapshot struct {
	Key      common.PartitionID
	BasePath string
	State    PartitionState
}
