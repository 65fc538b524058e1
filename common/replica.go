package common

// ReplicaRef identifies one replica of a partition as seen by the
// replication scheme: a stable unique id, a dialable address, and
// whether it names the local server.
type ReplicaRef struct {
	UniqueID string
	Addr     string
	IsLocal  bool
}

// ReplicationScheme resolves which replicas currently hold (or should
// hold) a copy of a given partition. It is an external collaborator —
// cluster membership and placement policy live outside this component.
type ReplicationScheme interface {
	ReplicasFor(partitionKey PartitionID) []ReplicaRef
}

// Record is a single replicated row: its content-addressed id, the
// monotonically increasing version under which it was last written, and
// its schema-encoded payload.
type Record struct {
	ID      SHA1Hash
	Version uint64
	Payload []byte
}
