package metrics

import "testing"

func TestReplicationTickCompletedAccumulates(t *testing.T) {
	Reset()
	ReplicationTickCompleted("part-a", true)
	ReplicationTickCompleted("part-a", false)
	ReplicationTickCompleted("part-a", true)

	stats := GetStats()
	if len(stats.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(stats.Partitions))
	}
	ps := stats.Partitions[0]
	if ps.Ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ps.Ticks)
	}
	if ps.Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", ps.Failures)
	}
	if !ps.LastOK {
		t.Fatalf("expected LastOK true after the most recent successful tick")
	}
}

func TestBatchUploadedAndOffsetAdvanced(t *testing.T) {
	Reset()
	BatchUploaded("part-b", "replica-1", 100, 5000)
	BatchUploaded("part-b", "replica-1", 50, 2500)
	ReplicaOffsetAdvanced("part-b", "replica-1", 150)

	stats := GetStats()
	if len(stats.Replicas) != 1 {
		t.Fatalf("expected 1 replica entry, got %d", len(stats.Replicas))
	}
	rs := stats.Replicas[0]
	if rs.BatchesSent != 2 {
		t.Fatalf("expected 2 batches sent, got %d", rs.BatchesSent)
	}
	if rs.RecordsSent != 150 {
		t.Fatalf("expected 150 records sent, got %d", rs.RecordsSent)
	}
	if rs.BytesSent != 7500 {
		t.Fatalf("expected 7500 bytes sent, got %d", rs.BytesSent)
	}
	if rs.LastAckOffset != 150 {
		t.Fatalf("expected last ack offset 150, got %d", rs.LastAckOffset)
	}
}

func TestStatsAreSortedByPartitionThenReplica(t *testing.T) {
	Reset()
	ReplicationTickCompleted("part-z", true)
	ReplicationTickCompleted("part-a", true)
	BatchUploaded("part-a", "replica-y", 1, 10)
	BatchUploaded("part-a", "replica-x", 1, 10)

	stats := GetStats()
	if stats.Partitions[0].Partition != "part-a" || stats.Partitions[1].Partition != "part-z" {
		t.Fatalf("expected partitions sorted lexically, got %+v", stats.Partitions)
	}
	if stats.Replicas[0].ReplicaID != "replica-x" || stats.Replicas[1].ReplicaID != "replica-y" {
		t.Fatalf("expected replicas sorted lexically within a partition, got %+v", stats.Replicas)
	}
}
