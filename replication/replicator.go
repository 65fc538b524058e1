// Package replication implements the LSM partition replication protocol:
// pushing newly flushed records from a local LSM partition to every
// non-local replica until each replica's durably acknowledged sequence
// catches up to the local head. It ports eventql's
// LSMPartitionReplication.cc.
package replication

import (
	"context"
	"path/filepath"

	"github.com/getlantern/golog"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/errkind"
	"github.com/getlantern/zenodb/metrics"
	"github.com/getlantern/zenodb/recordcodec"
)

var log = golog.LoggerFor("replication")

// Batch boundaries for a single upload: a batch is flushed as soon as its
// payload bytes exceed MaxBatchSizeBytes or its record count reaches
// MaxBatchSizeRows, whichever comes first.
const (
	MaxBatchSizeBytes = 50 * 1024 * 1024
	MaxBatchSizeRows  = 8192
)

// CSTableReader is re-exported so callers of this package don't also
// need to import recordcodec just to implement CSTableOpener.
type CSTableReader = recordcodec.CSTableReader

// Replicator drives replication for a single local partition. One
// Replicator is scoped to one Snapshot; the partition scheduler that owns
// this module is responsible for ensuring at most one worker replicates
// a given partition at a time.
type Replicator struct {
	snap     *Snapshot
	scheme   common.ReplicationScheme
	writer   Writer
	opener   CSTableOpener
	uploader Uploader
}

// New builds a Replicator for the given snapshot.
func New(snap *Snapshot, scheme common.ReplicationScheme, writer Writer, opener CSTableOpener, uploader Uploader) *Replicator {
	return &Replicator{snap: snap, scheme: scheme, writer: writer, opener: opener, uploader: uploader}
}

func replicatedOffsetFor(state map[string]uint64, uniqueID string) uint64 {
	return state[uniqueID]
}

// NeedsReplication reports whether any non-local replica's acknowledged
// sequence is below the snapshot's head.
func (r *Replicator) NeedsReplication() (bool, error) {
	replicas := r.scheme.ReplicasFor(r.snap.Key)
	if len(replicas) == 0 {
		return false, nil
	}

	state, err := r.writer.FetchReplicationState()
	if err != nil {
		return false, err
	}
	head := r.snap.State.LSMSequence

	for _, rep := range replicas {
		if rep.IsLocal {
			continue
		}
		if replicatedOffsetFor(state, rep.UniqueID) < head {
			return true, nil
		}
	}
	return false, nil
}

// NumFullRemoteCopies counts non-local replicas whose acknowledged
// sequence is already at or past the head.
func (r *Replicator) NumFullRemoteCopies() (int, error) {
	replicas := r.scheme.ReplicasFor(r.snap.Key)
	state, err := r.writer.FetchReplicationState()
	if err != nil {
		return 0, err
	}
	head := r.snap.State.LSMSequence

	n := 0
	for _, rep := range replicas {
		if rep.IsLocal {
			continue
		}
		if replicatedOffsetFor(state, rep.UniqueID) >= head {
			n++
		}
	}
	return n, nil
}

// Replicate runs the full replication protocol: for every
// non-local replica behind the current head, stream records and advance
// its offset on success; persist all advanced offsets in a single commit
// at the end. It returns true iff every non-local replica was already at
// head or completed successfully.
func (r *Replicator) Replicate(ctx context.Context) (bool, error) {
	replicas := r.scheme.ReplicasFor(r.snap.Key)
	if len(replicas) == 0 {
		return true, nil
	}

	state, err := r.writer.FetchReplicationState()
	if err != nil {
		return false, err
	}
	head := r.snap.State.LSMSequence

	dirty := false
	success := true

	for _, rep := range replicas {
		if rep.IsLocal {
			continue
		}

		offset := replicatedOffsetFor(state, rep.UniqueID)
		if offset >= head {
			continue
		}

		log.Debugf(
			"Replicating partition %s/%s/%s to %s (replicated_seq: %d, head_seq: %d, %d records)",
			r.snap.State.TSDBNamespace, r.snap.State.TableKey, r.snap.Key.String(),
			rep.Addr, offset, head, head-offset,
		)

		if err := r.ReplicateTo(ctx, rep, offset); err != nil {
			success = false
			log.Errorf(
				"Error while replicating partition %s/%s/%s to %s: %v",
				r.snap.State.TSDBNamespace, r.snap.State.TableKey, r.snap.Key.String(), rep.Addr, err,
			)
			continue
		}

		state[rep.UniqueID] = head
		dirty = true
		metrics.ReplicaOffsetAdvanced(r.snap.Key.String(), rep.UniqueID, head)
	}

	if dirty {
		if err := r.writer.CommitReplicationState(state); err != nil {
			return false, err
		}
	}

	return success, nil
}

// ReplicateTo streams every record with __lsm_sequence >= replicatedOffset
// to replica, batching at MaxBatchSizeBytes / MaxBatchSizeRows, whichever
// comes first, and flushing a final partial batch at end of stream.
func (r *Replicator) ReplicateTo(ctx context.Context, replica common.ReplicaRef, replicatedOffset uint64) error {
	if replica.IsLocal {
		return errkind.IllegalStatef("can't replicate partition %s to myself", r.snap.Key.String())
	}

	batch := &RecordEnvelopeList{SyncCommit: true}
	batchBytes := 0

	flush := func() error {
		if len(batch.Records) == 0 {
			return nil
		}
		if err := uploadBatchTo(ctx, r.uploader, replica, batch); err != nil {
			return err
		}
		metrics.BatchUploaded(r.snap.Key.String(), replica.UniqueID, len(batch.Records), batchBytes)
		batch.Records = nil
		batchBytes = 0
		return nil
	}

	var streamErr error
	err := r.FetchRecords(replicatedOffset, func(rec common.Record) bool {
		env := RecordEnvelope{
			TSDBNamespace: r.snap.State.TSDBNamespace,
			TableName:     r.snap.State.TableKey,
			PartitionSHA1: r.snap.Key.String(),
			RecordID:      rec.ID.String(),
			RecordVersion: rec.Version,
			RecordData:    rec.Payload,
		}
		batch.Records = append(batch.Records, env)
		batchBytes += env.sizeBytes()

		if batchBytes > MaxBatchSizeBytes || len(batch.Records) >= MaxBatchSizeRows {
			if err := flush(); err != nil {
				streamErr = err
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if streamErr != nil {
		return streamErr
	}

	return flush()
}

// FetchRecords iterates snap.State.LSMTables in stored order, emitting
// every record whose __lsm_sequence is >= startSequence. Tables whose
// LastSequence is below startSequence are skipped without being opened.
// emit returns false to stop iteration early (used by ReplicateTo to
// bail out after a batch upload fails).
func (r *Replicator) FetchRecords(startSequence uint64, emit func(common.Record) bool) error {
	stopped := false
	emitUntilStopped := func(rec common.Record) bool {
		if !emit(rec) {
			stopped = true
			return false
		}
		return true
	}

	for _, tbl := range r.snap.State.LSMTables {
		if stopped {
			return nil
		}
		if tbl.LastSequence < startSequence {
			continue
		}

		cstablePath := filepath.Join(r.snap.BasePath, tbl.Filename+".cst")
		reader, err := r.opener.Open(cstablePath)
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		if err := streamTable(reader, r.snap.State.Schema, startSequence, emitUntilStopped); err != nil {
			return err
		}
	}
	return nil
}

func streamTable(reader recordcodec.CSTableReader, schema recordcodec.Schema, startSequence uint64, emit func(common.Record) bool) error {
	idCol, err := reader.ColumnReader(recordcodec.ColumnLSMID)
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}
	versionCol, err := reader.ColumnReader(recordcodec.ColumnLSMVersion)
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}
	sequenceCol, err := reader.ColumnReader(recordcodec.ColumnLSMSequence)
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}
	materializer := reader.Materializer(schema)

	n := reader.NumRecords()
	for i := 0; i < n; i++ {
		_, _, sequence, err := sequenceCol.ReadUnsignedInt()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		if sequence < startSequence {
			if err := materializer.SkipRecord(); err != nil {
				return errkind.Wrap(errkind.IO, err)
			}
			continue
		}

		_, _, idStr, err := idCol.ReadString()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}
		var id common.SHA1Hash
		copy(id[:], idStr)

		_, _, version, err := versionCol.ReadUnsignedInt()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		row, err := materializer.NextRecord()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		payload, err := schema.Encode(row)
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		if !emit(common.Record{ID: id, Version: version, Payload: payload}) {
			return nil
		}
	}
	return nil
}
