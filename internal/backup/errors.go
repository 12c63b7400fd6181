package backup

import "fmt"

// PartitionCountError reports that the schemas topic does not have exactly
// one partition, which the single-partition total-ordering guarantee
// requires.
type PartitionCountError struct {
	Topic string
	Count int
}

func (e *PartitionCountError) Error() string {
	return fmt.Sprintf("topic %q has %d partitions, expected exactly 1", e.Topic, e.Count)
}

// EmptyPartition signals a clean, successful no-op: the partition has no
// records to back up.
type EmptyPartition struct {
	Topic string
}

func (e *EmptyPartition) Error() string {
	return fmt.Sprintf("topic %q partition 0 is empty", e.Topic)
}

// StaleConsumerError reports that a poll returned zero records before the
// target offset was reached, meaning the consumer has stalled.
type StaleConsumerError struct {
	Topic       string
	StartOffset int64
	EndOffset   int64
	LastOffset  int64
	PollTimeout string
}

func (e *StaleConsumerError) Error() string {
	return fmt.Sprintf("consumer for topic %q stalled at offset %d (want %d..%d) after a %s poll returned no records",
		e.Topic, e.LastOffset, e.StartOffset, e.EndOffset, e.PollTimeout)
}

// BackupError is a fatal, unrecoverable failure during backup create or
// restore, such as a producer send callback reporting failure mid-restore.
type BackupError struct {
	Op  string
	Err error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup %s failed: %v", e.Op, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }
