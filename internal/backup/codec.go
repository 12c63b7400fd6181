package backup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"
)

// Version identifies one of the three on-disk backup formats.
type Version int

const (
	VersionV1 Version = iota
	VersionV2
	VersionV3
)

func (v Version) String() string {
	switch v {
	case VersionV1:
		return "v1"
	case VersionV2:
		return "v2"
	case VersionV3:
		return "v3"
	default:
		return "unknown"
	}
}

// markerLen is the length in bytes of the V2/V3 format markers. V1 carries
// no marker, so any file whose first four bytes don't match either marker
// is assumed to be V1 (§4.F "Format identification").
const markerLen = 4

// V2Marker and V3Marker open every V2/V3 backup file. karapace's original
// constants live outside the filtered original_source tree, so these are
// newly chosen values, distinct and unambiguous against V1's textual
// tab-separated lines (which never start with these bytes).
var (
	V2Marker = [markerLen]byte{'K', 'S', 'R', '2'}
	V3Marker = [markerLen]byte{'K', 'S', 'R', '3'}
)

// IdentifyFormat reads the first four bytes of path and reports which
// backup format it holds. A file shorter than four bytes, or one that
// doesn't match either marker, is treated as V1 (legacy, unmarked).
func IdentifyFormat(path string) (Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("identifying backup format of %q: %w", path, err)
	}
	defer f.Close()

	var header [markerLen]byte
	n, err := io.ReadFull(f, header[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("reading header of %q: %w", path, err)
	}
	if n < markerLen {
		return VersionV1, nil
	}
	switch header {
	case V3Marker:
		return VersionV3, nil
	case V2Marker:
		return VersionV2, nil
	default:
		return VersionV1, nil
	}
}

// Record is the writer-facing shape of one replayed log record, the same
// fields a franz-go *kgo.Record carries, kept independent of that package
// so backup codecs don't need a live Kafka client to run.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// Metadata is the sidecar summary a Writer emits once a partition has been
// fully backed up (§6 "Backup V3 file layout").
type Metadata struct {
	TopicName  string
	TopicID    string
	StartedAt  time.Time
	FinishedAt time.Time
	DataFiles  []string
}

// Reader yields the instruction stream held in a backup file, in order.
// Next returns io.EOF once exhausted.
type Reader interface {
	Next() (Instruction, error)
	Close() error
}

// Writer is the write-side counterpart shared by the V2 and V3 formats (V1
// is read-only). Callers open a Writer, call PrepareLocation once, then
// StartPartition/StoreRecord/FinalizePartition per partition (always one,
// for this registry's single-partition topic), then StoreMetadata once.
type Writer interface {
	PrepareLocation() error
	StartPartition(topic string, partition int32) error
	StoreRecord(rec Record) error
	FinalizePartition() error
	StoreMetadata(meta Metadata) error
	Close() error
}

// NewReader opens path and returns the Reader for whichever format it
// holds. topicName is threaded through to formats (V1, V2) whose on-disk
// records don't themselves carry a topic.
func NewReader(path, topicName string) (Reader, error) {
	version, err := IdentifyFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backup file %q: %w", path, err)
	}
	switch version {
	case VersionV3:
		return newV3Reader(f, topicName)
	case VersionV2:
		return newV2Reader(f, topicName)
	default:
		return newV1Reader(f, topicName), nil
	}
}

func newBufReader(f io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(f, 64*1024)
}
