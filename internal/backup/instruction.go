package backup

import "time"

// Instruction is the tagged variant a Reader yields: either a topic
// declaration that must precede any sends for that topic, or a single
// record to replay. RestoreTopic before any ProducerSend is enforced at
// the orchestrator boundary, not here.
type Instruction interface {
	isInstruction()
}

// RestoreTopic declares the topic a following run of ProducerSend
// instructions targets. Must be the first instruction seen for a given
// topic name.
type RestoreTopic struct {
	Name string
}

func (RestoreTopic) isInstruction() {}

// Header is a single Kafka record header. A nil Value distinguishes a
// present-but-empty header from a header carrying an empty byte slice, and
// a nil Key distinguishes a header with no key at all from one keyed by the
// empty string; both round-trip through the backup formats unchanged per
// §4.F's restoration guarantees.
type Header struct {
	Key   *string
	Value []byte
}

// ProducerSend is one record to replay onto the target topic.
type ProducerSend struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

func (ProducerSend) isInstruction() {}
