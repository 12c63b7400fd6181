package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// WriterConfig carries the subset of internal/config.KafkaConfig the write
// path needs to produce onto the schemas topic.
type WriterConfig struct {
	BootstrapURI string
	TopicName    string
}

// Writer is the HTTP-facing producer side of the log: every mutating API
// call proposes a record, waits for the reader loop to replay it back into
// State, and only then responds. This is the "writers await catch-up"
// half of the outbound offset queue the reader loop publishes (spec §4.E
// step 4, §5).
type Writer struct {
	client *kgo.Client
	topic  string
	state  *State
}

// NewWriter creates a producer-only Kafka client for the schemas topic.
func NewWriter(cfg WriterConfig, state *State) (*Writer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.BootstrapURI, ",")...),
		kgo.DefaultProduceTopic(cfg.TopicName),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer client: %w", err)
	}
	return &Writer{client: client, topic: cfg.TopicName, state: state}, nil
}

// Close releases the underlying producer client.
func (w *Writer) Close() { w.client.Close() }

// Propose encodes key/value, produces the record, and blocks until the
// reader loop has replayed it (or ctx expires). It returns the offset the
// record landed at. A nil value produces a tombstone (delete).
func (w *Writer) Propose(ctx context.Context, key RecordKey, value interface{}) (int64, error) {
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return 0, fmt.Errorf("encoding record key: %w", err)
	}

	var encodedValue []byte
	if value != nil {
		encodedValue, err = json.Marshal(value)
		if err != nil {
			return 0, fmt.Errorf("encoding record value: %w", err)
		}
	}

	rec := &kgo.Record{Topic: w.topic, Key: encodedKey, Value: encodedValue}

	type produceResult struct {
		offset int64
		err    error
	}
	done := make(chan produceResult, 1)
	w.client.Produce(ctx, rec, func(produced *kgo.Record, err error) {
		if err != nil {
			done <- produceResult{err: fmt.Errorf("producing record: %w", err)}
			return
		}
		done <- produceResult{offset: produced.Offset}
	})

	var result produceResult
	select {
	case result = <-done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if result.err != nil {
		return 0, result.err
	}

	if err := w.awaitCatchUp(ctx, result.offset); err != nil {
		return 0, err
	}
	return result.offset, nil
}

// ProposeSchema produces a SCHEMA record registering or tombstoning one
// subject version and waits for it to replay.
func (w *Writer) ProposeSchema(ctx context.Context, subject string, version int, id int64, kind string, text string, deleted bool) (int64, error) {
	key := RecordKey{KeyType: RecordKeySchema, Subject: subject, Version: version}
	value := schemaValue{
		Subject:    subject,
		Version:    version,
		ID:         id,
		Schema:     text,
		SchemaType: kind,
		Deleted:    deleted,
	}
	return w.Propose(ctx, key, value)
}

// ProposeDeleteSubject produces a DELETE_SUBJECT record tombstoning every
// version of subject up to and including maxVersion.
func (w *Writer) ProposeDeleteSubject(ctx context.Context, subject string, maxVersion int) (int64, error) {
	key := RecordKey{KeyType: RecordKeyDeleteSubject, Subject: subject}
	value := deleteSubjectValue{Subject: subject, Version: maxVersion}
	return w.Propose(ctx, key, value)
}

// ProposeConfig produces a CONFIG record. An empty subject targets the
// global compatibility default; an empty mode clears the subject's override
// back to the global default (a null value record).
func (w *Writer) ProposeConfig(ctx context.Context, subject string, mode string) (int64, error) {
	key := RecordKey{KeyType: RecordKeyConfig, Subject: subject}
	if mode == "" {
		return w.Propose(ctx, key, nil)
	}
	return w.Propose(ctx, key, configValue{CompatibilityLevel: mode})
}

// awaitCatchUp blocks until State has replayed at least targetOffset.
func (w *Writer) awaitCatchUp(ctx context.Context, targetOffset int64) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if w.state.Offset() >= targetOffset {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for write at offset %d to replay: %w", targetOffset, ctx.Err())
		case <-ticker.C:
		}
	}
}
