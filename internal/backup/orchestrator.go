// Package backup implements the three historical on-disk backup formats
// (internal/backup/v1.go, v2.go, v3.go) and the orchestrator that drives
// creation and restoration of a backup against the single-partition
// schemas log (§4.F, §4.G).
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/axonops/axonops-schema-registry/internal/metrics"
)

// defaultSchemasTopicName mirrors internal/config's KafkaConfig default,
// used by KeyFormatter activation (force_key_correction's other trigger).
const defaultSchemasTopicName = "_schemas"

// Config carries the Kafka connection details the orchestrator needs,
// independent of internal/config so this package has no dependency on it.
type Config struct {
	BootstrapURI      string
	TopicName         string
	ReplicationFactor int
}

// Orchestrator drives backup creation and restoration. It is synchronous
// on its caller's goroutine (§5 "the backup orchestrator is synchronous on
// its caller's thread"); Create checks its context before every poll.
type Orchestrator struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewOrchestrator(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, metrics: m, logger: logger}
}

// CreateOptions parameterizes Create.
type CreateOptions struct {
	Version        Version
	DataPath       string
	MetadataPath   string // required for V3, ignored otherwise
	PollTimeout    time.Duration
	AllowOverwrite bool
	Envelope       *Envelope // optional V3 encryption
}

// Create implements §4.G create(): validate, open the consumer, compute
// start/end offsets, poll until caught up (or detect an empty partition /
// a stalled consumer), and write the result through the chosen codec.
func (o *Orchestrator) Create(ctx context.Context, opts CreateOptions) error {
	start := time.Now()
	if opts.Version == VersionV3 && (opts.DataPath == "-" || opts.DataPath == "") {
		return fmt.Errorf("v3 backups require a real filesystem path, stdout is not supported")
	}
	if opts.Version == VersionV1 {
		return fmt.Errorf("v1 is a legacy read-only format and has no writer")
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}

	admin, client, err := o.connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to create backup: %w", err)
	}
	defer client.Close()

	topicDetails, err := admin.ListTopics(ctx, o.cfg.TopicName)
	if err != nil {
		return fmt.Errorf("describing topic %q: %w", o.cfg.TopicName, err)
	}
	td, ok := topicDetails[o.cfg.TopicName]
	if !ok {
		return fmt.Errorf("topic %q not found", o.cfg.TopicName)
	}
	if n := len(td.Partitions); n != 1 {
		return &PartitionCountError{Topic: o.cfg.TopicName, Count: n}
	}

	startOffset, endOffset, err := o.computeOffsetRange(ctx, admin)
	if err != nil {
		return err
	}
	if startOffset > endOffset {
		o.logger.Warn("schemas topic partition is empty, nothing to back up",
			slog.String("topic", o.cfg.TopicName))
		return &EmptyPartition{Topic: o.cfg.TopicName}
	}

	writer, err := o.newWriter(opts)
	if err != nil {
		return err
	}
	if err := writer.PrepareLocation(); err != nil {
		return fmt.Errorf("preparing backup location: %w", err)
	}
	if err := writer.StartPartition(o.cfg.TopicName, 0); err != nil {
		return fmt.Errorf("starting backup partition: %w", err)
	}

	client.AddConsumePartitions(map[string]map[int32]kgo.Offset{
		o.cfg.TopicName: {0: kgo.NewOffset().At(startOffset)},
	})

	recordCount := 0
	lastOffset := startOffset - 1
	for lastOffset < endOffset {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, opts.PollTimeout)
		fetches := client.PollFetches(pollCtx)
		cancel()

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				if errors.Is(fetchErr.Err, context.DeadlineExceeded) {
					continue
				}
				return fmt.Errorf("polling topic %q: %w", o.cfg.TopicName, fetchErr.Err)
			}
		}

		polled := 0
		var storeErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			polled++
			recordCount++
			lastOffset = rec.Offset
			if storeErr != nil {
				return
			}
			storeErr = writer.StoreRecord(Record{
				Topic:     rec.Topic,
				Partition: rec.Partition,
				Offset:    rec.Offset,
				Key:       rec.Key,
				Value:     rec.Value,
				Headers:   convertHeaders(rec.Headers),
				Timestamp: rec.Timestamp,
			})
		})
		if storeErr != nil {
			return fmt.Errorf("storing backup record: %w", storeErr)
		}

		if polled == 0 && lastOffset < endOffset {
			return &StaleConsumerError{
				Topic:       o.cfg.TopicName,
				StartOffset: startOffset,
				EndOffset:   endOffset,
				LastOffset:  lastOffset,
				PollTimeout: opts.PollTimeout.String(),
			}
		}
	}

	if err := writer.FinalizePartition(); err != nil {
		return fmt.Errorf("finalizing backup partition: %w", err)
	}
	finished := time.Now()
	meta := Metadata{
		TopicName:  o.cfg.TopicName,
		StartedAt:  start,
		FinishedAt: finished,
		DataFiles:  []string{opts.DataPath},
	}
	if err := writer.StoreMetadata(meta); err != nil {
		return fmt.Errorf("storing backup metadata: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing backup writer: %w", err)
	}

	if o.metrics != nil {
		o.metrics.RecordBackupRun("create", opts.Version.String(), true, time.Since(start), recordCount)
	}
	return nil
}

func (o *Orchestrator) newWriter(opts CreateOptions) (Writer, error) {
	switch opts.Version {
	case VersionV2:
		return NewV2Writer(opts.DataPath, opts.AllowOverwrite)
	case VersionV3:
		w, err := NewV3Writer(opts.DataPath, opts.MetadataPath, opts.AllowOverwrite)
		if err != nil {
			return nil, err
		}
		if opts.Envelope != nil {
			w.WithEnvelope(opts.Envelope)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported backup version %v for writing", opts.Version)
	}
}

func (o *Orchestrator) computeOffsetRange(ctx context.Context, admin *kadm.Client) (start, end int64, err error) {
	startOffsets, err := admin.ListStartOffsets(ctx, o.cfg.TopicName)
	if err != nil {
		return 0, 0, fmt.Errorf("listing start offsets: %w", err)
	}
	endOffsets, err := admin.ListEndOffsets(ctx, o.cfg.TopicName)
	if err != nil {
		return 0, 0, fmt.Errorf("listing end offsets: %w", err)
	}
	startResp, ok := startOffsets.Lookup(o.cfg.TopicName, 0)
	if !ok || startResp.Err != nil {
		return 0, 0, fmt.Errorf("resolving start offset for %q: %v", o.cfg.TopicName, startResp.Err)
	}
	endResp, ok := endOffsets.Lookup(o.cfg.TopicName, 0)
	if !ok || endResp.Err != nil {
		return 0, 0, fmt.Errorf("resolving end offset for %q: %v", o.cfg.TopicName, endResp.Err)
	}
	// endResp carries the high watermark (one past the last written
	// record); the end offset actually present is one less (§4.G step 3).
	return startResp.Offset, endResp.Offset - 1, nil
}

// RestoreOptions parameterizes Restore.
type RestoreOptions struct {
	Path               string
	ForceKeyCorrection bool
	Envelope           *Envelope // optional V3 decryption
}

// Restore implements §4.G restore(): identify the format, iterate its
// instruction stream, create the target topic and open a producer on the
// first RestoreTopic, and forward every ProducerSend to it. Any
// ProducerSend seen before a RestoreTopic is a programmer/format error.
func (o *Orchestrator) Restore(ctx context.Context, opts RestoreOptions) (err error) {
	start := time.Now()
	if opts.Path == "-" || opts.Path == "" {
		return fmt.Errorf("restore requires a real backup file path, stdin is not supported")
	}
	if _, statErr := os.Stat(opts.Path); statErr != nil {
		return fmt.Errorf("backup file %q does not exist: %w", opts.Path, statErr)
	}

	reader, err := NewReader(opts.Path, o.cfg.TopicName)
	if err != nil {
		return fmt.Errorf("opening backup %q: %w", opts.Path, err)
	}
	defer reader.Close()

	if opts.Envelope != nil {
		if v3, ok := reader.(*v3Reader); ok {
			v3.WithEnvelope(opts.Envelope)
		}
	}

	admin, client, connectErr := o.connect(ctx)
	if connectErr != nil {
		return fmt.Errorf("connecting to restore backup: %w", connectErr)
	}
	defer client.Close()

	var keyFormatter *KeyFormatter
	var producerOpened bool
	var producerTopic string
	var sendErr error
	recordCount := 0

	// A ProducerSend arriving before any RestoreTopic is a programmer
	// error in the backup file itself (§4.G restore step 3). Recovering a
	// panic here mirrors the original's RuntimeError: a defect in the
	// input, not a recoverable runtime condition, surfaced as a returned
	// error instead of crashing the process.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restoring backup %q: %v", opts.Path, r)
		}
	}()

	for {
		instruction, readErr := reader.Next()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fmt.Errorf("reading backup instruction: %w", readErr)
		}

		switch inst := instruction.(type) {
		case RestoreTopic:
			if err := EnsureCompactedTopic(ctx, admin, inst.Name, int16(o.cfg.ReplicationFactor)); err != nil {
				return fmt.Errorf("ensuring restore target topic %q: %w", inst.Name, err)
			}
			producerOpened = true
			producerTopic = inst.Name
			keyFormatter = NewKeyFormatter(inst.Name, defaultSchemasTopicName, opts.ForceKeyCorrection)
		case ProducerSend:
			if !producerOpened {
				panic("producer send instruction before any restore-topic instruction")
			}
			key, formatErr := keyFormatter.Reformat(inst.Key)
			if formatErr != nil {
				return fmt.Errorf("reformatting restored key: %w", formatErr)
			}
			rec := &kgo.Record{
				Topic:     producerTopic,
				Key:       key,
				Value:     inst.Value,
				Headers:   toKgoHeaders(inst.Headers),
				Timestamp: inst.Timestamp,
			}
			recordCount++
			client.Produce(ctx, rec, func(_ *kgo.Record, produceErr error) {
				if produceErr != nil && sendErr == nil {
					sendErr = &BackupError{Op: "restore produce", Err: produceErr}
				}
			})
		default:
			return fmt.Errorf("unrecognized backup instruction %T", instruction)
		}
	}

	if flushErr := client.Flush(ctx); flushErr != nil && sendErr == nil {
		sendErr = fmt.Errorf("flushing restored records: %w", flushErr)
	}
	if sendErr != nil {
		return sendErr
	}

	if o.metrics != nil {
		version, _ := IdentifyFormat(opts.Path)
		o.metrics.RecordBackupRun("restore", version.String(), true, time.Since(start), recordCount)
	}
	return nil
}

func (o *Orchestrator) connect(ctx context.Context) (*kadm.Client, *kgo.Client, error) {
	var client *kgo.Client
	err := Retry(60*time.Second, time.Second, IsRetryableKafkaError, "create kafka client for backup", func() error {
		c, err := kgo.NewClient(kgo.SeedBrokers(strings.Split(o.cfg.BootstrapURI, ",")...))
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return kadm.NewClient(client), client, nil
}

func convertHeaders(headers []kgo.RecordHeader) []Header {
	out := make([]Header, 0, len(headers))
	for _, h := range headers {
		key := h.Key
		out = append(out, Header{Key: &key, Value: h.Value})
	}
	return out
}

func toKgoHeaders(headers []Header) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(headers))
	for _, h := range headers {
		var key string
		if h.Key != nil {
			key = *h.Key
		}
		out = append(out, kgo.RecordHeader{Key: key, Value: h.Value})
	}
	return out
}
