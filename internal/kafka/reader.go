// Package kafka owns all consumption and topic bootstrap for the schemas
// log: the dedicated reader-loop goroutine that drives the registry's
// log-replay state machine, built on github.com/twmb/franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/axonops/axonops-schema-registry/internal/backup"
	"github.com/axonops/axonops-schema-registry/internal/coordinator"
	"github.com/axonops/axonops-schema-registry/internal/metrics"
	"github.com/axonops/axonops-schema-registry/internal/registry"
)

// Config carries the subset of internal/config.KafkaConfig the reader loop
// needs, kept as a separate narrow struct so this package doesn't import
// internal/config.
type Config struct {
	BootstrapURI      string
	TopicName         string
	ReplicationFactor int
	SessionTimeoutMs  int
	MetadataMaxAgeMs  int
	// PollTimeout bounds a single PollFetches call (spec §4.E step 4,
	// "≈200 ms"). Zero means the default of 200ms.
	PollTimeout time.Duration
}

func (c Config) pollTimeout() time.Duration {
	if c.PollTimeout > 0 {
		return c.PollTimeout
	}
	return 200 * time.Millisecond
}

// ReaderLoop is the dedicated background task that bootstraps the schemas
// topic, consumes it from the beginning, and feeds every record to
// registry.State.Apply. Launched via `go loop.Run(ctx)`; never called from
// an HTTP request goroutine, satisfying §5's "no coroutine may hold a lock
// across an I/O suspension point".
type ReaderLoop struct {
	cfg         Config
	state       *registry.State
	coordinator coordinator.MasterCoordinator
	metrics     *metrics.Metrics
	logger      *slog.Logger

	running atomic.Bool
	// Offsets is the outbound queue of applied offsets, published only when
	// this node is master, so write paths can await catch-up (spec §4.E
	// step 4, §5 "the outbound offset queue publishes offsets in applied
	// order").
	Offsets chan int64

	client *kgo.Client
	admin  *kadm.Client
}

// NewReaderLoop constructs a ReaderLoop. The Kafka client itself is created
// lazily inside Run so construction never blocks on broker availability.
func NewReaderLoop(cfg Config, state *registry.State, coord coordinator.MasterCoordinator, m *metrics.Metrics, logger *slog.Logger) *ReaderLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderLoop{
		cfg:         cfg,
		state:       state,
		coordinator: coord,
		metrics:     m,
		logger:      logger,
		Offsets:     make(chan int64, 1024),
	}
}

// Stop requests cooperative shutdown. The loop observes this flag between
// poll iterations, bounding shutdown latency to roughly PollTimeout (§5
// "Cancellation").
func (r *ReaderLoop) Stop() { r.running.Store(false) }

// Run bootstraps the admin client, creates-or-confirms the schemas topic,
// and then polls forever until Stop is called or ctx is cancelled. Matches
// §4.E steps 1-4.
func (r *ReaderLoop) Run(ctx context.Context) error {
	r.running.Store(true)

	if err := backup.Retry(60*time.Second, time.Second, backup.IsRetryableKafkaError, "create kafka admin client", func() error {
		return r.connect()
	}); err != nil {
		return fmt.Errorf("bootstrapping kafka client: %w", err)
	}
	defer r.client.Close()

	if err := backup.Retry(60*time.Second, time.Second, backup.IsRetryableKafkaError, "create-or-confirm schemas topic", func() error {
		return r.ensureTopic(ctx)
	}); err != nil {
		return fmt.Errorf("ensuring schemas topic %q exists: %w", r.cfg.TopicName, err)
	}

	seenEmptyPoll := false
	for r.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, r.cfg.pollTimeout())
		fetches := r.client.PollFetches(pollCtx)
		cancel()

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				if errors.Is(fetchErr.Err, context.DeadlineExceeded) {
					continue
				}
				r.logger.Error("reader loop fetch error",
					slog.String("topic", fetchErr.Topic),
					slog.Int("partition", int(fetchErr.Partition)),
					slog.String("error", fetchErr.Err.Error()))
				r.metrics.UnexpectedReaderError("fetch")
			}
		}

		count := 0
		fetches.EachRecord(func(rec *kgo.Record) {
			count++
			r.applyRecord(rec)
		})

		if count == 0 && !seenEmptyPoll {
			seenEmptyPoll = true
			r.state.SetReady()
			r.metrics.UpdateReaderReady(true)
			r.logger.Info("reader loop caught up", slog.Int64("offset", r.state.Offset()))
		}

		if isMaster, _ := r.coordinator.GetMasterInfo(); isMaster != nil && *isMaster {
			select {
			case r.Offsets <- r.state.Offset():
			default:
				r.logger.Warn("offset queue full, dropping publish", slog.Int64("offset", r.state.Offset()))
			}
		}
	}
	return nil
}

// applyRecord decodes and applies one record, advancing offset
// unconditionally (Open Question 2, resolved: offset must advance even when
// the key or value is malformed).
func (r *ReaderLoop) applyRecord(rec *kgo.Record) {
	defer r.state.SetOffset(rec.Offset)

	key, err := registry.DecodeKey(rec.Key)
	if err != nil {
		r.logger.Error("skipping record with malformed key",
			slog.Int64("offset", rec.Offset), slog.String("error", err.Error()))
		r.metrics.UnexpectedReaderError("decode_key")
		return
	}

	if err := r.state.Apply(key, rec.Value); err != nil {
		r.logger.Error("skipping record the state machine rejected",
			slog.String("keytype", string(key.KeyType)), slog.String("subject", key.Subject),
			slog.Int64("offset", rec.Offset), slog.String("error", err.Error()))
		r.metrics.UnexpectedReaderError("apply")
	}
}

func (r *ReaderLoop) connect() error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(r.cfg.BootstrapURI, ",")...),
		kgo.ConsumeTopics(r.cfg.TopicName),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(time.Duration(r.cfg.SessionTimeoutMs)*time.Millisecond),
		kgo.MetadataMaxAge(time.Duration(r.cfg.MetadataMaxAgeMs)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("creating kafka client: %w", err)
	}
	r.client = client
	r.admin = kadm.NewClient(client)
	return nil
}

// ensureTopic creates the schemas topic with num_partitions=1 and
// cleanup.policy=compact, or confirms it already exists with the right
// partition count (pre-existing topic is not an error, §4.E step 2).
func (r *ReaderLoop) ensureTopic(ctx context.Context) error {
	return backup.EnsureCompactedTopic(ctx, r.admin, r.cfg.TopicName, int16(r.cfg.ReplicationFactor))
}
