package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// EnsureCompactedTopic creates topic with one partition and
// cleanup.policy=compact, or confirms it already exists with exactly one
// partition. Shared by the reader loop's bootstrap (§4.E step 2) and the
// restore path's RestoreTopic handling (§4.G restore step 3), since both
// need the identical topic shape.
func EnsureCompactedTopic(ctx context.Context, admin *kadm.Client, topic string, replicationFactor int16) error {
	compact := "compact"
	resps, err := admin.CreateTopics(ctx, 1, replicationFactor, map[string]*string{
		"cleanup.policy": &compact,
	}, topic)
	if err != nil {
		return fmt.Errorf("creating topic %q: %w", topic, err)
	}
	resp, ok := resps[topic]
	if !ok {
		return fmt.Errorf("no create-topic response for %q", topic)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("creating topic %q: %w", topic, resp.Err)
	}

	details, err := admin.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("describing topic %q: %w", topic, err)
	}
	td, ok := details[topic]
	if !ok {
		return fmt.Errorf("topic %q not found after creation", topic)
	}
	if n := len(td.Partitions); n != 1 {
		return &PartitionCountError{Topic: topic, Count: n}
	}
	return nil
}
