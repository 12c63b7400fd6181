package kafka

import (
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/metrics"
	"github.com/axonops/axonops-schema-registry/internal/registry"
	"github.com/axonops/axonops-schema-registry/internal/schema"
	"github.com/axonops/axonops-schema-registry/internal/schema/avro"
)

type fakeCoordinator struct{ isMaster bool }

func (f fakeCoordinator) GetMasterInfo() (*bool, int64) { return &f.isMaster, 1 }

func newTestLoop() (*ReaderLoop, *registry.State) {
	r := schema.NewRegistry()
	r.Register(avro.NewParser())
	state := registry.NewState(r, compatibility.ModeBackward, nil)
	loop := NewReaderLoop(Config{TopicName: "_schemas"}, state, fakeCoordinator{isMaster: true}, metrics.New(), nil)
	return loop, state
}

func TestReaderLoop_ApplyRecord_AdvancesOffsetOnMalformedKey(t *testing.T) {
	loop, state := newTestLoop()

	loop.applyRecord(&kgo.Record{Key: []byte("not json"), Value: nil, Offset: 7})

	if state.Offset() != 7 {
		t.Errorf("expected offset to advance to 7 despite malformed key, got %d", state.Offset())
	}
}

func TestReaderLoop_ApplyRecord_AdvancesOffsetOnRejectedApply(t *testing.T) {
	loop, state := newTestLoop()

	loop.applyRecord(&kgo.Record{
		Key:    []byte(`{"keytype":"SCHEMA","subject":"s","version":1}`),
		Value:  []byte(`not json`),
		Offset: 3,
	})

	if state.Offset() != 3 {
		t.Errorf("expected offset to advance to 3 despite rejected value, got %d", state.Offset())
	}
}

func TestReaderLoop_ApplyRecord_AppliesValidSchema(t *testing.T) {
	loop, state := newTestLoop()

	loop.applyRecord(&kgo.Record{
		Key:    []byte(`{"keytype":"SCHEMA","subject":"s","version":1}`),
		Value:  []byte(`{"subject":"s","version":1,"id":1,"schema":"\"int\"","schemaType":"AVRO"}`),
		Offset: 1,
	})

	if state.Offset() != 1 {
		t.Errorf("expected offset 1, got %d", state.Offset())
	}
	if _, ok := state.GetSchemaByID(1); !ok {
		t.Error("expected schema id 1 to be registered")
	}
}

func TestConfig_PollTimeout_Default(t *testing.T) {
	var cfg Config
	if cfg.pollTimeout() != 200*time.Millisecond {
		t.Errorf("expected default poll timeout of 200ms, got %v", cfg.pollTimeout())
	}
	cfg.PollTimeout = 50 * time.Millisecond
	if cfg.pollTimeout() != 50*time.Millisecond {
		t.Errorf("expected configured poll timeout to be honored, got %v", cfg.pollTimeout())
	}
}
