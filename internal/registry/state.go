package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/schema"
	"github.com/axonops/axonops-schema-registry/internal/storage"
)

// State is the registry's in-memory model, rebuilt by replaying the
// compacted schemas topic. It is never persisted independently; the log is
// the durable store. Exactly one writer (the reader loop) calls Apply;
// request handlers only read.
//
// idMu guards schemasByID and globalSchemaID. mu guards subjects. The two
// are kept separate rather than merged into one lock because GetSchemaID is
// called from request-handling goroutines allocating provisional ids (the
// authoritative id is whatever comes back on the log), while subjects is
// touched only by Apply.
type State struct {
	schemaParser *schema.Registry

	idMu           sync.Mutex
	schemasByID    map[int64]schema.TypedSchema
	globalSchemaID int64

	mu                  sync.RWMutex
	subjects            map[string]*Subject
	globalCompatibility compatibility.Mode

	offset atomic.Int64
	ready  atomic.Bool

	logger *slog.Logger
}

// NewState creates an empty registry state. globalCompatibility starts at
// the configured initial mode (spec §6, the "compatibility" config key).
func NewState(schemaParser *schema.Registry, initialCompatibility compatibility.Mode, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		schemaParser:        schemaParser,
		schemasByID:         make(map[int64]schema.TypedSchema),
		subjects:            make(map[string]*Subject),
		globalCompatibility: initialCompatibility,
		logger:              logger,
	}
}

// Offset returns the last successfully applied log offset.
func (s *State) Offset() int64 { return s.offset.Load() }

// SetOffset records the offset of the record just consumed, whether or not
// Apply accepted it. The reader loop calls this unconditionally so replay
// never gets stuck retrying a record it cannot make sense of.
func (s *State) SetOffset(offset int64) { s.offset.Store(offset) }

// Ready reports whether initial catch-up has completed.
func (s *State) Ready() bool { return s.ready.Load() }

// SetReady marks catch-up complete. Called by the reader loop on the first
// empty poll after start.
func (s *State) SetReady() { s.ready.Store(true) }

// GlobalCompatibility returns the registry-wide fallback compatibility mode.
func (s *State) GlobalCompatibility() compatibility.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalCompatibility
}

// EffectiveCompatibility returns the subject's own mode if configured,
// otherwise the global fallback.
func (s *State) EffectiveCompatibility(subject string) compatibility.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if subj, ok := s.subjects[subject]; ok && subj.Compatibility != nil {
		return *subj.Compatibility
	}
	return s.globalCompatibility
}

// GetSchemaByID returns a globally identified schema, including dangling ids
// left behind by deletions (invariant 2: every id is present, but not every
// id is live in a subject).
func (s *State) GetSchemaByID(id int64) (schema.TypedSchema, bool) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	ts, ok := s.schemasByID[id]
	return ts, ok
}

// GetSubject returns a snapshot copy of a subject's version map. The
// returned Subject is a shallow copy safe to read without holding the lock
// afterward; entries themselves are immutable TypedSchema-bearing values.
func (s *State) GetSubject(name string) (*Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[name]
	if !ok {
		return nil, false
	}
	clone := &Subject{Name: subj.Name, Compatibility: subj.Compatibility, Schemas: make(map[int]*SubjectVersionEntry, len(subj.Schemas))}
	for v, entry := range subj.Schemas {
		e := *entry
		clone.Schemas[v] = &e
	}
	return clone, true
}

// ListSubjects returns all known subject names (insertion order not
// observable, per spec §3).
func (s *State) ListSubjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.subjects))
	for name := range s.subjects {
		names = append(names, name)
	}
	return names
}

// GetSchemaID implements the provisional-allocation rule for schemas
// submitted via the API rather than observed on the log: an equal schema
// reuses its existing id; otherwise global_schema_id is incremented under
// idMu. The authoritative id is whatever the write round-trips back as on
// the log (Apply may see a different, earlier-assigned id win the race).
func (s *State) GetSchemaID(next schema.TypedSchema) int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	for id, existing := range s.schemasByID {
		if existing.Equals(next) {
			return id
		}
	}
	s.globalSchemaID++
	return s.globalSchemaID
}

// Apply is the single entry point for mutating State from the log. It is
// never called concurrently (single-writer discipline, §5): the reader loop
// is State's only caller. A returned error means the record was skipped;
// the caller must still advance the offset (spec §4.D key malformation
// policy, §7 "the source ... does NOT advance the offset consistently" —
// implementers should always advance regardless).
func (s *State) Apply(key RecordKey, value json.RawMessage) error {
	switch key.KeyType {
	case RecordKeyConfig:
		return s.applyConfig(key, value)
	case RecordKeySchema:
		return s.applySchema(key, value)
	case RecordKeyDeleteSubject:
		return s.applyDeleteSubject(key, value)
	case RecordKeyNoop:
		return nil
	default:
		return fmt.Errorf("unknown keytype %q", key.KeyType)
	}
}

func isNullValue(value json.RawMessage) bool {
	trimmed := string(value)
	return len(value) == 0 || trimmed == "null"
}

func (s *State) applyConfig(key RecordKey, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.Subject != "" {
		if isNullValue(value) {
			if subj, ok := s.subjects[key.Subject]; ok {
				subj.Compatibility = nil
			}
			return nil
		}
		var cv configValue
		if err := json.Unmarshal(value, &cv); err != nil {
			return fmt.Errorf("decoding CONFIG value for subject %q: %w", key.Subject, err)
		}
		mode, ok := compatibility.ParseMode(cv.CompatibilityLevel)
		if !ok {
			return fmt.Errorf("unknown compatibility level %q for subject %q", cv.CompatibilityLevel, key.Subject)
		}
		subj, ok := s.subjects[key.Subject]
		if !ok {
			subj = newSubject(key.Subject)
			s.subjects[key.Subject] = subj
		}
		subj.Compatibility = &mode
		return nil
	}

	if isNullValue(value) {
		s.globalCompatibility = compatibility.ModeBackward
		return nil
	}
	var cv configValue
	if err := json.Unmarshal(value, &cv); err != nil {
		return fmt.Errorf("decoding global CONFIG value: %w", err)
	}
	mode, ok := compatibility.ParseMode(cv.CompatibilityLevel)
	if !ok {
		return fmt.Errorf("unknown global compatibility level %q", cv.CompatibilityLevel)
	}
	s.globalCompatibility = mode
	return nil
}

func (s *State) applySchema(key RecordKey, value json.RawMessage) error {
	if isNullValue(value) {
		s.mu.Lock()
		defer s.mu.Unlock()
		subj, ok := s.subjects[key.Subject]
		if !ok {
			s.logger.Warn("SCHEMA tombstone for unknown subject", slog.String("subject", key.Subject), slog.Int("version", key.Version))
			return nil
		}
		if _, ok := subj.Schemas[key.Version]; !ok {
			s.logger.Warn("SCHEMA tombstone for unknown version", slog.String("subject", key.Subject), slog.Int("version", key.Version))
			return nil
		}
		delete(subj.Schemas, key.Version)
		return nil
	}

	var sv schemaValue
	if err := json.Unmarshal(value, &sv); err != nil {
		return fmt.Errorf("decoding SCHEMA value for subject %q: %w", key.Subject, err)
	}

	kind := storage.SchemaType(sv.SchemaType)
	if kind == "" {
		kind = storage.SchemaTypeAvro
	}
	switch kind {
	case storage.SchemaTypeAvro, storage.SchemaTypeJSON, storage.SchemaTypeProtobuf:
	default:
		return fmt.Errorf("unknown schema type %q for subject %q version %d", sv.SchemaType, sv.Subject, sv.Version)
	}

	typed, err := schema.Parse(s.schemaParser, kind, sv.Schema, nil)
	if err != nil {
		return fmt.Errorf("parsing %s schema for subject %q version %d: %w", kind, sv.Subject, sv.Version, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subj, exists := s.subjects[key.Subject]
	switch {
	case !exists:
		subj = newSubject(key.Subject)
		subj.Schemas[sv.Version] = &SubjectVersionEntry{Version: sv.Version, Schema: typed, ID: sv.ID, Deleted: sv.Deleted}
		s.subjects[key.Subject] = subj
		s.recordSchemaID(sv.ID, typed)

	case sv.Deleted:
		if _, ok := subj.Schemas[sv.Version]; !ok {
			// Observed-but-unexplained source behavior: a deleted schema for a
			// version the subject doesn't have yet registers the id globally
			// without creating a live version entry. Preserved as-is.
			s.recordSchemaID(sv.ID, typed)
			return nil
		}
		subj.Schemas[sv.Version].Deleted = true
		s.recordSchemaID(sv.ID, typed)

	default:
		subj.Schemas[sv.Version] = &SubjectVersionEntry{Version: sv.Version, Schema: typed, ID: sv.ID, Deleted: false}
		s.recordSchemaID(sv.ID, typed)
	}

	return nil
}

// recordSchemaID updates schemasByID and advances globalSchemaID if needed.
// Caller must not hold idMu; this takes it itself since it's also reachable
// independently of the subjects lock held by applySchema's callers.
func (s *State) recordSchemaID(id int64, typed schema.TypedSchema) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.schemasByID[id] = typed
	if id > s.globalSchemaID {
		s.globalSchemaID = id
	}
}

func (s *State) applyDeleteSubject(key RecordKey, value json.RawMessage) error {
	var dv deleteSubjectValue
	if err := json.Unmarshal(value, &dv); err != nil {
		return fmt.Errorf("decoding DELETE_SUBJECT value for subject %q: %w", key.Subject, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[key.Subject]
	if !ok {
		s.logger.Warn("DELETE_SUBJECT for unknown subject", slog.String("subject", key.Subject))
		return nil
	}
	for v, entry := range subj.Schemas {
		if v <= dv.Version {
			entry.Deleted = true
		}
	}
	return nil
}
