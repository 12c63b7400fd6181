package registry

import (
	"encoding/json"
	"fmt"
)

// RecordKeyType is the discriminant carried by every log record key.
type RecordKeyType string

const (
	RecordKeyConfig        RecordKeyType = "CONFIG"
	RecordKeySchema        RecordKeyType = "SCHEMA"
	RecordKeyDeleteSubject RecordKeyType = "DELETE_SUBJECT"
	RecordKeyNoop          RecordKeyType = "NOOP"
)

// RecordKey is the decoded form of a log record's key. Subject and Version
// are optional depending on KeyType, matching the wire shape in the teacher's
// Kafka record encoding.
type RecordKey struct {
	KeyType RecordKeyType `json:"keytype"`
	Subject string        `json:"subject,omitempty"`
	Version int           `json:"version,omitempty"`
	Magic   int           `json:"magic,omitempty"`
}

// DecodeKey parses a log record key. A decode failure is never fatal to
// replay: the caller must still advance the consumer offset for the record.
func DecodeKey(raw []byte) (RecordKey, error) {
	var key RecordKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return RecordKey{}, fmt.Errorf("decoding record key: %w", err)
	}
	switch key.KeyType {
	case RecordKeyConfig, RecordKeySchema, RecordKeyDeleteSubject, RecordKeyNoop:
	default:
		return RecordKey{}, fmt.Errorf("unknown keytype %q", key.KeyType)
	}
	return key, nil
}

// configValue is the CONFIG record's JSON value shape. A null value is
// decoded by the caller before reaching Apply (see State.Apply).
type configValue struct {
	CompatibilityLevel string `json:"compatibilityLevel"`
}

// schemaValue is the SCHEMA record's JSON value shape.
type schemaValue struct {
	Subject    string `json:"subject"`
	Version    int    `json:"version"`
	ID         int64  `json:"id"`
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// deleteSubjectValue is the DELETE_SUBJECT record's JSON value shape.
type deleteSubjectValue struct {
	Subject string `json:"subject"`
	Version int    `json:"version"`
}
