package backup

import (
	"encoding/json"
	"fmt"

	"github.com/axonops/axonops-schema-registry/internal/registry"
)

// KeyFormatter re-derives a restored record's key framing rather than
// trusting the backup file's raw bytes verbatim. Some historical backups
// carry keys produced by a schema-registry implementation with a
// different magic-byte/field-ordering convention than this one; restoring
// them verbatim would produce a log this registry's reader loop can't
// replay. Grounded on karapace's KeyFormatter, referenced from
// backup/api.py and activated there under the same two conditions this
// mirrors.
type KeyFormatter struct {
	enabled bool
}

// NewKeyFormatter activates reformatting when the target topic is the
// default schemas topic, or the operator set force_key_correction
// explicitly — the same two conditions karapace's backup/api.py checks
// before instantiating its KeyFormatter.
func NewKeyFormatter(topicName, defaultTopicName string, forceKeyCorrection bool) *KeyFormatter {
	return &KeyFormatter{enabled: topicName == defaultTopicName || forceKeyCorrection}
}

// Reformat parses rawKey as a registry.RecordKey and re-marshals it, which
// normalizes field order and drops unknown fields; a zero or missing magic
// field is omitted from the output. When reformatting isn't active, rawKey
// passes through unchanged.
func (f *KeyFormatter) Reformat(rawKey []byte) ([]byte, error) {
	if !f.enabled {
		return rawKey, nil
	}
	key, err := registry.DecodeKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("reformatting restored record key: %w", err)
	}
	out, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("re-encoding restored record key: %w", err)
	}
	return out, nil
}
