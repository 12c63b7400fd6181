package backup

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// sidecarDocument is the on-disk shape of a V3 metadata file (§6 "Backup
// V3 file layout": topic_name, topic_id?, started_at, finished_at,
// data_files[]). ISO-8601 UTC timestamps, per spec.
type sidecarDocument struct {
	TopicName  string    `yaml:"topic_name"`
	TopicID    string    `yaml:"topic_id,omitempty"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	DataFiles  []string  `yaml:"data_files"`
	Encrypted  bool      `yaml:"encrypted,omitempty"`
	KMSKeyID   string    `yaml:"kms_key_id,omitempty"`
	WrappedKey []byte    `yaml:"wrapped_key,omitempty"`
}

func writeV3Sidecar(path string, meta Metadata, allowOverwrite bool) error {
	doc := sidecarDocument{
		TopicName:  meta.TopicName,
		TopicID:    meta.TopicID,
		StartedAt:  meta.StartedAt.UTC(),
		FinishedAt: meta.FinishedAt.UTC(),
		DataFiles:  meta.DataFiles,
	}
	encoded, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding v3 sidecar metadata: %w", err)
	}
	safe, err := NewSafeWriter(path, allowOverwrite)
	if err != nil {
		return fmt.Errorf("preparing v3 sidecar metadata file: %w", err)
	}
	if _, err := safe.Write(encoded); err != nil {
		safe.Abort()
		return fmt.Errorf("writing v3 sidecar metadata: %w", err)
	}
	return safe.Commit()
}

func readV3Sidecar(path string) (sidecarDocument, error) {
	var doc sidecarDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading v3 sidecar metadata %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decoding v3 sidecar metadata %q: %w", path, err)
	}
	return doc, nil
}
