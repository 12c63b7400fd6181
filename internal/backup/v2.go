package backup

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
)

type v2Line struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// v2Reader reads the marker-plus-newline-delimited-JSON format.
type v2Reader struct {
	topic        string
	f            *os.File
	scanner      *bufio.Scanner
	emittedTopic bool
}

func newV2Reader(f *os.File, topic string) (*v2Reader, error) {
	var header [markerLen]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("reading v2 marker: %w", err)
	}
	if header != V2Marker {
		return nil, fmt.Errorf("file does not start with the v2 marker")
	}
	br := newBufReader(f)
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading v2 header line: %w", err)
	}
	return &v2Reader{topic: topic, f: f, scanner: bufio.NewScanner(br)}, nil
}

func (r *v2Reader) Next() (Instruction, error) {
	if !r.emittedTopic {
		r.emittedTopic = true
		return RestoreTopic{Name: r.topic}, nil
	}

	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec v2Line
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decoding v2 record: %w", err)
		}
		key, err := base64.StdEncoding.DecodeString(rec.Key)
		if err != nil {
			return nil, fmt.Errorf("decoding v2 record key: %w", err)
		}
		var value []byte
		if rec.Value != nil {
			value, err = base64.StdEncoding.DecodeString(*rec.Value)
			if err != nil {
				return nil, fmt.Errorf("decoding v2 record value: %w", err)
			}
		}
		return ProducerSend{Topic: r.topic, Key: key, Value: value}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *v2Reader) Close() error { return r.f.Close() }

// V2Writer writes the marker-plus-newline-JSON format via SafeWriter, so a
// crash mid-backup never leaves a partially-written file at the final path.
type V2Writer struct {
	safe *SafeWriter
	bw   *bufio.Writer
}

func NewV2Writer(path string, allowOverwrite bool) (*V2Writer, error) {
	safe, err := NewSafeWriter(path, allowOverwrite)
	if err != nil {
		return nil, err
	}
	return &V2Writer{safe: safe}, nil
}

func (w *V2Writer) PrepareLocation() error {
	if _, err := w.safe.Write(V2Marker[:]); err != nil {
		return fmt.Errorf("writing v2 marker: %w", err)
	}
	if _, err := w.safe.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing v2 header newline: %w", err)
	}
	w.bw = bufio.NewWriterSize(w.safe, 64*1024)
	return nil
}

// StartPartition is a no-op: V2 holds the whole (single) partition in one
// file with no per-partition framing of its own.
func (w *V2Writer) StartPartition(topic string, partition int32) error { return nil }

func (w *V2Writer) StoreRecord(rec Record) error {
	line := v2Line{Key: base64.StdEncoding.EncodeToString(rec.Key)}
	if rec.Value != nil {
		encoded := base64.StdEncoding.EncodeToString(rec.Value)
		line.Value = &encoded
	}
	encoded, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encoding v2 record: %w", err)
	}
	if _, err := w.bw.Write(encoded); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

func (w *V2Writer) FinalizePartition() error {
	if w.bw == nil {
		return nil
	}
	return w.bw.Flush()
}

// StoreMetadata is a no-op for V2: the format has no sidecar file, unlike
// V3.
func (w *V2Writer) StoreMetadata(meta Metadata) error { return nil }

func (w *V2Writer) Close() error { return w.safe.Commit() }

// AnonymizeAvroWriter decorates a Writer, rewriting the record and field
// names of any Avro schema value deterministically (FNV-32a hash of the
// original name) before delegating the store. Grounded on karapace's
// AnonymizeAvroWriter, used when a backup must not leak a tenant's schema
// vocabulary.
type AnonymizeAvroWriter struct {
	Writer
}

func NewAnonymizeAvroWriter(w Writer) *AnonymizeAvroWriter {
	return &AnonymizeAvroWriter{Writer: w}
}

func (a *AnonymizeAvroWriter) StoreRecord(rec Record) error {
	if anonymized, ok := anonymizeAvroValue(rec.Value); ok {
		rec.Value = anonymized
	}
	return a.Writer.StoreRecord(rec)
}

// anonymizeAvroValue inspects a SCHEMA record's JSON value and, if its
// embedded schema is Avro, rewrites every record/field "name" to a
// deterministic hash-derived placeholder so the anonymized backup carries
// no trace of the original vocabulary while remaining internally
// consistent (the same name always anonymizes to the same placeholder).
func anonymizeAvroValue(value []byte) ([]byte, bool) {
	if len(value) == 0 {
		return nil, false
	}
	var outer struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}
	if err := json.Unmarshal(value, &outer); err != nil {
		return nil, false
	}
	if outer.SchemaType != "" && outer.SchemaType != "AVRO" {
		return nil, false
	}
	var avroSchema interface{}
	if err := json.Unmarshal([]byte(outer.Schema), &avroSchema); err != nil {
		return nil, false
	}
	anonymizeAvroNames(avroSchema)
	rewritten, err := json.Marshal(avroSchema)
	if err != nil {
		return nil, false
	}

	var full map[string]json.RawMessage
	if err := json.Unmarshal(value, &full); err != nil {
		return nil, false
	}
	encodedSchema, err := json.Marshal(string(rewritten))
	if err != nil {
		return nil, false
	}
	full["schema"] = encodedSchema
	out, err := json.Marshal(full)
	if err != nil {
		return nil, false
	}
	return out, true
}

func anonymizeAvroNames(node interface{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		if name, ok := v["name"].(string); ok {
			v["name"] = anonymizeName(name)
		}
		for _, child := range v {
			anonymizeAvroNames(child)
		}
	case []interface{}:
		for _, child := range v {
			anonymizeAvroNames(child)
		}
	}
}

func anonymizeName(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("anonymized_%08x", h.Sum32())
}
