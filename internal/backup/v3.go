package backup

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// v3Reader reads the length-framed binary format (§4.F, §6 "Backup V3 file
// layout"). Each frame: key_len, key, value_len, value, headers_count,
// (hdr_key_len, hdr_key, hdr_val_len, hdr_val)*, timestamp_ms, partition,
// offset, all big-endian per the dgraph restore_map.go framing idiom. A
// value_len of -1 marks a tombstone (nil value).
type v3Reader struct {
	topic        string
	f            *os.File
	br           *bufio.Reader
	envelope     *Envelope
	emittedTopic bool
}

func newV3Reader(f *os.File, topic string) (*v3Reader, error) {
	var header [markerLen]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("reading v3 marker: %w", err)
	}
	if header != V3Marker {
		return nil, fmt.Errorf("file does not start with the v3 marker")
	}
	return &v3Reader{topic: topic, f: f, br: newBufReader(f)}, nil
}

// WithEnvelope installs the decryption envelope to use for every
// subsequent frame. The orchestrator's restore path installs the envelope
// passed in RestoreOptions.Envelope; the sidecar metadata is not consulted.
func (r *v3Reader) WithEnvelope(e *Envelope) *v3Reader {
	r.envelope = e
	return r
}

func (r *v3Reader) Next() (Instruction, error) {
	if !r.emittedTopic {
		r.emittedTopic = true
		return RestoreTopic{Name: r.topic}, nil
	}

	body := io.Reader(r.br)
	if r.envelope != nil {
		var frameLen uint32
		if err := binary.Read(r.br, binary.BigEndian, &frameLen); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading v3 encrypted frame length: %w", err)
		}
		sealed := make([]byte, frameLen)
		if _, err := io.ReadFull(r.br, sealed); err != nil {
			return nil, fmt.Errorf("reading v3 encrypted frame: %w", err)
		}
		plain, err := r.envelope.Open(sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypting v3 frame: %w", err)
		}
		body = newBufReader(bytesReaderOf(plain))
	}

	rec, err := readV3Frame(body, r.topic)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return rec, nil
}

func (r *v3Reader) Close() error { return r.f.Close() }

func readV3Frame(r io.Reader, topic string) (Instruction, error) {
	key, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	value, err := readLenPrefixedNullable(r)
	if err != nil {
		return nil, fmt.Errorf("reading v3 frame value: %w", err)
	}

	var headerCount uint32
	if err := binary.Read(r, binary.BigEndian, &headerCount); err != nil {
		return nil, fmt.Errorf("reading v3 frame header count: %w", err)
	}
	headers := make([]Header, 0, headerCount)
	for i := uint32(0); i < headerCount; i++ {
		hk, err := readLenPrefixedNullable(r)
		if err != nil {
			return nil, fmt.Errorf("reading v3 frame header key: %w", err)
		}
		hv, err := readLenPrefixedNullable(r)
		if err != nil {
			return nil, fmt.Errorf("reading v3 frame header value: %w", err)
		}
		var key *string
		if hk != nil {
			k := string(hk)
			key = &k
		}
		headers = append(headers, Header{Key: key, Value: hv})
	}

	var timestampMs int64
	if err := binary.Read(r, binary.BigEndian, &timestampMs); err != nil {
		return nil, fmt.Errorf("reading v3 frame timestamp: %w", err)
	}
	var partition int32
	if err := binary.Read(r, binary.BigEndian, &partition); err != nil {
		return nil, fmt.Errorf("reading v3 frame partition: %w", err)
	}
	var offset int64
	if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
		return nil, fmt.Errorf("reading v3 frame offset: %w", err)
	}

	return ProducerSend{
		Topic:     topic,
		Partition: partition,
		Key:       key,
		Value:     value,
		Headers:   headers,
		Timestamp: time.UnixMilli(timestampMs).UTC(),
	}, nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readLenPrefixedNullable(r io.Reader) ([]byte, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// V3Writer writes the length-framed binary format plus its YAML sidecar.
type V3Writer struct {
	dataPath       string
	metadataPath   string
	safe           *SafeWriter
	bw             *bufio.Writer
	envelope       *Envelope
	allowOverwrite bool
}

func NewV3Writer(dataPath, metadataPath string, allowOverwrite bool) (*V3Writer, error) {
	if dataPath == "-" || dataPath == "" {
		return nil, fmt.Errorf("v3 backups require a real filesystem path, stdout is not supported")
	}
	safe, err := NewSafeWriter(dataPath, allowOverwrite)
	if err != nil {
		return nil, err
	}
	return &V3Writer{dataPath: dataPath, metadataPath: metadataPath, safe: safe, allowOverwrite: allowOverwrite}, nil
}

// WithEnvelope installs the encryption envelope used to seal every frame.
func (w *V3Writer) WithEnvelope(e *Envelope) *V3Writer {
	w.envelope = e
	return w
}

func (w *V3Writer) PrepareLocation() error {
	if _, err := w.safe.Write(V3Marker[:]); err != nil {
		return fmt.Errorf("writing v3 marker: %w", err)
	}
	w.bw = bufio.NewWriterSize(w.safe, 64*1024)
	return nil
}

func (w *V3Writer) StartPartition(topic string, partition int32) error { return nil }

func (w *V3Writer) StoreRecord(rec Record) error {
	frame, err := encodeV3Frame(rec)
	if err != nil {
		return err
	}
	if w.envelope == nil {
		_, err := w.bw.Write(frame)
		return err
	}
	sealed := w.envelope.Seal(frame)
	if err := binary.Write(w.bw, binary.BigEndian, uint32(len(sealed))); err != nil {
		return err
	}
	_, err = w.bw.Write(sealed)
	return err
}

func encodeV3Frame(rec Record) ([]byte, error) {
	var buf writeBuffer
	buf.writeLenPrefixed(rec.Key)
	buf.writeLenPrefixedNullable(rec.Value)
	buf.writeUint32(uint32(len(rec.Headers)))
	for _, h := range rec.Headers {
		var keyBytes []byte
		if h.Key != nil {
			keyBytes = []byte(*h.Key)
		}
		buf.writeLenPrefixedNullable(keyBytes)
		buf.writeLenPrefixedNullable(h.Value)
	}
	buf.writeInt64(rec.Timestamp.UnixMilli())
	buf.writeInt32(rec.Partition)
	buf.writeInt64(rec.Offset)
	return buf.Bytes(), buf.err
}

func (w *V3Writer) FinalizePartition() error {
	if w.bw == nil {
		return nil
	}
	return w.bw.Flush()
}

func (w *V3Writer) StoreMetadata(meta Metadata) error {
	return writeV3Sidecar(w.metadataPath, meta, w.allowOverwrite)
}

func (w *V3Writer) Close() error { return w.safe.Commit() }
