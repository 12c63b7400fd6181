package backup

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

// v1Reader reads the legacy, unmarked, tab-separated backup format. It is
// read-only: karapace never regained a V1 writer after introducing V2, and
// neither do we.
type v1Reader struct {
	topic        string
	f            *os.File
	scanner      *bufio.Scanner
	emittedTopic bool
}

func newV1Reader(f *os.File, topic string) *v1Reader {
	return &v1Reader{
		topic:   topic,
		f:       f,
		scanner: bufio.NewScanner(newBufReader(f)),
	}
}

// Next yields a single leading RestoreTopic (V1 files carry no topic of
// their own, so the caller-supplied name is used), then one ProducerSend
// per non-empty line. Each line is "<base64 key>\t<base64 value>"; a "-"
// value field marks a tombstone (nil Value).
func (r *v1Reader) Next() (Instruction, error) {
	if !r.emittedTopic {
		r.emittedTopic = true
		return RestoreTopic{Name: r.topic}, nil
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed v1 backup line: %q", line)
		}
		key, err := base64.StdEncoding.DecodeString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("decoding v1 record key: %w", err)
		}
		var value []byte
		if fields[1] != "-" {
			value, err = base64.StdEncoding.DecodeString(fields[1])
			if err != nil {
				return nil, fmt.Errorf("decoding v1 record value: %w", err)
			}
		}
		return ProducerSend{Topic: r.topic, Key: key, Value: value}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *v1Reader) Close() error { return r.f.Close() }
