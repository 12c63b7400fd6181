package backup

import (
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestV1_ReadsLegacyTabSeparatedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.v1")

	key := base64.StdEncoding.EncodeToString([]byte(`{"keytype":"NOOP"}`))
	value := base64.StdEncoding.EncodeToString([]byte("hi"))
	content := key + "\t" + value + "\n" + key + "\t-\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	version, err := IdentifyFormat(path)
	if err != nil {
		t.Fatalf("IdentifyFormat: %v", err)
	}
	if version != VersionV1 {
		t.Fatalf("expected VersionV1 for a legacy unmarked file, got %v", version)
	}

	r, err := NewReader(path, "_schemas")
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	topicInst, err := r.Next()
	if err != nil {
		t.Fatalf("Next (topic): %v", err)
	}
	if topic, ok := topicInst.(RestoreTopic); !ok || topic.Name != "_schemas" {
		t.Fatalf("expected leading RestoreTopic, got %#v", topicInst)
	}

	recordInst, err := r.Next()
	if err != nil {
		t.Fatalf("Next (record 1): %v", err)
	}
	send := recordInst.(ProducerSend)
	if string(send.Value) != "hi" {
		t.Fatalf("expected value 'hi', got %q", send.Value)
	}

	tombstoneInst, err := r.Next()
	if err != nil {
		t.Fatalf("Next (record 2): %v", err)
	}
	tombstone := tombstoneInst.(ProducerSend)
	if tombstone.Value != nil {
		t.Fatalf("expected '-' to decode to a nil tombstone value, got %v", tombstone.Value)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
