package backup

import (
	"context"
	"testing"
)

func TestOrchestrator_Create_RejectsV1AsWriteTarget(t *testing.T) {
	o := NewOrchestrator(Config{TopicName: "_schemas"}, nil, nil)
	err := o.Create(context.Background(), CreateOptions{Version: VersionV1, DataPath: "out.v1"})
	if err == nil {
		t.Fatal("expected an error writing a v1 backup (read-only format)")
	}
}

func TestOrchestrator_Create_RejectsV3Stdout(t *testing.T) {
	o := NewOrchestrator(Config{TopicName: "_schemas"}, nil, nil)
	err := o.Create(context.Background(), CreateOptions{Version: VersionV3, DataPath: "-"})
	if err == nil {
		t.Fatal("expected an error writing a v3 backup to stdout")
	}
}

func TestOrchestrator_Restore_RejectsStdin(t *testing.T) {
	o := NewOrchestrator(Config{TopicName: "_schemas"}, nil, nil)
	err := o.Restore(context.Background(), RestoreOptions{Path: "-"})
	if err == nil {
		t.Fatal("expected an error restoring from stdin")
	}
}

func TestOrchestrator_Restore_RejectsMissingFile(t *testing.T) {
	o := NewOrchestrator(Config{TopicName: "_schemas"}, nil, nil)
	err := o.Restore(context.Background(), RestoreOptions{Path: "/nonexistent/path/to/backup"})
	if err == nil {
		t.Fatal("expected an error restoring a missing file")
	}
}
