package backup

import "testing"

func TestKeyFormatter_InactiveOnNonDefaultTopicWithoutForce(t *testing.T) {
	f := NewKeyFormatter("some_other_topic", "_schemas", false)
	raw := []byte("not even json")
	out, err := f.Reformat(raw)
	if err != nil {
		t.Fatalf("expected inactive formatter to pass through, got error: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestKeyFormatter_ActiveOnDefaultTopic_NormalizesKey(t *testing.T) {
	f := NewKeyFormatter("_schemas", "_schemas", false)
	out, err := f.Reformat([]byte(`{"version":1,"keytype":"SCHEMA","subject":"s"}`))
	if err != nil {
		t.Fatalf("Reformat: %v", err)
	}
	if string(out) != `{"keytype":"SCHEMA","subject":"s","version":1}` {
		t.Fatalf("unexpected canonicalized key: %s", out)
	}
}

func TestKeyFormatter_ActiveWhenForced(t *testing.T) {
	f := NewKeyFormatter("custom_topic", "_schemas", true)
	_, err := f.Reformat([]byte(`{"keytype":"NOOP"}`))
	if err != nil {
		t.Fatalf("Reformat: %v", err)
	}
}

func TestKeyFormatter_ActiveOnDefaultTopic_RejectsMalformedKey(t *testing.T) {
	f := NewKeyFormatter("_schemas", "_schemas", false)
	if _, err := f.Reformat([]byte("not json")); err == nil {
		t.Fatal("expected an error reformatting a malformed key on an active formatter")
	}
}
