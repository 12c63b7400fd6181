package compatibility

import (
	"testing"
)

func TestNewCompatibleResult(t *testing.T) {
	r := NewCompatibleResult()
	if !r.IsCompatible {
		t.Error("expected compatible result")
	}
	if len(r.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(r.Messages))
	}
}

func TestNewIncompatibleResult(t *testing.T) {
	r := NewIncompatibleResult("field removed", "type changed")
	if r.IsCompatible {
		t.Error("expected incompatible result")
	}
	if len(r.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(r.Messages))
	}
	if r.Messages[0] != "field removed" {
		t.Errorf("expected 'field removed', got %q", r.Messages[0])
	}
	if r.Messages[1] != "type changed" {
		t.Errorf("expected 'type changed', got %q", r.Messages[1])
	}
}

func TestNewIncompatibleResult_NoMessages(t *testing.T) {
	r := NewIncompatibleResult()
	if r.IsCompatible {
		t.Error("expected incompatible result")
	}
	if len(r.Messages) != 0 {
		t.Errorf("expected 0 messages, got %d", len(r.Messages))
	}
}

func TestNewIncompatibleResult_SingleMessage(t *testing.T) {
	r := NewIncompatibleResult("breaking change")
	if r.IsCompatible {
		t.Error("expected incompatible result")
	}
	if len(r.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(r.Messages))
	}
}

func TestAddMessage(t *testing.T) {
	r := NewCompatibleResult()
	r.AddMessage("field %s removed from %s", "age", "User")

	if r.IsCompatible {
		t.Error("expected incompatible after AddMessage")
	}
	if len(r.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(r.Messages))
	}
	if r.Messages[0] != "field age removed from User" {
		t.Errorf("unexpected message: %q", r.Messages[0])
	}
}

func TestAddMessage_Multiple(t *testing.T) {
	r := NewCompatibleResult()
	r.AddMessage("issue 1")
	r.AddMessage("issue 2")
	r.AddMessage("issue 3")

	if r.IsCompatible {
		t.Error("expected incompatible")
	}
	if len(r.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(r.Messages))
	}
}

func TestMerge_IncompatibleIntoCompatible(t *testing.T) {
	r := NewCompatibleResult()
	other := NewIncompatibleResult("problem")

	r.Merge(other)

	if r.IsCompatible {
		t.Error("expected incompatible after merging incompatible result")
	}
	if len(r.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(r.Messages))
	}
}

func TestMerge_CompatibleIntoCompatible(t *testing.T) {
	r := NewCompatibleResult()
	other := NewCompatibleResult()

	r.Merge(other)

	if !r.IsCompatible {
		t.Error("expected compatible after merging compatible result")
	}
	if len(r.Messages) != 0 {
		t.Errorf("expected 0 messages, got %d", len(r.Messages))
	}
}

func TestMerge_CompatibleIntoIncompatible(t *testing.T) {
	r := NewIncompatibleResult("existing issue")
	other := NewCompatibleResult()

	r.Merge(other)

	if r.IsCompatible {
		t.Error("expected still incompatible")
	}
	if len(r.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(r.Messages))
	}
}

func TestMerge_MultipleMessages(t *testing.T) {
	r := NewIncompatibleResult("issue 1")
	other := NewIncompatibleResult("issue 2", "issue 3")

	r.Merge(other)

	if r.IsCompatible {
		t.Error("expected incompatible")
	}
	if len(r.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(r.Messages))
	}
}

func TestNewIncompatibleResult_KindOther(t *testing.T) {
	r := NewIncompatibleResult("issue 1", "issue 2")
	if len(r.Kinds) != 2 {
		t.Fatalf("expected 2 kinds, got %d", len(r.Kinds))
	}
	for _, k := range r.Kinds {
		if k != KindOther {
			t.Errorf("expected KindOther, got %q", k)
		}
	}
	if len(r.Locations) != 2 || r.Locations[0] != "" || r.Locations[1] != "" {
		t.Errorf("expected empty locations, got %v", r.Locations)
	}
}

func TestAddMessageWithKind(t *testing.T) {
	r := NewCompatibleResult()
	r.AddMessageWithKind(KindTypeMismatch, "root.field", "type changed: %s -> %s", "int", "string")

	if r.IsCompatible {
		t.Error("expected incompatible after AddMessageWithKind")
	}
	if len(r.Kinds) != 1 || r.Kinds[0] != KindTypeMismatch {
		t.Fatalf("expected KindTypeMismatch, got %v", r.Kinds)
	}
	if r.Locations[0] != "root.field" {
		t.Errorf("expected location 'root.field', got %q", r.Locations[0])
	}
	if r.Messages[0] != "type changed: int -> string" {
		t.Errorf("unexpected message: %q", r.Messages[0])
	}
}

func TestOnlyMissingEnumSymbols(t *testing.T) {
	compatible := NewCompatibleResult()
	if compatible.OnlyMissingEnumSymbols() {
		t.Error("a compatible result should never report OnlyMissingEnumSymbols")
	}

	onlyEnum := NewCompatibleResult()
	onlyEnum.AddMessageWithKind(KindMissingEnumSymbols, "", "writer symbol missing")
	if !onlyEnum.OnlyMissingEnumSymbols() {
		t.Error("expected true when every recorded kind is KindMissingEnumSymbols")
	}

	mixed := NewCompatibleResult()
	mixed.AddMessageWithKind(KindMissingEnumSymbols, "", "writer symbol missing")
	mixed.AddMessageWithKind(KindTypeMismatch, "", "type mismatch")
	if mixed.OnlyMissingEnumSymbols() {
		t.Error("expected false when a non-enum kind is also present")
	}

	empty := &Result{IsCompatible: false}
	if empty.OnlyMissingEnumSymbols() {
		t.Error("expected false when no kinds were recorded")
	}
}

func TestMerge_PreservesKindsAndLocations(t *testing.T) {
	r := NewCompatibleResult()
	other := NewCompatibleResult()
	other.AddMessageWithKind(KindTypeMismatch, "a.b", "mismatch")

	r.Merge(other)

	if len(r.Kinds) != 1 || r.Kinds[0] != KindTypeMismatch {
		t.Fatalf("expected merged kind to carry over, got %v", r.Kinds)
	}
	if len(r.Locations) != 1 || r.Locations[0] != "a.b" {
		t.Fatalf("expected merged location to carry over, got %v", r.Locations)
	}
}
