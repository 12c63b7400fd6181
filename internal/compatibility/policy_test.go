package compatibility_test

import (
	"testing"

	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/compatibility/avro"
	"github.com/axonops/axonops-schema-registry/internal/storage"
)

type typedSchemaStub struct {
	kind   storage.SchemaType
	schema string
}

func (t typedSchemaStub) SchemaType() storage.SchemaType { return t.kind }
func (t typedSchemaStub) SchemaWithRefs() compatibility.SchemaWithRefs {
	return compatibility.SchemaWithRefs{Schema: t.schema}
}

func avroSchema(s string) typedSchemaStub {
	return typedSchemaStub{kind: storage.SchemaTypeAvro, schema: s}
}

func TestCheckCompatibility_TypeMismatch(t *testing.T) {
	c := newCheckerWithAll()
	old := typedSchemaStub{kind: storage.SchemaTypeAvro, schema: `"int"`}
	next := typedSchemaStub{kind: storage.SchemaTypeJSON, schema: `{"type":"integer"}`}

	result := c.CheckCompatibility(old, next, compatibility.ModeBackward)
	if result.IsCompatible {
		t.Fatal("expected incompatible result for mismatched schema kinds")
	}
	if len(result.Kinds) != 1 || result.Kinds[0] != compatibility.KindTypeMismatch {
		t.Fatalf("expected a single type_mismatch kind, got %v", result.Kinds)
	}
}

func TestCheckCompatibility_None(t *testing.T) {
	c := newCheckerWithAll()
	old := avroSchema(`"int"`)
	next := avroSchema(`"string"`)

	if !c.CheckCompatibility(old, next, compatibility.ModeNone).IsCompatible {
		t.Fatal("NONE mode must always be compatible")
	}
}

func TestCheckCompatibility_SameSchemaAlwaysCompatible(t *testing.T) {
	c := newCheckerWithAll()
	schema := avroSchema(`{"type":"record","name":"R","fields":[{"name":"a","type":"int"}]}`)

	for _, mode := range []compatibility.Mode{
		compatibility.ModeNone, compatibility.ModeBackward, compatibility.ModeForward, compatibility.ModeFull,
	} {
		result := c.CheckCompatibility(schema, schema, mode)
		if !result.IsCompatible {
			t.Fatalf("mode %s: expected a schema to be compatible with itself, got %v", mode, result.Messages)
		}
	}
}

func TestCheckCompatibility_FullEqualsMergeOfBackwardAndForward(t *testing.T) {
	c := newCheckerWithAll()
	old := avroSchema(`{"type":"record","name":"R","fields":[{"name":"a","type":"int"}]}`)
	next := avroSchema(`{"type":"record","name":"R","fields":[{"name":"a","type":"int"},{"name":"b","type":"string"}]}`)

	full := c.CheckCompatibility(old, next, compatibility.ModeFull)
	backward := c.CheckCompatibility(old, next, compatibility.ModeBackward)
	forward := c.CheckCompatibility(old, next, compatibility.ModeForward)

	wantCompatible := backward.IsCompatible && forward.IsCompatible
	if full.IsCompatible != wantCompatible {
		t.Fatalf("FULL compatibility (%v) did not match merge of BACKWARD (%v) and FORWARD (%v)",
			full.IsCompatible, backward.IsCompatible, forward.IsCompatible)
	}
}

func TestCheckCompatibility_MissingEnumSymbolsDowngraded(t *testing.T) {
	checker := avro.NewChecker()
	oldEnum := compatibility.SchemaWithRefs{Schema: `{"type":"enum","name":"E","symbols":["A","B"]}`}
	newEnum := compatibility.SchemaWithRefs{Schema: `{"type":"enum","name":"E","symbols":["A"]}`}

	// new (reader) is missing symbol "B" that old (writer) has, and no default is set:
	// the underlying checker reports it, but the legacy downgrade rule forces compatible.
	result := checker.Check(newEnum, oldEnum)
	if !result.IsCompatible {
		t.Fatalf("expected missing-enum-symbols incompatibility to be downgraded to compatible, got %v", result.Messages)
	}
}
