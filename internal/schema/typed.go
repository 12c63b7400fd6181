package schema

import (
	"fmt"

	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/storage"
)

// TypedSchema is an immutable, parsed schema value tagged with its kind.
// It is the unit the registry state machine stores by ID and version: once
// constructed it never mutates, matching the replay model's need to hand the
// same value to many readers without locking.
type TypedSchema struct {
	Kind   storage.SchemaType
	Source string
	Parsed ParsedSchema

	// References carries resolved references so the compatibility checkers
	// (which reparse Source independently of Parsed) can resolve them too.
	References []storage.Reference
}

// Parse parses schema text of the given kind, resolving the supplied
// references through the registry's parser lookup.
func Parse(registry *Registry, kind storage.SchemaType, text string, refs []storage.Reference) (TypedSchema, error) {
	parser, ok := registry.Get(kind)
	if !ok {
		return TypedSchema{}, fmt.Errorf("no parser registered for schema type %q", kind)
	}
	parsed, err := parser.Parse(text, refs)
	if err != nil {
		return TypedSchema{}, fmt.Errorf("parsing %s schema: %w", kind, err)
	}
	return TypedSchema{Kind: kind, Source: text, Parsed: parsed, References: refs}, nil
}

// Equals reports whether two typed schemas are the same schema: same kind
// and same fingerprint. Fingerprint is textual for Protobuf (the teacher's
// protobuf parser resolves descriptors but doesn't canonicalize across
// whitespace/ordering) and semantic for Avro/JSON Schema.
func (t TypedSchema) Equals(other TypedSchema) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Parsed == nil || other.Parsed == nil {
		return t.Source == other.Source
	}
	return t.Parsed.Fingerprint() == other.Parsed.Fingerprint()
}

// SchemaType implements compatibility.TypedSchemaLike.
func (t TypedSchema) SchemaType() storage.SchemaType {
	return t.Kind
}

// SchemaWithRefs implements compatibility.TypedSchemaLike.
func (t TypedSchema) SchemaWithRefs() compatibility.SchemaWithRefs {
	return compatibility.SchemaWithRefs{Schema: t.Source, References: t.References}
}

var _ compatibility.TypedSchemaLike = TypedSchema{}
