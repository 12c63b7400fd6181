package compatibility

import "github.com/axonops/axonops-schema-registry/internal/storage"

// TypedSchemaLike is the minimal view of a schema the policy engine needs:
// its type (for the type-mismatch check) and its string+reference form (for
// the type-specific checkers registered on Checker).
type TypedSchemaLike interface {
	SchemaType() storage.SchemaType
	SchemaWithRefs() SchemaWithRefs
}

// CheckCompatibility is the single-pair compatibility primitive (spec module
// C): it maps a policy mode and a pair (old, new) onto a directional or
// bidirectional compatibility check. Callers implementing the `_TRANSITIVE`
// modes are responsible for invoking this once per prior version; at the
// pairwise level a transitive mode behaves identically to its non-transitive
// counterpart (see Mode.IsTransitive).
func (c *Checker) CheckCompatibility(old, next TypedSchemaLike, mode Mode) *Result {
	if old.SchemaType() != next.SchemaType() {
		r := NewCompatibleResult()
		r.AddMessageWithKind(KindTypeMismatch, "",
			"comparing different schema types: %s with %s", old.SchemaType(), next.SchemaType())
		return r
	}

	if mode == ModeNone {
		return NewCompatibleResult()
	}

	checker, ok := c.checkers[old.SchemaType()]
	if !ok {
		return NewIncompatibleResult("no compatibility checker for schema type: " + string(old.SchemaType()))
	}

	oldSchema := old.SchemaWithRefs()
	newSchema := next.SchemaWithRefs()

	switch {
	case mode.RequiresBackward() && mode.RequiresForward():
		// FULL{,_TRANSITIVE}: merge both directions.
		result := checker.Check(newSchema, oldSchema) // BACKWARD: reader=new, writer=old
		result.Merge(checker.Check(oldSchema, newSchema)) // FORWARD: reader=old, writer=new
		return result
	case mode.RequiresBackward():
		return checker.Check(newSchema, oldSchema) // reader=new, writer=old
	case mode.RequiresForward():
		return checker.Check(oldSchema, newSchema) // reader=old, writer=new
	default:
		return NewCompatibleResult()
	}
}
