package registry

import (
	"sort"

	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/schema"
)

// SubjectVersionEntry binds one version of a subject's evolution lineage to
// a globally identified schema. Versions are assigned by the log's writer,
// never allocated by a reader replaying it.
type SubjectVersionEntry struct {
	Version int
	Schema  schema.TypedSchema
	ID      int64
	Deleted bool
}

// Subject is a named evolution lineage of schemas. Compatibility is a
// pointer so "never configured" and "configured then cleared back to unset"
// are distinguishable from the subject-level default; a nil Compatibility
// means the subject falls through to global_compatibility.
type Subject struct {
	Name          string
	Compatibility *compatibility.Mode
	Schemas       map[int]*SubjectVersionEntry
}

func newSubject(name string) *Subject {
	return &Subject{Name: name, Schemas: make(map[int]*SubjectVersionEntry)}
}

// Versions returns this subject's version numbers in ascending order.
func (s *Subject) Versions() []int {
	versions := make([]int, 0, len(s.Schemas))
	for v := range s.Schemas {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// LatestLive returns the highest non-deleted version entry, if any.
func (s *Subject) LatestLive() (*SubjectVersionEntry, bool) {
	versions := s.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		entry := s.Schemas[versions[i]]
		if !entry.Deleted {
			return entry, true
		}
	}
	return nil, false
}
