package catalog

import (
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/models"
)

// Normalize is the comparison form of a name: trimmed and lower-cased.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Snapshot is an immutable view of the catalog. It is never modified after
// construction; a rebuild produces a new one.
type Snapshot struct {
	entries []models.Entry
	byName  map[string]int
}

func newSnapshot(entries []models.Entry) *Snapshot {
	s := &Snapshot{
		entries: entries,
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		s.byName[Normalize(e.Name)] = i
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the entries in remote order.
func (s *Snapshot) Entries() []models.Entry {
	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FindExact looks an entry up by case-insensitive, trimmed equality.
func (s *Snapshot) FindExact(name string) (models.Entry, bool) {
	i, ok := s.byName[Normalize(name)]
	if !ok {
		return models.Entry{}, false
	}
	return s.entries[i], true
}

// FindMatches returns every entry whose name contains keyword
// (case-insensitive), in remote order. A blank keyword matches nothing.
func (s *Snapshot) FindMatches(keyword string) []models.Entry {
	kw := Normalize(keyword)
	if kw == "" {
		return nil
	}

	var out []models.Entry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Name), kw) {
			out = append(out, e)
		}
	}
	return out
}
