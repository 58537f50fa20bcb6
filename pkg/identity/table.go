package identity

import (
	"gopkg.in/yaml.v3"

	"github.com/kart-io/sendhub/pkg/errors"
)

// Record is the wire form of one person entry: platform name to username list.
type Record map[string][]string

// Table is a read-only collection of persons plus a derived reverse index
// from (platform, username) to the owning person. Built once per run.
type Table struct {
	persons []Person
	index   map[string]map[string]Person
}

// Load builds a table from per-person records. Platform names are matched
// case-sensitively against the canonical registry; a record referencing an
// unregistered platform is rejected. Records must be non-empty and every
// username list must be non-empty with unique entries.
//
// When two persons claim the same username on one platform, the later record
// wins in the reverse index (last-write-wins).
func Load(records []Record, registry []string) (*Table, error) {
	known := make(map[string]bool, len(registry))
	for _, name := range registry {
		known[name] = true
	}

	t := &Table{
		persons: make([]Person, 0, len(records)),
		index:   make(map[string]map[string]Person),
	}

	for i, record := range records {
		if len(record) == 0 {
			return nil, errors.Newf(errors.ErrMalformedRecord, "record %d is empty", i)
		}

		person := make(Person, len(record))
		for platform, usernames := range record {
			if !known[platform] {
				return nil, errors.Newf(errors.ErrUnknownPlatform,
					"record %d references unregistered platform %q", i, platform).WithPlatform(platform)
			}
			if len(usernames) == 0 {
				return nil, errors.Newf(errors.ErrMalformedRecord,
					"record %d has no usernames for platform %q", i, platform).WithPlatform(platform)
			}
			seen := make(map[string]bool, len(usernames))
			for _, username := range usernames {
				if username == "" {
					return nil, errors.Newf(errors.ErrMalformedRecord,
						"record %d has an empty username for platform %q", i, platform).WithPlatform(platform)
				}
				if seen[username] {
					return nil, errors.Newf(errors.ErrMalformedRecord,
						"record %d repeats username %q for platform %q", i, username, platform).WithPlatform(platform)
				}
				seen[username] = true
			}
			person[platform] = append([]string(nil), usernames...)
		}

		t.persons = append(t.persons, person)
		for platform, usernames := range person {
			byName := t.index[platform]
			if byName == nil {
				byName = make(map[string]Person)
				t.index[platform] = byName
			}
			for _, username := range usernames {
				byName[username] = person
			}
		}
	}

	return t, nil
}

// ParseYAML parses a YAML document holding a list of records and loads it.
// The document shape matches the user-table file format:
//
//	- slack: ["@user1"]
//	  email: ["user1@example.com"]
//	- slack: ["@user2"]
func ParseYAML(text []byte, registry []string) (*Table, error) {
	var records []Record
	if err := yaml.Unmarshal(text, &records); err != nil {
		return nil, errors.Wrap(err, errors.ErrMalformedRecord, "user table is not a list of platform/username records")
	}
	return Load(records, registry)
}

// Len returns the number of persons in the table.
func (t *Table) Len() int {
	return len(t.persons)
}

// Persons returns every person in load order.
func (t *Table) Persons() []Person {
	return t.persons
}

// PersonsOn returns the persons with at least one username on the given
// platform, in load order.
func (t *Table) PersonsOn(platform string) []Person {
	var out []Person
	for _, person := range t.persons {
		if person.HasPlatform(platform) {
			out = append(out, person)
		}
	}
	return out
}

// Lookup resolves a platform username to its owning person.
func (t *Table) Lookup(platform, username string) (Person, bool) {
	byName, ok := t.index[platform]
	if !ok {
		return nil, false
	}
	person, ok := byName[username]
	return person, ok
}

// Unrecognized filters the given usernames down to those with no table entry
// on the given platform. Used to warn operators about identities missing from
// the table before a rerun.
func (t *Table) Unrecognized(platform string, usernames []string) []string {
	var out []string
	for _, username := range usernames {
		if _, ok := t.Lookup(platform, username); !ok {
			out = append(out, username)
		}
	}
	return out
}
