// Package identity provides the cross-platform identity table for sendhub.
// A Person maps platform names to the usernames that person holds on each
// platform; the Table indexes persons so a platform username resolves back to
// its owner.
package identity

// Person is one identity-table entry: a mapping from platform name to an
// ordered list of usernames on that platform. Persons are built at table-load
// time and must not be mutated afterwards.
type Person map[string][]string

// IDs returns this person's usernames for the given platform, in table order.
// The result is empty when the person has no presence on the platform.
func (p Person) IDs(platform string) []string {
	return p[platform]
}

// PrimaryID returns the first username for the given platform, or "" when the
// person has no presence on the platform.
func (p Person) PrimaryID(platform string) string {
	ids := p[platform]
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// HasPlatform returns true when the person has at least one username on the
// given platform.
func (p Person) HasPlatform(platform string) bool {
	return len(p[platform]) > 0
}

// Platforms returns the number of platforms the person is registered on.
func (p Person) Platforms() int {
	return len(p)
}
