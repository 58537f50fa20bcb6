// Package resolver derives the recipient list for a dispatch run.
// An explicit recipient list always wins; otherwise candidates are inferred
// from the identity table. Relevance filtering against the templating data is
// deliberately deferred to the per-recipient input builder, so the resolver
// never needs to understand the data's shape: it supplies the broad candidate
// set and the builder prunes it.
package resolver

import (
	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/identity"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// Candidate pairs a constructed Recipient with the Person it belongs to.
// Person is nil when the recipient was given explicitly and has no identity
// table entry; templated dispatch skips such candidates.
type Candidate struct {
	Recipient platform.Recipient
	Person    identity.Person
}

// Resolve produces the deduplicated candidate set for one platform.
//
// With explicit specs, each is constructed via the platform's NewRecipient
// and returned as-is: no table inference happens, even when the table
// disagrees. Without explicit specs, every person holding at least one
// username on the platform becomes a candidate, addressed by their first
// username. Candidates are deduplicated by Recipient.ID, keeping first
// occurrence order.
func Resolve(p platform.Platform, explicit []platform.RecipientSpec, table *identity.Table, log logger.Logger) ([]Candidate, error) {
	if log == nil {
		log = logger.Discard
	}

	if len(explicit) > 0 {
		return resolveExplicit(p, explicit, table)
	}

	if table == nil {
		return nil, errors.New(errors.ErrNoRecipients,
			"no explicit recipients and no identity table to infer from").WithPlatform(p.Name())
	}

	log.Debug("No explicit recipients, inferring from identity table", "platform", p.Name())

	seen := make(map[string]bool)
	var out []Candidate
	for _, person := range table.PersonsOn(p.Name()) {
		recipient, err := p.NewRecipient(platform.SpecFromString(person.PrimaryID(p.Name())))
		if err != nil {
			return nil, err
		}
		if seen[recipient.ID()] {
			continue
		}
		seen[recipient.ID()] = true
		out = append(out, Candidate{Recipient: recipient, Person: person})
	}

	log.Debug("Candidates inferred", "platform", p.Name(), "count", len(out))
	return out, nil
}

func resolveExplicit(p platform.Platform, specs []platform.RecipientSpec, table *identity.Table) ([]Candidate, error) {
	seen := make(map[string]bool)
	out := make([]Candidate, 0, len(specs))
	for _, spec := range specs {
		recipient, err := p.NewRecipient(spec)
		if err != nil {
			return nil, err
		}
		if seen[recipient.ID()] {
			continue
		}
		seen[recipient.ID()] = true

		candidate := Candidate{Recipient: recipient}
		if table != nil {
			if person, ok := table.Lookup(p.Name(), recipient.ID()); ok {
				candidate.Person = person
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}
