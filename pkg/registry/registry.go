// Package registry holds the immutable per-evaluation snapshot of
// governing principles. A Registry is built once from externally loaded
// principles, validated up front, and never mutated afterwards.
package registry

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/concord-labs/concord/pkg/contracts"
)

// SupportedSpecConstraint is the policy document versions this engine
// accepts. Policies outside the range are rejected before evaluation.
const SupportedSpecConstraint = ">= 1.0.0, < 2.0.0"

// Registry is an immutable principle snapshot.
type Registry struct {
	principles []contracts.Principle
	byID       map[string]contracts.Principle
	// mandatoryCategories marks categories that carry at least one
	// mandatory principle. Conflicts touching these are critical.
	mandatoryCategories map[contracts.PrincipleCategory]bool
	specConstraint      *semver.Constraints
}

// New validates the principle set and builds a snapshot. Malformed
// weight or unknown category rejects the whole set with a
// ValidationError; scoring must never start on bad input.
func New(principles []contracts.Principle) (*Registry, error) {
	constraint, err := semver.NewConstraint(SupportedSpecConstraint)
	if err != nil {
		return nil, fmt.Errorf("registry: parse spec constraint: %w", err)
	}

	r := &Registry{
		principles:          make([]contracts.Principle, len(principles)),
		byID:                make(map[string]contracts.Principle, len(principles)),
		mandatoryCategories: make(map[contracts.PrincipleCategory]bool),
		specConstraint:      constraint,
	}
	copy(r.principles, principles)

	for _, p := range r.principles {
		if p.ID == "" {
			return nil, &contracts.ValidationError{Field: "principle.id", Detail: "must not be empty"}
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, &contracts.ValidationError{Field: "principle.id", Detail: fmt.Sprintf("duplicate principle %q", p.ID)}
		}
		if p.Weight <= 0 || p.Weight > 1 {
			return nil, &contracts.ValidationError{
				Field:  "principle.weight",
				Detail: fmt.Sprintf("principle %q weight %v outside (0,1]", p.ID, p.Weight),
			}
		}
		if !contracts.KnownCategories[p.Category] {
			return nil, &contracts.ValidationError{
				Field:  "principle.category",
				Detail: fmt.Sprintf("principle %q has unknown category %q", p.ID, p.Category),
			}
		}
		r.byID[p.ID] = p
		if p.Mandatory {
			r.mandatoryCategories[p.Category] = true
		}
	}
	return r, nil
}

// Principles returns a copy of the snapshot.
func (r *Registry) Principles() []contracts.Principle {
	out := make([]contracts.Principle, len(r.principles))
	copy(out, r.principles)
	return out
}

// Get returns the principle with the given ID.
func (r *Registry) Get(id string) (contracts.Principle, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Len returns the number of principles in the snapshot.
func (r *Registry) Len() int { return len(r.principles) }

// MandatoryCategory reports whether the category carries at least one
// mandatory principle.
func (r *Registry) MandatoryCategory(c contracts.PrincipleCategory) bool {
	return r.mandatoryCategories[c]
}

// CheckSpecVersion validates a policy's declared document version
// against the supported range. An empty version is accepted as the
// current major version.
func (r *Registry) CheckSpecVersion(p contracts.Policy) error {
	if p.SpecVersion == "" {
		return nil
	}
	v, err := semver.NewVersion(p.SpecVersion)
	if err != nil {
		return &contracts.ValidationError{
			Field:  "policy.spec_version",
			Detail: fmt.Sprintf("policy %q: %v", p.ID, err),
		}
	}
	if !r.specConstraint.Check(v) {
		return &contracts.ValidationError{
			Field:  "policy.spec_version",
			Detail: fmt.Sprintf("policy %q version %s outside supported range %q", p.ID, p.SpecVersion, SupportedSpecConstraint),
		}
	}
	return nil
}
