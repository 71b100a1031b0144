//go:build property
// +build property

package conflict

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
)

// TestDetectionSymmetry verifies detect(A,B) and detect(B,A) report the
// same multiset of conflict types for arbitrary policy pairs.
func TestDetectionSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	reg, err := registry.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDetector(contracts.ResolvePriorityBased, reg)

	actions := []contracts.PolicyAction{
		contracts.ActionAllow, contracts.ActionDeny,
		contracts.ActionPermit, contracts.ActionForbid,
	}

	genPolicy := func(id string) gopter.Gen {
		return gopter.CombineGens(
			gen.IntRange(0, 3),          // action
			gen.IntRange(0, 4),          // priority
			gen.OneConstOf("u1", "u2"),  // subject
			gen.OneConstOf("r1", "r2"),  // resource
			gen.OneConstOf("", "d1", "*"), // scope domain
			gen.SliceOfN(2, gen.OneConstOf("c1", "c2", "c3")), // conditions
			gen.SliceOfN(1, gen.OneConstOf("", "x1", "x2")),   // exclusive resources
		).Map(func(vals []interface{}) contracts.Policy {
			var exclusive []string
			for _, x := range vals[6].([]string) {
				if x != "" {
					exclusive = append(exclusive, x)
				}
			}
			return contracts.Policy{
				ID:                 id,
				Action:             actions[vals[0].(int)],
				Priority:           vals[1].(int),
				Subject:            vals[2].(string),
				Resource:           vals[3].(string),
				Scope:              contracts.Scope{Domain: vals[4].(string), Context: "ctx"},
				Conditions:         vals[5].([]string),
				ExclusiveResources: exclusive,
			}
		})
	}

	properties.Property("conflict types are symmetric", prop.ForAll(
		func(a, b contracts.Policy) bool {
			ab := d.Detect(a, []contracts.Policy{b})
			ba := d.Detect(b, []contracts.Policy{a})

			countAB := map[contracts.ConflictType]int{}
			countBA := map[contracts.ConflictType]int{}
			for _, r := range ab {
				countAB[r.Type]++
			}
			for _, r := range ba {
				countBA[r.Type]++
			}
			if len(countAB) != len(countBA) {
				return false
			}
			for k, v := range countAB {
				if countBA[k] != v {
					return false
				}
			}
			return true
		},
		genPolicy("pol-a"),
		genPolicy("pol-b"),
	))

	properties.TestingRun(t)
}
