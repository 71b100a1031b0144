package compliance

import (
	"strings"

	"github.com/concord-labs/concord/pkg/contracts"
)

// denylistBank is the fixed set of lexical violation checks run against
// normalized policy content. Any hit forces denial irrespective of the
// aggregate score.
//
// Lexical matching is preserved for compatibility with the prior rule
// files. It is brittle by nature; the successor is structured, declared
// policy metadata (see DESIGN.md).
var denylistBank = []struct {
	kind  contracts.ViolationKind
	terms []string
}{
	{contracts.ViolationHumanDignity, []string{
		"dehumaniz", "degrading treatment", "humiliat", "coerce participation",
	}},
	{contracts.ViolationFairness, []string{
		"bias against", "biased outcome", "arbitrary exclusion",
	}},
	{contracts.ViolationPrivacy, []string{
		"without consent", "covert surveillance", "sell personal data",
		"unauthorized disclosure",
	}},
	{contracts.ViolationDiscrimination, []string{
		"discriminat", "segregat", "racial profiling", "redlining",
	}},
}

// scanDenylist runs the full bank over normalized content. Each
// violation kind is reported at most once.
func scanDenylist(content string) []contracts.ViolationKind {
	var hits []contracts.ViolationKind
	for _, entry := range denylistBank {
		for _, term := range entry.terms {
			if strings.Contains(content, term) {
				hits = append(hits, entry.kind)
				break
			}
		}
	}
	return hits
}
