package gateshead

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

// ResolveAddress picks one candidate for houseIdentifier. Matching is case
// insensitive and the first match in lookup order wins: an exact premises
// match first, then a substring of the address lines. The postcode is
// never searched. When the identifier is
// empty or matches nothing a candidate is chosen with intn, so callers that
// need a stable address must supply an identifier.
func ResolveAddress(log *logrus.Entry, candidates []AddressCandidate, houseIdentifier string, intn func(n int) int) (AddressCandidate, error) {
	if len(candidates) == 0 {
		return AddressCandidate{}, bins.ErrNoAddressFound
	}

	target := normalizeIdentifier(houseIdentifier)
	if target != "" {
		if candidate, ok := matchAddress(candidates, target); ok {
			return candidate, nil
		}
		log.WithField("house", houseIdentifier).Warn("house identifier matched no address, selecting a random address")
	}

	candidate := candidates[intn(len(candidates))]
	log.WithField("address", candidate.Text).Info("selected random address")

	return candidate, nil
}

func matchAddress(candidates []AddressCandidate, target string) (AddressCandidate, bool) {
	for _, candidate := range candidates {
		if normalizeIdentifier(candidate.Premises) == target {
			return candidate, true
		}
	}

	for _, candidate := range candidates {
		if strings.Contains(normalizeIdentifier(candidate.Lines), target) {
			return candidate, true
		}
	}

	return AddressCandidate{}, false
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
