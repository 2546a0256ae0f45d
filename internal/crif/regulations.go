package crif

import (
	"log/slog"
	"strings"
)

// Regulation constants with special meaning to the splitter. Excluded
// records never enter any calculation; Unspecified is the fallback label
// for records that carry no regulation at all.
const (
	RegulationUnspecified = "Unspecified"
	RegulationExcluded    = "Excluded"
)

// RegulationPriority is the default tie-break order when several
// regulations produce margins that are numerically indistinguishable:
// earlier entries win. The order reflects common bank policy, not a
// regulatory mandate, and callers can override it.
var RegulationPriority = []string{
	"ESA",
	"USPR",
	"SEC",
	"CFTC",
	"APRA",
	"BACEN",
	"FINMA",
	"FSA",
	"HKMA",
	"KFSC",
	"MAS",
	"OSFI",
	"RBI",
	"SANT",
	RegulationUnspecified,
}

var knownRegulations = func() map[string]bool {
	m := map[string]bool{RegulationExcluded: true}
	for _, r := range RegulationPriority {
		m[r] = true
	}
	return m
}()

// ParseRegulations splits a comma-separated regulation string into a
// deduplicated list of recognised tokens. An empty string yields
// [Unspecified]; unrecognised tokens are dropped with a warning.
func ParseRegulations(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{RegulationUnspecified}
	}
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			continue
		}
		if !knownRegulations[tok] {
			slog.Warn("dropping unrecognised regulation token", "token", tok)
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	if len(out) == 0 {
		return []string{RegulationUnspecified}
	}
	return out
}
