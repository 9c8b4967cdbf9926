package vuln

import (
	"strings"

	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/target"
)

// maxTerms caps the expansion so one scan cannot burn the NVD quota.
const maxTerms = 6

// Ecosystem affixes that name the packaging, not the project.
var (
	stripPrefixes = []string{"node-", "py-", "python-", "go-", "rust-", "js-"}
	stripSuffixes = []string{"-js", "-node", "-py", "-python", "-go", "-rs", ".js"}
)

// segmentStopwords are name segments that name an ecosystem or packaging
// convention rather than the project, and make hopeless search terms.
var segmentStopwords = map[string]bool{
	"node": true, "js": true, "py": true, "python": true, "go": true,
	"rs": true, "rust": true, "lib": true, "libs": true, "core": true,
	"cli": true, "api": true, "sdk": true,
}

// expandTerms builds the ordered search-term list for a target: the project
// name first, then historical and alias names, then affix-stripped variants
// and name segments. The primary name is always searched, even when very
// short; expansion terms under three characters are dropped as too
// collision-prone.
func expandTerms(tgt *target.Target, cat *catalogs.Catalogs) []string {
	var out []string
	seen := map[string]bool{}

	add := func(term string, minLen int) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < minLen || seen[term] {
			return
		}
		seen[term] = true
		out = append(out, term)
	}

	add(tgt.Name, 1)

	candidates := []string{tgt.Name}
	candidates = append(candidates, tgt.AlternateNames...)
	candidates = append(candidates, cat.AliasesFor(tgt.Name)...)

	for _, name := range candidates {
		add(name, 3)
		if stripped := stripAffixes(name); stripped != name {
			add(stripped, 3)
		}
	}

	// Hyphen/underscore segments come last: they are the loosest match.
	for _, name := range candidates {
		for _, seg := range strings.FieldsFunc(name, func(r rune) bool {
			return r == '-' || r == '_'
		}) {
			if len(seg) >= 4 && seg != name && !segmentStopwords[strings.ToLower(seg)] {
				add(seg, 4)
			}
		}
	}

	if len(out) > maxTerms {
		out = out[:maxTerms]
	}
	return out
}

// stripAffixes removes one ecosystem prefix and one suffix, if present.
func stripAffixes(name string) string {
	lower := strings.ToLower(name)
	for _, p := range stripPrefixes {
		if strings.HasPrefix(lower, p) && len(lower) > len(p) {
			lower = lower[len(p):]
			break
		}
	}
	for _, s := range stripSuffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s) {
			lower = lower[:len(lower)-len(s)]
			break
		}
	}
	return lower
}
