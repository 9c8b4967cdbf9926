// Package catalogs holds the curated lookup tables the analyzers consult:
// known project renames, package-name aliases, named expert warnings,
// historically catastrophic vulnerability identifiers, and source-credibility
// domain lists.
//
// The tables are versioned configuration data, injected into the analyzers so
// they can be updated without redeploying the scoring logic. Default() returns
// the seed data compiled into the binary; Load() reads a YAML catalog file
// and overlays it on the seed.
package catalogs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExpertWarning is a manually curated, named expert warning about a specific
// project. It is merged into the media analysis verbatim when the scan target
// matches a known incident.
type ExpertWarning struct {
	Project      string `yaml:"project" json:"project"`
	Researcher   string `yaml:"researcher" json:"researcher"`
	Organization string `yaml:"organization" json:"organization"`
	Quote        string `yaml:"quote" json:"quote"`
	Date         string `yaml:"date" json:"date"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Expert is a known security voice on social/discussion platforms.
type Expert struct {
	Handle       string `yaml:"handle" json:"handle"`
	Name         string `yaml:"name" json:"name"`
	Platform     string `yaml:"platform" json:"platform"`
	Organization string `yaml:"organization,omitempty" json:"organization,omitempty"`
}

// Catalogs bundles every curated table.
type Catalogs struct {
	// Version identifies the catalog data revision (informational).
	Version string `yaml:"version" json:"version"`

	// Renames maps a current project name to its historical names.
	Renames map[string][]string `yaml:"renames" json:"renames"`

	// Aliases maps a package name to alternate registry names used when
	// expanding vulnerability search terms.
	Aliases map[string][]string `yaml:"aliases" json:"aliases"`

	// CatastrophicCVEs lists vulnerability identifiers whose presence forces
	// the vulnerability category score to the maximum outright
	// (supply-chain backdoors and similar).
	CatastrophicCVEs []string `yaml:"catastrophic_cves" json:"catastrophic_cves"`

	// ExpertWarnings are curated named warnings, keyed by project name.
	ExpertWarnings []ExpertWarning `yaml:"expert_warnings" json:"expert_warnings"`

	// Experts are known security voices used for social credibility tagging.
	Experts []Expert `yaml:"experts" json:"experts"`

	// HighTrustDomains and MediumTrustDomains classify media source
	// credibility.
	HighTrustDomains   []string `yaml:"high_trust_domains" json:"high_trust_domains"`
	MediumTrustDomains []string `yaml:"medium_trust_domains" json:"medium_trust_domains"`
}

// Default returns the seed catalogs compiled into the binary.
func Default() *Catalogs {
	return &Catalogs{
		Version: "2025.08",
		Renames: map[string][]string{
			"bun":          {"zig-bun"},
			"oxc":          {"oxidation-compiler"},
			"biome":        {"rome", "rome-tools"},
			"opentofu":     {"terraform"},
			"valkey":       {"redis"},
			"eslint-scope": {"escope"},
		},
		Aliases: map[string][]string{
			"node-ipc":     {"peacenotwar"},
			"colors":       {"colors.js"},
			"faker":        {"faker.js"},
			"left-pad":     {"leftpad"},
			"event-stream": {"flatmap-stream"},
		},
		CatastrophicCVEs: []string{
			"CVE-2024-3094",       // xz-utils supply-chain backdoor
			"CVE-2021-44228",      // log4shell
			"CVE-2018-1000851",    // event-stream/flatmap-stream injection
			"CVE-2022-23812",      // node-ipc protestware wiper
			"GHSA-97m3-w2cp-4xx6", // eslint-scope credential theft
		},
		ExpertWarnings: []ExpertWarning{
			{
				Project:      "xz",
				Researcher:   "Andres Freund",
				Organization: "Microsoft",
				Quote:        "The upstream xz repository and the xz tarballs have been backdoored.",
				Date:         "2024-03-29",
				URL:          "https://www.openwall.com/lists/oss-security/2024/03/29/4",
			},
			{
				Project:      "event-stream",
				Researcher:   "Ayrton Sparling",
				Organization: "CSU Fullerton",
				Quote:        "flatmap-stream contains encrypted malicious code targeting cryptocurrency wallets.",
				Date:         "2018-11-20",
				URL:          "https://github.com/dominictarr/event-stream/issues/116",
			},
			{
				Project:      "node-ipc",
				Researcher:   "Lucas Lacasa",
				Organization: "Snyk",
				Quote:        "node-ipc versions 10.1.1 and 10.1.2 deliberately overwrite files on disk.",
				Date:         "2022-03-16",
				URL:          "https://snyk.io/blog/peacenotwar-malicious-npm-node-ipc-package-vulnerability/",
			},
		},
		Experts: []Expert{
			{Handle: "taviso", Name: "Tavis Ormandy", Platform: "twitter", Organization: "Google Project Zero"},
			{Handle: "SwiftOnSecurity", Name: "SwiftOnSecurity", Platform: "twitter"},
			{Handle: "troyhunt", Name: "Troy Hunt", Platform: "twitter", Organization: "Have I Been Pwned"},
			{Handle: "feross", Name: "Feross Aboukhadijeh", Platform: "github", Organization: "Socket"},
			{Handle: "ljharb", Name: "Jordan Harband", Platform: "github"},
		},
		HighTrustDomains: []string{
			"arstechnica.com",
			"bleepingcomputer.com",
			"thehackernews.com",
			"krebsonsecurity.com",
			"theregister.com",
			"wired.com",
			"zdnet.com",
			"snyk.io",
			"socket.dev",
			"openwall.com",
		},
		MediumTrustDomains: []string{
			"medium.com",
			"dev.to",
			"infoq.com",
			"news.ycombinator.com",
			"reddit.com",
		},
	}
}

// Load reads a YAML catalog file and overlays its non-empty tables on the
// compiled-in defaults. A missing path returns the defaults unchanged.
func Load(path string) (*Catalogs, error) {
	base := Default()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return nil, fmt.Errorf("read catalogs: %w", err)
	}

	var overlay Catalogs
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse catalogs: %w", err)
	}

	base.merge(&overlay)
	return base, nil
}

func (c *Catalogs) merge(o *Catalogs) {
	if o.Version != "" {
		c.Version = o.Version
	}
	for k, v := range o.Renames {
		if c.Renames == nil {
			c.Renames = map[string][]string{}
		}
		c.Renames[k] = v
	}
	for k, v := range o.Aliases {
		if c.Aliases == nil {
			c.Aliases = map[string][]string{}
		}
		c.Aliases[k] = v
	}
	if len(o.CatastrophicCVEs) > 0 {
		c.CatastrophicCVEs = o.CatastrophicCVEs
	}
	if len(o.ExpertWarnings) > 0 {
		c.ExpertWarnings = o.ExpertWarnings
	}
	if len(o.Experts) > 0 {
		c.Experts = o.Experts
	}
	if len(o.HighTrustDomains) > 0 {
		c.HighTrustDomains = o.HighTrustDomains
	}
	if len(o.MediumTrustDomains) > 0 {
		c.MediumTrustDomains = o.MediumTrustDomains
	}
}

// RenamesFor returns the historical names recorded for a project, if any.
// Lookup is case-insensitive.
func (c *Catalogs) RenamesFor(name string) []string {
	for k, v := range c.Renames {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// AliasesFor returns the registry aliases recorded for a package name.
func (c *Catalogs) AliasesFor(name string) []string {
	for k, v := range c.Aliases {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// IsCatastrophic reports whether a vulnerability identifier is on the
// catastrophic list.
func (c *Catalogs) IsCatastrophic(id string) bool {
	for _, v := range c.CatastrophicCVEs {
		if strings.EqualFold(v, id) {
			return true
		}
	}
	return false
}

// WarningsFor returns the curated expert warnings matching any of the given
// project names.
func (c *Catalogs) WarningsFor(names ...string) []ExpertWarning {
	var out []ExpertWarning
	for _, w := range c.ExpertWarnings {
		for _, n := range names {
			if strings.EqualFold(w.Project, n) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// ExpertByHandle looks up a known expert by platform handle.
func (c *Catalogs) ExpertByHandle(handle string) (Expert, bool) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	for _, e := range c.Experts {
		if strings.EqualFold(e.Handle, handle) {
			return e, true
		}
	}
	return Expert{}, false
}

// DomainTrust classifies a source domain: "high", "medium" or "unknown".
// Subdomains inherit the registered domain's classification.
func (c *Catalogs) DomainTrust(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range c.HighTrustDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return "high"
		}
	}
	for _, d := range c.MediumTrustDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return "medium"
		}
	}
	return "unknown"
}
