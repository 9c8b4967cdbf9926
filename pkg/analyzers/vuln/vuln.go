// Package vuln analyzes a target against the public vulnerability record:
// the NVD CVE feed plus host-published security advisories.
package vuln

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/errors"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/logging"
	"github.com/pubguard/engine/pkg/shared/severity"
	"github.com/pubguard/engine/pkg/target"
)

// Vulnerability is one relevant entry from the vulnerability feed.
type Vulnerability struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Severity     severity.Level `json:"severity"`
	CVSSScore    float64        `json:"cvssScore"`
	CVSSVersion  string         `json:"cvssVersion,omitempty"`
	Published    time.Time      `json:"published"`
	URL          string         `json:"url,omitempty"`
	Catastrophic bool           `json:"catastrophic,omitempty"`
}

// Analysis is the vulnerability analyzer's structured output.
type Analysis struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Counts          severity.Counts `json:"counts"`
	CatastrophicIDs []string        `json:"catastrophicIds,omitempty"`
	Advisories      []Advisory      `json:"advisories,omitempty"`
	TermsSearched   []string        `json:"termsSearched"`
}

// Result is what the orchestrator receives from this analyzer.
type Result struct {
	Analysis       *Analysis
	Findings       []findings.Finding
	Searched       []string
	AlternateNames []string
	Partial        bool
	Note           string
}

// Analyzer searches the vulnerability record for a target. Feed queries run
// sequentially, one per expanded term, paced by the feed client's limiter.
type Analyzer struct {
	feed       *Feed
	advisories AdvisorySource
	catalogs   *catalogs.Catalogs
	log        logging.Logger
}

// New creates a vulnerability analyzer. advisories may be nil for hosts
// without an advisory database.
func New(feed *Feed, advisories AdvisorySource, cat *catalogs.Catalogs, log logging.Logger) *Analyzer {
	if cat == nil {
		cat = catalogs.Default()
	}
	if log == nil {
		log = &logging.NopLogger{}
	}
	return &Analyzer{feed: feed, advisories: advisories, catalogs: cat, log: log}
}

// Name returns the analyzer name used in the SourceCheck ledger.
func (a *Analyzer) Name() string {
	return "vulnerability"
}

// Analyze expands the target name into search terms, queries the feed per
// term, and keeps the deduplicated entries that plausibly concern the
// project. A term whose query fails transiently degrades the result to
// partial; the analyzer errors only when every query fails.
func (a *Analyzer) Analyze(ctx context.Context, tgt *target.Target) (*Result, error) {
	terms := expandTerms(tgt, a.catalogs)
	res := &Result{Searched: terms}
	an := &Analysis{TermsSearched: terms}

	var (
		succeeded int
		lastErr   error
		seen      = map[string]bool{}
	)

	for _, term := range terms {
		items, err := a.feed.Search(ctx, term)
		if err != nil {
			if errors.IsCanceled(err) || errors.IsTimeout(err) {
				return nil, err
			}
			a.log.Warn("nvd search %q failed: %v", term, err)
			lastErr = err
			res.Partial = true
			res.Note = appendNote(res.Note, fmt.Sprintf("term %q failed", term))
			continue
		}
		succeeded++

		for _, item := range items {
			if seen[item.ID] || !isRelevant(&item, tgt.AllNames()) {
				continue
			}
			seen[item.ID] = true

			score, level, version := item.scoring()
			v := Vulnerability{
				ID:           item.ID,
				Description:  item.description(),
				Severity:     level,
				CVSSScore:    score,
				CVSSVersion:  version,
				Published:    item.publishedAt(),
				Catastrophic: a.catalogs.IsCatastrophic(item.ID),
			}
			if len(item.References) > 0 {
				v.URL = item.References[0].URL
			}

			an.Vulnerabilities = append(an.Vulnerabilities, v)
			an.Counts.Increment(v.Severity)
			if v.Catastrophic {
				an.CatastrophicIDs = append(an.CatastrophicIDs, v.ID)
			}
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}

	if a.advisories != nil {
		advs, err := a.advisories.ListAdvisories(ctx, tgt.Owner, tgt.Name)
		if err != nil {
			if errors.IsCanceled(err) || errors.IsTimeout(err) {
				return nil, err
			}
			a.log.Warn("advisory lookup for %s failed: %v", tgt.Slug(), err)
			res.Partial = true
			res.Note = appendNote(res.Note, "advisories unavailable")
		} else {
			an.Advisories = advs
		}
	}

	res.Analysis = an
	res.Findings = a.emitFindings(tgt, an)
	return res, nil
}

// emitFindings produces one finding per severity tier present, advisory and
// catastrophic findings, and a positive finding for a clean record.
func (a *Analyzer) emitFindings(tgt *target.Target, an *Analysis) []findings.Finding {
	var out []findings.Finding

	for _, id := range an.CatastrophicIDs {
		out = append(out, findings.Finding{
			Severity: severity.Critical,
			Category: findings.CategoryVulnerability,
			Title:    fmt.Sprintf("Known supply-chain compromise: %s", id),
			Description: fmt.Sprintf(
				"%s matches %s, a historically catastrophic vulnerability; treat any affected version as hostile.",
				tgt.Name, id),
			Source: "nvd",
		})
	}

	tiers := []struct {
		level severity.Level
		count int
	}{
		{severity.Critical, an.Counts.Critical},
		{severity.High, an.Counts.High},
		{severity.Medium, an.Counts.Medium},
		{severity.Low, an.Counts.Low},
	}
	for _, tier := range tiers {
		if tier.count == 0 {
			continue
		}
		out = append(out, findings.Finding{
			Severity: tier.level,
			Category: findings.CategoryVulnerability,
			Title:    fmt.Sprintf("%d %s-severity %s on record", tier.count, tier.level, plural(tier.count, "vulnerability", "vulnerabilities")),
			Description: fmt.Sprintf(
				"The vulnerability record lists %d %s-severity %s that plausibly concern %s.",
				tier.count, tier.level, plural(tier.count, "entry", "entries"), tgt.Name),
			Source: "nvd",
		})
	}

	if n := len(an.Advisories); n > 0 {
		highest := severity.Unknown
		for _, adv := range an.Advisories {
			highest = severity.Max(highest, adv.Severity)
		}
		if highest == severity.Unknown {
			highest = severity.Medium
		}
		out = append(out, findings.Finding{
			Severity: highest,
			Category: findings.CategoryVulnerability,
			Title:    fmt.Sprintf("%d published security %s", n, plural(n, "advisory", "advisories")),
			Description: fmt.Sprintf(
				"The repository has %d published security %s on its host platform.",
				n, plural(n, "advisory", "advisories")),
			Source: "github",
		})
	}

	if len(an.Vulnerabilities) == 0 && len(an.Advisories) == 0 {
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategoryVulnerability,
			Title:       "No known vulnerabilities",
			Description: fmt.Sprintf("No relevant entries found for %s across %d search terms.", tgt.Name, len(an.TermsSearched)),
			Source:      "nvd",
			Positive:    true,
		})
	}

	return out
}

// isRelevant suppresses keyword collisions: the entry must reference one of
// the project's names in its description (as a standalone word) or name the
// project as the product segment of a CPE string.
func isRelevant(item *cveItem, names []string) bool {
	desc := strings.ToLower(item.description())
	criteria := item.cpeCriteria()

	for _, name := range names {
		name = strings.ToLower(name)
		if len(name) < 2 {
			continue
		}
		if containsWord(desc, name) {
			return true
		}
		for _, c := range criteria {
			// cpe:2.3:a:vendor:product:version:...
			parts := strings.Split(strings.ToLower(c), ":")
			if len(parts) > 4 && parts[4] == name {
				return true
			}
		}
	}
	return false
}

// containsWord reports whether s contains word with non-alphanumeric
// characters (or string edges) on both sides.
func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isAlnum(s[i-1])
		end := i + len(word)
		after := end == len(s) || !isAlnum(s[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func appendNote(note, add string) string {
	if note == "" {
		return add
	}
	return note + "; " + add
}
