// Package media analyzes news and web coverage of a target: a fixed set of
// security-flavored queries per name, sentiment classification per article,
// and a curated expert-warning overlay for known incidents.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/errors"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/logging"
	"github.com/pubguard/engine/pkg/search"
	"github.com/pubguard/engine/pkg/shared/sentiment"
	"github.com/pubguard/engine/pkg/shared/severity"
	"github.com/pubguard/engine/pkg/target"
)

// Query templates run once per name. The phrasing is chosen to surface
// incident coverage rather than tutorials.
var queryTemplates = []string{
	"%s security vulnerability",
	"%s security warning",
	"%s malware backdoor",
	"%s supply chain attack",
}

const (
	// maxNames bounds how many of the target's names get the full
	// template treatment.
	maxNames = 3

	// maxArticlesPerQuery caps how many results of one query are
	// classified; everything past the first page is echo.
	maxArticlesPerQuery = 10
)

// Article is one classified piece of coverage.
type Article struct {
	Title       string              `json:"title"`
	URL         string              `json:"url"`
	Domain      string              `json:"domain"`
	Snippet     string              `json:"snippet,omitempty"`
	Published   time.Time           `json:"published"`
	Sentiment   sentiment.Sentiment `json:"sentiment"`
	Credibility string              `json:"credibility"`
}

// Analysis is the media analyzer's structured output.
type Analysis struct {
	Articles         []Article                `json:"articles"`
	WarningCount     int                      `json:"warningCount"`
	HighCredWarnings int                      `json:"highCredWarnings"`
	ExpertWarnings   []catalogs.ExpertWarning `json:"expertWarnings,omitempty"`
	QueriesRun       []string                 `json:"queriesRun"`
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

// Analyzer searches news coverage for a target.
type Analyzer struct {
	search   *search.Client
	catalogs *catalogs.Catalogs
	log      logging.Logger
}

// New creates a media analyzer.
func New(client *search.Client, cat *catalogs.Catalogs, log logging.Logger) *Analyzer {
	if cat == nil {
		cat = catalogs.Default()
	}
	if log == nil {
		log = &logging.NopLogger{}
	}
	return &Analyzer{search: client, catalogs: cat, log: log}
}

// Name returns the analyzer name used in the SourceCheck ledger.
func (a *Analyzer) Name() string {
	return "media"
}

// Analyze runs the query templates across the target's names, deduplicates
// by URL, classifies sentiment and credibility, and merges the curated
// expert warnings for known incidents. A failed query degrades the result
// to partial; the analyzer errors only when every query fails.
func (a *Analyzer) Analyze(ctx context.Context, tgt *target.Target) (*Result, error) {
	names := tgt.AllNames()
	if len(names) > maxNames {
		names = names[:maxNames]
	}

	an := &Analysis{}
	res := &Result{}

	var (
		succeeded int
		lastErr   error
		seen      = map[string]bool{}
	)

	for _, name := range names {
		for _, tmpl := range queryTemplates {
			query := fmt.Sprintf(tmpl, name)
			an.QueriesRun = append(an.QueriesRun, query)
			res.Searched = append(res.Searched, query)

			items, err := a.search.Search(ctx, query)
			if err != nil {
				if errors.IsCanceled(err) || errors.IsTimeout(err) {
					return nil, err
				}
				a.log.Warn("media query %q failed: %v", query, err)
				lastErr = err
				res.Partial = true
				res.Note = appendNote(res.Note, fmt.Sprintf("query %q failed", query))
				continue
			}
			succeeded++

			if len(items) > maxArticlesPerQuery {
				items = items[:maxArticlesPerQuery]
			}
			for _, item := range items {
				if item.URL == "" || seen[item.URL] {
					continue
				}
				seen[item.URL] = true

				art := Article{
					Title:       item.Title,
					URL:         item.URL,
					Domain:      item.Domain(),
					Snippet:     item.Snippet,
					Published:   item.Published,
					Sentiment:   sentiment.Classify(item.Title + " " + item.Snippet),
					Credibility: a.catalogs.DomainTrust(item.Domain()),
				}
				an.Articles = append(an.Articles, art)

				if art.Sentiment.IsAdverse() {
					an.WarningCount++
					if art.Credibility == "high" {
						an.HighCredWarnings++
					}
				}
			}
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}

	an.ExpertWarnings = a.catalogs.WarningsFor(tgt.AllNames()...)

	res.Analysis = an
	res.Findings = a.emitFindings(tgt, an)
	return res, nil
}

func (a *Analyzer) emitFindings(tgt *target.Target, an *Analysis) []findings.Finding {
	var out []findings.Finding

	for _, w := range an.ExpertWarnings {
		out = append(out, findings.Finding{
			Severity: severity.High,
			Category: findings.CategoryMediaWarning,
			Title:    fmt.Sprintf("Security researcher warning from %s", w.Researcher),
			Description: fmt.Sprintf("%s (%s): %q (%s)",
				w.Researcher, w.Organization, w.Quote, w.Date),
			Source:    "expert-catalog",
			SourceURL: w.URL,
		})
	}

	if an.HighCredWarnings > 0 {
		out = append(out, findings.Finding{
			Severity: severity.High,
			Category: findings.CategoryMediaWarning,
			Title:    fmt.Sprintf("%d security %s in high-credibility outlets", an.HighCredWarnings, warningWord(an.HighCredWarnings)),
			Description: fmt.Sprintf(
				"Established security press has published warning coverage about %s.", tgt.Name),
			Source: "search",
		})
	}

	if remainder := an.WarningCount - an.HighCredWarnings; remainder > 0 {
		out = append(out, findings.Finding{
			Severity: severity.Medium,
			Category: findings.CategoryMediaWarning,
			Title:    fmt.Sprintf("%d %s with security-warning coverage", remainder, articleWord(remainder)),
			Description: fmt.Sprintf(
				"Web coverage of %s includes warning-sentiment articles outside the vetted outlet list.", tgt.Name),
			Source: "search",
		})
	}

	if an.WarningCount == 0 && len(an.ExpertWarnings) == 0 {
		out = append(out, findings.Finding{
			Severity: severity.Low,
			Category: findings.CategoryMediaWarning,
			Title:    "No adverse media coverage",
			Description: fmt.Sprintf(
				"No warning-sentiment coverage found across %d queries.", len(an.QueriesRun)),
			Source:   "search",
			Positive: true,
		})
	}

	return out
}

func warningWord(n int) string {
	if n == 1 {
		return "warning"
	}
	return "warnings"
}

func articleWord(n int) string {
	if n == 1 {
		return "article"
	}
	return "articles"
}

func appendNote(note, add string) string {
	if note == "" {
		return add
	}
	return note + "; " + add
}
