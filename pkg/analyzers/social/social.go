// Package social analyzes discussion-platform chatter about a target:
// the media query mechanism restricted to social sites, author credibility
// against the known-experts catalog, and an aggregate sentiment verdict.
package social

import (
	"context"
	"fmt"
	"regexp"
	"strings"
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

// socialSites restricts the searches to discussion platforms.
var socialSites = []string{
	"twitter.com", "x.com", "reddit.com", "news.ycombinator.com",
	"lobste.rs", "mastodon.social",
}

var queryTemplates = []string{
	"%s security",
	"%s warning malicious",
}

// maxNames bounds how many of the target's names get queried.
const maxNames = 3

// Aggregate sentiment thresholds.
const (
	negativeShare = 1.0 / 3.0
	positiveShare = 1.0 / 2.0
)

// Post is one classified social signal.
type Post struct {
	Title     string              `json:"title"`
	URL       string              `json:"url"`
	Platform  string              `json:"platform"`
	Author    string              `json:"author,omitempty"`
	Expert    *catalogs.Expert    `json:"expert,omitempty"`
	Snippet   string              `json:"snippet,omitempty"`
	Published time.Time           `json:"published"`
	Sentiment sentiment.Sentiment `json:"sentiment"`
}

// Analysis is the social analyzer's structured output.
type Analysis struct {
	Posts          []Post              `json:"posts"`
	WarningCount   int                 `json:"warningCount"`
	PositiveCount  int                 `json:"positiveCount"`
	ExpertMentions int                 `json:"expertMentions"`
	Aggregate      sentiment.Sentiment `json:"aggregate"`
	QueriesRun     []string            `json:"queriesRun"`
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

// Analyzer searches social platforms for signals about a target.
type Analyzer struct {
	search   *search.Client
	catalogs *catalogs.Catalogs
	log      logging.Logger
}

// New creates a social analyzer.
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
	return "social"
}

// Analyze queries each social platform per template, classifies each post,
// tags known experts by handle, and computes the aggregate sentiment:
// negative when adverse posts exceed a third of all posts, positive when
// positive posts exceed half, otherwise mixed.
func (a *Analyzer) Analyze(ctx context.Context, tgt *target.Target) (*Result, error) {
	names := tgt.AllNames()
	if len(names) > maxNames {
		names = names[:maxNames]
	}

	an := &Analysis{Aggregate: sentiment.Neutral}
	res := &Result{}

	var (
		succeeded int
		lastErr   error
		seen      = map[string]bool{}
	)

	siteFilter := buildSiteFilter()
	for _, name := range names {
		for _, tmpl := range queryTemplates {
			query := fmt.Sprintf(tmpl, name) + " " + siteFilter
			an.QueriesRun = append(an.QueriesRun, query)
			res.Searched = append(res.Searched, query)

			items, err := a.search.Search(ctx, query)
			if err != nil {
				if errors.IsCanceled(err) || errors.IsTimeout(err) {
					return nil, err
				}
				a.log.Warn("social query %q failed: %v", query, err)
				lastErr = err
				res.Partial = true
				res.Note = appendNote(res.Note, fmt.Sprintf("query %q failed", query))
				continue
			}
			succeeded++

			for _, item := range items {
				if item.URL == "" || seen[item.URL] {
					continue
				}
				seen[item.URL] = true

				post := Post{
					Title:     item.Title,
					URL:       item.URL,
					Platform:  platformOf(item.Domain()),
					Author:    extractHandle(item.Title + " " + item.Snippet),
					Snippet:   item.Snippet,
					Published: item.Published,
					Sentiment: sentiment.Classify(item.Title + " " + item.Snippet),
				}
				if post.Author != "" {
					if expert, ok := a.catalogs.ExpertByHandle(post.Author); ok {
						post.Expert = &expert
						an.ExpertMentions++
					}
				}
				an.Posts = append(an.Posts, post)

				if post.Sentiment.IsAdverse() {
					an.WarningCount++
				} else if post.Sentiment == sentiment.Positive {
					an.PositiveCount++
				}
			}
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}

	an.Aggregate = aggregate(len(an.Posts), an.WarningCount, an.PositiveCount)

	res.Analysis = an
	res.Findings = a.emitFindings(tgt, an)
	return res, nil
}

// aggregate derives the overall social sentiment from the counts.
func aggregate(total, warnings, positives int) sentiment.Sentiment {
	if total == 0 {
		return sentiment.Neutral
	}
	if float64(warnings) > float64(total)*negativeShare {
		return sentiment.Negative
	}
	if float64(positives) > float64(total)*positiveShare {
		return sentiment.Positive
	}
	return sentiment.Mixed
}

func (a *Analyzer) emitFindings(tgt *target.Target, an *Analysis) []findings.Finding {
	var out []findings.Finding

	for _, post := range an.Posts {
		if post.Expert == nil || !post.Sentiment.IsAdverse() {
			continue
		}
		out = append(out, findings.Finding{
			Severity: severity.High,
			Category: findings.CategorySocialSignal,
			Title:    fmt.Sprintf("Security expert %s flagged %s", post.Expert.Name, tgt.Name),
			Description: fmt.Sprintf("%s (%s) posted warning-sentiment commentary: %s",
				post.Expert.Name, post.Expert.Organization, post.Title),
			Source:    post.Platform,
			SourceURL: post.URL,
		})
	}

	switch an.Aggregate {
	case sentiment.Negative:
		out = append(out, findings.Finding{
			Severity: severity.Medium,
			Category: findings.CategorySocialSignal,
			Title:    "Negative community sentiment",
			Description: fmt.Sprintf(
				"%d of %d social posts about %s carry security warnings.",
				an.WarningCount, len(an.Posts), tgt.Name),
			Source: "search",
		})
	case sentiment.Positive:
		out = append(out, findings.Finding{
			Severity: severity.Low,
			Category: findings.CategorySocialSignal,
			Title:    "Positive community sentiment",
			Description: fmt.Sprintf(
				"The majority of social posts about %s are positive.", tgt.Name),
			Source:   "search",
			Positive: true,
		})
	case sentiment.Neutral:
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategorySocialSignal,
			Title:       "No adverse social signals",
			Description: fmt.Sprintf("No warning chatter found about %s.", tgt.Name),
			Source:      "search",
			Positive:    true,
		})
	}

	return out
}

func buildSiteFilter() string {
	parts := make([]string, len(socialSites))
	for i, s := range socialSites {
		parts[i] = "site:" + s
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// platformOf names the platform a result domain belongs to.
func platformOf(domain string) string {
	switch {
	case strings.HasSuffix(domain, "twitter.com"), domain == "x.com":
		return "twitter"
	case strings.HasSuffix(domain, "reddit.com"):
		return "reddit"
	case domain == "news.ycombinator.com":
		return "hackernews"
	case domain == "lobste.rs":
		return "lobsters"
	case strings.HasSuffix(domain, "mastodon.social"):
		return "mastodon"
	default:
		return domain
	}
}

// handleRe matches an @handle mention in post text.
var handleRe = regexp.MustCompile(`@([A-Za-z0-9_]{2,30})`)

// extractHandle pulls the first @handle out of post text, if any.
func extractHandle(text string) string {
	m := handleRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func appendNote(note, add string) string {
	if note == "" {
		return add
	}
	return note + "; " + add
}
