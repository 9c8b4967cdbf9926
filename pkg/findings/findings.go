// Package findings defines the normalized observation shapes shared by all
// source analyzers: the atomic Finding and the per-source audit SourceCheck.
package findings

import (
	"time"

	"github.com/pubguard/engine/pkg/shared/severity"
)

// Category names group findings by the kind of risk they describe.
const (
	CategoryPermissions   = "permissions"
	CategoryVulnerability = "vulnerability"
	CategoryMediaWarning  = "media_warning"
	CategorySocialSignal  = "social_signal"
	CategoryMaintenance   = "maintenance"
	CategoryGrowth        = "growth"
	CategoryTransparency  = "transparency"
)

// Finding is an atomic, source-attributed risk observation.
// Findings are immutable once created; the scoring stage only filters and
// counts them.
type Finding struct {
	Severity    severity.Level `json:"severity"`
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	SourceURL   string         `json:"source_url,omitempty"`
	Date        time.Time      `json:"date,omitempty"`

	// Positive marks a good-hygiene observation (security policy present,
	// zero known vulnerabilities, ...). Positive findings land in their own
	// report bucket regardless of Severity.
	Positive bool `json:"positive,omitempty"`
}

// CheckStatus is the outcome of one analyzer invocation.
type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusPartial CheckStatus = "partial"
	StatusFailed  CheckStatus = "failed"
	StatusSkipped CheckStatus = "skipped"
)

// SourceCheck is the audit record of one analyzer invocation. Every
// invocation, even a failed or skipped one, produces exactly one SourceCheck;
// this is the transparency contract that lets a report explain why a verdict
// was reached and what was or wasn't checked.
type SourceCheck struct {
	Name      string      `json:"name"`
	Searched  []string    `json:"searched"`
	Found     int         `json:"found"`
	Status    CheckStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// Buckets holds findings grouped for the final report. Every finding belongs
// to exactly one bucket: positive findings go to Positive, everything else to
// its severity bucket.
type Buckets struct {
	Critical []Finding `json:"critical"`
	High     []Finding `json:"high"`
	Medium   []Finding `json:"medium"`
	Low      []Finding `json:"low"`
	Positive []Finding `json:"positive"`
}

// Bucketize groups findings into severity buckets.
func Bucketize(all []Finding) Buckets {
	var b Buckets
	for _, f := range all {
		switch {
		case f.Positive:
			b.Positive = append(b.Positive, f)
		case f.Severity == severity.Critical:
			b.Critical = append(b.Critical, f)
		case f.Severity == severity.High:
			b.High = append(b.High, f)
		case f.Severity == severity.Medium:
			b.Medium = append(b.Medium, f)
		default:
			b.Low = append(b.Low, f)
		}
	}
	return b
}

// Total returns the number of findings across all buckets.
func (b *Buckets) Total() int {
	return len(b.Critical) + len(b.High) + len(b.Medium) + len(b.Low) + len(b.Positive)
}

// Count tallies non-positive findings by severity.
func Count(all []Finding) severity.Counts {
	var c severity.Counts
	for _, f := range all {
		if f.Positive {
			continue
		}
		c.Increment(f.Severity)
	}
	return c
}

// FilterCategory returns the findings in the given category.
func FilterCategory(all []Finding, category string) []Finding {
	var out []Finding
	for _, f := range all {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}
