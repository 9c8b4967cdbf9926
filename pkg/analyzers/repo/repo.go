package repo

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

const (
	// recentCommitWindow is how many commits are inspected for security activity.
	recentCommitWindow = 50

	// viralStarsPerDay is the velocity above which growth is flagged as viral.
	viralStarsPerDay = 50.0

	// largeContributorBase marks a healthy, many-hands project.
	largeContributorBase = 100
)

// Analysis is the repository analyzer's structured output.
type Analysis struct {
	Host               string    `json:"host"`
	Snapshot           *Snapshot `json:"snapshot"`
	Contributors       int       `json:"contributors"`
	LastCommit         time.Time `json:"last_commit,omitempty"`
	SecurityPolicy     bool      `json:"security_policy"`
	SecurityCommits    int       `json:"security_commits"`
	PermissionClasses  []string  `json:"permission_classes,omitempty"`
	StarsPerDay        float64   `json:"stars_per_day"`
	ViralGrowth        bool      `json:"viral_growth"`
	DetectedRenames    []string  `json:"detected_renames,omitempty"`
	OpenSecurityIssues int       `json:"open_security_issues"`
	AgeDays            int       `json:"age_days"`
}

// Result is what the analyzer hands back to the orchestrator. A nil Analysis
// with findings present means the target was inaccessible for a benign
// reason; the findings explain the limitation.
type Result struct {
	Analysis       *Analysis
	Findings       []findings.Finding
	Searched       []string
	AlternateNames []string
	Partial        bool
	Note           string
}

// Analyzer reads code-host metadata and emits permission, hygiene, growth
// and rename findings.
type Analyzer struct {
	host     Host
	catalogs *catalogs.Catalogs
	log      logging.Logger
	now      func() time.Time
}

// New creates a repository analyzer over the given host.
func New(host Host, cat *catalogs.Catalogs, log logging.Logger) *Analyzer {
	if cat == nil {
		cat = catalogs.Default()
	}
	if log == nil {
		log = &logging.NopLogger{}
	}
	return &Analyzer{host: host, catalogs: cat, log: log, now: time.Now}
}

// Name returns the analyzer name used in the SourceCheck ledger.
func (a *Analyzer) Name() string {
	return "repository"
}

// Analyze inspects the target repository. It returns an error only for
// transport-level failures; a private or deleted repository yields a nil
// analysis with descriptive findings instead.
func (a *Analyzer) Analyze(ctx context.Context, tgt *target.Target) (*Result, error) {
	res := &Result{Searched: []string{tgt.Slug()}}

	snap, err := a.host.Snapshot(ctx, tgt.Owner, tgt.Name)
	if err != nil {
		if errors.IsInaccessible(err) {
			a.log.Info("repository %s inaccessible: %v", tgt.Slug(), err)
			res.Findings = append(res.Findings, findings.Finding{
				Severity: severity.Medium,
				Category: findings.CategoryTransparency,
				Title:    "Repository could not be inspected",
				Description: fmt.Sprintf(
					"%s is private, deleted or otherwise unreadable; permission and hygiene signals are unavailable for this scan.",
					tgt.Slug()),
				Source: a.host.Name(),
			})
			res.Note = "repository inaccessible"
			return res, nil
		}
		return nil, err
	}

	an := &Analysis{Host: a.host.Name(), Snapshot: snap}
	res.Analysis = an

	now := a.now()
	if !snap.CreatedAt.IsZero() {
		an.AgeDays = int(now.Sub(snap.CreatedAt).Hours() / 24)
	}
	if an.AgeDays > 0 {
		an.StarsPerDay = float64(snap.Stars) / float64(an.AgeDays)
	} else {
		an.StarsPerDay = float64(snap.Stars)
	}
	an.ViralGrowth = an.StarsPerDay >= viralStarsPerDay

	// Sub-lookups degrade to a partial result instead of failing the source.
	if n, err := a.host.ContributorCount(ctx, tgt.Owner, tgt.Name); err == nil {
		an.Contributors = n
	} else if isHardFailure(err) {
		return nil, err
	} else {
		res.Partial = true
		res.Note = appendNote(res.Note, "contributor count unavailable")
	}

	readme, err := a.host.FileContent(ctx, tgt.Owner, tgt.Name, "README.md")
	if err != nil {
		if isHardFailure(err) {
			return nil, err
		}
		res.Partial = true
		res.Note = appendNote(res.Note, "readme unavailable")
	}

	policy := a.findSecurityPolicy(ctx, tgt, res)
	an.SecurityPolicy = policy != ""

	if commits, err := a.host.RecentCommits(ctx, tgt.Owner, tgt.Name, recentCommitWindow); err == nil {
		if len(commits) > 0 {
			an.LastCommit = commits[0].Date
		}
		an.SecurityCommits = countSecurityCommits(commits)
	} else if isHardFailure(err) {
		return nil, err
	} else {
		res.Partial = true
		res.Note = appendNote(res.Note, "commit history unavailable")
	}

	if n, err := a.host.OpenSecurityIssues(ctx, tgt.Owner, tgt.Name); err == nil {
		an.OpenSecurityIssues = n
	} else if isHardFailure(err) {
		return nil, err
	} else {
		res.Partial = true
		res.Note = appendNote(res.Note, "issue search unavailable")
	}

	freeform := snap.Description + "\n" + readme + "\n" + policy
	an.PermissionClasses = detectPermissionClasses(freeform)

	an.DetectedRenames = mergeNames(detectRenames(freeform), a.catalogs.RenamesFor(tgt.Name))
	res.AlternateNames = an.DetectedRenames

	res.Findings = a.emitFindings(tgt, an)
	return res, nil
}

// findSecurityPolicy looks for a security policy file in the conventional
// locations and returns its content.
func (a *Analyzer) findSecurityPolicy(ctx context.Context, tgt *target.Target, res *Result) string {
	for _, path := range []string{"SECURITY.md", ".github/SECURITY.md", "docs/SECURITY.md"} {
		content, err := a.host.FileContent(ctx, tgt.Owner, tgt.Name, path)
		if err != nil {
			continue
		}
		if content != "" {
			return content
		}
	}
	return ""
}

// emitFindings turns the analysis into normalized findings.
func (a *Analyzer) emitFindings(tgt *target.Target, an *Analysis) []findings.Finding {
	var out []findings.Finding
	src := a.host.Name()

	for _, class := range an.PermissionClasses {
		out = append(out, findings.Finding{
			Severity: permissionSeverity(class),
			Category: findings.CategoryPermissions,
			Title:    fmt.Sprintf("Repository declares %s capability", class),
			Description: fmt.Sprintf(
				"Project documentation for %s describes %s behavior; anyone adopting it grants that capability.",
				tgt.Slug(), class),
			Source:    src,
			SourceURL: tgt.URL,
		})
	}

	if an.ViralGrowth {
		out = append(out, findings.Finding{
			Severity: severity.Medium,
			Category: findings.CategoryGrowth,
			Title:    "Viral adoption velocity",
			Description: fmt.Sprintf(
				"%s is gaining %.0f stars/day; rapidly adopted projects attract supply-chain attackers before scrutiny catches up.",
				tgt.Slug(), an.StarsPerDay),
			Source:    src,
			SourceURL: tgt.URL,
		})
	}

	for _, rename := range an.DetectedRenames {
		out = append(out, findings.Finding{
			Severity: severity.Medium,
			Category: findings.CategoryTransparency,
			Title:    "Project was previously named " + rename,
			Description: fmt.Sprintf(
				"%s has history under the name %q; vulnerability and reputation records may be filed under the old name.",
				tgt.Slug(), rename),
			Source:    src,
			SourceURL: tgt.URL,
		})
	}

	if an.Snapshot.Archived {
		out = append(out, findings.Finding{
			Severity:    severity.Medium,
			Category:    findings.CategoryMaintenance,
			Title:       "Repository is archived",
			Description: "Archived repositories receive no fixes, including security fixes.",
			Source:      src,
			SourceURL:   tgt.URL,
		})
	}

	if !an.LastCommit.IsZero() && a.now().Sub(an.LastCommit) > 365*24*time.Hour {
		out = append(out, findings.Finding{
			Severity:    severity.Medium,
			Category:    findings.CategoryMaintenance,
			Title:       "No commits in over a year",
			Description: fmt.Sprintf("Last commit to %s was %s.", tgt.Slug(), an.LastCommit.Format("2006-01-02")),
			Source:      src,
			SourceURL:   tgt.URL,
		})
	}

	if an.Snapshot.License == "" {
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategoryMaintenance,
			Title:       "No license detected",
			Description: "Projects without a license often lack broader governance and review practices.",
			Source:      src,
			SourceURL:   tgt.URL,
		})
	}

	// Positive hygiene signals.
	if an.SecurityPolicy {
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategoryMaintenance,
			Title:       "Security policy present",
			Description: "The project documents how to report vulnerabilities.",
			Source:      src,
			SourceURL:   tgt.URL,
			Positive:    true,
		})
	}
	if an.Contributors >= largeContributorBase {
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategoryMaintenance,
			Title:       fmt.Sprintf("Large contributor base (%d)", an.Contributors),
			Description: "Many independent contributors make unilateral malicious changes harder to hide.",
			Source:      src,
			SourceURL:   tgt.URL,
			Positive:    true,
		})
	}
	if an.SecurityCommits >= 3 {
		out = append(out, findings.Finding{
			Severity:    severity.Low,
			Category:    findings.CategoryMaintenance,
			Title:       "Active security maintenance",
			Description: fmt.Sprintf("%d of the last %d commits address security work.", an.SecurityCommits, recentCommitWindow),
			Source:      src,
			SourceURL:   tgt.URL,
			Positive:    true,
		})
	}

	return out
}

// isHardFailure reports whether a sub-lookup error should fail the whole
// source rather than degrade it to partial. Context errors must be
// matched through wrapping: hosts hand back the transport's error, which
// carries deadline expiry inside *url.Error.
func isHardFailure(err error) bool {
	return errors.IsTimeout(err) || errors.IsCanceled(err)
}

// mergeNames joins name lists, dropping case-insensitive duplicates while
// preserving order.
func mergeNames(lists ...[]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, list := range lists {
		for _, name := range list {
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

func appendNote(note, add string) string {
	if note == "" {
		return add
	}
	return note + "; " + add
}

// PermissionFindings filters a finding list down to permission-risk entries.
func PermissionFindings(all []findings.Finding) []findings.Finding {
	return findings.FilterCategory(all, findings.CategoryPermissions)
}
