// Package scan orchestrates one assessment: reference resolution, the
// four-source analyzer fan-out, fan-in into the SourceCheck ledger, and
// hand-off to scoring, guidance and the report assembler.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pubguard/engine/pkg/analyzers/media"
	"github.com/pubguard/engine/pkg/analyzers/repo"
	"github.com/pubguard/engine/pkg/analyzers/social"
	"github.com/pubguard/engine/pkg/analyzers/vuln"
	"github.com/pubguard/engine/pkg/audit"
	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/guidance"
	"github.com/pubguard/engine/pkg/logging"
	"github.com/pubguard/engine/pkg/metrics"
	"github.com/pubguard/engine/pkg/report"
	"github.com/pubguard/engine/pkg/scoring"
	"github.com/pubguard/engine/pkg/search"
	"github.com/pubguard/engine/pkg/target"
)

// defaultSourceTimeout bounds each analyzer. A hung upstream must never
// hang the scan.
const defaultSourceTimeout = 45 * time.Second

// Analyzer interfaces, one per source. The engine talks to analyzers only
// through these so tests can substitute fakes.
type (
	RepoAnalyzer interface {
		Name() string
		Analyze(ctx context.Context, tgt *target.Target) (*repo.Result, error)
	}
	VulnAnalyzer interface {
		Name() string
		Analyze(ctx context.Context, tgt *target.Target) (*vuln.Result, error)
	}
	MediaAnalyzer interface {
		Name() string
		Analyze(ctx context.Context, tgt *target.Target) (*media.Result, error)
	}
	SocialAnalyzer interface {
		Name() string
		Analyze(ctx context.Context, tgt *target.Target) (*social.Result, error)
	}
)

// Config wires a production engine.
type Config struct {
	// GitHubToken and GitLabToken authenticate code-host lookups.
	// Empty tokens fall back to unauthenticated quotas.
	GitHubToken string
	GitLabToken string

	// NVDAPIKey raises the vulnerability feed quota.
	NVDAPIKey string

	// SearchBaseURL and SearchAPIKey configure the web-search provider.
	SearchBaseURL string
	SearchAPIKey  string

	// Catalogs overrides the embedded lookup tables.
	Catalogs *catalogs.Catalogs

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// SourceTimeout bounds each analyzer (default 45s).
	SourceTimeout time.Duration
}

// Engine runs scans. Engines are stateless between calls; every Run is an
// isolated execution.
type Engine struct {
	repoFor   func(tgt *target.Target) RepoAnalyzer
	vuln      VulnAnalyzer
	media     MediaAnalyzer
	social    SocialAnalyzer
	catalogs  *catalogs.Catalogs
	assembler *report.Assembler
	log       logging.Logger
	timeout   time.Duration
	now       func() time.Time
}

// New creates a production engine from the config.
func New(cfg Config) (*Engine, error) {
	cat := cfg.Catalogs
	if cat == nil {
		cat = catalogs.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = &logging.NopLogger{}
	}
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	github := repo.NewGitHubHost(cfg.GitHubToken)
	gitlab, err := repo.NewGitLabHost(cfg.GitLabToken)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}

	searchClient := search.NewClient(search.Config{
		BaseURL: cfg.SearchBaseURL,
		APIKey:  cfg.SearchAPIKey,
	})
	feed := vuln.NewFeed(vuln.FeedConfig{APIKey: cfg.NVDAPIKey})
	advisories := vuln.NewGitHubAdvisorySource(cfg.GitHubToken)

	return &Engine{
		repoFor: func(tgt *target.Target) RepoAnalyzer {
			if tgt.Host == target.HostGitLab {
				return repo.New(gitlab, cat, log)
			}
			return repo.New(github, cat, log)
		},
		vuln:      vuln.New(feed, advisories, cat, log),
		media:     media.New(searchClient, cat, log),
		social:    social.New(searchClient, cat, log),
		catalogs:  cat,
		assembler: report.NewAssembler(),
		log:       log,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// NewWithAnalyzers creates an engine over explicit analyzers, mainly for
// tests.
func NewWithAnalyzers(repoFor func(*target.Target) RepoAnalyzer, v VulnAnalyzer, m MediaAnalyzer, s SocialAnalyzer, cat *catalogs.Catalogs) *Engine {
	if cat == nil {
		cat = catalogs.Default()
	}
	return &Engine{
		repoFor:   repoFor,
		vuln:      v,
		media:     m,
		social:    s,
		catalogs:  cat,
		assembler: report.NewAssembler(),
		log:       &logging.NopLogger{},
		timeout:   defaultSourceTimeout,
		now:       time.Now,
	}
}

// ===========================================================================
// Run options
// ===========================================================================

type runConfig struct {
	social   bool
	timeout  time.Duration
	log      logging.Logger
	metrics  *metrics.Recorder
	audit    *audit.Trail
	clocked  func() time.Time
	assemble *report.Assembler
}

// Option adjusts one scan.
type Option func(*runConfig)

// WithSocialSignals enables or disables the social analyzer. Disabling it
// produces a skipped SourceCheck, not a missing one.
func WithSocialSignals(enabled bool) Option {
	return func(rc *runConfig) { rc.social = enabled }
}

// WithTimeout overrides the per-analyzer timeout for this scan.
func WithTimeout(d time.Duration) Option {
	return func(rc *runConfig) {
		if d > 0 {
			rc.timeout = d
		}
	}
}

// WithLogger overrides the engine logger for this scan.
func WithLogger(log logging.Logger) Option {
	return func(rc *runConfig) {
		if log != nil {
			rc.log = log
		}
	}
}

// WithMetrics records scan metrics onto the recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(rc *runConfig) { rc.metrics = rec }
}

// WithAudit records scan lifecycle events onto the trail.
func WithAudit(trail *audit.Trail) Option {
	return func(rc *runConfig) { rc.audit = trail }
}

// withAssembler pins the report assembler, for deterministic tests.
func withAssembler(a *report.Assembler) Option {
	return func(rc *runConfig) { rc.assemble = a }
}

// ===========================================================================
// Run
// ===========================================================================

// sourceOutcome is the fan-in unit: one analyzer's ledger entry plus
// whatever findings and analysis survived.
type sourceOutcome struct {
	check    findings.SourceCheck
	findings []findings.Finding
}

// Run executes one scan. Only an invalid reference or a cancelled context
// surface as errors; per-source failures degrade coverage and are recorded
// in the report's SourceCheck ledger.
func (e *Engine) Run(ctx context.Context, reference string, opts ...Option) (*report.PubGuardReport, error) {
	rc := runConfig{
		social:   true,
		timeout:  e.timeout,
		log:      e.log,
		clocked:  e.now,
		assemble: e.assembler,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	tgt, err := target.Parse(reference)
	if err != nil {
		return nil, err
	}

	scanID := uuid.NewString()
	started := rc.clocked()
	rc.audit.ScanStarted(scanID, tgt.Slug())
	rc.log.Info("scan %s started for %s", scanID, tgt.Slug())

	// Known historical names widen every search from the start.
	tgt.AddAlternates(e.catalogs.RenamesFor(tgt.Name)...)

	// The repository analyzer runs first: its rename discoveries widen the
	// name set for the remaining sources. This ordering is best-effort name
	// propagation, not a correctness guarantee.
	var analyses report.Analyses

	repoOut := e.runSource(ctx, &rc, scanID, "repository", func(sctx context.Context) (sourceResult, error) {
		res, err := e.repoFor(tgt).Analyze(sctx, tgt)
		if err != nil {
			return sourceResult{}, err
		}
		analyses.Repository = res.Analysis
		tgt.AddAlternates(res.AlternateNames...)
		return sourceResult{
			findings: res.Findings,
			searched: res.Searched,
			partial:  res.Partial,
			note:     res.Note,
		}, nil
	})
	if ctx.Err() != nil {
		rc.audit.ScanFailed(scanID, tgt.Slug(), ctx.Err())
		return nil, ctx.Err()
	}

	// The remaining sources run concurrently.
	var (
		wg        sync.WaitGroup
		vulnOut   sourceOutcome
		mediaOut  sourceOutcome
		socialOut sourceOutcome
		mu        sync.Mutex // guards analyses
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vulnOut = e.runSource(ctx, &rc, scanID, "vulnerability", func(sctx context.Context) (sourceResult, error) {
			res, err := e.vuln.Analyze(sctx, tgt.Clone())
			if err != nil {
				return sourceResult{}, err
			}
			mu.Lock()
			analyses.Vulnerability = res.Analysis
			mu.Unlock()
			return sourceResult{
				findings: res.Findings,
				searched: res.Searched,
				partial:  res.Partial,
				note:     res.Note,
			}, nil
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		mediaOut = e.runSource(ctx, &rc, scanID, "media", func(sctx context.Context) (sourceResult, error) {
			res, err := e.media.Analyze(sctx, tgt.Clone())
			if err != nil {
				return sourceResult{}, err
			}
			mu.Lock()
			analyses.Media = res.Analysis
			mu.Unlock()
			return sourceResult{
				findings: res.Findings,
				searched: res.Searched,
				partial:  res.Partial,
				note:     res.Note,
			}, nil
		})
	}()

	if rc.social {
		wg.Add(1)
		go func() {
			defer wg.Done()
			socialOut = e.runSource(ctx, &rc, scanID, "social", func(sctx context.Context) (sourceResult, error) {
				res, err := e.social.Analyze(sctx, tgt.Clone())
				if err != nil {
					return sourceResult{}, err
				}
				mu.Lock()
				analyses.Social = res.Analysis
				mu.Unlock()
				return sourceResult{
					findings: res.Findings,
					searched: res.Searched,
					partial:  res.Partial,
					note:     res.Note,
				}, nil
			})
		}()
	} else {
		socialOut = sourceOutcome{check: findings.SourceCheck{
			Name:      "social",
			Status:    findings.StatusSkipped,
			Timestamp: rc.clocked(),
			Note:      "social signals disabled",
		}}
		rc.audit.SourceCompleted(scanID, "social", string(findings.StatusSkipped), "disabled")
	}

	wg.Wait()

	// A cancelled scan produces no report, even if some sources finished.
	if ctx.Err() != nil {
		rc.audit.ScanFailed(scanID, tgt.Slug(), ctx.Err())
		return nil, ctx.Err()
	}

	var all []findings.Finding
	checks := make([]findings.SourceCheck, 0, 4)
	for _, out := range []sourceOutcome{repoOut, vulnOut, mediaOut, socialOut} {
		checks = append(checks, out.check)
		all = append(all, out.findings...)
	}

	now := rc.clocked()
	categories := scoring.All(analyses.Repository, analyses.Vulnerability, analyses.Media, analyses.Social, now)
	score := scoring.Overall(categories)
	light := scoring.Light(score)

	rep := rc.assemble.Assemble(report.Input{
		Target:         tgt,
		Categories:     categories,
		SourcesChecked: checks,
		AllFindings:    all,
		Analyses:       analyses,
		Guidance:       guidance.Build(light, all, analyses.Repository, analyses.Media),
	})

	rc.metrics.ScanCompleted(string(rep.TrafficLight), rep.OverallScore, now.Sub(started))
	rc.audit.ScanCompleted(scanID, tgt.Slug(), rep.OverallScore, string(rep.TrafficLight))
	rc.log.Info("scan %s completed: %s (%d)", scanID, rep.TrafficLight, rep.OverallScore)
	return rep, nil
}

// sourceResult is what a source closure hands back on success.
type sourceResult struct {
	findings []findings.Finding
	searched []string
	partial  bool
	note     string
}

// runSource runs one analyzer under its own deadline and converts the
// outcome into a SourceCheck. Failures never escape: a timed-out or broken
// source becomes a failed ledger entry with zero findings.
func (e *Engine) runSource(ctx context.Context, rc *runConfig, scanID, name string, fn func(context.Context) (sourceResult, error)) sourceOutcome {
	sctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	start := rc.clocked()
	res, err := fn(sctx)
	elapsed := rc.clocked().Sub(start)

	check := findings.SourceCheck{
		Name:      name,
		Timestamp: rc.clocked(),
	}

	if err != nil {
		check.Status = findings.StatusFailed
		check.Note = failureNote(ctx, sctx, err)
		rc.log.Warn("source %s failed: %v", name, err)
		rc.metrics.SourceCompleted(name, string(check.Status), elapsed)
		rc.audit.SourceCompleted(scanID, name, string(check.Status), check.Note)
		return sourceOutcome{check: check}
	}

	check.Searched = res.searched
	check.Found = len(res.findings)
	check.Note = res.note
	if res.partial {
		check.Status = findings.StatusPartial
	} else {
		check.Status = findings.StatusSuccess
	}

	rc.metrics.SourceCompleted(name, string(check.Status), elapsed)
	rc.audit.SourceCompleted(scanID, name, string(check.Status), check.Note)
	return sourceOutcome{check: check, findings: res.findings}
}

// failureNote distinguishes a per-source timeout from other failures.
func failureNote(ctx, sctx context.Context, err error) string {
	if ctx.Err() == nil && sctx.Err() == context.DeadlineExceeded {
		return "source timed out"
	}
	return fmt.Sprintf("source failed: %v", err)
}
