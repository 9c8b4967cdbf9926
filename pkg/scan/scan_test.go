package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pubguard/engine/pkg/analyzers/media"
	"github.com/pubguard/engine/pkg/analyzers/repo"
	"github.com/pubguard/engine/pkg/analyzers/social"
	"github.com/pubguard/engine/pkg/analyzers/vuln"
	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/report"
	"github.com/pubguard/engine/pkg/scoring"
	"github.com/pubguard/engine/pkg/shared/severity"
	"github.com/pubguard/engine/pkg/target"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedAssembler() *report.Assembler {
	return report.NewAssemblerAt(
		func() time.Time { return fixedNow },
		func() string { return "report-1" },
	)
}

// ===========================================================================
// Fake analyzers
// ===========================================================================

type fakeRepo struct {
	res  *repo.Result
	err  error
	seen []string
}

func (f *fakeRepo) Name() string { return "repository" }

func (f *fakeRepo) Analyze(_ context.Context, tgt *target.Target) (*repo.Result, error) {
	f.seen = tgt.AllNames()
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeVuln struct {
	res  *vuln.Result
	err  error
	seen []string
}

func (f *fakeVuln) Name() string { return "vulnerability" }

func (f *fakeVuln) Analyze(_ context.Context, tgt *target.Target) (*vuln.Result, error) {
	f.seen = tgt.AllNames()
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeMedia struct {
	res *media.Result
	err error
}

func (f *fakeMedia) Name() string { return "media" }

func (f *fakeMedia) Analyze(context.Context, *target.Target) (*media.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeSocial struct {
	res    *social.Result
	err    error
	called bool
}

func (f *fakeSocial) Name() string { return "social" }

func (f *fakeSocial) Analyze(context.Context, *target.Target) (*social.Result, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

// stalledVuln never answers; it waits out its per-source deadline.
type stalledVuln struct{}

func (*stalledVuln) Name() string { return "vulnerability" }

func (*stalledVuln) Analyze(ctx context.Context, _ *target.Target) (*vuln.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func healthyFakes() (*fakeRepo, *fakeVuln, *fakeMedia, *fakeSocial) {
	r := &fakeRepo{res: &repo.Result{
		Analysis: &repo.Analysis{Contributors: 120, SecurityPolicy: true},
		Findings: []findings.Finding{{
			Category: findings.CategoryTransparency,
			Title:    "Security policy present",
			Source:   "repository",
			Positive: true,
		}},
		Searched: []string{"acme/left-pad"},
	}}
	v := &fakeVuln{res: &vuln.Result{
		Analysis: &vuln.Analysis{TermsSearched: []string{"left-pad"}},
		Findings: []findings.Finding{{
			Category: findings.CategoryVulnerability,
			Title:    "No known vulnerabilities",
			Source:   "vulnerability",
			Positive: true,
		}},
		Searched: []string{"left-pad"},
	}}
	m := &fakeMedia{res: &media.Result{
		Analysis: &media.Analysis{},
		Searched: []string{"left-pad security vulnerability"},
	}}
	s := &fakeSocial{res: &social.Result{
		Analysis: &social.Analysis{},
		Searched: []string{"left-pad security"},
	}}
	return r, v, m, s
}

func newTestEngine(r *fakeRepo, v *fakeVuln, m *fakeMedia, s *fakeSocial, cat *catalogs.Catalogs) *Engine {
	return NewWithAnalyzers(func(*target.Target) RepoAnalyzer { return r }, v, m, s, cat)
}

// ===========================================================================
// Tests
// ===========================================================================

func TestRun_ChecksAllFourSources(t *testing.T) {
	r, v, m, s := healthyFakes()
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "acme/left-pad", withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := len(rep.SourcesChecked); got != 4 {
		t.Fatalf("SourcesChecked = %d entries, want 4", got)
	}
	wantOrder := []string{"repository", "vulnerability", "media", "social"}
	for i, name := range wantOrder {
		check := rep.SourcesChecked[i]
		if check.Name != name {
			t.Errorf("check[%d].Name = %q, want %q", i, check.Name, name)
		}
		if check.Status != findings.StatusSuccess {
			t.Errorf("check[%d] (%s) status = %q, want success", i, name, check.Status)
		}
	}

	if rep.ID != "report-1" {
		t.Errorf("ID = %q, want report-1", rep.ID)
	}
	if rep.Hash == "" {
		t.Error("report hash is empty")
	}
	if got := len(rep.RiskCategories); got != 5 {
		t.Errorf("RiskCategories = %d entries, want 5", got)
	}
	if rep.Guidance == nil {
		t.Error("report has no guidance")
	}
	if got := len(rep.Findings.Positive); got != 2 {
		t.Errorf("positive findings = %d, want 2", got)
	}
}

func TestRun_FailedSourceStillReports(t *testing.T) {
	r, v, m, s := healthyFakes()
	v.err = errors.New("feed down")
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "acme/left-pad", withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	check := rep.SourcesChecked[1]
	if check.Name != "vulnerability" || check.Status != findings.StatusFailed {
		t.Fatalf("check[1] = %s/%s, want vulnerability/failed", check.Name, check.Status)
	}
	if check.Found != 0 {
		t.Errorf("failed source Found = %d, want 0", check.Found)
	}
	if check.Note == "" {
		t.Error("failed source has no note")
	}

	if rep.Analyses.Vulnerability != nil {
		t.Error("failed source left a non-nil analysis")
	}

	// A missing source contributes a neutral category, not a zero.
	vulnCat := rep.RiskCategories[0]
	if vulnCat.Name != scoring.CategoryVulnerabilities {
		t.Fatalf("category[0] = %q, want %q", vulnCat.Name, scoring.CategoryVulnerabilities)
	}
	if vulnCat.Score != 50 {
		t.Errorf("unanalyzed vulnerability category score = %d, want 50", vulnCat.Score)
	}
}

func TestRun_SourceTimeoutFailsThatSource(t *testing.T) {
	r, _, m, s := healthyFakes()
	eng := NewWithAnalyzers(func(*target.Target) RepoAnalyzer { return r }, &stalledVuln{}, m, s, nil)

	rep, err := eng.Run(context.Background(), "acme/left-pad",
		WithTimeout(50*time.Millisecond), withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	check := rep.SourcesChecked[1]
	if check.Name != "vulnerability" || check.Status != findings.StatusFailed {
		t.Fatalf("check[1] = %s/%s, want vulnerability/failed", check.Name, check.Status)
	}
	if check.Note != "source timed out" {
		t.Errorf("timed-out source note = %q, want %q", check.Note, "source timed out")
	}
	if check.Found != 0 {
		t.Errorf("timed-out source Found = %d, want 0", check.Found)
	}
	if rep.Analyses.Vulnerability != nil {
		t.Error("timed-out source left a non-nil analysis")
	}

	for _, i := range []int{0, 2, 3} {
		if got := rep.SourcesChecked[i].Status; got != findings.StatusSuccess {
			t.Errorf("check[%d] (%s) status = %q, want success", i, rep.SourcesChecked[i].Name, got)
		}
	}
}

func TestRun_SocialDisabledIsSkippedNotMissing(t *testing.T) {
	r, v, m, s := healthyFakes()
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "acme/left-pad",
		WithSocialSignals(false), withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if s.called {
		t.Error("social analyzer ran despite being disabled")
	}
	if got := len(rep.SourcesChecked); got != 4 {
		t.Fatalf("SourcesChecked = %d entries, want 4", got)
	}
	check := rep.SourcesChecked[3]
	if check.Name != "social" || check.Status != findings.StatusSkipped {
		t.Errorf("check[3] = %s/%s, want social/skipped", check.Name, check.Status)
	}
}

func TestRun_RenameWideningReachesLaterSources(t *testing.T) {
	r, v, m, s := healthyFakes()
	r.res.AlternateNames = []string{"rome-tools"}

	cat := catalogs.Default()
	cat.Renames = map[string][]string{"biome": {"rome"}}
	eng := newTestEngine(r, v, m, s, cat)

	if _, err := eng.Run(context.Background(), "acme/biome", withAssembler(fixedAssembler())); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Catalog renames widen before the repository source runs; the repo
	// analyzer's own discoveries widen the sources after it.
	wantRepo := []string{"biome", "rome"}
	if len(r.seen) != len(wantRepo) {
		t.Fatalf("repo analyzer saw %v, want %v", r.seen, wantRepo)
	}
	wantVuln := map[string]bool{"biome": true, "rome": true, "rome-tools": true}
	for _, n := range v.seen {
		delete(wantVuln, n)
	}
	if len(wantVuln) != 0 {
		t.Errorf("vulnerability analyzer saw %v, missing %v", v.seen, wantVuln)
	}
}

func TestRun_CancelledContextProducesNoReport(t *testing.T) {
	r, v, m, s := healthyFakes()
	eng := newTestEngine(r, v, m, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := eng.Run(ctx, "acme/left-pad", withAssembler(fixedAssembler()))
	if rep != nil {
		t.Error("cancelled scan produced a report")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRun_CatastrophicVulnerabilityGoesRed(t *testing.T) {
	r, v, m, s := healthyFakes()
	v.res = &vuln.Result{
		Analysis: &vuln.Analysis{
			Counts:          severity.Counts{Critical: 1, Total: 1},
			CatastrophicIDs: []string{"CVE-2024-3094"},
			TermsSearched:   []string{"xz"},
		},
		Findings: []findings.Finding{{
			Severity: severity.Critical,
			Category: findings.CategoryVulnerability,
			Title:    "Known supply-chain compromise: CVE-2024-3094",
			Source:   "vulnerability",
		}},
		Searched: []string{"xz"},
	}
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "tukaani/xz", withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if rep.OverallScore < 85 {
		t.Errorf("overall score = %d, want >= 85", rep.OverallScore)
	}
	if rep.TrafficLight != scoring.Red {
		t.Errorf("traffic light = %q, want red", rep.TrafficLight)
	}
	if rep.Recommendation != scoring.RecommendAgainst {
		t.Errorf("recommendation = %q, want %q", rep.Recommendation, scoring.RecommendAgainst)
	}
	if rep.Guidance == nil || rep.Guidance.CanRecommend {
		t.Error("red verdict must not be recommendable")
	}
}

func TestRun_InvalidReferenceFailsBeforeAnalysis(t *testing.T) {
	r, v, m, s := healthyFakes()
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "not-a-reference")
	if err == nil {
		t.Fatal("expected error for invalid reference")
	}
	if rep != nil {
		t.Error("invalid reference produced a report")
	}
	if r.seen != nil {
		t.Error("analyzer ran on an invalid reference")
	}
}

func TestRun_PartialSourceIsRecorded(t *testing.T) {
	r, v, m, s := healthyFakes()
	m.res.Partial = true
	m.res.Note = "2 of 8 queries failed"
	eng := newTestEngine(r, v, m, s, nil)

	rep, err := eng.Run(context.Background(), "acme/left-pad", withAssembler(fixedAssembler()))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	check := rep.SourcesChecked[2]
	if check.Name != "media" || check.Status != findings.StatusPartial {
		t.Fatalf("check[2] = %s/%s, want media/partial", check.Name, check.Status)
	}
	if check.Note != "2 of 8 queries failed" {
		t.Errorf("partial note = %q", check.Note)
	}
}
