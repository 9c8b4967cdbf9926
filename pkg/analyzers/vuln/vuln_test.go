package vuln

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/connectors"
	"github.com/pubguard/engine/pkg/errors"
	"github.com/pubguard/engine/pkg/retry"
	"github.com/pubguard/engine/pkg/shared/severity"
	"github.com/pubguard/engine/pkg/target"
)

func mustTarget(t *testing.T, ref string) *target.Target {
	t.Helper()
	tgt, err := target.Parse(ref)
	if err != nil {
		t.Fatal(err)
	}
	return tgt
}

// newTestFeed serves canned NVD responses keyed by keywordSearch term.
func newTestFeed(t *testing.T, responses map[string]string) (*Feed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("keywordSearch")
		body, ok := responses[term]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	client := connectors.New(connectors.Config{
		Source:  "nvd",
		BaseURL: srv.URL,
		Retry:   &retry.Policy{MaxAttempts: 1},
	})
	return NewFeed(FeedConfig{HTTPClient: client}), srv
}

func cveJSON(id, desc, sevLevel string, score float64) string {
	item := map[string]interface{}{
		"id":        id,
		"published": "2024-03-29T10:00:00.000",
		"descriptions": []map[string]string{
			{"lang": "en", "value": desc},
		},
		"metrics": map[string]interface{}{
			"cvssMetricV31": []map[string]interface{}{
				{"cvssData": map[string]interface{}{
					"version": "3.1", "baseScore": score, "baseSeverity": sevLevel,
				}},
			},
		},
		"references": []map[string]string{{"url": "https://nvd.nist.gov/vuln/detail/" + id}},
	}
	b, _ := json.Marshal(item)
	return string(b)
}

func feedJSON(items ...string) string {
	wrapped := make([]string, len(items))
	for i, it := range items {
		wrapped[i] = `{"cve":` + it + `}`
	}
	out := `{"totalResults":` + fmt.Sprint(len(items)) + `,"vulnerabilities":[`
	for i, w := range wrapped {
		if i > 0 {
			out += ","
		}
		out += w
	}
	return out + `]}`
}

type fakeAdvisories struct {
	advisories []Advisory
	err        error
}

func (f *fakeAdvisories) ListAdvisories(ctx context.Context, owner, name string) ([]Advisory, error) {
	return f.advisories, f.err
}

func TestAnalyze_RelevantAndDeduplicated(t *testing.T) {
	xzCVE := cveJSON("CVE-2024-0001", "Buffer overflow in leftpad allows remote code execution.", "CRITICAL", 9.8)
	noise := cveJSON("CVE-2024-0002", "Unrelated flaw in another product entirely.", "HIGH", 7.5)

	feed, _ := newTestFeed(t, map[string]string{
		"left-pad": feedJSON(xzCVE), // dedup across terms
		"leftpad":  feedJSON(xzCVE, noise),
		"left":     feedJSON(),
	})

	tgt := mustTarget(t, "acme/left-pad")
	tgt.AddAlternates("leftpad")

	res, err := New(feed, nil, catalogs.Default(), nil).Analyze(context.Background(), tgt)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	an := res.Analysis
	if len(an.Vulnerabilities) != 1 {
		t.Fatalf("Vulnerabilities = %d, want 1 (deduped, noise filtered)", len(an.Vulnerabilities))
	}
	v := an.Vulnerabilities[0]
	if v.ID != "CVE-2024-0001" {
		t.Errorf("ID = %s", v.ID)
	}
	if v.Severity != severity.Critical {
		t.Errorf("Severity = %v", v.Severity)
	}
	if v.CVSSVersion != "3.1" {
		t.Errorf("CVSSVersion = %s", v.CVSSVersion)
	}
	if an.Counts.Critical != 1 {
		t.Errorf("Counts.Critical = %d", an.Counts.Critical)
	}

	found := false
	for _, f := range res.Findings {
		if f.Title == "1 critical-severity vulnerability on record" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing critical-tier finding, got %+v", res.Findings)
	}
}

func TestAnalyze_CatastrophicMatch(t *testing.T) {
	backdoor := cveJSON("CVE-2024-3094", "Malicious code in xz utils.", "CRITICAL", 10.0)
	feed, _ := newTestFeed(t, map[string]string{"xz": feedJSON(backdoor)})

	tgt := mustTarget(t, "tukaani/xz")

	res, err := New(feed, nil, catalogs.Default(), nil).Analyze(context.Background(), tgt)
	if err != nil {
		t.Fatal(err)
	}

	an := res.Analysis
	if len(an.CatastrophicIDs) != 1 || an.CatastrophicIDs[0] != "CVE-2024-3094" {
		t.Fatalf("CatastrophicIDs = %v", an.CatastrophicIDs)
	}
	found := false
	for _, f := range res.Findings {
		if f.Title == "Known supply-chain compromise: CVE-2024-3094" && f.Severity == severity.Critical {
			found = true
		}
	}
	if !found {
		t.Error("missing catastrophic finding")
	}
}

func TestAnalyze_CleanRecordIsPositive(t *testing.T) {
	feed, _ := newTestFeed(t, map[string]string{"quietlib": feedJSON()})

	res, err := New(feed, &fakeAdvisories{}, catalogs.Default(), nil).
		Analyze(context.Background(), mustTarget(t, "acme/quietlib"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Findings) != 1 || !res.Findings[0].Positive {
		t.Fatalf("Findings = %+v, want single positive", res.Findings)
	}
}

func TestAnalyze_PartialOnTermFailure(t *testing.T) {
	ok := cveJSON("CVE-2023-1111", "Prototype pollution in mixedlib.", "HIGH", 7.2)
	feed, _ := newTestFeed(t, map[string]string{
		"mixedlib": feedJSON(ok),
		// "mixed" (segment term) is absent -> 500 from the test server
	})

	tgt := mustTarget(t, "acme/mixed_lib")
	tgt.AddAlternates("mixedlib")

	res, err := New(feed, nil, catalogs.Default(), nil).Analyze(context.Background(), tgt)
	if err != nil {
		t.Fatalf("partial failure escalated: %v", err)
	}
	if !res.Partial {
		t.Error("Partial = false")
	}
	if len(res.Analysis.Vulnerabilities) != 1 {
		t.Errorf("Vulnerabilities = %d, want 1", len(res.Analysis.Vulnerabilities))
	}
}

func TestAnalyze_AllTermsFailingErrors(t *testing.T) {
	feed, _ := newTestFeed(t, map[string]string{}) // every term -> 500

	_, err := New(feed, nil, catalogs.Default(), nil).
		Analyze(context.Background(), mustTarget(t, "acme/doomed"))
	if err == nil {
		t.Fatal("total feed outage did not error")
	}
}

func TestAnalyze_AdvisoriesCounted(t *testing.T) {
	feed, _ := newTestFeed(t, map[string]string{"advlib": feedJSON()})
	advs := &fakeAdvisories{advisories: []Advisory{
		{ID: "GHSA-aaaa-bbbb-cccc", Summary: "RCE in advlib", Severity: severity.High},
		{ID: "GHSA-dddd-eeee-ffff", Summary: "DoS in advlib", Severity: severity.Medium},
	}}

	res, err := New(feed, advs, catalogs.Default(), nil).
		Analyze(context.Background(), mustTarget(t, "acme/advlib"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Analysis.Advisories) != 2 {
		t.Fatalf("Advisories = %d", len(res.Analysis.Advisories))
	}
	found := false
	for _, f := range res.Findings {
		if f.Title == "2 published security advisories" && f.Severity == severity.High {
			found = true
		}
	}
	if !found {
		t.Errorf("missing advisory finding, got %+v", res.Findings)
	}
}

func TestAnalyze_AdvisoryFailureDegradesToPartial(t *testing.T) {
	feed, _ := newTestFeed(t, map[string]string{"somelib": feedJSON()})
	advs := &fakeAdvisories{err: &errors.UpstreamError{Source: "github", StatusCode: 502, Message: "bad gateway"}}

	res, err := New(feed, advs, catalogs.Default(), nil).
		Analyze(context.Background(), mustTarget(t, "acme/somelib"))
	if err != nil {
		t.Fatalf("advisory outage escalated: %v", err)
	}
	if !res.Partial {
		t.Error("Partial = false")
	}
}

func TestExpandTerms(t *testing.T) {
	cat := catalogs.Default()

	tests := []struct {
		name string
		ref  string
		alts []string
		want []string
	}{
		{"plain", "acme/leftpad", nil, []string{"leftpad"}},
		{"suffix stripped", "acme/lodash-js", nil, []string{"lodash-js", "lodash"}},
		{"prefix stripped", "acme/node-fetch", nil, []string{"node-fetch", "fetch"}},
		{"alternates included", "acme/biome", []string{"rome"}, []string{"biome", "rome"}},
		{"segments last", "acme/image_resizer", nil, []string{"image_resizer", "image", "resizer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := mustTarget(t, tt.ref)
			tgt.AddAlternates(tt.alts...)
			got := expandTerms(tgt, cat)
			if len(got) != len(tt.want) {
				t.Fatalf("expandTerms() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("term[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExpandTermsCap(t *testing.T) {
	tgt := mustTarget(t, "acme/alpha-bravo-charlie-delta-echo-foxtrot-golf")
	got := expandTerms(tgt, catalogs.Default())
	if len(got) > maxTerms {
		t.Errorf("len = %d, cap is %d", len(got), maxTerms)
	}
}

func TestIsRelevant(t *testing.T) {
	names := []string{"left-pad", "leftpad"}

	tests := []struct {
		name string
		item cveItem
		want bool
	}{
		{
			"description word match",
			cveItem{Descriptions: []cveDescription{{Lang: "en", Value: "Flaw in leftpad before 1.3.0."}}},
			true,
		},
		{
			"substring is not a word",
			cveItem{Descriptions: []cveDescription{{Lang: "en", Value: "Flaw in myleftpadder widget."}}},
			false,
		},
		{
			"cpe product match",
			cveItem{
				Descriptions: []cveDescription{{Lang: "en", Value: "Padding issue."}},
				Configs: []cveConfig{{Nodes: []cpeNode{{CPEMatch: []cpeMatch{
					{Criteria: "cpe:2.3:a:acme:leftpad:1.0:*:*:*:*:*:*:*"},
				}}}}},
			},
			true,
		},
		{
			"no reference at all",
			cveItem{Descriptions: []cveDescription{{Lang: "en", Value: "Flaw in libxml."}}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRelevant(&tt.item, names); got != tt.want {
				t.Errorf("isRelevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoringPrecedence(t *testing.T) {
	item := cveItem{}
	item.Metrics.V31 = []cvssMetric{{}}
	item.Metrics.V31[0].CVSSData.Version = "3.1"
	item.Metrics.V31[0].CVSSData.BaseScore = 7.5
	item.Metrics.V31[0].CVSSData.BaseSeverity = "HIGH"
	item.Metrics.V2 = []cvssMetric{{BaseSeverity: "MEDIUM"}}

	score, level, version := item.scoring()
	if version != "3.1" {
		t.Errorf("version = %s, want 3.1", version)
	}
	if score != 7.5 || level != severity.High {
		t.Errorf("score/level = %v/%v", score, level)
	}

	// Only v2 present: severity read from the metric envelope.
	item2 := cveItem{}
	item2.Metrics.V2 = []cvssMetric{{BaseSeverity: "MEDIUM"}}
	item2.Metrics.V2[0].CVSSData.BaseScore = 5.0
	_, level2, version2 := item2.scoring()
	if version2 != "2.0" || level2 != severity.Medium {
		t.Errorf("v2 fallback = %v/%v", level2, version2)
	}
}
