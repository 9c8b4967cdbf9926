package vuln

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pubguard/engine/pkg/connectors"
	"github.com/pubguard/engine/pkg/shared/severity"
)

const (
	// DefaultBaseURL is the NVD CVE API 2.0 root.
	DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

	// defaultResultsPerTerm bounds how many CVEs one search term can pull.
	defaultResultsPerTerm = 50

	// unauthenticatedRPS is NVD's published quota without an API key:
	// 5 requests per rolling 30 seconds. With a key the quota is 50.
	unauthenticatedRPS = 5.0 / 30.0
	authenticatedRPS   = 50.0 / 30.0
)

// FeedConfig configures the NVD feed client.
type FeedConfig struct {
	BaseURL        string
	APIKey         string
	ResultsPerTerm int

	// HTTPClient overrides the underlying connector, mainly for tests.
	HTTPClient *connectors.Client
}

// Feed queries the NVD CVE API. Calls are paced by the shared connector
// limiter so that multi-term scans stay inside upstream quotas.
type Feed struct {
	client  *connectors.Client
	perTerm int
}

// NewFeed creates a feed client. Supplying an API key raises the request
// pacing to the authenticated quota.
func NewFeed(cfg FeedConfig) *Feed {
	perTerm := cfg.ResultsPerTerm
	if perTerm <= 0 {
		perTerm = defaultResultsPerTerm
	}

	client := cfg.HTTPClient
	if client == nil {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		rps := unauthenticatedRPS
		if cfg.APIKey != "" {
			rps = authenticatedRPS
		}
		client = connectors.New(connectors.Config{
			Source:            "nvd",
			BaseURL:           baseURL,
			APIKey:            cfg.APIKey,
			APIKeyHeader:      "apiKey",
			RequestsPerSecond: rps,
		})
	}

	return &Feed{client: client, perTerm: perTerm}
}

// Search runs one keyword search and returns the raw CVE entries.
func (f *Feed) Search(ctx context.Context, term string) ([]cveItem, error) {
	q := url.Values{}
	q.Set("keywordSearch", term)
	q.Set("resultsPerPage", strconv.Itoa(f.perTerm))

	var resp feedResponse
	if err := f.client.GetJSON(ctx, "", q, &resp); err != nil {
		return nil, err
	}

	items := make([]cveItem, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		items = append(items, v.CVE)
	}
	return items, nil
}

// ===========================================================================
// NVD 2.0 wire shapes (the subset the analyzer reads)
// ===========================================================================

type feedResponse struct {
	TotalResults    int `json:"totalResults"`
	Vulnerabilities []struct {
		CVE cveItem `json:"cve"`
	} `json:"vulnerabilities"`
}

type cveItem struct {
	ID           string           `json:"id"`
	Published    string           `json:"published"`
	LastModified string           `json:"lastModified"`
	Descriptions []cveDescription `json:"descriptions"`
	Metrics      cveMetrics       `json:"metrics"`
	Configs      []cveConfig      `json:"configurations"`
	References   []cveReference   `json:"references"`
}

type cveDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type cveMetrics struct {
	V40 []cvssMetric `json:"cvssMetricV40"`
	V31 []cvssMetric `json:"cvssMetricV31"`
	V30 []cvssMetric `json:"cvssMetricV30"`
	V2  []cvssMetric `json:"cvssMetricV2"`
}

type cvssMetric struct {
	CVSSData struct {
		Version      string  `json:"version"`
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
	// V2 metrics carry the severity outside cvssData.
	BaseSeverity string `json:"baseSeverity"`
}

type cveConfig struct {
	Nodes []cpeNode `json:"nodes"`
}

type cpeNode struct {
	CPEMatch []cpeMatch `json:"cpeMatch"`
}

type cpeMatch struct {
	Criteria string `json:"criteria"`
}

type cveReference struct {
	URL string `json:"url"`
}

// description returns the English description, falling back to the first one.
func (c *cveItem) description() string {
	for _, d := range c.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(c.Descriptions) > 0 {
		return c.Descriptions[0].Value
	}
	return ""
}

// cpeCriteria flattens every CPE match string in the item.
func (c *cveItem) cpeCriteria() []string {
	var out []string
	for _, cfg := range c.Configs {
		for _, node := range cfg.Nodes {
			for _, m := range node.CPEMatch {
				out = append(out, m.Criteria)
			}
		}
	}
	return out
}

// scoring returns the base score, severity and CVSS version from the
// newest scoring standard present, preferring v4.0, then v3.1, v3.0, v2.
func (c *cveItem) scoring() (float64, severity.Level, string) {
	for _, set := range []struct {
		metrics []cvssMetric
		version string
	}{
		{c.Metrics.V40, "4.0"},
		{c.Metrics.V31, "3.1"},
		{c.Metrics.V30, "3.0"},
		{c.Metrics.V2, "2.0"},
	} {
		if len(set.metrics) == 0 {
			continue
		}
		m := set.metrics[0]
		sev := m.CVSSData.BaseSeverity
		if sev == "" {
			sev = m.BaseSeverity
		}
		level := severity.FromString(sev)
		if level == severity.Unknown {
			level = severity.FromCVSS(m.CVSSData.BaseScore)
		}
		return m.CVSSData.BaseScore, level, set.version
	}
	return 0, severity.Unknown, ""
}

// publishedAt parses the NVD timestamp, which omits the zone suffix.
func (c *cveItem) publishedAt() time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000", time.RFC3339} {
		if t, err := time.Parse(layout, c.Published); err == nil {
			return t
		}
	}
	return time.Time{}
}
