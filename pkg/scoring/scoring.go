// Package scoring turns analyzer outputs into the five weighted risk
// categories and the overall verdict. Every function here is pure: same
// inputs, same score, no I/O.
package scoring

import (
	"fmt"
	"time"

	"github.com/pubguard/engine/pkg/analyzers/media"
	"github.com/pubguard/engine/pkg/analyzers/repo"
	"github.com/pubguard/engine/pkg/analyzers/social"
	"github.com/pubguard/engine/pkg/analyzers/vuln"
)

// Category names, fixed across every report.
const (
	CategoryVulnerabilities = "Active Vulnerabilities"
	CategoryArchitecture    = "Architecture Risk"
	CategoryMedia           = "Media/Expert Warnings"
	CategoryMaintainer      = "Maintainer Response"
	CategoryViralGrowth     = "Viral-Growth Risk"
)

// Category weights. They sum to 1.0; vulnerabilities dominate.
const (
	WeightVulnerabilities = 0.30
	WeightArchitecture    = 0.20
	WeightMedia           = 0.20
	WeightMaintainer      = 0.15
	WeightViralGrowth     = 0.15
)

// neutralScore is used whenever an analyzer produced no analysis: absence
// of evidence is not evidence of absence.
const neutralScore = 50

// Escalation thresholds and floors for the overall score.
const (
	catastrophicFloor  = 85
	criticalThreshold  = 70
	criticalScoreFloor = 70
)

// RiskCategory is one scored risk dimension.
type RiskCategory struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Score         int      `json:"score"`
	Weight        float64  `json:"weight"`
	WeightedScore float64  `json:"weightedScore"`
	Factors       []string `json:"factors"`
}

// TrafficLight is the three-state verdict.
type TrafficLight string

const (
	Green TrafficLight = "green"
	Amber TrafficLight = "amber"
	Red   TrafficLight = "red"
)

// Recommendation strings, one per light.
const (
	RecommendSafe    = "safe to recommend"
	RecommendCaution = "proceed with caution"
	RecommendAgainst = "do not recommend"
)

// ===========================================================================
// Category scorers
// ===========================================================================

// ArchitectureRisk scores the permission surface the project claims.
func ArchitectureRisk(ra *repo.Analysis) RiskCategory {
	cat := RiskCategory{
		Name:        CategoryArchitecture,
		Description: "Capabilities the software requests from anyone who adopts it",
		Weight:      WeightArchitecture,
	}

	if ra == nil {
		return neutral(cat, "repository not analyzed")
	}

	points := map[string]int{
		repo.PermShellAccess:       25,
		repo.PermRootRequired:      20,
		repo.PermCredentialStorage: 15,
		repo.PermFilesystemAccess:  10,
		repo.PermBrowserControl:    10,
	}

	score := 0
	for _, class := range ra.PermissionClasses {
		p := points[class]
		score += p
		cat.Factors = append(cat.Factors, fmt.Sprintf("%s capability (+%d)", class, p))
	}
	if len(ra.PermissionClasses) == 0 {
		cat.Factors = append(cat.Factors, "no elevated capabilities detected")
	}
	if ra.SecurityPolicy {
		score -= 10
		cat.Factors = append(cat.Factors, "security policy present (-10)")
	}

	return finalize(cat, score)
}

// ActiveVulnerabilities scores the public vulnerability record. A match
// against the catastrophic catalog forces the maximum outright.
func ActiveVulnerabilities(va *vuln.Analysis, ra *repo.Analysis) RiskCategory {
	cat := RiskCategory{
		Name:        CategoryVulnerabilities,
		Description: "Known vulnerabilities, advisories and open security issues",
		Weight:      WeightVulnerabilities,
	}

	if va == nil {
		return neutral(cat, "vulnerability record not analyzed")
	}

	if n := len(va.CatastrophicIDs); n > 0 {
		cat.Factors = append(cat.Factors,
			fmt.Sprintf("catastrophic vulnerability on record: %v", va.CatastrophicIDs))
		return finalize(cat, 100)
	}

	score := 0
	if c := va.Counts.Critical; c > 0 {
		pts := min(60+10*(c-1), 85)
		score += pts
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d critical CVEs (+%d)", c, pts))
	}
	if h := va.Counts.High; h > 0 {
		pts := min(5*h, 20)
		score += pts
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d high CVEs (+%d)", h, pts))
	}
	if m := va.Counts.Medium; m > 0 {
		pts := min(2*m, 10)
		score += pts
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d medium CVEs (+%d)", m, pts))
	}
	if a := len(va.Advisories); a > 0 {
		pts := min(3*a, 12)
		score += pts
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d published advisories (+%d)", a, pts))
	}
	if ra != nil && ra.OpenSecurityIssues > 0 {
		pts := min(2*ra.OpenSecurityIssues, 8)
		score += pts
		cat.Factors = append(cat.Factors,
			fmt.Sprintf("%d open security-labeled issues (+%d)", ra.OpenSecurityIssues, pts))
	}
	if score == 0 {
		cat.Factors = append(cat.Factors, "no known vulnerabilities")
	}

	return finalize(cat, score)
}

// MediaWarnings scores adverse press and expert commentary across news and
// social coverage.
func MediaWarnings(ma *media.Analysis, sa *social.Analysis) RiskCategory {
	cat := RiskCategory{
		Name:        CategoryMedia,
		Description: "Warnings in press coverage and from named security experts",
		Weight:      WeightMedia,
	}

	if ma == nil && sa == nil {
		return neutral(cat, "media coverage not analyzed")
	}

	experts := 0
	highCred := 0
	warnings := 0
	if ma != nil {
		experts += len(ma.ExpertWarnings)
		highCred = ma.HighCredWarnings
		warnings += ma.WarningCount
	}
	if sa != nil {
		experts += sa.ExpertMentions
		warnings += sa.WarningCount
	}

	score := 0
	if experts > 0 {
		score += 40
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d named expert warnings (+40)", experts))
	}
	if highCred > 0 {
		score += 20
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d high-credibility warnings (+20)", highCred))
	}
	switch {
	case warnings >= 10:
		score += 25
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d warning articles (+25)", warnings))
	case warnings >= 5:
		score += 15
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d warning articles (+15)", warnings))
	case warnings >= 1:
		score += 8
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d warning articles (+8)", warnings))
	default:
		cat.Factors = append(cat.Factors, "no adverse coverage")
	}

	return finalize(cat, score)
}

// MaintainerResponse scores maintenance posture; lower is better. It starts
// at the neutral midpoint and moves with hygiene signals.
func MaintainerResponse(ra *repo.Analysis, now time.Time) RiskCategory {
	cat := RiskCategory{
		Name:        CategoryMaintainer,
		Description: "How actively and transparently the project is maintained",
		Weight:      WeightMaintainer,
	}

	if ra == nil {
		return neutral(cat, "repository not analyzed")
	}

	score := 50
	if ra.SecurityPolicy {
		score -= 10
		cat.Factors = append(cat.Factors, "security policy present (-10)")
	}
	if ra.SecurityCommits >= 3 {
		score -= 10
		cat.Factors = append(cat.Factors, "recent security commit activity (-10)")
	}
	if ra.Contributors >= 100 {
		score -= 10
		cat.Factors = append(cat.Factors, fmt.Sprintf("%d contributors (-10)", ra.Contributors))
	}
	if !ra.LastCommit.IsZero() && now.Sub(ra.LastCommit) <= 30*24*time.Hour {
		score -= 5
		cat.Factors = append(cat.Factors, "commit within the last 30 days (-5)")
	}
	if !ra.LastCommit.IsZero() && now.Sub(ra.LastCommit) > 365*24*time.Hour {
		score += 20
		cat.Factors = append(cat.Factors, "no commits in over a year (+20)")
	}
	if ra.Contributors > 0 && ra.Contributors < 3 {
		score += 10
		cat.Factors = append(cat.Factors, fmt.Sprintf("only %d contributors (+10)", ra.Contributors))
	}
	if ra.Snapshot != nil && ra.Snapshot.License == "" {
		score += 10
		cat.Factors = append(cat.Factors, "no license (+10)")
	}

	return finalize(cat, score)
}

// ViralGrowth scores adoption-velocity risk: projects that get big faster
// than scrutiny can keep up.
func ViralGrowth(ra *repo.Analysis) RiskCategory {
	cat := RiskCategory{
		Name:        CategoryViralGrowth,
		Description: "Adoption outpacing the scrutiny the project has received",
		Weight:      WeightViralGrowth,
	}

	if ra == nil {
		return neutral(cat, "repository not analyzed")
	}

	score := 0
	switch {
	case ra.StarsPerDay >= 500:
		score += 40
		cat.Factors = append(cat.Factors, fmt.Sprintf("%.0f stars/day (+40)", ra.StarsPerDay))
	case ra.StarsPerDay >= 200:
		score += 25
		cat.Factors = append(cat.Factors, fmt.Sprintf("%.0f stars/day (+25)", ra.StarsPerDay))
	case ra.StarsPerDay >= 50:
		score += 12
		cat.Factors = append(cat.Factors, fmt.Sprintf("%.0f stars/day (+12)", ra.StarsPerDay))
	}
	if len(ra.DetectedRenames) > 0 {
		score += 20
		cat.Factors = append(cat.Factors, fmt.Sprintf("project renamed from %v (+20)", ra.DetectedRenames))
	}
	stars := 0
	if ra.Snapshot != nil {
		stars = ra.Snapshot.Stars
	}
	if ra.AgeDays > 0 && ra.AgeDays < 90 && stars >= 10000 {
		score += 15
		cat.Factors = append(cat.Factors, "massive adoption under 90 days old (+15)")
	}
	if ra.AgeDays > 720 && ra.StarsPerDay < 10 {
		score -= 10
		cat.Factors = append(cat.Factors, "long-lived project with steady growth (-10)")
	}
	if len(cat.Factors) == 0 {
		cat.Factors = append(cat.Factors, "unremarkable growth profile")
	}

	return finalize(cat, score)
}

// All scores every category in the fixed report order.
func All(ra *repo.Analysis, va *vuln.Analysis, ma *media.Analysis, sa *social.Analysis, now time.Time) []RiskCategory {
	return []RiskCategory{
		ActiveVulnerabilities(va, ra),
		ArchitectureRisk(ra),
		MediaWarnings(ma, sa),
		MaintainerResponse(ra, now),
		ViralGrowth(ra),
	}
}

// ===========================================================================
// Overall verdict
// ===========================================================================

// Overall combines the weighted category scores and applies the escalation
// floors: a catastrophic vulnerability category (100) floors the overall at
// 85, a critical one (>=70) floors it at 70. The floors keep one confirmed
// critical from being diluted by four clean categories.
func Overall(categories []RiskCategory) int {
	sum := 0.0
	vulnScore := 0
	for _, c := range categories {
		sum += c.WeightedScore
		if c.Name == CategoryVulnerabilities {
			vulnScore = c.Score
		}
	}

	score := int(sum + 0.5)
	switch {
	case vulnScore == 100 && score < catastrophicFloor:
		score = catastrophicFloor
	case vulnScore >= criticalThreshold && score < criticalScoreFloor:
		score = criticalScoreFloor
	}
	return clamp(score)
}

// Light maps an overall score onto the traffic light.
func Light(score int) TrafficLight {
	switch {
	case score <= 30:
		return Green
	case score <= 65:
		return Amber
	default:
		return Red
	}
}

// Recommend maps a traffic light onto the recommendation string.
func Recommend(light TrafficLight) string {
	switch light {
	case Green:
		return RecommendSafe
	case Amber:
		return RecommendCaution
	default:
		return RecommendAgainst
	}
}

// ===========================================================================
// Helpers
// ===========================================================================

func neutral(cat RiskCategory, why string) RiskCategory {
	cat.Factors = append(cat.Factors, why+"; neutral score assumed")
	return finalize(cat, neutralScore)
}

func finalize(cat RiskCategory, score int) RiskCategory {
	cat.Score = clamp(score)
	cat.WeightedScore = float64(cat.Score) * cat.Weight
	return cat
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
