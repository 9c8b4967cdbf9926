// Package report assembles the terminal scan artifact. A report is built
// once, hashed, and never mutated afterward.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/pubguard/engine/pkg/analyzers/media"
	"github.com/pubguard/engine/pkg/analyzers/repo"
	"github.com/pubguard/engine/pkg/analyzers/social"
	"github.com/pubguard/engine/pkg/analyzers/vuln"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/guidance"
	"github.com/pubguard/engine/pkg/scoring"
	"github.com/pubguard/engine/pkg/shared/fingerprint"
	"github.com/pubguard/engine/pkg/target"
)

// Analyses carries the four raw analyzer outputs. A nil field means that
// source failed, was skipped, or found the target inaccessible.
type Analyses struct {
	Repository    *repo.Analysis   `json:"repository"`
	Vulnerability *vuln.Analysis   `json:"vulnerability"`
	Media         *media.Analysis  `json:"media"`
	Social        *social.Analysis `json:"social"`
}

// PubGuardReport is the immutable result of one scan.
type PubGuardReport struct {
	ID             string                 `json:"id"`
	Target         *target.Target         `json:"target"`
	TrafficLight   scoring.TrafficLight   `json:"trafficLight"`
	Recommendation string                 `json:"recommendation"`
	OverallScore   int                    `json:"overallScore"`
	RiskCategories []scoring.RiskCategory `json:"riskCategories"`
	SourcesChecked []findings.SourceCheck `json:"sourcesChecked"`
	Findings       findings.Buckets       `json:"findings"`
	Analyses       Analyses               `json:"analyses"`
	Guidance       *guidance.Guidance     `json:"guidance"`
	Disclaimer     string                 `json:"disclaimer"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	Hash           string                 `json:"hash"`
}

// Input is everything the assembler merges. The assembler adds only the
// id, the timestamp and the hash.
type Input struct {
	Target         *target.Target
	Categories     []scoring.RiskCategory
	SourcesChecked []findings.SourceCheck
	AllFindings    []findings.Finding
	Analyses       Analyses
	Guidance       *guidance.Guidance
}

// Assembler builds reports. The clock is injectable so that golden tests
// can pin generatedAt.
type Assembler struct {
	now   func() time.Time
	newID func() string
}

// NewAssembler creates an assembler using the wall clock and random ids.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now, newID: uuid.NewString}
}

// NewAssemblerAt creates an assembler with a fixed clock and id source.
func NewAssemblerAt(now func() time.Time, newID func() string) *Assembler {
	return &Assembler{now: now, newID: newID}
}

// Assemble merges the scan outputs into a report, stamps generatedAt, and
// seals it with the integrity hash. This is the only place generatedAt is
// set.
func (a *Assembler) Assemble(in Input) *PubGuardReport {
	generatedAt := a.now().UTC()
	score := scoring.Overall(in.Categories)
	light := scoring.Light(score)

	r := &PubGuardReport{
		ID:             a.newID(),
		Target:         in.Target,
		TrafficLight:   light,
		Recommendation: scoring.Recommend(light),
		OverallScore:   score,
		RiskCategories: in.Categories,
		SourcesChecked: in.SourcesChecked,
		Findings:       findings.Bucketize(in.AllFindings),
		Analyses:       in.Analyses,
		Guidance:       in.Guidance,
		GeneratedAt:    generatedAt,
	}
	if in.Guidance != nil {
		r.Disclaimer = in.Guidance.Disclaimer
	}
	r.Hash = fingerprint.Report(in.Target.Owner, in.Target.Name, generatedAt, score)
	return r
}
