// Package guidance narrates a finished risk assessment for the people who
// have to act on it. It never re-derives risk: everything here is a pure
// function of what scoring and the analyzers already decided.
package guidance

import (
	"fmt"

	"github.com/pubguard/engine/pkg/analyzers/media"
	"github.com/pubguard/engine/pkg/analyzers/repo"
	"github.com/pubguard/engine/pkg/findings"
	"github.com/pubguard/engine/pkg/scoring"
	"github.com/pubguard/engine/pkg/shared/severity"
)

// Persona identifies who the guidance note is written for.
type Persona string

const (
	PersonaWriter    Persona = "writer"
	PersonaDeveloper Persona = "developer"
	PersonaEndUser   Persona = "end-user"
	PersonaAnalyst   Persona = "analyst"
)

// Guidance is the narrated assessment: whether the subject can be
// recommended, what must be disclosed alongside any mention of it, what can
// be said in its favor, and a disclaimer matching the verdict.
type Guidance struct {
	CanRecommend         bool               `json:"canRecommend"`
	MandatoryDisclosures []string           `json:"mandatoryDisclosures"`
	PositivePoints       []string           `json:"positivePoints"`
	Disclaimer           string             `json:"disclaimer"`
	PersonaNotes         map[Persona]string `json:"personaNotes"`
}

// The three disclaimer templates, one per traffic light.
const (
	disclaimerGreen = "This assessment found no significant risk signals at scan time. " +
		"Risk posture can change with any release; re-scan before high-stakes use."
	disclaimerAmber = "This assessment found risk signals that warrant disclosure. " +
		"Recommendations should carry the listed caveats verbatim."
	disclaimerRed = "This assessment found serious risk signals. " +
		"Do not recommend this software; if it is already deployed, treat removal as a security task."
)

// Build produces guidance from the verdict and the evidence behind it.
// Disclosure order is fixed: critical vulnerability findings first, then
// permission-risk findings, then named expert warnings.
func Build(light scoring.TrafficLight, all []findings.Finding, ra *repo.Analysis, ma *media.Analysis) *Guidance {
	g := &Guidance{
		CanRecommend: light != scoring.Red,
		Disclaimer:   disclaimerFor(light),
	}

	// Critical vulnerabilities always lead.
	for _, f := range all {
		if f.Positive || f.Category != findings.CategoryVulnerability || f.Severity != severity.Critical {
			continue
		}
		g.MandatoryDisclosures = append(g.MandatoryDisclosures, f.Title+": "+f.Description)
	}
	for _, f := range all {
		if f.Positive || f.Category != findings.CategoryPermissions {
			continue
		}
		g.MandatoryDisclosures = append(g.MandatoryDisclosures, f.Title+": "+f.Description)
	}
	if ma != nil {
		for _, w := range ma.ExpertWarnings {
			g.MandatoryDisclosures = append(g.MandatoryDisclosures,
				fmt.Sprintf("%s (%s) warned: %q (%s)", w.Researcher, w.Organization, w.Quote, w.Date))
		}
	}

	for _, f := range all {
		if f.Positive {
			g.PositivePoints = append(g.PositivePoints, f.Title)
		}
	}

	g.PersonaNotes = personaNotes(light, len(g.MandatoryDisclosures), ra)
	return g
}

func disclaimerFor(light scoring.TrafficLight) string {
	switch light {
	case scoring.Green:
		return disclaimerGreen
	case scoring.Amber:
		return disclaimerAmber
	default:
		return disclaimerRed
	}
}

func personaNotes(light scoring.TrafficLight, disclosures int, ra *repo.Analysis) map[Persona]string {
	notes := map[Persona]string{}

	switch light {
	case scoring.Green:
		notes[PersonaWriter] = "Safe to feature. No mandatory caveats surfaced by this scan."
		notes[PersonaDeveloper] = "No blockers found; normal dependency review applies."
		notes[PersonaEndUser] = "No known reasons to avoid this software."
		notes[PersonaAnalyst] = "Low-risk profile across all five categories at scan time."
	case scoring.Amber:
		notes[PersonaWriter] = fmt.Sprintf(
			"Coverage must include the %d mandatory disclosures below.", disclosures)
		notes[PersonaDeveloper] = "Adopt only with the disclosed caveats mitigated or accepted in review."
		notes[PersonaEndUser] = "Usable with caution; read the disclosures before installing."
		notes[PersonaAnalyst] = "Elevated risk in at least one category; see category factors for drivers."
	default:
		notes[PersonaWriter] = "Do not feature or recommend. If previously covered, publish a correction."
		notes[PersonaDeveloper] = "Do not adopt. If present in a dependency tree, plan removal."
		notes[PersonaEndUser] = "Avoid this software until the flagged issues are resolved."
		notes[PersonaAnalyst] = "High-risk verdict; escalation rules or multiple categories fired."
	}

	if ra == nil {
		notes[PersonaAnalyst] += " Repository evidence was unavailable; verdict leans on external sources."
	}
	return notes
}
