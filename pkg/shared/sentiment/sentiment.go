// Package sentiment classifies short security-related text by keyword
// matching. It is deliberately simple: the classifier runs over search
// snippets, not full articles, and feeds coarse volume counts, so a
// wrong call on one snippet moves nothing.
package sentiment

import "strings"

// Sentiment is the classification of one piece of text.
type Sentiment string

const (
	// Warning - warning language with nothing positive alongside it.
	Warning Sentiment = "warning"
	// Negative - warning and positive language mixed; reads as a dispute
	// or a fix announcement, still a negative signal.
	Negative Sentiment = "negative"
	// Positive - positive language only.
	Positive Sentiment = "positive"
	// Neutral - neither list matched.
	Neutral Sentiment = "neutral"
	// Mixed - aggregate-only value: signals present but no clear lean.
	Mixed Sentiment = "mixed"
)

var warningKeywords = []string{
	"vulnerability", "vulnerable", "exploit", "backdoor", "malware",
	"malicious", "compromised", "compromise", "breach", "attack",
	"warning", "avoid", "dangerous", "critical flaw", "security risk",
	"remote code execution", "supply chain", "hijacked", "trojan",
	"do not use", "stealing", "steals",
}

var positiveKeywords = []string{
	"secure", "trusted", "recommended", "reliable", "safe to use",
	"well maintained", "audited", "patched", "fixed", "resolved",
	"no issues", "best practice", "endorsed",
}

// Classify buckets text by which keyword lists it matches.
func Classify(text string) Sentiment {
	lower := strings.ToLower(text)

	warning := containsAny(lower, warningKeywords)
	positive := containsAny(lower, positiveKeywords)

	switch {
	case warning && positive:
		return Negative
	case warning:
		return Warning
	case positive:
		return Positive
	default:
		return Neutral
	}
}

// IsAdverse reports whether the sentiment counts as a warning signal.
func (s Sentiment) IsAdverse() bool {
	return s == Warning || s == Negative
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
