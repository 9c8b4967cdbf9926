// Package severity provides unified severity level definitions and mappings
// for risk findings across all engine sources.
package severity

import "strings"

// Level represents a severity level for risk findings.
type Level string

const (
	// Critical - Immediate action required. Actively exploited or trivially exploitable.
	Critical Level = "critical"

	// High - Serious risk that should be addressed urgently.
	High Level = "high"

	// Medium - Moderate risk.
	Medium Level = "medium"

	// Low - Minor issue.
	Low Level = "low"

	// Unknown - Severity could not be determined.
	Unknown Level = "unknown"
)

// AllLevels returns all severity levels in order of priority (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low, Unknown}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// IsAtLeast returns true if this severity is at least as high as the other.
func (l Level) IsAtLeast(other Level) bool {
	return l.Priority() >= other.Priority()
}

// FromString normalizes various severity string formats to a standard Level.
// Handles the formats reported by the upstream feeds:
//   - NVD CVSS v2: HIGH, MEDIUM, LOW
//   - NVD CVSS v3.x/v4: CRITICAL, HIGH, MEDIUM, LOW, NONE
//   - GitHub advisories: critical, high, moderate, low
func FromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL", "CRIT":
		return Critical
	case "HIGH", "SEVERE":
		return High
	case "MEDIUM", "MODERATE", "MED":
		return Medium
	case "LOW", "NONE":
		return Low
	default:
		return Unknown
	}
}

// FromCVSS converts a CVSS score (0.0-10.0) to a severity level.
// Based on CVSS v3.0 severity ratings:
//   - 9.0-10.0: Critical
//   - 7.0-8.9: High
//   - 4.0-6.9: Medium
//   - 0.0-3.9: Low
func FromCVSS(score float64) Level {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score >= 0:
		return Low
	default:
		return Unknown
	}
}

// Compare returns:
//
//	-1 if a < b (a is lower severity)
//	 0 if a == b
//	+1 if a > b (a is higher severity)
func Compare(a, b Level) int {
	pa, pb := a.Priority(), b.Priority()
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Max returns the higher severity of two levels.
func Max(a, b Level) Level {
	if a.IsHigherThan(b) {
		return a
	}
	return b
}

// Counts tallies findings by severity level.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
	Total    int `json:"total"`
}

// Increment increases the count for the given severity.
func (c *Counts) Increment(level Level) {
	c.Total++
	switch level {
	case Critical:
		c.Critical++
	case High:
		c.High++
	case Medium:
		c.Medium++
	case Low:
		c.Low++
	default:
		c.Unknown++
	}
}

// Highest returns the highest severity level that has a non-zero count.
func (c *Counts) Highest() Level {
	if c.Critical > 0 {
		return Critical
	}
	if c.High > 0 {
		return High
	}
	if c.Medium > 0 {
		return Medium
	}
	if c.Low > 0 {
		return Low
	}
	return Unknown
}
