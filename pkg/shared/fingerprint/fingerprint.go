// Package fingerprint provides the integrity fingerprint for PubGuard reports.
//
// The fingerprint is a tamper-evidence seal over the report identity, not a
// full-content digest: it commits to the scanned target, the generation
// timestamp, and the overall score. Re-running report assembly over the same
// triple must produce the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// prefix versions the fingerprint scheme. Bump it if the input layout changes.
const prefix = "pubguard:v1"

// Report computes the integrity fingerprint for a report.
// owner and name identify the scanned target; generatedAt is the assembly
// timestamp; overallScore is the final 0-100 risk score.
func Report(owner, name string, generatedAt time.Time, overallScore int) string {
	data := fmt.Sprintf("%s:%s/%s:%s:%d",
		prefix,
		normalize(owner),
		normalize(name),
		generatedAt.UTC().Format(time.RFC3339),
		overallScore,
	)
	return Hash(data)
}

// Hash computes the SHA256 hash of the input string.
// Returns 64 hex characters.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// normalize cleans up an identity component for consistent fingerprinting.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}
