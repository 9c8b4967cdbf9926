// Package target resolves a scan reference into the canonical subject of a scan.
package target

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pubguard/engine/pkg/errors"
)

// Host identifies the code host a target lives on.
type Host string

const (
	HostGitHub Host = "github"
	HostGitLab Host = "gitlab"
)

// Target is the canonical subject of a scan.
// AlternateNames accumulate during analysis (e.g. a detected project rename)
// and widen subsequent searches within the same scan. They only ever flow
// upward through the orchestrator; analyzers never mutate a shared Target.
type Target struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Host  Host   `json:"host"`
	URL   string `json:"url"`

	AlternateNames []string `json:"alternate_names,omitempty"`
}

// identRe matches a single owner or project segment.
var identRe = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9._])?$`)

// Parse resolves a reference into a Target. Accepted forms:
//
//	owner/name
//	github.com/owner/name          (with or without https:// prefix)
//	gitlab.com/owner/name          (with or without https:// prefix)
//
// A trailing ".git" suffix is stripped. Anything else fails with an
// invalid-target error before any network I/O.
func Parse(reference string) (*Target, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.InvalidTarget(reference, "empty reference")
	}

	host := HostGitHub
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	ref = strings.TrimPrefix(ref, "www.")

	switch {
	case strings.HasPrefix(ref, "github.com/"):
		ref = strings.TrimPrefix(ref, "github.com/")
	case strings.HasPrefix(ref, "gitlab.com/"):
		host = HostGitLab
		ref = strings.TrimPrefix(ref, "gitlab.com/")
	case strings.Contains(ref, "."):
		// A dotted prefix that is not a known code host (e.g. bitbucket.org/x/y).
		if parts := strings.SplitN(ref, "/", 2); strings.Contains(parts[0], ".") {
			return nil, errors.InvalidTarget(reference, "unsupported code host")
		}
	}

	ref = strings.TrimSuffix(ref, ".git")
	ref = strings.Trim(ref, "/")

	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return nil, errors.InvalidTarget(reference, "expected owner/name")
	}

	owner, name := parts[0], parts[1]
	if !identRe.MatchString(owner) || !identRe.MatchString(name) {
		return nil, errors.InvalidTarget(reference, "malformed owner or name")
	}

	return &Target{
		Name:  name,
		Owner: owner,
		Host:  host,
		URL:   fmt.Sprintf("https://%s.com/%s/%s", host, owner, name),
	}, nil
}

// Slug returns the owner/name pair.
func (t *Target) Slug() string {
	return t.Owner + "/" + t.Name
}

// AddAlternates merges names into AlternateNames, skipping duplicates and the
// primary name. Comparison is case-insensitive.
func (t *Target) AddAlternates(names ...string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || strings.EqualFold(n, t.Name) {
			continue
		}
		dup := false
		for _, existing := range t.AlternateNames {
			if strings.EqualFold(existing, n) {
				dup = true
				break
			}
		}
		if !dup {
			t.AlternateNames = append(t.AlternateNames, n)
		}
	}
}

// AllNames returns the primary name followed by all alternates.
func (t *Target) AllNames() []string {
	names := make([]string, 0, 1+len(t.AlternateNames))
	names = append(names, t.Name)
	names = append(names, t.AlternateNames...)
	return names
}

// Clone returns a deep copy. The orchestrator hands each analyzer its own
// copy so no analyzer observes another's widening mid-flight.
func (t *Target) Clone() *Target {
	c := *t
	c.AlternateNames = append([]string(nil), t.AlternateNames...)
	return &c
}
