// Package repo implements the repository analyzer: it reads code-host
// metadata for the scan target and turns it into normalized findings about
// permissions, hygiene, growth and renames.
package repo

import (
	"context"
	"time"
)

// Snapshot is the typed contract for repository metadata. Host
// implementations map their provider's payload onto this shape; nothing
// downstream sees provider JSON.
type Snapshot struct {
	Description   string    `json:"description"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	CreatedAt     time.Time `json:"created_at"`
	PushedAt      time.Time `json:"pushed_at"`
	Archived      bool      `json:"archived"`
	License       string    `json:"license,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	DefaultBranch string    `json:"default_branch"`
}

// Commit is one recent commit on the default branch.
type Commit struct {
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Host abstracts the code-host metadata API. Implementations exist for
// GitHub and GitLab; both are read-only and keyed by owner/name.
//
// FileContent returns ("", nil) when the file does not exist; errors are
// reserved for transport failures and inaccessible repositories.
type Host interface {
	Name() string
	Snapshot(ctx context.Context, owner, name string) (*Snapshot, error)
	ContributorCount(ctx context.Context, owner, name string) (int, error)
	FileContent(ctx context.Context, owner, name, path string) (string, error)
	RecentCommits(ctx context.Context, owner, name string, limit int) ([]Commit, error)
	OpenSecurityIssues(ctx context.Context, owner, name string) (int, error)
}
