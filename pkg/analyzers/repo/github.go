package repo

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/pubguard/engine/pkg/errors"
)

// GitHubHost reads repository metadata through the GitHub REST API.
type GitHubHost struct {
	client *github.Client
}

// NewGitHubHost creates a GitHub host. An empty token falls back to
// unauthenticated access (60 requests/hour).
func NewGitHubHost(token string) *GitHubHost {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc := oauth2.NewClient(context.Background(), ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubHost{client: client}
}

// NewGitHubHostWithClient creates a GitHub host over an existing client,
// mainly for tests pointing at a fake API server.
func NewGitHubHostWithClient(client *github.Client) *GitHubHost {
	return &GitHubHost{client: client}
}

// Name returns "github".
func (h *GitHubHost) Name() string {
	return "github"
}

// Snapshot fetches repository metadata.
func (h *GitHubHost) Snapshot(ctx context.Context, owner, name string) (*Snapshot, error) {
	r, _, err := h.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, mapGitHubErr("github.Snapshot", err)
	}

	s := &Snapshot{
		Description:   r.GetDescription(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		CreatedAt:     r.GetCreatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
		Archived:      r.GetArchived(),
		Topics:        r.Topics,
		DefaultBranch: r.GetDefaultBranch(),
	}
	if l := r.GetLicense(); l != nil {
		s.License = l.GetSPDXID()
	}
	return s, nil
}

// ContributorCount counts contributors using the Link header trick: one
// result per page makes the last page number the total count.
func (h *GitHubHost) ContributorCount(ctx context.Context, owner, name string) (int, error) {
	opts := &github.ListContributorsOptions{
		Anon:        "true",
		ListOptions: github.ListOptions{PerPage: 1},
	}
	contributors, resp, err := h.client.Repositories.ListContributors(ctx, owner, name, opts)
	if err != nil {
		return 0, mapGitHubErr("github.ContributorCount", err)
	}
	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(contributors), nil
}

// FileContent fetches a file from the default branch. Missing files return
// ("", nil).
func (h *GitHubHost) FileContent(ctx context.Context, owner, name, path string) (string, error) {
	fc, _, resp, err := h.client.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", mapGitHubErr("github.FileContent", err)
	}
	if fc == nil {
		return "", nil
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", errors.E(errors.KindMalformedResponse, "github.FileContent",
			fmt.Sprintf("decode %s", path), err)
	}
	return content, nil
}

// RecentCommits lists the most recent commits on the default branch.
func (h *GitHubHost) RecentCommits(ctx context.Context, owner, name string, limit int) ([]Commit, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: limit}}
	commits, _, err := h.client.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		return nil, mapGitHubErr("github.RecentCommits", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		commit := c.GetCommit()
		if commit == nil {
			continue
		}
		out = append(out, Commit{
			Message: commit.GetMessage(),
			Date:    commit.GetCommitter().GetDate().Time,
		})
	}
	return out, nil
}

// OpenSecurityIssues counts open issues carrying a security label.
func (h *GitHubHost) OpenSecurityIssues(ctx context.Context, owner, name string) (int, error) {
	query := fmt.Sprintf("repo:%s/%s is:issue is:open label:security", owner, name)
	result, _, err := h.client.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, mapGitHubErr("github.OpenSecurityIssues", err)
	}
	return result.GetTotal(), nil
}

// mapGitHubErr folds go-github errors onto the engine taxonomy.
func mapGitHubErr(op string, err error) error {
	var er *github.ErrorResponse
	if stderrors.As(err, &er) && er.Response != nil {
		return &errors.UpstreamError{
			Source:     "github",
			StatusCode: er.Response.StatusCode,
			Message:    er.Message,
		}
	}
	var rl *github.RateLimitError
	if stderrors.As(err, &rl) {
		return errors.E(errors.KindRateLimit, op, "github rate limit exhausted", err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.E(errors.KindNetwork, op, "github request failed", err)
}

var _ Host = (*GitHubHost)(nil)
